package quickactions

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Moderator performs remedial actions against the platform. Implementations
// must return descriptive errors; they are never propagated past this
// package, only rendered into the operator's reply.
type Moderator interface {
	Ban(guildID, userID, reason string) error
	Kick(guildID, userID, reason string) error
	// StripRoles removes every role below the agent's own top role,
	// excluding the default role, and reports how many were removed.
	StripRoles(guildID, userID, reason string) (int, error)
	Timeout(guildID, userID string, duration time.Duration, reason string) error
	// MemberInfo returns a read-only formatted snapshot of a member.
	MemberInfo(guildID, userID string) (string, error)
}

const quickTimeoutDuration = time.Hour

// execute runs a verb against the action's target. Failures come back as
// descriptive text, never as errors to the event path.
func (r *Registry) execute(action *PendingAction, verb string) string {
	target := strconv.FormatInt(action.TargetID, 10)

	switch verb {
	case "ban":
		if err := r.mod.Ban(action.GuildID, target, "Quick action: Ban"); err != nil {
			r.log.Error("quick ban failed", zap.String("target", target), zap.Error(err))
			return fmt.Sprintf("❌ Ban failed: %v", err)
		}
		return fmt.Sprintf("✅ Banned user %s", target)

	case "kick":
		if err := r.mod.Kick(action.GuildID, target, "Quick action: Kick"); err != nil {
			r.log.Error("quick kick failed", zap.String("target", target), zap.Error(err))
			return fmt.Sprintf("❌ Kick failed: %v", err)
		}
		return fmt.Sprintf("✅ Kicked user %s", target)

	case "strip":
		removed, err := r.mod.StripRoles(action.GuildID, target, "Quick action: Strip")
		if err != nil {
			r.log.Error("quick strip failed", zap.String("target", target), zap.Error(err))
			return fmt.Sprintf("❌ Strip failed: %v", err)
		}
		if removed == 0 {
			return "⚠️ No removable roles"
		}
		return fmt.Sprintf("✅ Stripped %d roles from %s", removed, target)

	case "timeout":
		if err := r.mod.Timeout(action.GuildID, target, quickTimeoutDuration, "Quick action: Timeout"); err != nil {
			r.log.Error("quick timeout failed", zap.String("target", target), zap.Error(err))
			return fmt.Sprintf("❌ Timeout failed: %v", err)
		}
		return fmt.Sprintf("✅ Timeout applied to %s (1 hour)", target)

	case "watch":
		if r.store.Watch(action.TargetID) {
			return fmt.Sprintf("✅ Now watching %s", target)
		}
		return fmt.Sprintf("⚠️ Already watching %s", target)

	case "info":
		info, err := r.mod.MemberInfo(action.GuildID, target)
		if err != nil {
			return fmt.Sprintf("❌ Member not found (ID: %s)", target)
		}
		return info

	case "ignore":
		return "✅ Ignored"

	default:
		return "❌ Unknown command"
	}
}
