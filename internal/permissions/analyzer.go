package permissions

import (
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// RiskTier classifies a permission set, ordered by severity.
type RiskTier int

const (
	TierLow RiskTier = iota
	TierModerate
	TierHigh
	TierCritical
)

func (t RiskTier) String() string {
	switch t {
	case TierCritical:
		return "CRITICAL"
	case TierHigh:
		return "HIGH"
	case TierModerate:
		return "MODERATE"
	default:
		return "LOW"
	}
}

// Emoji renders the tier the way alerts display it.
func (t RiskTier) Emoji() string {
	switch t {
	case TierCritical:
		return "🔴 CRITICAL"
	case TierHigh:
		return "🟡 HIGH"
	case TierModerate:
		return "🟠 MODERATE"
	default:
		return "🟢 LOW"
	}
}

type namedPerm struct {
	bit  int64
	name string
}

var criticalPerms = []namedPerm{
	{discordgo.PermissionAdministrator, "Administrator"},
	{discordgo.PermissionManageServer, "Manage Server"},
	{discordgo.PermissionManageRoles, "Manage Roles"},
}

var dangerousPerms = []namedPerm{
	{discordgo.PermissionManageChannels, "Manage Channels"},
	{discordgo.PermissionManageWebhooks, "Manage Webhooks"},
	{discordgo.PermissionBanMembers, "Ban Members"},
	{discordgo.PermissionKickMembers, "Kick Members"},
	{discordgo.PermissionManageMessages, "Manage Messages"},
	{discordgo.PermissionMentionEveryone, "Mention Everyone"},
	{discordgo.PermissionManageNicknames, "Manage Nicknames"},
	{discordgo.PermissionManageEmojis, "Manage Emojis"},
}

var moderatePerms = []namedPerm{
	{discordgo.PermissionCreateInstantInvite, "Create Instant Invite"},
	{discordgo.PermissionViewAuditLogs, "View Audit Log"},
	{discordgo.PermissionVoicePrioritySpeaker, "Priority Speaker"},
	{discordgo.PermissionVoiceMoveMembers, "Move Members"},
	{discordgo.PermissionVoiceMuteMembers, "Mute Members"},
	{discordgo.PermissionVoiceDeafenMembers, "Deafen Members"},
}

// allPerms is every named permission bit the diff enumerates.
var allPerms = func() []namedPerm {
	perms := []namedPerm{
		{discordgo.PermissionViewChannel, "View Channel"},
		{discordgo.PermissionSendMessages, "Send Messages"},
		{discordgo.PermissionSendTTSMessages, "Send TTS Messages"},
		{discordgo.PermissionEmbedLinks, "Embed Links"},
		{discordgo.PermissionAttachFiles, "Attach Files"},
		{discordgo.PermissionReadMessageHistory, "Read Message History"},
		{discordgo.PermissionUseExternalEmojis, "Use External Emojis"},
		{discordgo.PermissionAddReactions, "Add Reactions"},
		{discordgo.PermissionChangeNickname, "Change Nickname"},
		{discordgo.PermissionVoiceConnect, "Connect"},
		{discordgo.PermissionVoiceSpeak, "Speak"},
		{discordgo.PermissionModerateMembers, "Moderate Members"},
	}
	perms = append(perms, criticalPerms...)
	perms = append(perms, dangerousPerms...)
	perms = append(perms, moderatePerms...)
	return perms
}()

// sensitivePerms is the fixed subset the summary line reports, capped at 8.
var sensitivePerms = []namedPerm{
	{discordgo.PermissionManageServer, "Manage Server"},
	{discordgo.PermissionManageRoles, "Manage Roles"},
	{discordgo.PermissionManageChannels, "Manage Channels"},
	{discordgo.PermissionBanMembers, "Ban Members"},
	{discordgo.PermissionKickMembers, "Kick Members"},
	{discordgo.PermissionManageWebhooks, "Manage Webhooks"},
	{discordgo.PermissionManageMessages, "Manage Messages"},
	{discordgo.PermissionMentionEveryone, "Mention Everyone"},
}

// Analysis is the derived risk classification for one permission bitset.
type Analysis struct {
	Tier      RiskTier
	Critical  []string
	Dangerous []string
	Moderate  []string
	Summary   string
}

func (a Analysis) HasCritical() bool  { return len(a.Critical) > 0 }
func (a Analysis) HasDangerous() bool { return len(a.Dangerous) > 0 }

func matched(perms int64, table []namedPerm) []string {
	var names []string
	for _, p := range table {
		if perms&p.bit != 0 {
			names = append(names, p.name)
		}
	}
	return names
}

// Analyze classifies a guild permission bitset. Never cached; cheap enough
// to recompute per event.
func Analyze(perms int64) Analysis {
	a := Analysis{
		Critical:  matched(perms, criticalPerms),
		Dangerous: matched(perms, dangerousPerms),
		Moderate:  matched(perms, moderatePerms),
	}

	switch {
	case len(a.Critical) > 0:
		a.Tier = TierCritical
	case len(a.Dangerous) > 0:
		a.Tier = TierHigh
	case len(a.Moderate) > 0:
		a.Tier = TierModerate
	default:
		a.Tier = TierLow
	}

	a.Summary = summarize(perms)
	return a
}

func summarize(perms int64) string {
	if perms&discordgo.PermissionAdministrator != 0 {
		return "ADMINISTRATOR"
	}
	names := matched(perms, sensitivePerms)
	if len(names) == 0 {
		return "no sensitive permissions"
	}
	if len(names) > 8 {
		names = names[:8]
	}
	return strings.Join(names, ", ")
}

// Diff reports which named permission bits flipped between two sets.
type Diff struct {
	Added             []string
	Removed           []string
	HasCriticalChange bool
}

// DiffPermissions enumerates every named bit, sorted alphabetically for
// deterministic output.
func DiffPermissions(before, after int64) Diff {
	var d Diff
	changed := before ^ after
	for _, p := range allPerms {
		if changed&p.bit == 0 {
			continue
		}
		if after&p.bit != 0 {
			d.Added = append(d.Added, p.name)
		} else {
			d.Removed = append(d.Removed, p.name)
		}
		for _, c := range criticalPerms {
			if c.bit == p.bit {
				d.HasCriticalChange = true
			}
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}
