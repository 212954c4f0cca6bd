package monitor

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// HandleBanAdd records every ban and alerts unless the moderation filter
// suppresses it. Actor and reason come from the audit log, best-effort.
func (m *Monitor) HandleBanAdd(e *discordgo.GuildBanAdd) {
	if e.User == nil || m.wrongGuild(e.GuildID) {
		return
	}

	lines := []string{fmt.Sprintf("**User:** %s", utils.FormatUser(e.User))}

	actor := ""
	if who, reason, ok := m.attribute(e.GuildID, int(discordgo.AuditLogActionMemberBanAdd), e.User.ID); ok {
		actor = who
		lines = append(lines, fmt.Sprintf("**Banned by:** %s", who))
		if reason != "" {
			lines = append(lines, fmt.Sprintf("**Reason:** %s", reason))
		}
	}

	m.record("member_ban", e.User.ID, actor, map[string]interface{}{
		"user_id":   e.User.ID,
		"user_name": e.User.Username,
		"guild_id":  e.GuildID,
	}, actor)
	m.store.IncrementStat("bans")

	userID, _ := utils.ParseUserID(e.User.ID)
	if m.policy.ShouldAlert("moderation", userID) {
		m.alerts.Warning("Member Banned", strings.Join(lines, "\n"))
	}
}

func (m *Monitor) HandleBanRemove(e *discordgo.GuildBanRemove) {
	if e.User == nil || m.wrongGuild(e.GuildID) {
		return
	}

	m.record("member_unban", e.User.ID, "", map[string]interface{}{
		"user_id":   e.User.ID,
		"user_name": e.User.Username,
	}, "")

	userID, _ := utils.ParseUserID(e.User.ID)
	if m.policy.ShouldAlert("moderation", userID) {
		m.alerts.Info("Member Unbanned", fmt.Sprintf("**User:** %s", utils.FormatUser(e.User)))
	}
}
