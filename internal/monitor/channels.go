package monitor

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

func channelTypeName(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "Text"
	case discordgo.ChannelTypeGuildVoice:
		return "Voice"
	case discordgo.ChannelTypeGuildCategory:
		return "Category"
	case discordgo.ChannelTypeGuildNews:
		return "Announcement"
	case discordgo.ChannelTypeGuildForum:
		return "Forum"
	case discordgo.ChannelTypeGuildStageVoice:
		return "Stage"
	default:
		return fmt.Sprintf("Type %d", t)
	}
}

func (m *Monitor) HandleChannelCreate(e *discordgo.ChannelCreate) {
	if e.Channel == nil || m.wrongGuild(e.GuildID) {
		return
	}

	lines := []string{
		fmt.Sprintf("**Channel:** %s", utils.FormatChannel(e.Channel)),
		fmt.Sprintf("**Type:** %s", channelTypeName(e.Type)),
	}

	actor := ""
	if who, _, ok := m.attribute(e.GuildID, int(discordgo.AuditLogActionChannelCreate), e.ID); ok {
		actor = who
		lines = append(lines, fmt.Sprintf("**Created by:** %s", who))
	}

	m.record("channel_create", e.ID, actor, map[string]interface{}{
		"channel_id":   e.ID,
		"channel_name": e.Name,
		"channel_type": channelTypeName(e.Type),
	}, "")
	m.store.IncrementStat("channel_changes")

	if m.policy.ShouldAlert("channels", 0) {
		m.alerts.Info("Channel Created", strings.Join(lines, "\n"))
	}
}

func (m *Monitor) HandleChannelDelete(e *discordgo.ChannelDelete) {
	if e.Channel == nil || m.wrongGuild(e.GuildID) {
		return
	}

	lines := []string{
		fmt.Sprintf("**Channel:** %s", utils.FormatChannel(e.Channel)),
		fmt.Sprintf("**Type:** %s", channelTypeName(e.Type)),
	}

	actor := ""
	if who, _, ok := m.attribute(e.GuildID, int(discordgo.AuditLogActionChannelDelete), e.ID); ok {
		actor = who
		lines = append(lines, fmt.Sprintf("**Deleted by:** %s", who))
	}

	m.record("channel_delete", e.ID, actor, map[string]interface{}{
		"channel_id":   e.ID,
		"channel_name": e.Name,
	}, "")
	m.store.IncrementStat("channel_changes")

	if m.policy.ShouldAlert("channels", 0) {
		m.alerts.Warning("Channel Deleted", strings.Join(lines, "\n"))
	}
}

// HandleChannelUpdate alerts on name, parent or overwrite changes. Quiet
// when nothing tracked changed, which covers the frequent position-only
// updates Discord sends.
func (m *Monitor) HandleChannelUpdate(e *discordgo.ChannelUpdate) {
	if e.Channel == nil || m.wrongGuild(e.GuildID) {
		return
	}
	if !m.policy.ShouldAlert("channels", 0) {
		return
	}

	before := e.BeforeUpdate
	after := e.Channel
	var changes []string

	if before != nil {
		if before.Name != after.Name {
			changes = append(changes, fmt.Sprintf("**Name:** `%s` → `%s`", before.Name, after.Name))
		}
		if before.ParentID != after.ParentID {
			changes = append(changes, fmt.Sprintf("**Category:** `%s` → `%s`", orNone(before.ParentID), orNone(after.ParentID)))
		}
		if !overwritesEqual(before.PermissionOverwrites, after.PermissionOverwrites) {
			changes = append(changes, "**Permissions:** Modified")
		}
	} else {
		// No cached snapshot; report the update without a diff.
		changes = append(changes, "**Updated** (no prior snapshot)")
	}

	if len(changes) == 0 {
		return
	}

	lines := append([]string{fmt.Sprintf("**Channel:** %s", utils.FormatChannel(after))}, changes...)

	m.record("channel_update", e.ID, "", map[string]interface{}{
		"channel_id": e.ID,
		"changes":    changes,
	}, strings.Join(changes, "; "))

	m.alerts.Info("Channel Updated", strings.Join(lines, "\n"))
}

func overwritesEqual(a, b []*discordgo.PermissionOverwrite) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[string]*discordgo.PermissionOverwrite, len(a))
	for _, o := range a {
		byID[o.ID] = o
	}
	for _, o := range b {
		prev, ok := byID[o.ID]
		if !ok || prev.Type != o.Type || prev.Allow != o.Allow || prev.Deny != o.Deny {
			return false
		}
	}
	return true
}
