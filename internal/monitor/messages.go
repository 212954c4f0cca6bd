package monitor

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// HandleMessageDelete surfaces deletions for watched users only. The
// gateway delete payload carries just IDs; content comes from the state
// cache when available.
func (m *Monitor) HandleMessageDelete(e *discordgo.MessageDelete) {
	if e.GuildID == "" || m.wrongGuild(e.GuildID) {
		return
	}

	msg := e.BeforeDelete
	if msg == nil || msg.Author == nil {
		return
	}

	userID, ok := utils.ParseUserID(msg.Author.ID)
	if !ok || !m.store.IsWatched(userID) {
		return
	}
	if !m.policy.ShouldAlert("messages", userID) {
		return
	}

	preview := "[No text content]"
	if msg.Content != "" {
		preview = utils.TruncateText(msg.Content, 200)
	}

	lines := []string{
		fmt.Sprintf("**Author:** %s 👁️", utils.FormatUser(msg.Author)),
		fmt.Sprintf("**Channel:** <#%s>", e.ChannelID),
		fmt.Sprintf("**Content:** ```%s```", preview),
	}
	if n := len(msg.Attachments); n > 0 {
		lines = append(lines, fmt.Sprintf("**Attachments:** %d file(s)", n))
	}

	m.record("message_delete", msg.Author.ID, "", map[string]interface{}{
		"user_id":    msg.Author.ID,
		"channel_id": e.ChannelID,
		"content":    utils.TruncateText(msg.Content, 500),
	}, "")

	m.alerts.Info("Message Deleted (Watched User)", strings.Join(lines, "\n"))
}

// HandleMessageUpdate surfaces edits for watched users only. Embed-only
// updates, where the content is unchanged, are ignored.
func (m *Monitor) HandleMessageUpdate(e *discordgo.MessageUpdate) {
	if e.GuildID == "" || m.wrongGuild(e.GuildID) {
		return
	}
	if e.Author == nil || e.Author.Bot {
		return
	}

	userID, ok := utils.ParseUserID(e.Author.ID)
	if !ok || !m.store.IsWatched(userID) {
		return
	}
	if !m.policy.ShouldAlert("messages", userID) {
		return
	}

	beforeContent := ""
	if e.BeforeUpdate != nil {
		beforeContent = e.BeforeUpdate.Content
	}
	if beforeContent == e.Content {
		return
	}

	beforePreview := "[Empty]"
	if beforeContent != "" {
		beforePreview = utils.TruncateText(beforeContent, 150)
	}
	afterPreview := "[Empty]"
	if e.Content != "" {
		afterPreview = utils.TruncateText(e.Content, 150)
	}

	lines := []string{
		fmt.Sprintf("**Author:** %s 👁️", utils.FormatUser(e.Author)),
		fmt.Sprintf("**Channel:** <#%s>", e.ChannelID),
		fmt.Sprintf("**Before:** ```%s```", beforePreview),
		fmt.Sprintf("**After:** ```%s```", afterPreview),
	}

	m.record("message_edit", e.Author.ID, "", map[string]interface{}{
		"user_id":    e.Author.ID,
		"channel_id": e.ChannelID,
		"before":     utils.TruncateText(beforeContent, 500),
		"after":      utils.TruncateText(e.Content, 500),
	}, "")

	m.alerts.Info("Message Edited (Watched User)", strings.Join(lines, "\n"))
}
