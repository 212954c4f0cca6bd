package monitor

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// HandleVoiceStateUpdate tracks join/leave/move for watched users only.
func (m *Monitor) HandleVoiceStateUpdate(e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil || m.wrongGuild(e.GuildID) {
		return
	}

	userID, ok := utils.ParseUserID(e.UserID)
	if !ok || !m.store.IsWatched(userID) {
		return
	}
	if !m.policy.ShouldAlert("voice", userID) {
		return
	}

	beforeChannel := ""
	if e.BeforeUpdate != nil {
		beforeChannel = e.BeforeUpdate.ChannelID
	}

	user := fmt.Sprintf("<@%s> (%s)", e.UserID, e.UserID)
	if e.Member != nil && e.Member.User != nil {
		user = utils.FormatUser(e.Member.User)
	}

	switch {
	case beforeChannel == "" && e.ChannelID != "":
		m.record("voice_join", e.UserID, "", map[string]interface{}{
			"user_id": e.UserID, "channel_id": e.ChannelID,
		}, "")
		m.alerts.Info("Voice: Joined", fmt.Sprintf("**User:** %s 👁️\n**Joined:** <#%s>", user, e.ChannelID))

	case beforeChannel != "" && e.ChannelID == "":
		m.record("voice_leave", e.UserID, "", map[string]interface{}{
			"user_id": e.UserID, "channel_id": beforeChannel,
		}, "")
		m.alerts.Info("Voice: Left", fmt.Sprintf("**User:** %s 👁️\n**Left:** <#%s>", user, beforeChannel))

	case beforeChannel != e.ChannelID:
		m.record("voice_move", e.UserID, "", map[string]interface{}{
			"user_id": e.UserID, "from": beforeChannel, "to": e.ChannelID,
		}, "")
		m.alerts.Info("Voice: Moved", fmt.Sprintf("**User:** %s 👁️\n**From:** <#%s>\n**To:** <#%s>", user, beforeChannel, e.ChannelID))
	}
}
