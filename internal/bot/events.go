package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// guard wraps a gateway handler so a panic in one event cannot take the
// session down with it.
func guard[E any](log *zap.Logger, name string, fn func(E)) func(*discordgo.Session, E) {
	return func(_ *discordgo.Session, e E) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("event handler panicked",
					zap.String("handler", name),
					zap.Any("panic", r))
			}
		}()
		fn(e)
	}
}

func (b *Bot) registerHandlers() {
	s, log := b.Session, b.log

	s.AddHandler(guard(log, "ready", b.onReady))
	s.AddHandler(guard(log, "guild_create", b.onGuildCreate))
	s.AddHandler(guard(log, "message_create", b.onMessageCreate))
	s.AddHandler(guard(log, "interaction_create", b.onInteractionCreate))

	s.AddHandler(guard(log, "member_add", b.Monitor.HandleMemberAdd))
	s.AddHandler(guard(log, "member_remove", b.Monitor.HandleMemberRemove))
	s.AddHandler(guard(log, "member_update", b.Monitor.HandleMemberUpdate))

	s.AddHandler(guard(log, "ban_add", b.Monitor.HandleBanAdd))
	s.AddHandler(guard(log, "ban_remove", b.Monitor.HandleBanRemove))

	s.AddHandler(guard(log, "channel_create", b.Monitor.HandleChannelCreate))
	s.AddHandler(guard(log, "channel_delete", b.Monitor.HandleChannelDelete))
	s.AddHandler(guard(log, "channel_update", b.Monitor.HandleChannelUpdate))

	s.AddHandler(guard(log, "role_create", b.Monitor.HandleRoleCreate))
	s.AddHandler(guard(log, "role_delete", b.Monitor.HandleRoleDelete))
	s.AddHandler(guard(log, "role_update", b.Monitor.HandleRoleUpdate))

	s.AddHandler(guard(log, "message_delete", b.Monitor.HandleMessageDelete))
	s.AddHandler(guard(log, "message_update", b.Monitor.HandleMessageUpdate))

	s.AddHandler(guard(log, "guild_update", b.Monitor.HandleGuildUpdate))
	s.AddHandler(guard(log, "voice_state_update", b.Monitor.HandleVoiceStateUpdate))

	s.AddHandler(guard(log, "invite_create", b.Monitor.HandleInviteCreate))
	s.AddHandler(guard(log, "invite_delete", b.Monitor.HandleInviteDelete))
}

func (b *Bot) onReady(e *discordgo.Ready) {
	b.log.Info("gateway ready", zap.Int("guilds", len(e.Guilds)))

	if b.cfg.BotStatus != "" {
		if err := b.Session.UpdateWatchStatus(0, b.cfg.BotStatus); err != nil {
			b.log.Warn("failed to set presence", zap.Error(err))
		}
	}

	if b.cfg.GuildID != "" {
		b.registerSlashCommands()
	} else {
		b.log.Info("guild id not set, skipping slash command registration")
	}

	if b.cfg.OwnerID != "" && b.cfg.DMAlerts {
		b.Dispatcher.Notify(fmt.Sprintf(
			"✅ **%s Started**\n**Guilds:** %d\n**Status:** Online",
			b.cfg.BotName, len(e.Guilds)))
	}
}

// onGuildCreate fires for each guild at connect and whenever the bot is
// added to a new one. A configured target guild means any other guild is
// left immediately.
func (b *Bot) onGuildCreate(e *discordgo.GuildCreate) {
	if b.cfg.GuildID != "" && e.ID != b.cfg.GuildID {
		if err := b.Session.GuildLeave(e.ID); err != nil {
			b.log.Error("failed to leave unauthorized guild",
				zap.String("guild", e.ID), zap.Error(err))
			return
		}
		b.log.Warn("auto-left unauthorized guild",
			zap.String("guild", e.ID), zap.String("name", e.Name))
		b.Dispatcher.Notify(fmt.Sprintf(
			"⚠️ Bot was added to unauthorized guild and left automatically\n**Guild:** %s (%s)",
			e.Name, e.ID))
		return
	}

	b.log.Info("guild available", zap.String("guild", e.ID), zap.String("name", e.Name))
	b.Monitor.HandleGuildCreate(e)
}

// onMessageCreate fans out to the mask responder (guild channels) and the
// operator command interpreter (DMs). Each side filters its own scope.
func (b *Bot) onMessageCreate(e *discordgo.MessageCreate) {
	if e.Author == nil || (b.Session.State.User != nil && e.Author.ID == b.Session.State.User.ID) {
		return
	}

	b.Mask.HandleMessage(e.GuildID, e.ChannelID, e.Author.ID, e.Author.Bot)

	if e.GuildID == "" && !e.Author.Bot {
		b.Interpreter.HandleMessage(e.Author.ID, e.GuildID, e.Content)
	}
}
