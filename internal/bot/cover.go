package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71
)

// registerSlashCommands publishes the public-facing command set. The cover
// commands are real, working utilities so the bot profile looks like any
// other moderation helper; set-auto-reply is the one operator control.
func (b *Bot) registerSlashCommands() {
	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "set-auto-reply",
			Description: "⚙️ Configure auto-reply channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel where bot will auto-reply to every message",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
	}

	if b.cfg.CoverCommands {
		cmds = append(cmds,
			&discordgo.ApplicationCommand{
				Name:        "help",
				Description: "📖 Show bot commands and features",
			},
			&discordgo.ApplicationCommand{
				Name:        "ping",
				Description: "🏓 Check bot latency",
			},
			&discordgo.ApplicationCommand{
				Name:        "serverinfo",
				Description: "ℹ️ Display server information",
			},
			&discordgo.ApplicationCommand{
				Name:        "avatar",
				Description: "🖼️ Display a user's avatar",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "User to show avatar of (leave empty for yourself)",
						Required:    false,
					},
				},
			},
		)
	}

	_, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, b.cfg.GuildID, cmds)
	if err != nil {
		b.log.Error("failed to register slash commands", zap.Error(err))
		return
	}
	b.log.Info("slash commands registered",
		zap.Int("count", len(cmds)), zap.String("guild", b.cfg.GuildID))
}

func (b *Bot) onInteractionCreate(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "set-auto-reply":
		b.handleSetAutoReply(i)
	case "help":
		b.handleHelp(i)
	case "ping":
		b.handlePing(i)
	case "serverinfo":
		b.handleServerInfo(i)
	case "avatar":
		b.handleAvatar(i)
	}
}

func (b *Bot) handleSetAutoReply(i *discordgo.InteractionCreate) {
	if interactionUser(i) == nil || interactionUser(i).ID != b.cfg.OwnerID {
		b.respondText(i, "❌ Owner only command")
		return
	}

	ch := i.ApplicationCommandData().Options[0].ChannelValue(b.Session)
	if ch == nil {
		b.respondText(i, "❌ Channel not found")
		return
	}

	b.Store.SetMaskChannel(ch.ID)
	b.respondText(i, fmt.Sprintf("✅ Auto-reply enabled in <#%s>", ch.ID))
	b.log.Info("auto-reply channel set",
		zap.String("channel", ch.ID),
		zap.String("by", interactionUser(i).ID))
}

func (b *Bot) handleHelp(i *discordgo.InteractionCreate) {
	b.respondEmbed(i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📖 %s - Help", b.cfg.BotName),
		Description: fmt.Sprintf("%s is a moderation and utility bot designed to help manage your server.", b.cfg.BotName),
		Color:       colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "⚙️ Commands",
				Value: "`/help` - Show this help message\n" +
					"`/ping` - Check bot latency\n" +
					"`/serverinfo` - Show server information\n" +
					"`/avatar` - Display user's avatar",
			},
			{
				Name:  "🛡️ Features",
				Value: "• Auto-moderation\n• Server logging\n• Utility commands",
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%s Bot", b.cfg.BotName)},
	})
}

func (b *Bot) handlePing(i *discordgo.InteractionCreate) {
	b.respondEmbed(i, &discordgo.MessageEmbed{
		Title:       "🏓 Pong!",
		Description: fmt.Sprintf("Bot latency: **%dms**", b.Session.HeartbeatLatency().Milliseconds()),
		Color:       colorGreen,
	})
}

func (b *Bot) handleServerInfo(i *discordgo.InteractionCreate) {
	guild, err := b.Session.State.Guild(i.GuildID)
	if err != nil {
		guild, err = b.Session.Guild(i.GuildID)
		if err != nil {
			b.respondText(i, "❌ Could not load server information")
			return
		}
	}

	created := "unknown"
	if ts, err := discordgo.SnowflakeTimestamp(guild.ID); err == nil {
		created = ts.Format("2006-01-02")
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("ℹ️ %s", guild.Name),
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👥 Members", Value: fmt.Sprintf("%d", guild.MemberCount), Inline: true},
			{Name: "📁 Channels", Value: fmt.Sprintf("%d", len(guild.Channels)), Inline: true},
			{Name: "🎭 Roles", Value: fmt.Sprintf("%d", len(guild.Roles)), Inline: true},
			{Name: "📅 Created", Value: created, Inline: true},
			{Name: "👑 Owner", Value: fmt.Sprintf("<@%s>", guild.OwnerID), Inline: true},
		},
	}
	if guild.Icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: guild.IconURL("256")}
	}
	b.respondEmbed(i, embed)
}

func (b *Bot) handleAvatar(i *discordgo.InteractionCreate) {
	target := interactionUser(i)
	if opts := i.ApplicationCommandData().Options; len(opts) > 0 {
		if u := opts[0].UserValue(b.Session); u != nil {
			target = u
		}
	}
	if target == nil {
		b.respondText(i, "❌ Could not resolve user")
		return
	}

	b.respondEmbed(i, &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🖼️ %s's Avatar", target.Username),
		Color: colorBlue,
		Image: &discordgo.MessageEmbedImage{URL: target.AvatarURL("512")},
	})
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) respondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := b.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondText(i *discordgo.InteractionCreate, content string) {
	err := b.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("interaction response failed", zap.Error(err))
	}
}
