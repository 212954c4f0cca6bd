// Package mask implements the auto-reply cover feature: every human
// message in the configured channel gets the same canned reply.
package mask

import (
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

const defaultReply = "━━━━━━━━━━━━"

// Poster sends a plain message to a channel. *discordgo.Session's
// ChannelMessageSend fits after a thin adapter in the bot package.
type Poster interface {
	Post(channelID, content string) error
}

type Responder struct {
	store   *store.Store
	poster  Poster
	log     *zap.Logger
	guildID string
}

func NewResponder(s *store.Store, p Poster, log *zap.Logger, guildID string) *Responder {
	return &Responder{store: s, poster: p, log: log, guildID: guildID}
}

// HandleMessage replies when the message sits in the mask channel.
// Bot authors and foreign guilds are ignored.
func (r *Responder) HandleMessage(guildID, channelID, authorID string, authorBot bool) {
	if guildID == "" {
		return
	}
	if r.guildID != "" && guildID != r.guildID {
		return
	}
	if authorBot {
		return
	}

	cfg := r.store.MaskConfig()
	if cfg.ChannelID == nil || *cfg.ChannelID != channelID {
		return
	}

	reply := cfg.ReplyText
	if reply == "" {
		reply = defaultReply
	}

	if err := r.poster.Post(channelID, reply); err != nil {
		r.log.Warn("mask reply failed", zap.String("channel", channelID), zap.Error(err))
		return
	}
	r.log.Debug("mask replied", zap.String("channel", channelID))
}
