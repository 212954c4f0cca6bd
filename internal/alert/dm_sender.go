package alert

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// DMSender delivers to the operator over a direct-message channel, resolved
// lazily on first send and cached afterwards.
type DMSender struct {
	session *discordgo.Session
	ownerID string

	mu        sync.Mutex
	channelID string
}

func NewDMSender(session *discordgo.Session, ownerID string) *DMSender {
	return &DMSender{session: session, ownerID: ownerID}
}

func (s *DMSender) channel() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channelID != "" {
		return s.channelID, nil
	}
	ch, err := s.session.UserChannelCreate(s.ownerID)
	if err != nil {
		return "", fmt.Errorf("open operator DM channel: %w", err)
	}
	s.channelID = ch.ID
	return s.channelID, nil
}

func (s *DMSender) SendEmbed(embed *discordgo.MessageEmbed) error {
	ch, err := s.channel()
	if err != nil {
		return err
	}
	_, err = s.session.ChannelMessageSendEmbed(ch, embed)
	return err
}

func (s *DMSender) SendText(content string) error {
	ch, err := s.channel()
	if err != nil {
		return err
	}
	_, err = s.session.ChannelMessageSend(ch, content)
	return err
}
