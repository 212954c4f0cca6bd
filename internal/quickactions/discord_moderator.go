package quickactions

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// DiscordModerator executes verbs through a live discordgo session.
type DiscordModerator struct {
	session *discordgo.Session
}

func NewDiscordModerator(session *discordgo.Session) *DiscordModerator {
	return &DiscordModerator{session: session}
}

func (m *DiscordModerator) Ban(guildID, userID, reason string) error {
	return m.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (m *DiscordModerator) Kick(guildID, userID, reason string) error {
	return m.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (m *DiscordModerator) Timeout(guildID, userID string, duration time.Duration, reason string) error {
	until := time.Now().Add(duration)
	return m.session.GuildMemberTimeout(guildID, userID, &until)
}

// StripRoles removes every role positioned below the agent's own top role.
// The default @everyone role is not a member role in discordgo, so it never
// appears in the removal set.
func (m *DiscordModerator) StripRoles(guildID, userID, reason string) (int, error) {
	member, err := m.session.GuildMember(guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("member not found: %w", err)
	}

	roles, err := m.session.GuildRoles(guildID)
	if err != nil {
		return 0, fmt.Errorf("fetch roles: %w", err)
	}
	positions := make(map[string]int, len(roles))
	for _, r := range roles {
		positions[r.ID] = r.Position
	}

	self, err := m.session.GuildMember(guildID, m.session.State.User.ID)
	if err != nil {
		return 0, fmt.Errorf("fetch own member: %w", err)
	}
	topPos := 0
	for _, rid := range self.Roles {
		if positions[rid] > topPos {
			topPos = positions[rid]
		}
	}

	removed := 0
	for _, rid := range member.Roles {
		if positions[rid] >= topPos {
			continue
		}
		if err := m.session.GuildMemberRoleRemove(guildID, userID, rid); err != nil {
			return removed, fmt.Errorf("remove role %s: %w", rid, err)
		}
		removed++
	}
	return removed, nil
}

func (m *DiscordModerator) MemberInfo(guildID, userID string) (string, error) {
	member, err := m.session.GuildMember(guildID, userID)
	if err != nil {
		return "", fmt.Errorf("member not found: %w", err)
	}

	var roleNames []string
	if roles, err := m.session.GuildRoles(guildID); err == nil {
		byID := make(map[string]string, len(roles))
		for _, r := range roles {
			byID[r.ID] = r.Name
		}
		for _, rid := range member.Roles {
			if name, ok := byID[rid]; ok {
				roleNames = append(roleNames, name)
			}
		}
	}
	roleList := "None"
	if len(roleNames) > 0 {
		roleList = strings.Join(roleNames, ", ")
	}

	isBot := "No"
	if member.User.Bot {
		isBot = "Yes"
	}

	lines := []string{
		fmt.Sprintf("**User:** %s", utils.FormatUser(member.User)),
		fmt.Sprintf("**Created:** %s", utils.UserCreatedAt(member.User.ID).Format("2006-01-02 15:04")),
		fmt.Sprintf("**Joined:** %s", member.JoinedAt.Format("2006-01-02 15:04")),
		fmt.Sprintf("**Roles:** %s", roleList),
		fmt.Sprintf("**Is Bot:** %s", isBot),
	}
	return strings.Join(lines, "\n"), nil
}
