package monitor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// inviteCache tracks known invite codes and their use counts per guild.
type inviteCache struct {
	mu     sync.Mutex
	guilds map[string]map[string]int
}

func newInviteCache() *inviteCache {
	return &inviteCache{guilds: make(map[string]map[string]int)}
}

func (c *inviteCache) put(guildID, code string, uses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guilds[guildID] == nil {
		c.guilds[guildID] = make(map[string]int)
	}
	c.guilds[guildID][code] = uses
}

func (c *inviteCache) drop(guildID, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.guilds[guildID], code)
}

func (c *inviteCache) replace(guildID string, codes map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guilds[guildID] = codes
}

// CacheInvites snapshots the guild's current invites. Best-effort; the
// bot may lack the Manage Server permission.
func (m *Monitor) CacheInvites(guildID string) {
	invites, err := m.api.GuildInvites(guildID)
	if err != nil {
		m.log.Warn("could not cache invites", zap.Error(err))
		return
	}
	codes := make(map[string]int, len(invites))
	for _, inv := range invites {
		codes[inv.Code] = inv.Uses
	}
	m.invites.replace(guildID, codes)
	m.log.Info("cached invites", zap.String("guild", guildID), zap.Int("count", len(codes)))
}

func (m *Monitor) HandleInviteCreate(e *discordgo.InviteCreate) {
	if m.wrongGuild(e.GuildID) {
		return
	}
	m.invites.put(e.GuildID, e.Code, 0)

	if !m.policy.ShouldAlert("invites", 0) {
		return
	}

	inviter := "Unknown"
	if e.Inviter != nil {
		inviter = utils.FormatUser(e.Inviter)
	}
	maxUses := "Unlimited"
	if e.MaxUses > 0 {
		maxUses = fmt.Sprintf("%d", e.MaxUses)
	}
	expires := "Never"
	if e.MaxAge > 0 {
		expires = utils.FormatDuration(e.MaxAge)
	}

	lines := []string{
		fmt.Sprintf("**Code:** %s", e.Code),
		fmt.Sprintf("**Channel:** <#%s>", e.ChannelID),
		fmt.Sprintf("**Inviter:** %s", inviter),
		fmt.Sprintf("**Max Uses:** %s", maxUses),
		fmt.Sprintf("**Expires:** %s", expires),
	}

	m.record("invite_create", e.Code, inviter, map[string]interface{}{
		"code":       e.Code,
		"channel_id": e.ChannelID,
		"inviter":    inviter,
	}, "")

	m.alerts.Info("Invite Created", strings.Join(lines, "\n"))
}

func (m *Monitor) HandleInviteDelete(e *discordgo.InviteDelete) {
	if m.wrongGuild(e.GuildID) {
		return
	}
	m.invites.drop(e.GuildID, e.Code)

	if !m.policy.ShouldAlert("invites", 0) {
		return
	}

	m.record("invite_delete", e.Code, "", map[string]interface{}{
		"code":       e.Code,
		"channel_id": e.ChannelID,
	}, "")

	m.alerts.Info("Invite Deleted", fmt.Sprintf("**Code:** %s\n**Channel:** <#%s>", e.Code, e.ChannelID))
}
