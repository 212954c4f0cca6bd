package monitor

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// snapshots holds the last-seen state for objects whose update events
// carry no before-image on the gateway: roles and guild settings. Seeded
// from REST on first sight, then kept current by the handlers.
type snapshots struct {
	mu     sync.Mutex
	roles  map[string]discordgo.Role
	guilds map[string]guildSnapshot
}

type guildSnapshot struct {
	Name              string
	Icon              string
	VerificationLevel discordgo.VerificationLevel
	Notifications     discordgo.MessageNotifications
}

func newSnapshots() *snapshots {
	return &snapshots{
		roles:  make(map[string]discordgo.Role),
		guilds: make(map[string]guildSnapshot),
	}
}

func (s *snapshots) role(id string) (discordgo.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	return r, ok
}

func (s *snapshots) putRole(r *discordgo.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID] = *r
}

func (s *snapshots) dropRole(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, id)
}

func (s *snapshots) guild(id string) (guildSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[id]
	return g, ok
}

func (s *snapshots) putGuild(g *discordgo.Guild) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds[g.ID] = guildSnapshot{
		Name:              g.Name,
		Icon:              g.Icon,
		VerificationLevel: g.VerificationLevel,
		Notifications:     g.DefaultMessageNotifications,
	}
}

// SeedRoles loads the current role list so the first role update already
// has something to diff against.
func (m *Monitor) SeedRoles(guildID string) {
	list, err := m.api.GuildRoles(guildID)
	if err != nil {
		m.log.Warn("could not seed role snapshots", zap.Error(err))
		return
	}
	for _, r := range list {
		m.snaps.putRole(r)
	}
}
