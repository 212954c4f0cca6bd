package monitor

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/alert"
	"github.com/cocogogo0101-tech/CueBot/internal/cache"
	"github.com/cocogogo0101-tech/CueBot/internal/database"
	"github.com/cocogogo0101-tech/CueBot/internal/metrics"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/quickactions"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

// API is the slice of the Discord REST surface the classifiers call for
// best-effort enrichment: audit-log attribution and invite snapshots.
// *discordgo.Session satisfies it.
type API interface {
	GuildAuditLog(guildID, userID, beforeID string, actionType, limit int, options ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error)
	GuildInvites(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Invite, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
}

// Monitor turns gateway events into audit entries and operator alerts.
// One handler per event category; each is fault-isolated by the bot's
// dispatch wrapper, so a failing classifier never takes down the rest.
type Monitor struct {
	api      API
	store    *store.Store
	policy   *policy.Policy
	alerts   *alert.Dispatcher
	actions  *quickactions.Registry
	cache    *cache.Cache
	archive  *database.Archive // nil unless Postgres is configured
	metrics  *metrics.Metrics
	log      *zap.Logger
	guildID  string
	invites  *inviteCache
	snaps    *snapshots
}

func New(api API, s *store.Store, p *policy.Policy, d *alert.Dispatcher, r *quickactions.Registry, c *cache.Cache, a *database.Archive, m *metrics.Metrics, log *zap.Logger, guildID string) *Monitor {
	return &Monitor{
		api:     api,
		store:   s,
		policy:  p,
		alerts:  d,
		actions: r,
		cache:   c,
		archive: a,
		metrics: m,
		log:     log,
		guildID: guildID,
		invites: newInviteCache(),
		snaps:   newSnapshots(),
	}
}

// wrongGuild reports whether the event belongs to a guild other than the
// configured target. An empty target means watch every guild.
func (m *Monitor) wrongGuild(guildID string) bool {
	return m.guildID != "" && guildID != m.guildID
}

// record appends one audit entry, bumps the per-category counters and
// mirrors the entry into the archive when one is connected.
func (m *Monitor) record(eventType, subjectID, actorID string, details map[string]interface{}, archiveDetails string) {
	m.store.AppendAudit(eventType, details)
	m.metrics.EventsProcessed.WithLabelValues(eventType).Inc()
	if m.archive != nil {
		go m.archive.RecordEvent(eventType, m.guildID, subjectID, actorID, archiveDetails)
	}
}
