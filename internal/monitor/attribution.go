package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const attributionTTL = 2 * time.Minute

// attribute looks up who performed an audit-loggable action against the
// given target. Best-effort: any REST failure or missing entry comes back
// as ("", false), never as an error the caller has to handle. Results go
// through the lookup cache so bursts against the same target cost one
// REST call.
func (m *Monitor) attribute(guildID string, actionType int, targetID string) (actor string, reason string, ok bool) {
	key := fmt.Sprintf("attr:%d:%s", actionType, targetID)
	val, err := m.cache.GetString(context.Background(), key, attributionTTL, func() (string, error) {
		actor, reason := m.fetchAttribution(guildID, actionType, targetID)
		if actor == "" {
			return "", fmt.Errorf("no matching audit entry")
		}
		return actor + "\x00" + reason, nil
	})
	if err != nil || val == "" {
		return "", "", false
	}
	for i := 0; i < len(val); i++ {
		if val[i] == 0 {
			return val[:i], val[i+1:], true
		}
	}
	return val, "", true
}

func (m *Monitor) fetchAttribution(guildID string, actionType int, targetID string) (actor, reason string) {
	log, err := m.api.GuildAuditLog(guildID, "", "", actionType, 20)
	if err != nil {
		m.log.Warn("audit log unreadable", zap.Error(err))
		return "", ""
	}

	users := make(map[string]*discordgo.User, len(log.Users))
	for _, u := range log.Users {
		users[u.ID] = u
	}

	for _, entry := range log.AuditLogEntries {
		if entry.TargetID != targetID {
			continue
		}
		if u, found := users[entry.UserID]; found {
			return fmt.Sprintf("%s (%s)", u.Username, u.ID), entry.Reason
		}
		return entry.UserID, entry.Reason
	}
	return "", ""
}
