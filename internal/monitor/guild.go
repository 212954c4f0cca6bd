package monitor

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HandleGuildCreate seeds the snapshot and invite caches when the guild
// becomes available.
func (m *Monitor) HandleGuildCreate(e *discordgo.GuildCreate) {
	if e.Guild == nil || m.wrongGuild(e.ID) {
		return
	}
	m.snaps.putGuild(e.Guild)
	if len(e.Roles) > 0 {
		for _, r := range e.Roles {
			m.snaps.putRole(r)
		}
	} else {
		m.SeedRoles(e.ID)
	}
	m.CacheInvites(e.ID)
}

// HandleGuildUpdate diffs server settings against the last snapshot.
func (m *Monitor) HandleGuildUpdate(e *discordgo.GuildUpdate) {
	if e.Guild == nil || m.wrongGuild(e.ID) {
		return
	}

	before, known := m.snaps.guild(e.ID)
	m.snaps.putGuild(e.Guild)
	if !known {
		return
	}
	if !m.policy.ShouldAlert("server", 0) {
		return
	}

	var changes []string
	if before.Name != e.Name {
		changes = append(changes, fmt.Sprintf("**Name:** `%s` → `%s`", before.Name, e.Name))
	}
	if before.Icon != e.Icon {
		changes = append(changes, "**Icon:** Changed")
	}
	if before.VerificationLevel != e.VerificationLevel {
		changes = append(changes, fmt.Sprintf("**Verification:** %d → %d", before.VerificationLevel, e.VerificationLevel))
	}
	if before.Notifications != e.DefaultMessageNotifications {
		changes = append(changes, "**Notifications:** Changed")
	}

	if len(changes) == 0 {
		return
	}

	m.record("guild_update", e.ID, "", map[string]interface{}{
		"changes": changes,
	}, strings.Join(changes, "; "))

	m.alerts.Warning("Server Settings Changed", strings.Join(changes, "\n"))
}
