package monitor

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/cocogogo0101-tech/CueBot/internal/permissions"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

func (m *Monitor) HandleRoleCreate(e *discordgo.GuildRoleCreate) {
	if e.Role == nil || m.wrongGuild(e.GuildID) {
		return
	}

	analysis := permissions.Analyze(e.Role.Permissions)

	lines := []string{
		fmt.Sprintf("**Role:** %s", utils.FormatRole(e.Role)),
		fmt.Sprintf("**Color:** #%06x", e.Role.Color),
		fmt.Sprintf("**Position:** %d", e.Role.Position),
		fmt.Sprintf("**Risk Level:** %s", analysis.Tier.Emoji()),
		fmt.Sprintf("**Permissions:** %s", analysis.Summary),
	}

	actor := ""
	if who, _, ok := m.attribute(e.GuildID, int(discordgo.AuditLogActionRoleCreate), e.Role.ID); ok {
		actor = who
		lines = append(lines, fmt.Sprintf("**Created by:** %s", who))
	}

	m.snaps.putRole(e.Role)

	m.record("role_create", e.Role.ID, actor, map[string]interface{}{
		"role_id":    e.Role.ID,
		"role_name":  e.Role.Name,
		"risk_level": analysis.Tier.String(),
	}, analysis.Summary)
	m.store.IncrementStat("role_changes")

	if m.policy.ShouldAlert("roles", 0) {
		pri := policy.PriorityWarning
		if analysis.HasCritical() {
			pri = policy.PriorityCritical
		}
		m.alerts.Deliver("Role Created", strings.Join(lines, "\n"), pri, nil, "")
	}
}

func (m *Monitor) HandleRoleDelete(e *discordgo.GuildRoleDelete) {
	if m.wrongGuild(e.GuildID) {
		return
	}

	m.snaps.dropRole(e.RoleID)

	m.record("role_delete", e.RoleID, "", map[string]interface{}{
		"role_id": e.RoleID,
	}, "")
	m.store.IncrementStat("role_changes")

	if m.policy.ShouldAlert("roles", 0) {
		m.alerts.Warning("Role Deleted", fmt.Sprintf("**Role ID:** %s", e.RoleID))
	}
}

// HandleRoleUpdate diffs name, permissions and color. Permission changes
// touching Administrator or Manage* escalate to CRITICAL.
func (m *Monitor) HandleRoleUpdate(e *discordgo.GuildRoleUpdate) {
	if e.Role == nil || m.wrongGuild(e.GuildID) {
		return
	}
	before, known := m.snaps.role(e.Role.ID)
	m.snaps.putRole(e.Role)
	if !known {
		// First sight of this role; remember it and wait for a real diff.
		return
	}
	if !m.policy.ShouldAlert("roles", 0) {
		return
	}

	var changes []string
	critical := false

	if before.Name != e.Role.Name {
		changes = append(changes, fmt.Sprintf("**Name:** `%s` → `%s`", before.Name, e.Role.Name))
	}
	if before.Permissions != e.Role.Permissions {
		diff := permissions.DiffPermissions(before.Permissions, e.Role.Permissions)
		if len(diff.Added) > 0 {
			changes = append(changes, fmt.Sprintf("**➕ Permissions Added:** %s", utils.FormatList(diff.Added, 5)))
		}
		if len(diff.Removed) > 0 {
			changes = append(changes, fmt.Sprintf("**➖ Permissions Removed:** %s", utils.FormatList(diff.Removed, 5)))
		}
		critical = diff.HasCriticalChange
	}
	if before.Color != e.Role.Color {
		changes = append(changes, "**Color:** Changed")
	}

	if len(changes) == 0 {
		return
	}

	analysis := permissions.Analyze(e.Role.Permissions)
	lines := append([]string{
		fmt.Sprintf("**Role:** %s", utils.FormatRole(e.Role)),
		fmt.Sprintf("**Risk Level:** %s", analysis.Tier.Emoji()),
	}, changes...)

	m.record("role_update", e.Role.ID, "", map[string]interface{}{
		"role_id": e.Role.ID,
		"changes": changes,
	}, strings.Join(changes, "; "))
	m.store.IncrementStat("role_changes")

	pri := policy.PriorityWarning
	if critical || hasCriticalChange(changes) {
		pri = policy.PriorityCritical
	}
	m.alerts.Deliver("Role Updated", strings.Join(lines, "\n"), pri, nil, "")
}
