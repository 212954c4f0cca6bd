package monitor

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/permissions"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// HandleMemberAdd classifies joins. Bot accounts are escalated as
// CRITICAL before any whitelist or filter check runs; that rule outranks
// everything else in the pipeline.
func (m *Monitor) HandleMemberAdd(e *discordgo.GuildMemberAdd) {
	if e.User == nil || m.wrongGuild(e.GuildID) {
		return
	}

	if e.User.Bot {
		m.handleBotAddition(e)
		return
	}

	userID, ok := utils.ParseUserID(e.User.ID)
	if !ok {
		return
	}
	if m.store.IsWhitelisted(userID) {
		m.log.Debug("whitelisted member joined", zap.String("user", e.User.ID))
		return
	}
	if !m.policy.ShouldAlert("members", userID) {
		return
	}
	m.handleRegularJoin(e, userID)
}

func (m *Monitor) handleBotAddition(e *discordgo.GuildMemberAdd) {
	created := utils.UserCreatedAt(e.User.ID)
	lines := []string{
		fmt.Sprintf("**Bot:** %s", utils.FormatUser(e.User)),
		fmt.Sprintf("**Account Age:** %s", utils.AccountAge(created)),
	}

	adder := "Unknown"
	if actor, _, ok := m.attribute(e.GuildID, int(discordgo.AuditLogActionBotAdd), e.User.ID); ok {
		adder = actor
		lines = append(lines, fmt.Sprintf("**Added by:** %s", actor))
	} else {
		lines = append(lines, "**Added by:** Unknown (no audit log access)")
	}

	perms := m.memberPermissions(e.GuildID, e.Member)
	analysis := permissions.Analyze(perms)
	lines = append(lines,
		fmt.Sprintf("**Risk Level:** %s", analysis.Tier.Emoji()),
		fmt.Sprintf("**Permissions:** %s", analysis.Summary),
	)

	if names := m.roleNames(e.GuildID, e.Member.Roles); len(names) > 0 {
		lines = append(lines, fmt.Sprintf("**Roles:** %s", strings.Join(names, ", ")))
	} else {
		lines = append(lines, "**Roles:** None")
	}

	m.record("bot_add", e.User.ID, adder, map[string]interface{}{
		"bot_id":     e.User.ID,
		"bot_name":   e.User.Username,
		"adder":      adder,
		"risk_level": analysis.Tier.String(),
	}, analysis.Summary)
	m.store.IncrementStat("bot_additions")

	targetID, _ := utils.ParseUserID(e.User.ID)
	quickText := m.actions.Create("bot_add", targetID, e.GuildID, map[string]string{
		"bot_name": e.User.Username,
		"adder":    adder,
	})

	m.alerts.Critical("BOT ADDED TO SERVER", strings.Join(lines, "\n"), quickText)
}

func (m *Monitor) handleRegularJoin(e *discordgo.GuildMemberAdd, userID int64) {
	suspicious, reason := utils.IsSuspicious(e.User)
	watched := m.store.IsWatched(userID)
	if !suspicious && !watched {
		return
	}

	created := utils.UserCreatedAt(e.User.ID)
	lines := []string{
		fmt.Sprintf("**Member:** %s", utils.FormatUser(e.User)),
		fmt.Sprintf("**Account Age:** %s", utils.AccountAge(created)),
	}
	if suspicious {
		lines = append(lines, fmt.Sprintf("**⚠️ Suspicious:** %s", reason))
	}
	if watched {
		lines = append(lines, "**👁️ WATCHED USER!**")
	}

	m.record("member_join", e.User.ID, "", map[string]interface{}{
		"user_id":    e.User.ID,
		"user_name":  e.User.Username,
		"suspicious": suspicious,
		"reason":     reason,
		"watched":    watched,
	}, reason)

	quickText := ""
	if suspicious {
		quickText = m.actions.Create("suspicious_member", userID, e.GuildID, map[string]string{
			"user_name": e.User.Username,
			"reason":    reason,
		})
	}

	m.alerts.Deliver("Member Joined", strings.Join(lines, "\n"), policy.PriorityWarning, nil, quickText)
}

// HandleMemberRemove surfaces leaves for watched users and bots only.
func (m *Monitor) HandleMemberRemove(e *discordgo.GuildMemberRemove) {
	if e.User == nil || m.wrongGuild(e.GuildID) {
		return
	}
	userID, ok := utils.ParseUserID(e.User.ID)
	if !ok {
		return
	}
	if !m.store.IsWatched(userID) && !e.User.Bot {
		return
	}

	kind := "Member"
	if e.User.Bot {
		kind = "Bot"
	}
	m.record("member_leave", e.User.ID, "", map[string]interface{}{
		"user_id":   e.User.ID,
		"user_name": e.User.Username,
		"was_bot":   e.User.Bot,
	}, "")

	if m.policy.ShouldAlert("members", userID) {
		m.alerts.Info("Member Left", fmt.Sprintf("**%s:** %s", kind, utils.FormatUser(e.User)))
	}
}

// HandleMemberUpdate diffs nickname, roles and effective permissions.
// Any changed permission named Administrator or Manage* escalates the
// alert to CRITICAL.
func (m *Monitor) HandleMemberUpdate(e *discordgo.GuildMemberUpdate) {
	if e.User == nil || e.BeforeUpdate == nil || m.wrongGuild(e.GuildID) {
		return
	}
	userID, ok := utils.ParseUserID(e.User.ID)
	if !ok {
		return
	}
	if !m.store.IsWatched(userID) && !m.policy.ShouldAlert("members", userID) {
		return
	}

	before, after := e.BeforeUpdate, e.Member
	var changes []string

	if before.Nick != after.Nick {
		changes = append(changes, fmt.Sprintf("**Nickname:** `%s` → `%s`", orNone(before.Nick), orNone(after.Nick)))
	}

	addedRoles, removedRoles := diffStrings(before.Roles, after.Roles)
	if len(addedRoles) > 0 {
		changes = append(changes, fmt.Sprintf("**Roles Added:** %s", strings.Join(m.roleNames(e.GuildID, addedRoles), ", ")))
	}
	if len(removedRoles) > 0 {
		changes = append(changes, fmt.Sprintf("**Roles Removed:** %s", strings.Join(m.roleNames(e.GuildID, removedRoles), ", ")))
	}

	beforePerms := m.memberPermissions(e.GuildID, before)
	afterPerms := m.memberPermissions(e.GuildID, after)
	if beforePerms != afterPerms {
		diff := permissions.DiffPermissions(beforePerms, afterPerms)
		if len(diff.Added) > 0 {
			changes = append(changes, fmt.Sprintf("**Permissions Added:** %s", utils.FormatList(diff.Added, 5)))
		}
		if len(diff.Removed) > 0 {
			changes = append(changes, fmt.Sprintf("**Permissions Removed:** %s", utils.FormatList(diff.Removed, 5)))
		}
	}

	if len(changes) == 0 {
		return
	}

	lines := append([]string{fmt.Sprintf("**Member:** %s", utils.FormatUser(e.User))}, changes...)

	m.record("member_update", e.User.ID, "", map[string]interface{}{
		"user_id":   e.User.ID,
		"user_name": e.User.Username,
		"changes":   changes,
	}, strings.Join(changes, "; "))

	pri := policy.PriorityWarning
	quickText := ""
	if hasCriticalChange(changes) {
		pri = policy.PriorityCritical
		quickText = m.actions.Create("role_change", userID, e.GuildID, map[string]string{
			"user_name": e.User.Username,
		})
	}

	m.alerts.Deliver("Member Updated", strings.Join(lines, "\n"), pri, nil, quickText)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// hasCriticalChange reports whether any change line names a permission
// that grants control over the guild.
func hasCriticalChange(changes []string) bool {
	for _, c := range changes {
		if strings.Contains(c, "Administrator") || strings.Contains(c, "Manage") {
			return true
		}
	}
	return false
}

func diffStrings(before, after []string) (added, removed []string) {
	beforeSet := make(map[string]bool, len(before))
	for _, s := range before {
		beforeSet[s] = true
	}
	afterSet := make(map[string]bool, len(after))
	for _, s := range after {
		afterSet[s] = true
		if !beforeSet[s] {
			added = append(added, s)
		}
	}
	for _, s := range before {
		if !afterSet[s] {
			removed = append(removed, s)
		}
	}
	return added, removed
}

// memberPermissions folds the member's role permissions into one bitset.
// Best-effort: an unreadable role list yields 0.
func (m *Monitor) memberPermissions(guildID string, member *discordgo.Member) int64 {
	roles, err := m.guildRoles(guildID)
	if err != nil {
		return 0
	}
	var perms int64
	for _, roleID := range member.Roles {
		if r, ok := roles[roleID]; ok {
			perms |= r.Permissions
		}
	}
	return perms
}

// roleNames maps role IDs to display names, falling back to the raw ID.
func (m *Monitor) roleNames(guildID string, roleIDs []string) []string {
	roles, err := m.guildRoles(guildID)
	names := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if err == nil {
			if r, ok := roles[id]; ok {
				names = append(names, r.Name)
				continue
			}
		}
		names = append(names, id)
	}
	return names
}

func (m *Monitor) guildRoles(guildID string) (map[string]*discordgo.Role, error) {
	list, err := m.api.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}
	roles := make(map[string]*discordgo.Role, len(list))
	for _, r := range list {
		roles[r.ID] = r
	}
	return roles, nil
}
