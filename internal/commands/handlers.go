package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/database"
	"github.com/cocogogo0101-tech/CueBot/internal/permissions"
	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

const (
	timeoutDefaultMinutes = 60
	timeoutMaxMinutes     = 40320 // 28 days
)

// parseTarget extracts a user id from the first argument, replying with
// the usage line when it is missing or malformed.
func (i *Interpreter) parseTarget(args []string, usage string) (int64, bool) {
	if len(args) < 1 {
		i.reply(fmt.Sprintf("❌ Usage: `%s%s`", i.prefix, usage))
		return 0, false
	}
	id, ok := utils.ParseUserID(args[0])
	if !ok {
		i.reply("❌ Invalid user ID")
		return 0, false
	}
	return id, true
}

func (i *Interpreter) requireGuild() bool {
	if i.settings.GuildID == "" {
		i.reply("❌ Guild not configured")
		return false
	}
	return true
}

func (i *Interpreter) cmdHelp(args []string, raw string) {
	p := i.prefix
	i.reply(fmt.Sprintf(`**%s - DM Commands** 🛡️
*All commands start with `+"`%s`"+`*

**📋 Monitoring:**
`+"`%swatch <user_id>`"+` / `+"`%sراقب <id>`"+` - Watch a user
`+"`%sunwatch <user_id>`"+` / `+"`%sالغاء <id>`"+` - Stop watching
`+"`%slist`"+` / `+"`%sقائمة`"+` - List watched users
`+"`%sinfo <user_id>`"+` / `+"`%sمعلومات`"+` - Get user info
`+"`%slogs <user_id>`"+` - View user activity logs

**✅ Whitelist:**
`+"`%swhitelist <user_id>`"+` - Add to whitelist
`+"`%sunwhitelist <user_id>`"+` - Remove from whitelist
`+"`%slistwhite`"+` - Show whitelist

**🔧 Filters:**
`+"`%sfilter <name> on/off`"+` - Toggle filter
`+"`%sfilter all on/off`"+` - Toggle all filters
`+"`%sfilter reset`"+` - Reset to defaults
`+"`%sfilters`"+` - Show all filters

**⚔️ Moderation:**
`+"`%sstrip <user_id>`"+` - Remove all roles
`+"`%sban <user_id> [reason]`"+` - Ban user
`+"`%skick <user_id> [reason]`"+` - Kick user
`+"`%stimeout <user_id> [minutes]`"+` - Timeout user

**📊 Server Info:**
`+"`%schannels`"+` - List channels
`+"`%sroles`"+` - List roles
`+"`%smembers`"+` - Member summary
`+"`%sstats`"+` - Bot statistics

**⚙️ Settings:**
`+"`%ssettings`"+` - View current settings
`+"`%smask set_channel <id>`"+` / `+"`%smask set_reply <text>`"+` / `+"`%smask clear`"+`

**⚡ Quick Actions:**
Reply with just the number (e.g. `+"`1`"+`) for the most recent action,
or `+"`ACTION_ID NUMBER`"+` (e.g. `+"`ABC123 1`"+`).`,
		i.settings.BotName, p, p, p, p, p, p, p, p, p, p, p, p, p, p,
		p, p, p, p, p, p, p, p, p, p, p, p, p, p, p))
}

func (i *Interpreter) cmdWatch(args []string, raw string) {
	id, ok := i.parseTarget(args, "watch <user_id>")
	if !ok {
		return
	}
	if !i.store.Watch(id) {
		i.reply(fmt.Sprintf("⚠️ Already watching user `%d`", id))
		return
	}
	i.store.AppendAudit("watch_added", map[string]interface{}{"user_id": id})
	i.reply(fmt.Sprintf("✅ Now watching user `%d`", id))
	i.log.Info("watch added", zap.Int64("user", id))
}

func (i *Interpreter) cmdUnwatch(args []string, raw string) {
	id, ok := i.parseTarget(args, "unwatch <user_id>")
	if !ok {
		return
	}
	if !i.store.Unwatch(id) {
		i.reply(fmt.Sprintf("⚠️ User `%d` not in watch list", id))
		return
	}
	i.store.AppendAudit("watch_removed", map[string]interface{}{"user_id": id})
	i.reply(fmt.Sprintf("✅ Stopped watching user `%d`", id))
}

func (i *Interpreter) cmdListWatched(args []string, raw string) {
	watched := i.store.WatchedUsers()
	if len(watched) == 0 {
		i.reply("📋 **Watched Users:** None")
		return
	}
	lines := []string{"📋 **Watched Users:**\n"}
	for n, uid := range watched {
		lines = append(lines, fmt.Sprintf("%d. `%s`", n+1, uid))
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdWhitelist(args []string, raw string) {
	id, ok := i.parseTarget(args, "whitelist <user_id>")
	if !ok {
		return
	}
	if !i.store.AddWhitelist(id) {
		i.reply(fmt.Sprintf("⚠️ User `%d` already whitelisted", id))
		return
	}
	i.store.AppendAudit("whitelist_added", map[string]interface{}{"user_id": id})
	i.reply(fmt.Sprintf("✅ User `%d` added to whitelist", id))
}

func (i *Interpreter) cmdUnwhitelist(args []string, raw string) {
	id, ok := i.parseTarget(args, "unwhitelist <user_id>")
	if !ok {
		return
	}
	if !i.store.RemoveWhitelist(id) {
		i.reply(fmt.Sprintf("⚠️ User `%d` not in whitelist", id))
		return
	}
	i.store.AppendAudit("whitelist_removed", map[string]interface{}{"user_id": id})
	i.reply(fmt.Sprintf("✅ User `%d` removed from whitelist", id))
}

func (i *Interpreter) cmdListWhitelist(args []string, raw string) {
	users := i.store.WhitelistUsers()
	if len(users) == 0 {
		i.reply("✅ **Whitelist:** None")
		return
	}
	lines := []string{"✅ **Whitelist:**\n"}
	for n, uid := range users {
		lines = append(lines, fmt.Sprintf("%d. `%s`", n+1, uid))
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdFilter(args []string, raw string) {
	if len(args) < 1 {
		i.reply(fmt.Sprintf("❌ Usage: `%sfilter <name> on/off` or `%sfilter all on/off` or `%sfilter reset`", i.prefix, i.prefix, i.prefix))
		return
	}

	sub := strings.ToLower(args[0])

	if sub == "reset" {
		i.policy.Reset()
		i.reply("✅ Filters reset to defaults (all enabled)")
		return
	}

	if len(args) < 2 {
		i.reply(fmt.Sprintf("❌ Usage: `%sfilter %s on/off`", i.prefix, sub))
		return
	}

	enabled, ok := parseToggle(args[1])
	if !ok {
		i.reply("❌ Use `on` or `off`")
		return
	}

	if sub == "all" {
		if enabled {
			i.policy.EnableAll()
			i.reply("✅ All filters enabled")
		} else {
			i.policy.DisableAll()
			i.reply("✅ All filters disabled (critical categories stay on)")
		}
		return
	}

	if err := i.policy.SetFilter(sub, enabled); err != nil {
		i.reply(fmt.Sprintf("❌ Unknown filter: `%s`", sub))
		return
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	i.reply(fmt.Sprintf("✅ Filter `%s` %s", sub, state))
}

func parseToggle(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "تشغيل":
		return true, true
	case "off", "ايقاف", "إيقاف":
		return false, true
	default:
		return false, false
	}
}

func (i *Interpreter) cmdFilters(args []string, raw string) {
	filters := i.policy.Filters()
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"🔧 **Filter Status:**\n"}
	for _, name := range names {
		state := "❌ OFF"
		if filters[name] {
			state = "✅ ON"
		}
		lines = append(lines, fmt.Sprintf("%s `%s`", state, name))
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdInfo(args []string, raw string) {
	id, ok := i.parseTarget(args, "info <user_id>")
	if !ok || !i.requireGuild() {
		return
	}

	idStr := strconv.FormatInt(id, 10)
	member, err := i.dir.GuildMember(i.settings.GuildID, idStr)
	if err == nil && member != nil && member.User != nil {
		i.reply(i.memberInfo(id, member))
		return
	}

	// Not a member; fall back to the bare user.
	user, err := i.dir.User(idStr)
	if err != nil || user == nil {
		i.reply(fmt.Sprintf("❌ User `%d` not found", id))
		return
	}
	lines := []string{
		"**👤 User Info** (Not in server)",
		fmt.Sprintf("**User:** %s", utils.FormatUser(user)),
		fmt.Sprintf("**Bot:** %s", yesNo(user.Bot, "Yes 🤖", "No")),
		fmt.Sprintf("**Account Age:** %s", utils.AccountAge(utils.UserCreatedAt(user.ID))),
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) memberInfo(id int64, member *discordgo.Member) string {
	lines := []string{
		"**👤 Member Info**",
		fmt.Sprintf("**User:** %s", utils.FormatUser(member.User)),
		fmt.Sprintf("**Bot:** %s", yesNo(member.User.Bot, "Yes 🤖", "No")),
		fmt.Sprintf("**Account Age:** %s", utils.AccountAge(utils.UserCreatedAt(member.User.ID))),
		fmt.Sprintf("**Joined Server:** %s", utils.MemberAge(member.JoinedAt)),
		fmt.Sprintf("**Nickname:** %s", orNone(member.Nick)),
	}

	roles, perms := i.resolveRoles(member)
	lines = append(lines, fmt.Sprintf("**Roles:** %s", utils.FormatList(roles, 10)))

	analysis := permissions.Analyze(perms)
	lines = append(lines,
		fmt.Sprintf("**Risk Level:** %s", analysis.Tier.Emoji()),
		fmt.Sprintf("**Permissions:** %s", analysis.Summary),
	)

	if i.store.IsWatched(id) {
		lines = append(lines, "**Status:** 👁️ WATCHED")
	}
	if i.store.IsWhitelisted(id) {
		lines = append(lines, "**Status:** ✅ WHITELISTED")
	}
	return strings.Join(lines, "\n")
}

// resolveRoles maps the member's role ids to names and folds their
// permission bits. Best-effort; an unreadable role list yields ids.
func (i *Interpreter) resolveRoles(member *discordgo.Member) ([]string, int64) {
	all, err := i.dir.GuildRoles(i.settings.GuildID)
	byID := make(map[string]*discordgo.Role)
	if err == nil {
		for _, r := range all {
			byID[r.ID] = r
		}
	}
	var names []string
	var perms int64
	for _, rid := range member.Roles {
		if r, ok := byID[rid]; ok {
			names = append(names, r.Name)
			perms |= r.Permissions
		} else {
			names = append(names, rid)
		}
	}
	return names, perms
}

func (i *Interpreter) cmdLogs(args []string, raw string) {
	id, ok := i.parseTarget(args, "logs <user_id>")
	if !ok {
		return
	}

	entries := i.store.UserAuditEntries(id, 20)
	archived := i.archivedEntries(id, 20)
	if len(entries) == 0 && len(archived) == 0 {
		i.reply(fmt.Sprintf("📋 No logs found for user `%d`", id))
		return
	}

	var lines []string
	if len(entries) > 0 {
		lines = append(lines, fmt.Sprintf("📋 **Recent Activity for `%d`** (Last %d)\n", id, len(entries)))
		for _, e := range entries {
			ts := e.Timestamp.UTC().Format("2006-01-02T15:04:05")
			lines = append(lines, fmt.Sprintf("%s `%s` - %s", utils.AuditEmoji(e.Type), ts, e.Type))
		}
	}
	if len(archived) > 0 {
		lines = append(lines, fmt.Sprintf("\n🗄️ **Archived History** (Last %d)", len(archived)))
		for _, e := range archived {
			ts := e.CreatedAt.UTC().Format("2006-01-02T15:04:05")
			lines = append(lines, fmt.Sprintf("%s `%s` - %s", utils.AuditEmoji(e.EventType), ts, e.EventType))
		}
	}
	i.reply(strings.Join(lines, "\n"))
}

// archivedEntries reads the long-term archive when one is wired; failures
// degrade to the local ring silently.
func (i *Interpreter) archivedEntries(id int64, limit int) []database.ArchivedEvent {
	if i.history == nil {
		return nil
	}
	archived, err := i.history.EventsForSubject(strconv.FormatInt(id, 10), limit)
	if err != nil {
		i.log.Warn("archive lookup failed", zap.Error(err))
		return nil
	}
	return archived
}

func (i *Interpreter) cmdStats(args []string, raw string) {
	stats := i.store.Stats()
	lines := []string{
		fmt.Sprintf("📊 **%s Statistics**\n", i.settings.BotName),
		fmt.Sprintf("**Total Alerts:** %d", stats["total_alerts"]),
		fmt.Sprintf("**Bot Additions:** %d", stats["bot_additions"]),
		fmt.Sprintf("**Role Changes:** %d", stats["role_changes"]),
		fmt.Sprintf("**Channel Changes:** %d", stats["channel_changes"]),
		fmt.Sprintf("**Bans:** %d", stats["bans"]),
		fmt.Sprintf("**Kicks:** %d", stats["kicks"]),
		"",
		fmt.Sprintf("**Watched Users:** %d", len(i.store.WatchedUsers())),
		fmt.Sprintf("**Whitelisted Users:** %d", len(i.store.WhitelistUsers())),
		fmt.Sprintf("**Audit Log Entries:** %d", i.store.AuditLogLen()),
		fmt.Sprintf("**Pending Quick Actions:** %d", i.actions.PendingCount()),
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdStrip(args []string, raw string) {
	id, ok := i.parseTarget(args, "strip <user_id>")
	if !ok || !i.requireGuild() {
		return
	}

	idStr := strconv.FormatInt(id, 10)
	removed, err := i.mod.StripRoles(i.settings.GuildID, idStr, "Roles stripped by operator via DM")
	if err != nil {
		i.reply(fmt.Sprintf("❌ Failed to strip roles: %v", err))
		return
	}
	if removed == 0 {
		i.reply("⚠️ No removable roles (either user has no roles or bot lacks permission)")
		return
	}

	i.store.AppendAudit("strip_roles", map[string]interface{}{
		"user_id": id,
		"removed": removed,
	})
	i.reply(fmt.Sprintf("✅ Stripped %d roles from `%d`", removed, id))
}

func (i *Interpreter) cmdBan(args []string, raw string) {
	id, ok := i.parseTarget(args, "ban <user_id> [reason]")
	if !ok || !i.requireGuild() {
		return
	}

	reason := "Banned by operator via DM"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}

	idStr := strconv.FormatInt(id, 10)
	if err := i.mod.Ban(i.settings.GuildID, idStr, reason); err != nil {
		i.reply(fmt.Sprintf("❌ Ban failed: %v", err))
		return
	}

	i.store.AppendAudit("ban_by_owner", map[string]interface{}{
		"user_id": id,
		"reason":  reason,
	})
	i.store.IncrementStat("bans")
	i.reply(fmt.Sprintf("✅ Banned user `%d`\n**Reason:** %s", id, reason))
}

func (i *Interpreter) cmdKick(args []string, raw string) {
	id, ok := i.parseTarget(args, "kick <user_id> [reason]")
	if !ok || !i.requireGuild() {
		return
	}

	reason := "Kicked by operator via DM"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}

	idStr := strconv.FormatInt(id, 10)
	if err := i.mod.Kick(i.settings.GuildID, idStr, reason); err != nil {
		i.reply(fmt.Sprintf("❌ Kick failed: %v", err))
		return
	}

	i.store.AppendAudit("kick_by_owner", map[string]interface{}{
		"user_id": id,
		"reason":  reason,
	})
	i.store.IncrementStat("kicks")
	i.reply(fmt.Sprintf("✅ Kicked user `%d`\n**Reason:** %s", id, reason))
}

func (i *Interpreter) cmdTimeout(args []string, raw string) {
	id, ok := i.parseTarget(args, "timeout <user_id> [minutes]")
	if !ok || !i.requireGuild() {
		return
	}

	minutes := timeoutDefaultMinutes
	if len(args) > 1 {
		var err error
		minutes, err = strconv.Atoi(args[1])
		if err != nil {
			i.reply("❌ Invalid duration")
			return
		}
	}
	if minutes < 1 || minutes > timeoutMaxMinutes {
		i.reply(fmt.Sprintf("❌ Duration must be 1-%d minutes (28 days)", timeoutMaxMinutes))
		return
	}

	idStr := strconv.FormatInt(id, 10)
	d := time.Duration(minutes) * time.Minute
	if err := i.mod.Timeout(i.settings.GuildID, idStr, d, "Timeout by operator via DM"); err != nil {
		i.reply(fmt.Sprintf("❌ Timeout failed: %v", err))
		return
	}

	i.store.AppendAudit("timeout_by_owner", map[string]interface{}{
		"user_id":          id,
		"duration_minutes": minutes,
	})
	i.reply(fmt.Sprintf("✅ Timeout applied to `%d`\n**Duration:** %s", id, utils.FormatDuration(minutes*60)))
}

func (i *Interpreter) cmdChannels(args []string, raw string) {
	if !i.requireGuild() {
		return
	}
	channels, err := i.dir.GuildChannels(i.settings.GuildID)
	if err != nil {
		i.reply("❌ Guild not accessible")
		return
	}

	var text, voice []*discordgo.Channel
	for _, c := range channels {
		switch c.Type {
		case discordgo.ChannelTypeGuildText:
			text = append(text, c)
		case discordgo.ChannelTypeGuildVoice:
			voice = append(voice, c)
		}
	}

	lines := []string{"📁 **Channels**\n"}
	if len(text) > 0 {
		lines = append(lines, "**Text Channels:**")
		for n, c := range text {
			if n == 20 {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(text)-20))
				break
			}
			lines = append(lines, fmt.Sprintf("  • #%s (`%s`)", c.Name, c.ID))
		}
	}
	if len(voice) > 0 {
		lines = append(lines, "\n**Voice Channels:**")
		for n, c := range voice {
			if n == 20 {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(voice)-20))
				break
			}
			lines = append(lines, fmt.Sprintf("  • 🔊 %s (`%s`)", c.Name, c.ID))
		}
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdRoles(args []string, raw string) {
	if !i.requireGuild() {
		return
	}
	roles, err := i.dir.GuildRoles(i.settings.GuildID)
	if err != nil {
		i.reply("❌ Guild not accessible")
		return
	}

	sort.Slice(roles, func(a, b int) bool { return roles[a].Position > roles[b].Position })

	lines := []string{"👥 **Roles**\n"}
	shown := 0
	for _, r := range roles {
		if r.Name == "@everyone" {
			continue
		}
		if shown == 30 {
			lines = append(lines, "\n... and more roles")
			break
		}
		analysis := permissions.Analyze(r.Permissions)
		lines = append(lines, fmt.Sprintf("%s **%s** (`%s`)", analysis.Tier.Emoji(), r.Name, r.ID))
		shown++
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdMembers(args []string, raw string) {
	if !i.requireGuild() {
		return
	}
	guild, err := i.dir.Guild(i.settings.GuildID)
	if err != nil || guild == nil {
		i.reply("❌ Guild not accessible")
		return
	}

	lines := []string{
		fmt.Sprintf("**👥 %s Members**\n", guild.Name),
		fmt.Sprintf("**Total:** %d", guild.MemberCount),
	}
	bots := 0
	for _, m := range guild.Members {
		if m.User != nil && m.User.Bot {
			bots++
		}
	}
	if len(guild.Members) > 0 {
		lines = append(lines,
			fmt.Sprintf("**Humans:** %d", guild.MemberCount-bots),
			fmt.Sprintf("**Bots:** %d", bots),
		)
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdSettings(args []string, raw string) {
	lines := []string{
		"⚙️ **Current Settings**\n",
		fmt.Sprintf("**Bot Name:** %s", i.settings.BotName),
		fmt.Sprintf("**Guild ID:** %s", orNone(i.settings.GuildID)),
		fmt.Sprintf("**DM Alerts:** %s", yesNo(i.settings.DMAlerts, "✅ Enabled", "❌ Disabled")),
		fmt.Sprintf("**DB Encryption:** %s", yesNo(i.settings.EncryptStore, "✅ Enabled", "❌ Disabled")),
		fmt.Sprintf("**Quick Actions:** %s", yesNo(i.settings.QuickActions, "✅ Enabled", "❌ Disabled")),
		fmt.Sprintf("**Cover Commands:** %s", yesNo(i.settings.CoverCommands, "✅ Enabled", "❌ Disabled")),
	}
	i.reply(strings.Join(lines, "\n"))
}

func (i *Interpreter) cmdMask(args []string, raw string) {
	if len(args) < 1 {
		i.reply(fmt.Sprintf("❌ Usage:\n  `%smask set_channel <id>`\n  `%smask set_reply <text>`\n  `%smask clear`", i.prefix, i.prefix, i.prefix))
		return
	}

	switch strings.ToLower(args[0]) {
	case "set_channel":
		if len(args) < 2 {
			i.reply(fmt.Sprintf("❌ Usage: `%smask set_channel <channel_id>`", i.prefix))
			return
		}
		if _, err := strconv.ParseInt(args[1], 10, 64); err != nil {
			i.reply("❌ Invalid channel ID")
			return
		}
		i.store.SetMaskChannel(args[1])
		i.reply(fmt.Sprintf("✅ Mask channel set to `%s`", args[1]))

	case "set_reply":
		// Everything after "mask set_reply", whitespace preserved.
		fields := strings.SplitN(raw, " ", 3)
		text := ""
		if len(fields) == 3 {
			text = strings.TrimSpace(fields[2])
		}
		if text == "" {
			i.reply("❌ Reply text cannot be empty")
			return
		}
		i.store.SetMaskReply(text)
		i.reply(fmt.Sprintf("✅ Mask reply updated to:\n```\n%s\n```", text))

	case "clear":
		i.store.ClearMask()
		i.reply("✅ Mask settings cleared")

	default:
		i.reply("❌ Unknown mask command")
	}
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
