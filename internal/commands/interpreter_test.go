package commands

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/database"
	"github.com/cocogogo0101-tech/CueBot/internal/metrics"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/quickactions"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

const (
	ownerID   = "111111111111111111"
	testGuild = "222222222222222222"
)

type recordingSender struct {
	texts []string
}

func (r *recordingSender) SendEmbed(e *discordgo.MessageEmbed) error { return nil }
func (r *recordingSender) SendText(content string) error {
	r.texts = append(r.texts, content)
	return nil
}

func (r *recordingSender) last() string {
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

type stubModerator struct {
	banned   []string
	kicked   []string
	timedOut map[string]time.Duration
	stripN   int
	err      error
}

func (s *stubModerator) Ban(guildID, userID, reason string) error {
	if s.err != nil {
		return s.err
	}
	s.banned = append(s.banned, userID)
	return nil
}

func (s *stubModerator) Kick(guildID, userID, reason string) error {
	if s.err != nil {
		return s.err
	}
	s.kicked = append(s.kicked, userID)
	return nil
}

func (s *stubModerator) StripRoles(guildID, userID, reason string) (int, error) {
	return s.stripN, s.err
}

func (s *stubModerator) Timeout(guildID, userID string, d time.Duration, reason string) error {
	if s.err != nil {
		return s.err
	}
	if s.timedOut == nil {
		s.timedOut = make(map[string]time.Duration)
	}
	s.timedOut[userID] = d
	return nil
}

func (s *stubModerator) MemberInfo(guildID, userID string) (string, error) { return "", nil }

type stubDirectory struct {
	guild    *discordgo.Guild
	member   *discordgo.Member
	user     *discordgo.User
	channels []*discordgo.Channel
	roles    []*discordgo.Role
}

func (s *stubDirectory) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if s.guild == nil {
		return nil, errors.New("not found")
	}
	return s.guild, nil
}

func (s *stubDirectory) GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return s.channels, nil
}

func (s *stubDirectory) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return s.roles, nil
}

func (s *stubDirectory) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	if s.member == nil {
		return nil, errors.New("unknown member")
	}
	return s.member, nil
}

func (s *stubDirectory) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	if s.user == nil {
		return nil, errors.New("unknown user")
	}
	return s.user, nil
}

type env struct {
	interp  *Interpreter
	sender  *recordingSender
	store   *store.Store
	actions *quickactions.Registry
	mod     *stubModerator
	dir     *stubDirectory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zap.NewNop()
	s := store.Open(filepath.Join(t.TempDir(), "db.json"), "k", false, log)
	p := policy.New(s)
	m := metrics.New()
	mod := &stubModerator{stripN: 2}
	reg := quickactions.NewRegistry(mod, s, m, log, true, time.Minute)
	sender := &recordingSender{}
	dir := &stubDirectory{}

	interp := NewInterpreter(s, p, reg, mod, dir, sender, log, Settings{
		BotName:      "Server Helper",
		GuildID:      testGuild,
		DMAlerts:     true,
		QuickActions: true,
	}, ".", ownerID)

	return &env{interp: interp, sender: sender, store: s, actions: reg, mod: mod, dir: dir}
}

func (e *env) dm(content string) {
	e.interp.HandleMessage(ownerID, "", content)
}

func TestNonOperatorIgnored(t *testing.T) {
	e := newEnv(t)
	e.interp.HandleMessage("999", "", ".watch 123456789012345678")
	if len(e.sender.texts) != 0 {
		t.Fatal("non-operator messages must be dropped silently")
	}
	if len(e.store.WatchedUsers()) != 0 {
		t.Fatal("non-operator must not mutate state")
	}
}

func TestGuildMessageIgnored(t *testing.T) {
	e := newEnv(t)
	e.interp.HandleMessage(ownerID, testGuild, ".watch 123456789012345678")
	if len(e.sender.texts) != 0 || len(e.store.WatchedUsers()) != 0 {
		t.Fatal("guild-channel messages must be dropped")
	}
}

func TestWatchUnwatchRoundTrip(t *testing.T) {
	e := newEnv(t)

	e.dm(".watch <@123456789012345678>")
	if !strings.Contains(e.sender.last(), "Now watching") {
		t.Fatalf("reply = %q", e.sender.last())
	}
	if !e.store.IsWatched(123456789012345678) {
		t.Fatal("watch did not stick")
	}

	e.dm(".watch 123456789012345678")
	if !strings.Contains(e.sender.last(), "Already watching") {
		t.Fatalf("reply = %q", e.sender.last())
	}

	e.dm(".unwatch 123456789012345678")
	if !strings.Contains(e.sender.last(), "Stopped watching") {
		t.Fatalf("reply = %q", e.sender.last())
	}
	if e.store.IsWatched(123456789012345678) {
		t.Fatal("unwatch did not stick")
	}
}

func TestArabicAliases(t *testing.T) {
	e := newEnv(t)

	e.dm(".راقب 123456789012345678")
	if !e.store.IsWatched(123456789012345678) {
		t.Fatal("alias راقب should map to watch")
	}
	e.dm(".الغاء 123456789012345678")
	if e.store.IsWatched(123456789012345678) {
		t.Fatal("alias الغاء should map to unwatch")
	}
}

func TestInvalidID(t *testing.T) {
	e := newEnv(t)
	e.dm(".watch not-a-number")
	if !strings.Contains(e.sender.last(), "Invalid user ID") {
		t.Fatalf("reply = %q", e.sender.last())
	}
}

func TestUnknownCommand(t *testing.T) {
	e := newEnv(t)
	e.dm(".frobnicate")
	if !strings.Contains(e.sender.last(), "Unknown command") {
		t.Fatalf("reply = %q", e.sender.last())
	}
}

func TestNoPrefixIgnored(t *testing.T) {
	e := newEnv(t)
	e.dm("hello there")
	if len(e.sender.texts) != 0 {
		t.Fatal("non-command chatter must be ignored")
	}
}

func TestFilterCommands(t *testing.T) {
	e := newEnv(t)

	e.dm(".filter members off")
	if !strings.Contains(e.sender.last(), "disabled") {
		t.Fatalf("reply = %q", e.sender.last())
	}
	if e.store.FilterEnabled("members") {
		t.Fatal("filter should be off")
	}

	e.dm(".filter nosuch on")
	if !strings.Contains(e.sender.last(), "Unknown filter") {
		t.Fatalf("reply = %q", e.sender.last())
	}

	e.dm(".filter all off")
	if e.store.FilterEnabled("roles") {
		t.Fatal("filter all off should disable roles")
	}
	if !e.store.FilterEnabled("bots") {
		t.Fatal("critical categories must survive filter all off")
	}

	e.dm(".filter reset")
	for name, on := range e.store.Filters() {
		if !on {
			t.Fatalf("filter %s should be on after reset", name)
		}
	}

	e.dm(".filters")
	if !strings.Contains(e.sender.last(), "bots") {
		t.Fatalf("filters listing = %q", e.sender.last())
	}
}

func TestBanWithReason(t *testing.T) {
	e := newEnv(t)
	e.dm(".ban 123456789012345678 raiding the server")
	if len(e.mod.banned) != 1 || e.mod.banned[0] != "123456789012345678" {
		t.Fatalf("banned = %v", e.mod.banned)
	}
	if !strings.Contains(e.sender.last(), "raiding the server") {
		t.Fatalf("reply = %q", e.sender.last())
	}
	if e.store.Stats()["bans"] != 1 {
		t.Fatal("bans stat should increment")
	}
}

func TestBanFailureSurfaced(t *testing.T) {
	e := newEnv(t)
	e.mod.err = errors.New("missing permissions")
	e.dm(".ban 123456789012345678")
	if !strings.Contains(e.sender.last(), "Ban failed") {
		t.Fatalf("reply = %q", e.sender.last())
	}
	if e.store.Stats()["bans"] != 0 {
		t.Fatal("failed ban must not count")
	}
}

func TestTimeoutBounds(t *testing.T) {
	e := newEnv(t)

	e.dm(".timeout 123456789012345678 50000")
	if !strings.Contains(e.sender.last(), "1-40320") {
		t.Fatalf("reply = %q", e.sender.last())
	}

	e.dm(".timeout 123456789012345678 abc")
	if !strings.Contains(e.sender.last(), "Invalid duration") {
		t.Fatalf("reply = %q", e.sender.last())
	}

	e.dm(".timeout 123456789012345678")
	if d := e.mod.timedOut["123456789012345678"]; d != time.Hour {
		t.Fatalf("default timeout = %v, want 1h", d)
	}

	e.dm(".timeout 123456789012345678 5")
	if d := e.mod.timedOut["123456789012345678"]; d != 5*time.Minute {
		t.Fatalf("timeout = %v, want 5m", d)
	}
}

func TestBareNumberResolvesNewest(t *testing.T) {
	e := newEnv(t)

	e.actions.Create("bot_add", 42, testGuild, nil)

	e.dm("5") // option 5 on bot_add is Ignore
	if !strings.Contains(e.sender.last(), "Ignored") {
		t.Fatalf("reply = %q", e.sender.last())
	}
	if e.actions.PendingCount() != 0 {
		t.Fatal("resolution should consume the action")
	}
}

func TestBareNumberNoPending(t *testing.T) {
	e := newEnv(t)
	e.dm("1")
	// No pending actions: a bare number is not treated as a command.
	if len(e.sender.texts) != 0 {
		t.Fatalf("replies = %v", e.sender.texts)
	}
}

func TestExplicitActionID(t *testing.T) {
	e := newEnv(t)

	block := e.actions.Create("role_change", 42, testGuild, nil)
	start := strings.Index(block, "[`")
	id := block[start+2 : start+8]

	e.dm(strings.ToLower(id) + " 1")
	if !strings.Contains(e.sender.last(), "Stripped 2 roles") {
		t.Fatalf("reply = %q", e.sender.last())
	}

	e.dm(id + " 1")
	if !strings.Contains(e.sender.last(), "expired or not found") {
		t.Fatalf("reply = %q", e.sender.last())
	}
}

func TestMaskCommands(t *testing.T) {
	e := newEnv(t)

	e.dm(".mask set_channel 333333333333333333")
	cfg := e.store.MaskConfig()
	if cfg.ChannelID == nil || *cfg.ChannelID != "333333333333333333" {
		t.Fatalf("mask channel = %v", cfg.ChannelID)
	}

	e.dm(".mask set_reply away for a while")
	if got := e.store.MaskConfig().ReplyText; got != "away for a while" {
		t.Fatalf("mask reply = %q", got)
	}

	e.dm(".mask clear")
	if e.store.MaskConfig().ChannelID != nil {
		t.Fatal("mask clear should drop the channel")
	}

	e.dm(".mask bogus")
	if !strings.Contains(e.sender.last(), "Unknown mask command") {
		t.Fatalf("reply = %q", e.sender.last())
	}
}

func TestStatsListsCounters(t *testing.T) {
	e := newEnv(t)
	e.store.IncrementStat("total_alerts")
	e.store.Watch(1)

	e.dm(".stats")
	out := e.sender.last()
	for _, want := range []string{"Total Alerts:** 1", "Watched Users:** 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoFallsBackToUser(t *testing.T) {
	e := newEnv(t)
	e.dir.user = &discordgo.User{ID: "123456789012345678", Username: "ghost"}

	e.dm(".info 123456789012345678")
	out := e.sender.last()
	if !strings.Contains(out, "Not in server") || !strings.Contains(out, "ghost") {
		t.Fatalf("info output = %q", out)
	}
}

func TestInfoMember(t *testing.T) {
	e := newEnv(t)
	e.dir.member = &discordgo.Member{
		User:  &discordgo.User{ID: "123456789012345678", Username: "resident"},
		Roles: []string{"r1"},
	}
	e.dir.roles = []*discordgo.Role{{ID: "r1", Name: "Mods", Permissions: discordgo.PermissionBanMembers}}
	e.store.Watch(123456789012345678)

	e.dm(".info 123456789012345678")
	out := e.sender.last()
	for _, want := range []string{"Member Info", "resident", "Mods", "WATCHED"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestLogsCommand(t *testing.T) {
	e := newEnv(t)
	e.store.AppendAudit("watch_added", map[string]interface{}{"user_id": int64(42)})

	e.dm(".logs 42")
	if !strings.Contains(e.sender.last(), "watch_added") {
		t.Fatalf("logs output = %q", e.sender.last())
	}

	e.dm(".logs 999")
	if !strings.Contains(e.sender.last(), "No logs found") {
		t.Fatalf("logs output = %q", e.sender.last())
	}
}

type stubHistory struct {
	events  []database.ArchivedEvent
	err     error
	subject string
}

func (h *stubHistory) EventsForSubject(subjectID string, limit int) ([]database.ArchivedEvent, error) {
	h.subject = subjectID
	return h.events, h.err
}

func TestLogsIncludeArchivedHistory(t *testing.T) {
	e := newEnv(t)
	hist := &stubHistory{events: []database.ArchivedEvent{
		{EventType: "member_ban", SubjectID: "42", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}}
	e.interp.SetHistory(hist)

	// No local entries for this user; the archive alone should answer.
	e.dm(".logs 42")
	out := e.sender.last()
	if !strings.Contains(out, "Archived History") || !strings.Contains(out, "member_ban") {
		t.Fatalf("logs output = %q", out)
	}
	if hist.subject != "42" {
		t.Fatalf("archive queried for %q, want 42", hist.subject)
	}

	// An archive failure degrades to the local ring.
	hist.err = errors.New("connection refused")
	e.store.AppendAudit("watch_added", map[string]interface{}{"user_id": int64(42)})
	e.dm(".logs 42")
	if out := e.sender.last(); !strings.Contains(out, "watch_added") || strings.Contains(out, "Archived History") {
		t.Fatalf("degraded logs output = %q", out)
	}
}

func TestChannelsListing(t *testing.T) {
	e := newEnv(t)
	e.dir.channels = []*discordgo.Channel{
		{ID: "c1", Name: "general", Type: discordgo.ChannelTypeGuildText},
		{ID: "c2", Name: "lounge", Type: discordgo.ChannelTypeGuildVoice},
	}

	e.dm(".channels")
	out := e.sender.last()
	if !strings.Contains(out, "#general") || !strings.Contains(out, "lounge") {
		t.Fatalf("channels output = %q", out)
	}
}

func TestLongReplyChunked(t *testing.T) {
	e := newEnv(t)
	for id := int64(100000000000000000); id < 100000000000000120; id++ {
		e.store.Watch(id)
	}

	e.dm(".list")
	if len(e.sender.texts) < 2 {
		t.Fatalf("expected chunked reply, got %d message(s)", len(e.sender.texts))
	}
	for _, chunk := range e.sender.texts {
		if len(chunk) > 1900 {
			t.Fatalf("chunk exceeds cap: %d", len(chunk))
		}
	}
}

func TestSettingsCommand(t *testing.T) {
	e := newEnv(t)
	e.dm(".settings")
	out := e.sender.last()
	for _, want := range []string{"Server Helper", testGuild, "DM Alerts"} {
		if !strings.Contains(out, want) {
			t.Errorf("settings output missing %q:\n%s", want, out)
		}
	}
}
