package monitor

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/alert"
	"github.com/cocogogo0101-tech/CueBot/internal/cache"
	"github.com/cocogogo0101-tech/CueBot/internal/metrics"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/quickactions"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

const testGuild = "900000000000000001"

type fakeSender struct {
	embeds []*discordgo.MessageEmbed
	texts  []string
}

func (f *fakeSender) SendEmbed(e *discordgo.MessageEmbed) error {
	f.embeds = append(f.embeds, e)
	return nil
}

func (f *fakeSender) SendText(content string) error {
	f.texts = append(f.texts, content)
	return nil
}

type fakeAPI struct {
	auditEntries []*discordgo.AuditLogEntry
	auditUsers   []*discordgo.User
	auditErr     error
	roles        []*discordgo.Role
	invites      []*discordgo.Invite
}

func (f *fakeAPI) GuildAuditLog(guildID, userID, beforeID string, actionType, limit int, options ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error) {
	if f.auditErr != nil {
		return nil, f.auditErr
	}
	return &discordgo.GuildAuditLog{
		AuditLogEntries: f.auditEntries,
		Users:           f.auditUsers,
	}, nil
}

func (f *fakeAPI) GuildInvites(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Invite, error) {
	return f.invites, nil
}

func (f *fakeAPI) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.roles, nil
}

type nopModerator struct{}

func (nopModerator) Ban(guildID, userID, reason string) error                    { return nil }
func (nopModerator) Kick(guildID, userID, reason string) error                   { return nil }
func (nopModerator) StripRoles(guildID, userID, reason string) (int, error)      { return 0, nil }
func (nopModerator) Timeout(guildID, userID string, d time.Duration, r string) error { return nil }
func (nopModerator) MemberInfo(guildID, userID string) (string, error)           { return "", nil }

type fixture struct {
	monitor *Monitor
	store   *store.Store
	sender  *fakeSender
	actions *quickactions.Registry
	api     *fakeAPI
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := zap.NewNop()
	s := store.Open(filepath.Join(t.TempDir(), "db.json"), "k", false, log)
	m := metrics.New()
	p := policy.New(s)
	sender := &fakeSender{}
	d := alert.NewDispatcher(sender, alert.Config{
		Enabled:      true,
		Cooldown:     time.Millisecond,
		MaxPerMinute: 100,
	}, s, m, log)
	reg := quickactions.NewRegistry(nopModerator{}, s, m, log, true, time.Minute)

	c, err := cache.New(nil, cache.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	api := &fakeAPI{}
	return &fixture{
		monitor: New(api, s, p, d, reg, c, nil, m, log, testGuild),
		store:   s,
		sender:  sender,
		actions: reg,
		api:     api,
	}
}

func member(id string, bot bool) *discordgo.Member {
	return &discordgo.Member{
		GuildID: testGuild,
		User:    &discordgo.User{ID: id, Username: "user-" + id, Bot: bot, Avatar: "a"},
	}
}

func TestBotJoinEndToEnd(t *testing.T) {
	f := newFixture(t)
	botID := "100000000000000001"

	f.api.auditEntries = []*discordgo.AuditLogEntry{{TargetID: botID, UserID: "555"}}
	f.api.auditUsers = []*discordgo.User{{ID: "555", Username: "adder"}}

	// Disable the bots filter and whitelist the bot; neither may suppress.
	f.store.SetFilter("bots", false)
	f.store.AddWhitelist(100000000000000001)

	f.monitor.HandleMemberAdd(&discordgo.GuildMemberAdd{Member: member(botID, true)})

	if n := f.store.AuditLogLen(); n != 1 {
		t.Fatalf("audit log entries = %d, want 1", n)
	}
	if got := f.store.Stats()["bot_additions"]; got != 1 {
		t.Fatalf("bot_additions = %d", got)
	}
	if f.actions.PendingCount() != 1 {
		t.Fatal("expected a pending quick action")
	}
	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds sent = %d, want 1", len(f.sender.embeds))
	}
	embed := f.sender.embeds[0]
	if !strings.Contains(embed.Title, "CRITICAL") || !strings.Contains(embed.Title, "BOT ADDED") {
		t.Errorf("embed title = %q", embed.Title)
	}
	if !strings.Contains(embed.Description, "adder") {
		t.Errorf("attribution missing from body:\n%s", embed.Description)
	}
	if len(f.sender.texts) != 1 || !strings.Contains(f.sender.texts[0], "QUICK ACTIONS") {
		t.Fatalf("quick-action message = %v", f.sender.texts)
	}
}

func TestBotJoinAttributionFallback(t *testing.T) {
	f := newFixture(t)
	f.api.auditErr = errors.New("missing permission")

	f.monitor.HandleMemberAdd(&discordgo.GuildMemberAdd{Member: member("100000000000000002", true)})

	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds sent = %d", len(f.sender.embeds))
	}
	if !strings.Contains(f.sender.embeds[0].Description, "Unknown") {
		t.Errorf("body should fall back to Unknown:\n%s", f.sender.embeds[0].Description)
	}
}

func TestRegularJoinWhitelisted(t *testing.T) {
	f := newFixture(t)
	f.store.AddWhitelist(200000000000000001)

	m := member("200000000000000001", false)
	m.User.Avatar = "" // would read as suspicious if not whitelisted
	f.monitor.HandleMemberAdd(&discordgo.GuildMemberAdd{Member: m})

	if len(f.sender.embeds) != 0 {
		t.Fatal("whitelisted join must not alert")
	}
}

func TestSuspiciousJoinAlerts(t *testing.T) {
	f := newFixture(t)

	m := member("200000000000000002", false)
	m.User.Avatar = ""
	f.monitor.HandleMemberAdd(&discordgo.GuildMemberAdd{Member: m})

	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(f.sender.embeds))
	}
	if !strings.Contains(f.sender.embeds[0].Description, "Suspicious") {
		t.Errorf("body = %q", f.sender.embeds[0].Description)
	}
	// Suspicious joins carry a quick action.
	if f.actions.PendingCount() != 1 {
		t.Fatal("expected a suspicious_member quick action")
	}
}

func TestUnremarkableJoinSilent(t *testing.T) {
	f := newFixture(t)

	m := member("200000000000000003", false)
	f.monitor.HandleMemberAdd(&discordgo.GuildMemberAdd{Member: m})

	if len(f.sender.embeds) != 0 {
		t.Fatal("aged, avatared, unwatched join must stay silent")
	}
}

func TestWrongGuildIgnored(t *testing.T) {
	f := newFixture(t)

	m := member("100000000000000003", true)
	m.GuildID = "other"
	f.monitor.HandleMemberAdd(&discordgo.GuildMemberAdd{Member: m})

	if f.store.AuditLogLen() != 0 || len(f.sender.embeds) != 0 {
		t.Fatal("foreign-guild events must be ignored")
	}
}

func TestMemberUpdateCriticalEscalation(t *testing.T) {
	f := newFixture(t)
	f.api.roles = []*discordgo.Role{
		{ID: "r1", Name: "Member", Permissions: discordgo.PermissionSendMessages},
		{ID: "r2", Name: "Admin", Permissions: discordgo.PermissionAdministrator},
	}

	before := member("300000000000000001", false)
	before.Roles = []string{"r1"}
	after := member("300000000000000001", false)
	after.Roles = []string{"r1", "r2"}

	f.monitor.HandleMemberUpdate(&discordgo.GuildMemberUpdate{
		Member:       after,
		BeforeUpdate: before,
	})

	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(f.sender.embeds))
	}
	if !strings.Contains(f.sender.embeds[0].Title, "CRITICAL") {
		t.Errorf("title = %q, want CRITICAL escalation", f.sender.embeds[0].Title)
	}
	// Critical updates offer a role_change quick action (3 options).
	if f.actions.PendingCount() != 1 {
		t.Fatal("expected a role_change quick action")
	}
}

func TestMemberUpdateNoChangesSilent(t *testing.T) {
	f := newFixture(t)

	m := member("300000000000000002", false)
	f.monitor.HandleMemberUpdate(&discordgo.GuildMemberUpdate{
		Member:       m,
		BeforeUpdate: member("300000000000000002", false),
	})

	if len(f.sender.embeds) != 0 {
		t.Fatal("no tracked field changed; must stay silent")
	}
}

func TestMessageDeleteWatchedOnly(t *testing.T) {
	f := newFixture(t)
	author := &discordgo.User{ID: "400000000000000001", Username: "watched"}

	del := &discordgo.MessageDelete{
		Message: &discordgo.Message{ID: "m1", ChannelID: "c1", GuildID: testGuild},
	}
	del.BeforeDelete = &discordgo.Message{Content: "secret", Author: author, ChannelID: "c1"}

	// Unwatched author: silent.
	f.monitor.HandleMessageDelete(del)
	if len(f.sender.embeds) != 0 {
		t.Fatal("unwatched author's deletes must not surface")
	}

	f.store.Watch(400000000000000001)
	f.monitor.HandleMessageDelete(del)
	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(f.sender.embeds))
	}
	if !strings.Contains(f.sender.embeds[0].Description, "secret") {
		t.Errorf("content preview missing:\n%s", f.sender.embeds[0].Description)
	}
}

func TestBanAttribution(t *testing.T) {
	f := newFixture(t)
	target := "500000000000000001"
	f.api.auditEntries = []*discordgo.AuditLogEntry{{TargetID: target, UserID: "666", Reason: "spam"}}
	f.api.auditUsers = []*discordgo.User{{ID: "666", Username: "mod"}}

	f.monitor.HandleBanAdd(&discordgo.GuildBanAdd{
		User:    &discordgo.User{ID: target, Username: "banned"},
		GuildID: testGuild,
	})

	if got := f.store.Stats()["bans"]; got != 1 {
		t.Fatalf("bans stat = %d", got)
	}
	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d", len(f.sender.embeds))
	}
	body := f.sender.embeds[0].Description
	if !strings.Contains(body, "mod") || !strings.Contains(body, "spam") {
		t.Errorf("attribution incomplete:\n%s", body)
	}
}

func TestRoleUpdatePermissionEscalation(t *testing.T) {
	f := newFixture(t)

	base := &discordgo.Role{ID: "700000000000000001", Name: "Helpers", Permissions: discordgo.PermissionSendMessages}
	f.monitor.HandleRoleCreate(&discordgo.GuildRoleCreate{
		GuildRole: &discordgo.GuildRole{Role: base, GuildID: testGuild},
	})
	f.sender.embeds = nil

	escalated := *base
	escalated.Permissions |= discordgo.PermissionAdministrator
	f.monitor.HandleRoleUpdate(&discordgo.GuildRoleUpdate{
		GuildRole: &discordgo.GuildRole{Role: &escalated, GuildID: testGuild},
	})

	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(f.sender.embeds))
	}
	if !strings.Contains(f.sender.embeds[0].Title, "CRITICAL") {
		t.Errorf("title = %q", f.sender.embeds[0].Title)
	}
}

func TestGuildUpdateDiff(t *testing.T) {
	f := newFixture(t)

	g := &discordgo.Guild{ID: testGuild, Name: "Before"}
	f.monitor.HandleGuildCreate(&discordgo.GuildCreate{Guild: g})

	updated := &discordgo.Guild{ID: testGuild, Name: "After"}
	f.monitor.HandleGuildUpdate(&discordgo.GuildUpdate{Guild: updated})

	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(f.sender.embeds))
	}
	if !strings.Contains(f.sender.embeds[0].Description, "`Before` → `After`") {
		t.Errorf("body = %q", f.sender.embeds[0].Description)
	}
}

func TestVoiceWatchedOnly(t *testing.T) {
	f := newFixture(t)
	uid := "800000000000000001"

	join := &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: testGuild, UserID: uid, ChannelID: "vc1"},
	}

	f.monitor.HandleVoiceStateUpdate(join)
	if len(f.sender.embeds) != 0 {
		t.Fatal("unwatched voice activity must stay silent")
	}

	f.store.Watch(800000000000000001)
	f.monitor.HandleVoiceStateUpdate(join)
	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(f.sender.embeds))
	}
	if !strings.Contains(f.sender.embeds[0].Title, "Voice: Joined") {
		t.Errorf("title = %q", f.sender.embeds[0].Title)
	}
}

func TestInviteCreateAlert(t *testing.T) {
	f := newFixture(t)

	f.monitor.HandleInviteCreate(&discordgo.InviteCreate{
		GuildID:   testGuild,
		ChannelID: "c1",
		Invite: &discordgo.Invite{
			Code:    "abc123",
			Inviter: &discordgo.User{ID: "1", Username: "host"},
			MaxUses: 5,
			MaxAge:  3600,
		},
	})

	if len(f.sender.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(f.sender.embeds))
	}
	body := f.sender.embeds[0].Description
	for _, want := range []string{"abc123", "host", "5", "1h"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}
