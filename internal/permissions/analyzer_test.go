package permissions

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestAnalyzeAdministrator(t *testing.T) {
	// Administrator dominates regardless of other bits.
	perms := int64(discordgo.PermissionAdministrator | discordgo.PermissionSendMessages | discordgo.PermissionBanMembers)
	a := Analyze(perms)

	if a.Tier != TierCritical {
		t.Fatalf("tier = %s, want CRITICAL", a.Tier)
	}
	if a.Summary != "ADMINISTRATOR" {
		t.Fatalf("summary = %q, want ADMINISTRATOR", a.Summary)
	}
	if !a.HasCritical() {
		t.Fatal("expected critical match")
	}
}

func TestAnalyzeTierPrecedence(t *testing.T) {
	cases := []struct {
		name  string
		perms int64
		want  RiskTier
	}{
		{"manage guild is critical", discordgo.PermissionManageServer, TierCritical},
		{"ban members is high", discordgo.PermissionBanMembers, TierHigh},
		{"dangerous beats moderate", discordgo.PermissionKickMembers | discordgo.PermissionVoiceMuteMembers, TierHigh},
		{"mute members is moderate", discordgo.PermissionVoiceMuteMembers, TierModerate},
		{"send messages is low", discordgo.PermissionSendMessages, TierLow},
		{"empty is low", 0, TierLow},
	}
	for _, c := range cases {
		if got := Analyze(c.perms).Tier; got != c.want {
			t.Errorf("%s: tier = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestAnalyzeSummaryNoSensitive(t *testing.T) {
	a := Analyze(discordgo.PermissionSendMessages)
	if a.Summary != "no sensitive permissions" {
		t.Fatalf("summary = %q", a.Summary)
	}
}

func TestDiffPermissions(t *testing.T) {
	before := int64(discordgo.PermissionSendMessages | discordgo.PermissionKickMembers)
	after := int64(discordgo.PermissionSendMessages | discordgo.PermissionManageRoles)

	d := DiffPermissions(before, after)

	if len(d.Added) != 1 || d.Added[0] != "Manage Roles" {
		t.Fatalf("added = %v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0] != "Kick Members" {
		t.Fatalf("removed = %v", d.Removed)
	}
	if !d.HasCriticalChange {
		t.Fatal("manage roles flip should be a critical change")
	}
}

func TestDiffNoCriticalChange(t *testing.T) {
	d := DiffPermissions(0, discordgo.PermissionVoiceConnect|discordgo.PermissionVoiceSpeak)
	if d.HasCriticalChange {
		t.Fatal("voice bits are not critical")
	}
	// Alphabetical stability.
	if len(d.Added) != 2 || d.Added[0] != "Connect" || d.Added[1] != "Speak" {
		t.Fatalf("added not sorted: %v", d.Added)
	}
}

func TestDiffIdentical(t *testing.T) {
	d := DiffPermissions(discordgo.PermissionBanMembers, discordgo.PermissionBanMembers)
	if len(d.Added) != 0 || len(d.Removed) != 0 || d.HasCriticalChange {
		t.Fatalf("identical sets should produce an empty diff: %+v", d)
	}
}
