package policy

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

func newPolicy(t *testing.T) (*Policy, *store.Store) {
	t.Helper()
	s := store.Open(filepath.Join(t.TempDir(), "db.json"), "k", false, zap.NewNop())
	return New(s), s
}

func TestCriticalCategoriesAlwaysAlert(t *testing.T) {
	p, s := newPolicy(t)

	s.AddWhitelist(555)
	if err := s.SetFilter("bots", false); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFilter("server", false); err != nil {
		t.Fatal(err)
	}

	for _, cat := range []string{"bots", "server", "mass_delete"} {
		if !p.ShouldAlert(cat, 555) {
			t.Errorf("critical category %q suppressed for whitelisted user", cat)
		}
	}
}

func TestWhitelistSuppressesNonCritical(t *testing.T) {
	p, s := newPolicy(t)
	s.AddWhitelist(100)

	if p.ShouldAlert("members", 100) {
		t.Fatal("whitelisted user should be suppressed for members")
	}
	if !p.ShouldAlert("members", 200) {
		t.Fatal("non-whitelisted user should alert when filter enabled")
	}
}

func TestDisabledFilterSuppresses(t *testing.T) {
	p, s := newPolicy(t)
	if err := s.SetFilter("voice", false); err != nil {
		t.Fatal(err)
	}
	if p.ShouldAlert("voice", 0) {
		t.Fatal("disabled filter should suppress")
	}
}

func TestUnknownCategoryDefaultsOn(t *testing.T) {
	p, _ := newPolicy(t)
	if !p.ShouldAlert("webhooks", 0) {
		t.Fatal("unknown category should default to alerting")
	}
}

func TestPriorityTiers(t *testing.T) {
	p, _ := newPolicy(t)
	cases := map[string]Priority{
		"bots":        PriorityCritical,
		"server":      PriorityCritical,
		"mass_delete": PriorityCritical,
		"roles":       PriorityWarning,
		"channels":    PriorityWarning,
		"moderation":  PriorityWarning,
		"members":     PriorityInfo,
		"voice":       PriorityInfo,
		"invites":     PriorityInfo,
		"other":       PriorityUnknown,
	}
	for cat, want := range cases {
		if got := p.PriorityOf(cat); got != want {
			t.Errorf("PriorityOf(%q) = %v, want %v", cat, got, want)
		}
	}
}

func TestDisableAllKeepsCritical(t *testing.T) {
	p, _ := newPolicy(t)
	p.DisableAll()

	filters := p.Filters()
	if !filters["bots"] || !filters["server"] {
		t.Fatal("critical filters must stay enabled after disable-all")
	}
	for _, name := range []string{"roles", "channels", "members", "messages", "moderation", "invites", "voice"} {
		if filters[name] {
			t.Errorf("filter %q should be disabled", name)
		}
	}
}
