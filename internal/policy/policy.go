package policy

import (
	"github.com/cocogogo0101-tech/CueBot/internal/store"
	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// Priority is the alert severity tier for an event category.
type Priority int

const (
	PriorityUnknown Priority = iota
	PriorityInfo
	PriorityWarning
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "🔴 CRITICAL"
	case PriorityWarning:
		return "🟡 WARNING"
	case PriorityInfo:
		return "🟢 INFO"
	default:
		return "⚪ UNKNOWN"
	}
}

// Color maps the tier to its embed color.
func (p Priority) Color() int {
	switch p {
	case PriorityCritical:
		return utils.ColorRed
	case PriorityWarning:
		return utils.ColorAmber
	case PriorityInfo:
		return utils.ColorGreen
	default:
		return utils.ColorDark
	}
}

// Category tier sets. Critical categories can never be suppressed by
// filters or whitelist.
var (
	criticalCategories = []string{"bots", "server", "mass_delete"}
	warningCategories  = []string{"roles", "channels", "moderation"}
	infoCategories     = []string{"members", "voice", "invites"}
)

// Policy decides whether an event category alerts at all and at what tier.
type Policy struct {
	store *store.Store
}

func New(s *store.Store) *Policy {
	return &Policy{store: s}
}

// CriticalCategories returns the never-suppressed category names.
func CriticalCategories() []string {
	return append([]string(nil), criticalCategories...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ShouldAlert applies, in order: critical-category override, whitelist
// suppression, then the stored filter toggle (unknown categories default
// on). subjectID 0 means no subject user.
func (p *Policy) ShouldAlert(category string, subjectID int64) bool {
	if contains(criticalCategories, category) {
		return true
	}
	if subjectID != 0 && p.store.IsWhitelisted(subjectID) {
		return false
	}
	return p.store.FilterEnabled(category)
}

// PriorityOf maps a category to its fixed tier.
func (p *Policy) PriorityOf(category string) Priority {
	switch {
	case contains(criticalCategories, category):
		return PriorityCritical
	case contains(warningCategories, category):
		return PriorityWarning
	case contains(infoCategories, category):
		return PriorityInfo
	default:
		return PriorityUnknown
	}
}

// SetFilter toggles one category; unknown names return ErrFilterNotFound.
func (p *Policy) SetFilter(name string, enabled bool) error {
	return p.store.SetFilter(name, enabled)
}

func (p *Policy) EnableAll() {
	p.store.EnableAllFilters()
}

// DisableAll turns everything off except the critical categories.
func (p *Policy) DisableAll() {
	p.store.DisableAllFilters(criticalCategories)
}

func (p *Policy) Reset() {
	p.store.ResetFilters()
}

func (p *Policy) Filters() map[string]bool {
	return p.store.Filters()
}
