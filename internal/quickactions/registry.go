package quickactions

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/metrics"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

var (
	ErrNotFound      = errors.New("action expired or not found")
	ErrExpired       = errors.New("action expired")
	ErrInvalidChoice = errors.New("invalid choice")
)

const (
	idLen     = 6
	idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// PendingAction is an ephemeral remedial offer tied to a delivered alert.
// Never persisted; a restart forgets all of them.
type PendingAction struct {
	ID        string
	EventType string
	TargetID  int64
	GuildID   string
	Details   map[string]string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type option struct {
	label string
	verb  string
}

// Option tables are fixed per event type; anything else gets no offer.
func optionsFor(eventType string) []option {
	switch eventType {
	case "bot_add":
		return []option{
			{"🔨 Ban Bot", "ban"},
			{"🗑️ Kick Bot", "kick"},
			{"⚠️ Strip Roles", "strip"},
			{"ℹ️ Get Info", "info"},
			{"❌ Ignore", "ignore"},
		}
	case "suspicious_member":
		return []option{
			{"🔨 Ban", "ban"},
			{"⏸️ Timeout", "timeout"},
			{"👁️ Watch", "watch"},
			{"ℹ️ Get Info", "info"},
			{"❌ Ignore", "ignore"},
		}
	case "role_change":
		return []option{
			{"⚠️ Strip Roles", "strip"},
			{"ℹ️ Get Info", "info"},
			{"❌ Ignore", "ignore"},
		}
	default:
		return nil
	}
}

// Registry owns all pending actions behind one mutex; expiry timers and
// resolutions race benignly (last writer wins on delete).
type Registry struct {
	mu      sync.Mutex
	actions map[string]*PendingAction
	order   []string

	enabled bool
	timeout time.Duration

	mod     Moderator
	store   *store.Store
	metrics *metrics.Metrics
	log     *zap.Logger

	now func() time.Time
}

func NewRegistry(mod Moderator, s *store.Store, m *metrics.Metrics, log *zap.Logger, enabled bool, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Registry{
		actions: make(map[string]*PendingAction),
		enabled: enabled,
		timeout: timeout,
		mod:     mod,
		store:   s,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func (r *Registry) generateID() string {
	for {
		b := make([]byte, idLen)
		for i := range b {
			b[i] = idCharset[rand.Intn(len(idCharset))]
		}
		id := string(b)
		if _, taken := r.actions[id]; !taken {
			return id
		}
	}
}

// Create registers a pending action and returns the formatted option block,
// or "" when quick actions are disabled or the event type offers none.
// Nothing is stored when the option table is empty.
func (r *Registry) Create(eventType string, targetID int64, guildID string, details map[string]string) string {
	if !r.enabled {
		return ""
	}
	opts := optionsFor(eventType)
	if len(opts) == 0 {
		return ""
	}

	r.mu.Lock()
	id := r.generateID()
	now := r.now()
	action := &PendingAction{
		ID:        id,
		EventType: eventType,
		TargetID:  targetID,
		GuildID:   guildID,
		Details:   details,
		CreatedAt: now,
		ExpiresAt: now.Add(r.timeout),
	}
	r.actions[id] = action
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.metrics.ActionsCreated.Inc()
	time.AfterFunc(r.timeout, func() { r.expire(id) })

	return r.formatBlock(id, opts)
}

func (r *Registry) formatBlock(id string, opts []option) string {
	bar := strings.Repeat("─", 40)
	lines := []string{
		"",
		bar,
		fmt.Sprintf("⚡ **QUICK ACTIONS** [`%s`]", id),
		bar,
		"**رد برقم الإجراء المطلوب:**",
		"",
	}
	for i, opt := range opts {
		lines = append(lines, fmt.Sprintf("  `%d` → %s", i+1, opt.label))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("⏰ Expires in %d minutes", int(r.timeout.Minutes())),
		bar,
	)
	return strings.Join(lines, "\n")
}

// expire removes an action unconditionally once its timer fires. Removal is
// idempotent; a concurrent resolve simply wins or loses the delete.
func (r *Registry) expire(id string) {
	r.mu.Lock()
	_, present := r.actions[id]
	if present {
		r.remove(id)
	}
	r.mu.Unlock()

	if present {
		r.metrics.ActionsExpired.Inc()
		r.log.Debug("quick action expired", zap.String("action_id", id))
	}
}

// remove must be called with r.mu held.
func (r *Registry) remove(id string) {
	delete(r.actions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Resolve executes the chosen option and consumes the action (single use;
// first resolution wins). The returned string is operator-facing either way;
// the error carries the sentinel for callers that care.
func (r *Registry) Resolve(actionID string, choice int) (string, error) {
	actionID = strings.ToUpper(actionID)

	r.mu.Lock()
	action, ok := r.actions[actionID]
	if !ok {
		r.mu.Unlock()
		return "❌ Action expired or not found", ErrNotFound
	}
	if r.now().After(action.ExpiresAt) {
		r.remove(actionID)
		r.mu.Unlock()
		return "❌ Action expired", ErrExpired
	}

	opts := optionsFor(action.EventType)
	if choice < 1 || choice > len(opts) {
		r.mu.Unlock()
		return fmt.Sprintf("❌ Invalid choice. Pick 1-%d", len(opts)), ErrInvalidChoice
	}

	r.remove(actionID)
	r.mu.Unlock()

	selected := opts[choice-1]
	result := r.execute(action, selected.verb)
	r.metrics.ActionsResolved.Inc()
	r.log.Info("quick action resolved",
		zap.String("action_id", actionID),
		zap.String("verb", selected.verb),
		zap.Int64("target_id", action.TargetID))

	return fmt.Sprintf("✅ **%s**\n%s", selected.label, result), nil
}

// NewestID returns the most recently created still-pending action, for the
// bare-number operator shortcut.
func (r *Registry) NewestID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) == 0 {
		return "", false
	}
	return r.order[len(r.order)-1], true
}

func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}
