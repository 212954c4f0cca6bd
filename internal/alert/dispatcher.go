package alert

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/metrics"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

// Sender delivers messages to the operator's private channel.
type Sender interface {
	SendEmbed(embed *discordgo.MessageEmbed) error
	SendText(content string) error
}

// Deduper answers whether an identical alert went out recently. Backed by
// Redis so the window survives restarts and spans replicas.
type Deduper interface {
	SeenRecently(key string, window time.Duration) (bool, error)
}

// Recorder mirrors delivery outcomes into an external archive.
type Recorder interface {
	RecordDelivery(priority, title, outcome string)
}

// Outcome is the internal delivery result. The external contract is
// fire-and-forget; this exists for diagnostics and tests.
type Outcome int

const (
	Sent Outcome = iota
	Dropped
	Suppressed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case Dropped:
		return "dropped"
	case Suppressed:
		return "suppressed"
	default:
		return "failed"
	}
}

// Dispatcher throttles and delivers operator alerts. A sliding 60s window
// drops on saturation; the inter-alert cooldown delays instead.
type Dispatcher struct {
	sender  Sender
	enabled bool

	cooldown  time.Duration
	window    time.Duration
	windowCap int

	store    *store.Store
	metrics  *metrics.Metrics
	log      *zap.Logger
	dedupe   Deduper
	recorder Recorder

	now   func() time.Time
	sleep func(time.Duration)

	mu        sync.Mutex
	sendTimes []time.Time
	lastSend  time.Time
}

type Config struct {
	Enabled      bool
	Cooldown     time.Duration
	MaxPerMinute int
}

func NewDispatcher(sender Sender, cfg Config, s *store.Store, m *metrics.Metrics, log *zap.Logger) *Dispatcher {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	if cfg.MaxPerMinute <= 0 {
		cfg.MaxPerMinute = 30
	}
	return &Dispatcher{
		sender:    sender,
		enabled:   cfg.Enabled,
		cooldown:  cfg.Cooldown,
		window:    time.Minute,
		windowCap: cfg.MaxPerMinute,
		store:     s,
		metrics:   m,
		log:       log,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// SetDeduper enables cross-process duplicate suppression. Optional.
func (d *Dispatcher) SetDeduper(dd Deduper) {
	d.dedupe = dd
}

// SetRecorder enables archiving of delivery outcomes. Optional.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// dedupeWindow is how long an identical title+body pair stays suppressed.
const dedupeWindow = 10 * time.Second

func dedupeKey(title, body string) string {
	h := fnv.New64a()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return fmt.Sprintf("alert:%016x", h.Sum64())
}

func (d *Dispatcher) record(pri policy.Priority, title string, o Outcome) {
	if d.recorder != nil {
		d.recorder.RecordDelivery(pri.String(), title, o.String())
	}
}

// Deliver sends one formatted alert, plus an optional trailing quick-action
// block as a second message. Dropped sends do not count toward the
// total_alerts statistic; only actual deliveries do.
func (d *Dispatcher) Deliver(title, body string, pri policy.Priority, fields []*discordgo.MessageEmbedField, quickActionText string) Outcome {
	if !d.enabled || d.sender == nil {
		d.metrics.AlertsSuppressed.Inc()
		return Suppressed
	}

	if d.dedupe != nil {
		if seen, err := d.dedupe.SeenRecently(dedupeKey(title, body), dedupeWindow); err == nil && seen {
			d.log.Debug("duplicate alert suppressed", zap.String("title", title))
			d.metrics.AlertsSuppressed.Inc()
			d.record(pri, title, Suppressed)
			return Suppressed
		}
	}

	d.mu.Lock()
	now := d.now()
	cutoff := now.Add(-d.window)
	live := d.sendTimes[:0]
	for _, ts := range d.sendTimes {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	d.sendTimes = live

	if len(d.sendTimes) >= d.windowCap {
		d.mu.Unlock()
		d.log.Warn("alert dropped by rate limit",
			zap.String("title", title),
			zap.Int("window_cap", d.windowCap))
		d.metrics.AlertsDropped.Inc()
		d.record(pri, title, Dropped)
		return Dropped
	}

	var wait time.Duration
	if !d.lastSend.IsZero() {
		if elapsed := now.Sub(d.lastSend); elapsed < d.cooldown {
			wait = d.cooldown - elapsed
		}
	}
	sendAt := now.Add(wait)
	d.sendTimes = append(d.sendTimes, sendAt)
	d.lastSend = sendAt
	d.mu.Unlock()

	if wait > 0 {
		d.sleep(wait)
	}

	// The embed carries the same instant reserved in the window above, so
	// the rate accounting and the visible timestamp agree exactly.
	embed := &discordgo.MessageEmbed{
		Title:       pri.String() + " " + title,
		Description: body,
		Color:       pri.Color(),
		Fields:      fields,
		Timestamp:   sendAt.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Security Monitor",
		},
	}

	if err := d.sender.SendEmbed(embed); err != nil {
		d.log.Error("alert delivery failed", zap.String("title", title), zap.Error(err))
		d.metrics.AlertsFailed.Inc()
		d.record(pri, title, Failed)
		return Failed
	}

	if quickActionText != "" {
		if err := d.sender.SendText(quickActionText); err != nil {
			d.log.Error("quick-action block delivery failed", zap.Error(err))
		}
	}

	d.store.IncrementStat("total_alerts")
	d.metrics.AlertsSent.Inc()
	d.record(pri, title, Sent)
	return Sent
}

// Critical delivers at the highest tier with an optional quick-action block.
func (d *Dispatcher) Critical(title, body, quickActionText string) Outcome {
	return d.Deliver(title, body, policy.PriorityCritical, nil, quickActionText)
}

func (d *Dispatcher) Warning(title, body string) Outcome {
	return d.Deliver(title, body, policy.PriorityWarning, nil, "")
}

func (d *Dispatcher) Info(title, body string) Outcome {
	return d.Deliver(title, body, policy.PriorityInfo, nil, "")
}

// Notify sends a plain text message to the operator, bypassing the rate
// limiter. Used for startup and lifecycle notices.
func (d *Dispatcher) Notify(text string) {
	if !d.enabled || d.sender == nil {
		return
	}
	if err := d.sender.SendText(text); err != nil {
		d.log.Error("notify failed", zap.Error(err))
	}
}
