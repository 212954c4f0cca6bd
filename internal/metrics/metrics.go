package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's prometheus instrumentation. A private registry
// keeps tests isolated from the default global one.
type Metrics struct {
	registry *prometheus.Registry

	EventsProcessed *prometheus.CounterVec

	AlertsSent       prometheus.Counter
	AlertsDropped    prometheus.Counter
	AlertsSuppressed prometheus.Counter
	AlertsFailed     prometheus.Counter

	ActionsCreated  prometheus.Counter
	ActionsResolved prometheus.Counter
	ActionsExpired  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cuebot_events_processed_total",
			Help: "Platform events processed, by category.",
		}, []string{"category"}),
		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuebot_alerts_sent_total",
			Help: "Alerts delivered to the operator.",
		}),
		AlertsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuebot_alerts_dropped_total",
			Help: "Alerts dropped by the sliding-window rate limit.",
		}),
		AlertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuebot_alerts_suppressed_total",
			Help: "Alerts suppressed by configuration.",
		}),
		AlertsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuebot_alerts_failed_total",
			Help: "Alert deliveries that failed at the platform boundary.",
		}),
		ActionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuebot_quick_actions_created_total",
			Help: "Quick actions registered.",
		}),
		ActionsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuebot_quick_actions_resolved_total",
			Help: "Quick actions resolved by the operator.",
		}),
		ActionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuebot_quick_actions_expired_total",
			Help: "Quick actions that expired unresolved.",
		}),
	}
}

// Handler exposes the registry for an HTTP listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
