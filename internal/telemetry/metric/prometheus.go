package metric

import (
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Namespace prefixes every metric name.
const Namespace = "phonebook"

// Registry holds all application metrics.
//
// Every method is safe on a nil *Registry, so components can be built
// without metrics.
type Registry struct {
	registry *prometheus.Registry

	// Remote api metrics
	RemoteRequests *prometheus.CounterVec
	RemoteLatency  *prometheus.HistogramVec

	// Fallback metrics
	Fallbacks *prometheus.CounterVec

	// Session and cache metrics
	SessionState   *prometheus.GaugeVec
	CachedContacts prometheus.Gauge

	mu    sync.Mutex
	state string
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,

		RemoteRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "remote",
				Name:      "requests_total",
				Help:      "Remote api requests by method and outcome kind.",
			},
			[]string{"method", "outcome"},
		),
		RemoteLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "remote",
				Name:      "request_duration_seconds",
				Help:      "Remote api request latency in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fallbacks_total",
				Help:      "Operations served by the local store after a transport failure.",
			},
			[]string{"operation"},
		),
		SessionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "session",
				Name:      "state",
				Help:      "1 for the current session state, 0 otherwise.",
			},
			[]string{"state"},
		),
		CachedContacts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "contacts",
				Help:      "Contacts in the in-memory collection.",
			},
		),
	}
}

// Registerer returns the registerer for additional collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.registry
}

// Gatherer returns the gatherer of the registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.registry
}

// RegisterRuntime adds the Go runtime and process collectors.
func (r *Registry) RegisterRuntime() error {
	if r == nil {
		return nil
	}
	if err := r.registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	return r.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ObserveRemote records one remote call.
func (r *Registry) ObserveRemote(method, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.RemoteRequests.WithLabelValues(method, outcome).Inc()
	r.RemoteLatency.WithLabelValues(method).Observe(d.Seconds())
}

// RecordFallback counts one operation served by the local store.
func (r *Registry) RecordFallback(operation string) {
	if r == nil {
		return
	}
	r.Fallbacks.WithLabelValues(operation).Inc()
}

// SetSessionState marks state as current and the previous state as not.
func (r *Registry) SetSessionState(state string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != "" && r.state != state {
		r.SessionState.WithLabelValues(r.state).Set(0)
	}
	r.SessionState.WithLabelValues(state).Set(1)
	r.state = state
}

// SetCachedContacts sets the size of the in-memory collection.
func (r *Registry) SetCachedContacts(n int) {
	if r == nil {
		return
	}
	r.CachedContacts.Set(float64(n))
}

// WriteText writes every gathered metric in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	if r == nil {
		return nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
