// Package telemetry exposes prometheus metrics for the tracking engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// everywhere; all methods are nil-safe so components work without metrics.
type Metrics struct {
	SnapshotsProcessed prometheus.Counter
	SnapshotFailures   prometheus.Counter
	SessionsOpened     prometheus.Counter
	SessionsClosed     prometheus.Counter
	PersistenceErrors  prometheus.Counter
	ReconnectAttempts  prometheus.Counter
	OpenSessions       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on the given registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		SnapshotsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildwatch_snapshots_processed_total",
			Help: "Number of presence snapshots processed by the tracker",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildwatch_snapshot_failures_total",
			Help: "Number of snapshot fetches that failed and were skipped",
		}),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildwatch_sessions_opened_total",
			Help: "Number of presence sessions opened",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildwatch_sessions_closed_total",
			Help: "Number of presence sessions closed",
		}),
		PersistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildwatch_persistence_errors_total",
			Help: "Number of datastore writes that failed",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildwatch_reconnect_attempts_total",
			Help: "Number of database connection attempts",
		}),
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guildwatch_open_sessions",
			Help: "Number of currently open presence sessions",
		}),
	}

	collectors := []prometheus.Collector{
		m.SnapshotsProcessed,
		m.SnapshotFailures,
		m.SessionsOpened,
		m.SessionsClosed,
		m.PersistenceErrors,
		m.ReconnectAttempts,
		m.OpenSessions,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IncSnapshotsProcessed increments the processed-snapshot counter.
func (m *Metrics) IncSnapshotsProcessed() {
	if m != nil {
		m.SnapshotsProcessed.Inc()
	}
}

// IncSnapshotFailures increments the failed-snapshot counter.
func (m *Metrics) IncSnapshotFailures() {
	if m != nil {
		m.SnapshotFailures.Inc()
	}
}

// IncSessionsOpened increments the opened-session counter.
func (m *Metrics) IncSessionsOpened() {
	if m != nil {
		m.SessionsOpened.Inc()
	}
}

// IncSessionsClosed increments the closed-session counter.
func (m *Metrics) IncSessionsClosed() {
	if m != nil {
		m.SessionsClosed.Inc()
	}
}

// IncPersistenceErrors increments the failed-write counter.
func (m *Metrics) IncPersistenceErrors() {
	if m != nil {
		m.PersistenceErrors.Inc()
	}
}

// IncReconnectAttempts increments the connection-attempt counter.
func (m *Metrics) IncReconnectAttempts() {
	if m != nil {
		m.ReconnectAttempts.Inc()
	}
}

// SetOpenSessions records the current open-session count.
func (m *Metrics) SetOpenSessions(n int) {
	if m != nil {
		m.OpenSessions.Set(float64(n))
	}
}
