// connection.go: resilient lifecycle for the shared database connection pool
package datastore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/telemetry"
)

// ConnState is the connection manager's lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateReady
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// openFunc establishes a fresh gorm connection pool.
type openFunc func() (*gorm.DB, error)

// ConnectionManager owns the single shared connection pool. It validates the
// pool before handing it out, reconnects with bounded linear backoff, and
// proactively tears down pools idle past the configured threshold.
//
// The manager is constructed by the composition root and passed by
// reference; there is no package-level instance.
type ConnectionManager struct {
	mu       sync.Mutex
	state    ConnState
	db       *gorm.DB
	open     openFunc
	settings conf.ConnectionSettings
	lastUse  time.Time

	// attempts made during the most recent connect cycle
	lastAttempts int

	logger  *slog.Logger
	metrics *telemetry.Metrics

	idleStop chan struct{}
	idleDone chan struct{}
}

// NewConnectionManager creates a manager around the given pool opener.
func NewConnectionManager(open openFunc, settings conf.ConnectionSettings, logger *slog.Logger, metrics *telemetry.Metrics) *ConnectionManager {
	return &ConnectionManager{
		state:    StateDisconnected,
		open:     open,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// State returns the current lifecycle state.
func (m *ConnectionManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConnectAttempts returns the number of attempts made during the most recent
// connect cycle.
func (m *ConnectionManager) ConnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAttempts
}

// Acquire returns a validated connection pool, establishing one if needed.
// The mutex is held for the whole call, so concurrent acquirers wait for the
// in-flight attempt instead of dialing in parallel. On reconnect exhaustion
// the returned error is fatal and must propagate to the driving loop.
func (m *ConnectionManager) Acquire(ctx context.Context) (*gorm.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateReady {
		if err := m.pingLocked(ctx); err == nil {
			m.lastUse = time.Now()
			return m.db, nil
		}
		m.logger.Warn("liveness probe failed, discarding pool")
		m.teardownLocked()
	}

	if err := m.connectLocked(ctx); err != nil {
		return nil, err
	}
	m.lastUse = time.Now()
	return m.db, nil
}

// Release marks the connection as used. Callers must invoke it on every exit
// path after a successful Acquire so the idle checker sees recent activity.
func (m *ConnectionManager) Release() {
	m.mu.Lock()
	m.lastUse = time.Now()
	m.mu.Unlock()
}

// connectLocked dials the pool with linear backoff, waiting
// baseDelay * attemptNumber between failures, up to the attempt ceiling.
func (m *ConnectionManager) connectLocked(ctx context.Context) error {
	m.state = StateConnecting
	m.lastAttempts = 0

	var lastErr error
	for attempt := 1; attempt <= m.settings.MaxAttempts; attempt++ {
		m.lastAttempts = attempt
		m.metrics.IncReconnectAttempts()

		db, err := m.open()
		if err == nil {
			m.db = db
			m.state = StateReady
			if attempt > 1 {
				m.logger.Info("database connection established", "attempts", attempt)
			}
			return nil
		}
		lastErr = err
		m.logger.Warn("database connection attempt failed",
			"attempt", attempt,
			"max_attempts", m.settings.MaxAttempts,
			"error", err)

		if attempt == m.settings.MaxAttempts {
			break
		}

		delay := m.settings.BaseDelay * time.Duration(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			m.state = StateDisconnected
			return errors.Wrap(ctx.Err()).
				Component("datastore").
				Category(errors.CategoryDbConnection).
				Context("attempts", attempt).
				Build()
		}
	}

	m.state = StateDisconnected
	return errors.Newf("database connection failed after %d attempts: %w", m.settings.MaxAttempts, lastErr).
		Component("datastore").
		Category(errors.CategoryDbConnection).
		Context("attempts", m.settings.MaxAttempts).
		Build()
}

// pingLocked runs the lightweight liveness probe against the current pool.
func (m *ConnectionManager) pingLocked(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// teardownLocked closes the pool and transitions to Disconnected.
func (m *ConnectionManager) teardownLocked() {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				m.logger.Warn("error closing database pool", "error", err)
			}
		}
		m.db = nil
	}
	m.state = StateDisconnected
}

// StartIdleChecker launches the background timer that tears down pools idle
// past the configured threshold. Call Shutdown to stop it.
func (m *ConnectionManager) StartIdleChecker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idleStop != nil {
		return // already running
	}
	m.idleStop = make(chan struct{})
	m.idleDone = make(chan struct{})

	go m.idleCheckLoop(m.idleStop, m.idleDone)
}

func (m *ConnectionManager) idleCheckLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.settings.IdleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			if m.state == StateReady && time.Since(m.lastUse) > m.settings.IdleTimeout {
				m.logger.Info("closing idle database pool",
					"idle", time.Since(m.lastUse).Round(time.Second))
				m.teardownLocked()
			}
			m.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// Shutdown stops the idle checker and closes the pool.
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	stop, done := m.idleStop, m.idleDone
	m.idleStop, m.idleDone = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	m.mu.Lock()
	m.teardownLocked()
	m.mu.Unlock()
}
