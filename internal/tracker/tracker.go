// Package tracker converts discrete presence snapshots into durable session
// and attendance records. It is the engine's core state machine.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/datastore"
	"github.com/tphakala/guildwatch/internal/dayclock"
	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/logging"
	"github.com/tphakala/guildwatch/internal/schedule"
	"github.com/tphakala/guildwatch/internal/telemetry"
)

// StatusObservation is the fire-and-forget summary emitted after each
// processed snapshot.
type StatusObservation struct {
	Timestamp    time.Time
	Count        int
	Names        []string
	WindowActive bool
	WindowID     string
}

// StatusHook receives status observations. Implementations must not block
// the tracking flow and must swallow their own failures.
type StatusHook func(StatusObservation)

// Tracker is the presence state machine contract.
type Tracker interface {
	ProcessSnapshot(ctx context.Context, presentNames []string) error
	Reset(ctx context.Context) error
}

// PresenceTracker implements Tracker. The poll loop drives it sequentially;
// the mutex exists because the midnight scheduler calls Reset concurrently
// with an in-flight ProcessSnapshot.
type PresenceTracker struct {
	store   datastore.Interface
	sched   *schedule.Schedule
	clock   *dayclock.Clock
	policy  conf.AttendancePolicy
	hook    StatusHook
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu            sync.Mutex
	sessions      map[string]time.Time // open sessions keyed by subject
	windowMinutes map[string]int       // accumulated overlap per (subject, window, day)
	processed     map[string]struct{}  // closed-session de-dup keys
}

// Option configures a PresenceTracker.
type Option func(*PresenceTracker)

// WithStatusHook installs the outbound status observer.
func WithStatusHook(hook StatusHook) Option {
	return func(t *PresenceTracker) { t.hook = hook }
}

// WithMetrics installs prometheus collectors.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(t *PresenceTracker) { t.metrics = metrics }
}

// New creates a PresenceTracker.
func New(store datastore.Interface, sched *schedule.Schedule, clock *dayclock.Clock, policy conf.AttendancePolicy, opts ...Option) *PresenceTracker {
	t := &PresenceTracker{
		store:         store,
		sched:         sched,
		clock:         clock,
		policy:        policy,
		logger:        logging.ForService("tracker"),
		sessions:      make(map[string]time.Time),
		windowMinutes: make(map[string]int),
		processed:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OpenSessionCount returns the number of currently open sessions.
func (t *PresenceTracker) OpenSessionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// ProcessSnapshot diffs the present-subject set against the open sessions,
// closing departed sessions and opening new ones. An explicit "source empty"
// tick is the empty slice. Persistence failures are logged and the in-memory
// transition still completes; only fatal connection exhaustion is returned,
// so the driving loop can shut down.
func (t *PresenceTracker) ProcessSnapshot(ctx context.Context, presentNames []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	present := normalizeNames(presentNames)
	window, windowActive := t.sched.ActiveWindow(now)

	if windowActive {
		t.logger.Info("attendance window in progress",
			"window", window.ID,
			"time", t.clock.Format(now))
	}

	var fatal error

	// departures: close sessions for subjects no longer present
	for name, start := range t.sessions {
		if _, stillHere := present[name]; stillHere {
			continue
		}
		minutes := wholeMinutes(now.Sub(start))
		t.logger.Info("subject left", "subject", name, "minutes", minutes)

		if err := t.closeSessionLocked(ctx, name, start, now); err != nil {
			if fatal == nil && errors.HasCategory(err, errors.CategoryDbConnection) {
				fatal = err
			}
		}
		// the session closes in memory regardless of persistence outcome;
		// retrying forever would desynchronize live state from reality
		delete(t.sessions, name)
		t.metrics.IncSessionsClosed()
	}

	// arrivals: open sessions for newly present subjects
	for name := range present {
		if _, open := t.sessions[name]; open {
			continue
		}
		if err := t.store.UpsertSubject(ctx, name, false); err != nil {
			t.logger.Error("failed to upsert subject", "subject", name, "error", err)
			if fatal == nil && errors.HasCategory(err, errors.CategoryDbConnection) {
				fatal = err
			}
		}
		t.sessions[name] = now
		t.metrics.IncSessionsOpened()
		t.logger.Info("session started", "subject", name, "time", t.clock.Format(now))
	}

	t.metrics.SetOpenSessions(len(t.sessions))
	t.metrics.IncSnapshotsProcessed()

	t.emitStatus(now, present, window, windowActive)
	return fatal
}

// Reset closes and persists every still-open session as of now, clears all
// in-memory state, and leaves the tracker ready for the next day. Invoked at
// the canonical midnight boundary and as the best-effort shutdown flush.
func (t *PresenceTracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.logger.Info("flushing open sessions", "count", len(t.sessions), "time", t.clock.Format(now))

	var fatal error
	for name, start := range t.sessions {
		if err := t.closeSessionLocked(ctx, name, start, now); err != nil {
			if fatal == nil && errors.HasCategory(err, errors.CategoryDbConnection) {
				fatal = err
			}
		}
		t.metrics.IncSessionsClosed()
	}

	t.sessions = make(map[string]time.Time)
	t.windowMinutes = make(map[string]int)
	t.processed = make(map[string]struct{})
	t.metrics.SetOpenSessions(0)

	return fatal
}

// closeSessionLocked converts one session into a daily activity record and,
// when a window is active, folds its overlap into the attendance total.
// Duplicate closing events for the same session are discarded.
func (t *PresenceTracker) closeSessionLocked(ctx context.Context, name string, start, now time.Time) error {
	dayBucket := t.clock.DayBucket(now)
	key := processedKey(name, dayBucket, start)
	if _, done := t.processed[key]; done {
		return nil
	}

	rec := &datastore.DailyActivity{
		DayBucket:    dayBucket,
		Subject:      name,
		SessionStart: start.UnixMilli(),
		SessionEnd:   now.UnixMilli(),
		Minutes:      wholeMinutes(now.Sub(start)),
	}

	var firstErr error
	if _, err := t.store.AppendDailyActivity(ctx, rec); err != nil {
		// at-most-once gap: the record is lost unless retried out-of-band
		t.logger.Error("failed to record daily activity",
			"subject", name,
			"session_start", t.clock.Format(start),
			"error", err)
		firstErr = err
	}

	if window, active := t.sched.ActiveWindow(now); active {
		if err := t.accumulateAttendanceLocked(ctx, name, start, now, window); err != nil {
			t.logger.Error("failed to record attendance",
				"subject", name,
				"window", window.ID,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	t.processed[key] = struct{}{}
	return firstErr
}

// accumulateAttendanceLocked adds the window-overlapping portion of the
// closing session to the subject's running total and upserts the attendance
// row with the derived status.
func (t *PresenceTracker) accumulateAttendanceLocked(ctx context.Context, name string, start, now time.Time, window schedule.Window) error {
	windowStart := t.sched.WindowStart(window, now)
	overlapFrom := start
	if windowStart.After(start) {
		overlapFrom = windowStart
	}

	dayBucket := t.clock.DayBucket(now)
	accKey := accumulatorKey(name, window.ID, dayBucket)
	total := t.windowMinutes[accKey] + wholeMinutes(now.Sub(overlapFrom))
	t.windowMinutes[accKey] = total

	rec := &datastore.AttendanceRecord{
		DayBucket: dayBucket,
		Subject:   name,
		WindowID:  window.ID,
		Minutes:   total,
		Status:    t.attendanceStatus(total),
	}
	return t.store.UpsertAttendance(ctx, rec)
}

// attendanceStatus derives the stored status from accumulated window minutes
// according to the configured policy.
func (t *PresenceTracker) attendanceStatus(minutes int) string {
	switch t.policy.Mode {
	case "any":
		// any recorded overlap counts as present
		return datastore.StatusPresent
	default:
		if minutes >= t.policy.MinimumMinutes {
			return datastore.StatusPresent
		}
		return datastore.StatusAbsent
	}
}

// emitStatus fires the outbound status hook. The hook must never abort the
// tracking flow, so panics are contained here.
func (t *PresenceTracker) emitStatus(now time.Time, present map[string]struct{}, window schedule.Window, windowActive bool) {
	if t.hook == nil {
		return
	}

	names := make([]string, 0, len(present))
	for name := range present {
		names = append(names, name)
	}
	sort.Strings(names)

	obs := StatusObservation{
		Timestamp:    now,
		Count:        len(names),
		Names:        names,
		WindowActive: windowActive,
	}
	if windowActive {
		obs.WindowID = window.ID
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("status hook panicked", "panic", r)
		}
	}()
	t.hook(obs)
}

// normalizeNames trims and de-duplicates the snapshot's subject names.
func normalizeNames(names []string) map[string]struct{} {
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		present[trimmed] = struct{}{}
	}
	return present
}

// wholeMinutes rounds a duration down to whole minutes, never negative.
func wholeMinutes(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

func processedKey(name string, dayBucket int64, start time.Time) string {
	return fmt.Sprintf("%s-%d-%d", name, dayBucket, start.UnixMilli())
}

func accumulatorKey(name, windowID string, dayBucket int64) string {
	return fmt.Sprintf("%s-%s-%d", name, windowID, dayBucket)
}
