package tracker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingTracker records Reset invocations.
type countingTracker struct {
	resets atomic.Int32
}

func (c *countingTracker) ProcessSnapshot(context.Context, []string) error { return nil }
func (c *countingTracker) Reset(context.Context) error {
	c.resets.Add(1)
	return nil
}

func TestMidnightSchedulerFiresAtBoundary(t *testing.T) {
	// pin the clock a hair before midnight so the timer fires quickly
	clock, setNow := manualClock(t, time.Time{})
	nearMidnight := time.Date(2024, 7, 4, 23, 59, 59, int(990*time.Millisecond), clock.Location())
	setNow(nearMidnight)

	target := &countingTracker{}
	s := NewMidnightScheduler(clock, target)
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return target.resets.Load() >= 1
	}, time.Second, 5*time.Millisecond, "reset should fire at the boundary")
}

func TestMidnightSchedulerStopBeforeBoundary(t *testing.T) {
	clock, setNow := manualClock(t, time.Time{})
	setNow(time.Date(2024, 7, 4, 12, 0, 0, 0, clock.Location()))

	target := &countingTracker{}
	s := NewMidnightScheduler(clock, target)
	s.Start(context.Background())
	s.Stop()

	assert.Zero(t, target.resets.Load())
}

func TestMidnightSchedulerStartIsIdempotent(t *testing.T) {
	clock, setNow := manualClock(t, time.Time{})
	setNow(time.Date(2024, 7, 4, 12, 0, 0, 0, clock.Location()))

	s := NewMidnightScheduler(clock, &countingTracker{})
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()

	// Stop after Stop is a no-op as well
	s.Stop()
}

func TestMidnightSchedulerStopsOnContextCancel(t *testing.T) {
	clock, setNow := manualClock(t, time.Time{})
	setNow(time.Date(2024, 7, 4, 12, 0, 0, 0, clock.Location()))

	ctx, cancel := context.WithCancel(context.Background())
	s := NewMidnightScheduler(clock, &countingTracker{})
	s.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		done := s.done
		s.mu.Unlock()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "run loop should exit on context cancel")

	s.Stop()
}
