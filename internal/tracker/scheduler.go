// scheduler.go: midnight reset timer owned by the composition root
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/guildwatch/internal/dayclock"
	"github.com/tphakala/guildwatch/internal/logging"
)

// MidnightScheduler triggers the tracker's Reset at each canonical midnight
// boundary. It is constructed and stopped explicitly; there is no
// self-rescheduling hidden state.
type MidnightScheduler struct {
	clock   *dayclock.Clock
	tracker Tracker
	logger  *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewMidnightScheduler creates a scheduler for the given tracker.
func NewMidnightScheduler(clock *dayclock.Clock, tracker Tracker) *MidnightScheduler {
	return &MidnightScheduler{
		clock:   clock,
		tracker: tracker,
		logger:  logging.ForService("midnight-scheduler"),
	}
}

// Start launches the timer loop. Calling Start on a running scheduler is a
// no-op.
func (s *MidnightScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stop, s.done)
}

func (s *MidnightScheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		now := s.clock.Now()
		boundary := s.clock.NextMidnight(now)
		timer := time.NewTimer(boundary.Sub(now))

		select {
		case <-timer.C:
			s.logger.Info("midnight boundary reached, resetting tracker",
				"boundary", s.clock.Format(boundary))
			if err := s.tracker.Reset(ctx); err != nil {
				s.logger.Error("midnight reset failed", "error", err)
			}
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Stop cancels the timer loop and waits for it to exit.
func (s *MidnightScheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
