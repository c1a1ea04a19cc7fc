// Package schedule evaluates instants against a fixed weekly table of
// attendance windows.
package schedule

import (
	"time"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/errors"
)

// Window is one recurring attendance window: a weekday, a start time and a
// duration, all interpreted in the deployment's canonical zone.
type Window struct {
	ID              string
	Day             time.Weekday
	StartHour       int
	StartMinute     int
	DurationMinutes int
}

// startMinuteOfDay returns the window start as minutes since midnight.
func (w Window) startMinuteOfDay() int {
	return w.StartHour*60 + w.StartMinute
}

// Schedule is an immutable weekly window table. Construct with New; the
// zero value matches nothing.
type Schedule struct {
	windows []Window
}

// New builds a Schedule from configuration. The window table is validated by
// conf before it reaches this point; New re-checks the weekday names because
// they arrive as strings.
func New(configs []conf.WindowConfig) (*Schedule, error) {
	windows := make([]Window, 0, len(configs))
	for i := range configs {
		wc := &configs[i]
		day, err := conf.ParseWeekday(wc.Day)
		if err != nil {
			return nil, errors.Wrap(err).
				Component("schedule").
				Category(errors.CategorySchedule).
				Context("window_id", wc.ID).
				Build()
		}
		windows = append(windows, Window{
			ID:              wc.ID,
			Day:             day,
			StartHour:       wc.StartHour,
			StartMinute:     wc.StartMinute,
			DurationMinutes: wc.DurationMinutes,
		})
	}
	return &Schedule{windows: windows}, nil
}

// Windows returns a copy of the window table.
func (s *Schedule) Windows() []Window {
	out := make([]Window, len(s.windows))
	copy(out, s.windows)
	return out
}

// ActiveWindow returns the window containing t, if any. The instant must
// already be normalized to the canonical zone. A window covers
// [start, start+duration), so an instant exactly at the end boundary does
// not match. When windows overlap, the first match in table order wins.
func (s *Schedule) ActiveWindow(t time.Time) (Window, bool) {
	day := t.Weekday()
	minuteOfDay := t.Hour()*60 + t.Minute()

	for _, w := range s.windows {
		if w.Day != day {
			continue
		}
		start := w.startMinuteOfDay()
		if minuteOfDay >= start && minuteOfDay < start+w.DurationMinutes {
			return w, true
		}
	}
	return Window{}, false
}

// IsActive reports whether any window contains t.
func (s *Schedule) IsActive(t time.Time) bool {
	_, active := s.ActiveWindow(t)
	return active
}

// WindowStart returns the concrete start instant of window w on t's day.
// Callers use it to clamp session overlap to the window's opening.
func (s *Schedule) WindowStart(w Window, t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), w.StartHour, w.StartMinute, 0, 0, t.Location())
}
