package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/guildwatch/internal/conf"
)

func testSchedule(t *testing.T) *Schedule {
	t.Helper()
	s, err := New([]conf.WindowConfig{
		{ID: "TUE", Day: "Tuesday", StartHour: 6, StartMinute: 35, DurationMinutes: 30},
		{ID: "WED", Day: "Wednesday", StartHour: 21, StartMinute: 0, DurationMinutes: 30},
		{ID: "THU", Day: "Thursday", StartHour: 2, StartMinute: 0, DurationMinutes: 180},
	})
	require.NoError(t, err)
	return s
}

// at builds a local instant on the given 2024 date. July 2024: the 2nd is a
// Tuesday, the 3rd a Wednesday, the 4th a Thursday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 7, day, hour, minute, 0, 0, time.UTC)
}

func TestNewRejectsBadWeekday(t *testing.T) {
	_, err := New([]conf.WindowConfig{{ID: "X", Day: "Funday", StartHour: 1, DurationMinutes: 10}})
	require.Error(t, err)
}

func TestActiveWindowMatches(t *testing.T) {
	s := testSchedule(t)

	w, active := s.ActiveWindow(at(2, 6, 35))
	require.True(t, active, "window start is inclusive")
	assert.Equal(t, "TUE", w.ID)

	w, active = s.ActiveWindow(at(2, 7, 4))
	require.True(t, active, "last minute of the window")
	assert.Equal(t, "TUE", w.ID)

	_, active = s.ActiveWindow(at(2, 7, 5))
	assert.False(t, active, "window end is exclusive")

	_, active = s.ActiveWindow(at(2, 6, 34))
	assert.False(t, active, "one minute before the window")
}

func TestActiveWindowWrongDay(t *testing.T) {
	s := testSchedule(t)

	// Wednesday 6:35 matches no window even though Tuesday 6:35 does
	_, active := s.ActiveWindow(at(3, 6, 35))
	assert.False(t, active)

	w, active := s.ActiveWindow(at(3, 21, 15))
	require.True(t, active)
	assert.Equal(t, "WED", w.ID)
}

func TestTableOrderTieBreak(t *testing.T) {
	s, err := New([]conf.WindowConfig{
		{ID: "FIRST", Day: "Thursday", StartHour: 2, StartMinute: 0, DurationMinutes: 60},
		{ID: "SECOND", Day: "Thursday", StartHour: 2, StartMinute: 30, DurationMinutes: 60},
	})
	require.NoError(t, err)

	w, active := s.ActiveWindow(at(4, 2, 45))
	require.True(t, active)
	assert.Equal(t, "FIRST", w.ID, "first table entry wins on overlap")
}

func TestWindowStart(t *testing.T) {
	s := testSchedule(t)

	w, active := s.ActiveWindow(at(4, 3, 0))
	require.True(t, active)
	assert.Equal(t, "THU", w.ID)

	start := s.WindowStart(w, at(4, 3, 0))
	assert.Equal(t, at(4, 2, 0), start)
}

func TestIsActive(t *testing.T) {
	s := testSchedule(t)
	assert.True(t, s.IsActive(at(4, 2, 0)))
	assert.False(t, s.IsActive(at(4, 5, 0)), "exactly at start+duration")
	assert.True(t, s.IsActive(at(4, 4, 59)))
}

func TestZeroScheduleMatchesNothing(t *testing.T) {
	var s Schedule
	assert.False(t, s.IsActive(at(4, 2, 0)))
}
