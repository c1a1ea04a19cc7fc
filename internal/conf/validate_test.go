package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validSettings returns a settings object that passes validation, for tests
// to break one field at a time.
func validSettings() *Settings {
	return &Settings{
		Main: MainSettings{Name: "test", TimeZone: "America/New_York"},
		Tracker: TrackerSettings{
			PollInterval: time.Minute,
			RetryDelay:   5 * time.Second,
			Attendance:   AttendancePolicy{Mode: "threshold", MinimumMinutes: 15},
		},
		Schedule: []WindowConfig{
			{ID: "WED", Day: "Wednesday", StartHour: 21, StartMinute: 0, DurationMinutes: 30},
		},
		Output: OutputSettings{
			SQLite: SQLiteSettings{Enabled: true, Path: "test.db"},
		},
		Connection: ConnectionSettings{
			MaxAttempts:       5,
			BaseDelay:         2 * time.Second,
			IdleTimeout:       5 * time.Minute,
			IdleCheckInterval: time.Minute,
		},
	}
}

func TestValidateSettingsAccepts(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateTimezone(t *testing.T) {
	s := validSettings()
	s.Main.TimeZone = "Mars/Olympus_Mons"
	assert.Error(t, ValidateSettings(s))
}

func TestValidateAttendanceMode(t *testing.T) {
	s := validSettings()
	s.Tracker.Attendance.Mode = "sometimes"
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Tracker.Attendance.Mode = "any"
	s.Tracker.Attendance.MinimumMinutes = 0
	assert.NoError(t, ValidateSettings(s), "minimum minutes is ignored in any mode")

	s = validSettings()
	s.Tracker.Attendance.Mode = "threshold"
	s.Tracker.Attendance.MinimumMinutes = 0
	assert.Error(t, ValidateSettings(s))
}

func TestValidateScheduleWindows(t *testing.T) {
	s := validSettings()
	s.Schedule[0].Day = "Someday"
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Schedule[0].StartHour = 24
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Schedule[0].DurationMinutes = 0
	assert.Error(t, ValidateSettings(s))

	// 23:30 + 60m straddles midnight
	s = validSettings()
	s.Schedule[0].StartHour = 23
	s.Schedule[0].StartMinute = 30
	s.Schedule[0].DurationMinutes = 60
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Schedule = append(s.Schedule, WindowConfig{ID: "WED", Day: "Wednesday", StartHour: 10, DurationMinutes: 10})
	assert.Error(t, ValidateSettings(s), "duplicate window id")
}

func TestValidateOutputSelection(t *testing.T) {
	s := validSettings()
	s.Output.MySQL.Enabled = true
	assert.Error(t, ValidateSettings(s), "both outputs enabled")

	s = validSettings()
	s.Output.SQLite.Enabled = false
	assert.Error(t, ValidateSettings(s), "no output enabled")

	s = validSettings()
	s.Output.SQLite.Enabled = false
	s.Output.MySQL.Enabled = true
	s.Output.MySQL.Host = "db.local"
	s.Output.MySQL.Database = "guildwatch"
	assert.NoError(t, ValidateSettings(s))
}

func TestValidateNotify(t *testing.T) {
	s := validSettings()
	s.Notify.Enabled = true
	assert.Error(t, ValidateSettings(s), "enabled notify requires a URL")

	s.Notify.URL = "discord://token@id"
	assert.NoError(t, ValidateSettings(s))
}

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("Thursday")
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, day)

	_, err = ParseWeekday("thursday")
	assert.Error(t, err, "weekday names are case sensitive")
}
