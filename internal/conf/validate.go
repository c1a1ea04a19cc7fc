package conf

import (
	"fmt"
	"time"

	"github.com/tphakala/guildwatch/internal/errors"
)

// validWeekdays maps accepted weekday names to time.Weekday values.
var validWeekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// ParseWeekday converts a configured weekday name to a time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	if day, ok := validWeekdays[name]; ok {
		return day, nil
	}
	return 0, errors.ValidationError(fmt.Sprintf("invalid weekday name: %q", name))
}

// ValidateSettings checks the loaded settings for consistency and returns a
// validation error describing the first problem found.
func ValidateSettings(settings *Settings) error {
	if _, err := time.LoadLocation(settings.Main.TimeZone); err != nil {
		return errors.Wrap(err).
			Category(errors.CategoryValidation).
			Context("timezone", settings.Main.TimeZone).
			Build()
	}

	if settings.Tracker.PollInterval < time.Second {
		return errors.ValidationError("tracker.pollinterval must be at least 1s")
	}
	if settings.Tracker.RetryDelay <= 0 {
		return errors.ValidationError("tracker.retrydelay must be positive")
	}

	switch settings.Tracker.Attendance.Mode {
	case "any":
	case "threshold":
		if settings.Tracker.Attendance.MinimumMinutes <= 0 {
			return errors.ValidationError("tracker.attendance.minimumminutes must be positive in threshold mode")
		}
	default:
		return errors.ValidationError(fmt.Sprintf("invalid attendance mode: %q", settings.Tracker.Attendance.Mode))
	}

	if err := validateSchedule(settings.Schedule); err != nil {
		return err
	}

	if err := validateOutput(&settings.Output); err != nil {
		return err
	}

	if settings.Connection.MaxAttempts <= 0 {
		return errors.ValidationError("connection.maxattempts must be positive")
	}
	if settings.Connection.BaseDelay <= 0 {
		return errors.ValidationError("connection.basedelay must be positive")
	}
	if settings.Connection.IdleTimeout <= 0 || settings.Connection.IdleCheckInterval <= 0 {
		return errors.ValidationError("connection idle settings must be positive")
	}

	if settings.Notify.Enabled && settings.Notify.URL == "" {
		return errors.ValidationError("notify.url is required when notify is enabled")
	}

	return nil
}

const maxScheduleWindows = 10

func validateSchedule(windows []WindowConfig) error {
	if len(windows) > maxScheduleWindows {
		return errors.ValidationError(fmt.Sprintf("schedule supports at most %d windows, got %d", maxScheduleWindows, len(windows)))
	}

	seen := make(map[string]struct{}, len(windows))
	for i := range windows {
		w := &windows[i]
		if w.ID == "" {
			return errors.ValidationError(fmt.Sprintf("schedule window %d has no id", i))
		}
		if _, dup := seen[w.ID]; dup {
			return errors.ValidationError(fmt.Sprintf("duplicate schedule window id: %q", w.ID))
		}
		seen[w.ID] = struct{}{}

		if _, err := ParseWeekday(w.Day); err != nil {
			return err
		}
		if w.StartHour < 0 || w.StartHour > 23 {
			return errors.ValidationError(fmt.Sprintf("window %q start hour out of range: %d", w.ID, w.StartHour))
		}
		if w.StartMinute < 0 || w.StartMinute > 59 {
			return errors.ValidationError(fmt.Sprintf("window %q start minute out of range: %d", w.ID, w.StartMinute))
		}
		if w.DurationMinutes <= 0 {
			return errors.ValidationError(fmt.Sprintf("window %q duration must be positive", w.ID))
		}
		// windows crossing midnight would straddle two day buckets
		startOfDayMinutes := w.StartHour*60 + w.StartMinute
		if startOfDayMinutes+w.DurationMinutes > 24*60 {
			return errors.ValidationError(fmt.Sprintf("window %q crosses midnight", w.ID))
		}
	}
	return nil
}

func validateOutput(output *OutputSettings) error {
	if output.SQLite.Enabled && output.MySQL.Enabled {
		return errors.ValidationError("only one of output.sqlite and output.mysql may be enabled")
	}
	if !output.SQLite.Enabled && !output.MySQL.Enabled {
		return errors.ValidationError("one of output.sqlite or output.mysql must be enabled")
	}
	if output.SQLite.Enabled && output.SQLite.Path == "" {
		return errors.ValidationError("output.sqlite.path is required")
	}
	if output.MySQL.Enabled {
		if output.MySQL.Host == "" || output.MySQL.Database == "" {
			return errors.ValidationError("output.mysql.host and output.mysql.database are required")
		}
	}
	return nil
}
