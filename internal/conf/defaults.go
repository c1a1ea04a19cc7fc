package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for all settings so a partial
// config file still yields a runnable configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "guildwatch")
	viper.SetDefault("main.timezone", "America/New_York")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "logs/guildwatch.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("tracker.pollinterval", time.Minute)
	viper.SetDefault("tracker.retrydelay", 5*time.Second)
	viper.SetDefault("tracker.attendance.mode", "threshold")
	viper.SetDefault("tracker.attendance.minimumminutes", 15)

	viper.SetDefault("schedule", []map[string]any{
		{"id": "TUE", "day": "Tuesday", "starthour": 6, "startminute": 35, "durationminutes": 30},
		{"id": "WED", "day": "Wednesday", "starthour": 21, "startminute": 0, "durationminutes": 30},
		{"id": "SAT", "day": "Saturday", "starthour": 21, "startminute": 0, "durationminutes": 30},
	})

	viper.SetDefault("source.url", "")
	viper.SetDefault("source.apikey", "")
	viper.SetDefault("source.timeout", 30*time.Second)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "guildwatch.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "guildwatch")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "guildwatch")

	viper.SetDefault("connection.maxattempts", 5)
	viper.SetDefault("connection.basedelay", 2*time.Second)
	viper.SetDefault("connection.idletimeout", 5*time.Minute)
	viper.SetDefault("connection.idlecheckinterval", time.Minute)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.url", "")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "localhost:9090")
}
