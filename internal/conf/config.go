// Package conf loads and validates the guildwatch configuration. It defines
// the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains process-wide settings.
type MainSettings struct {
	Name     string // instance name, used in logs and notifications
	TimeZone string // canonical IANA time zone for all boundary math
	Log      LogSettings
}

// LogSettings contains settings for the optional file logger.
type LogSettings struct {
	Enabled    bool   // true to write a rotating JSON log file
	Path       string // log file path
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to retain rotated files
}

// AttendancePolicy controls how window minutes map to an attendance status.
// Mode "any" marks a subject PRESENT on any window overlap; mode "threshold"
// requires at least MinimumMinutes of accumulated overlap.
type AttendancePolicy struct {
	Mode           string // "any" or "threshold"
	MinimumMinutes int    // threshold in minutes, used by "threshold" mode
}

// TrackerSettings contains settings for the presence tracker and poll loop.
type TrackerSettings struct {
	PollInterval time.Duration // delay between snapshot polls
	RetryDelay   time.Duration // delay after a failed snapshot fetch
	Attendance   AttendancePolicy
}

// WindowConfig is one recurring attendance window in the weekly schedule.
type WindowConfig struct {
	ID              string // window identifier, e.g. "WED"
	Day             string // weekday name, e.g. "Wednesday"
	StartHour       int
	StartMinute     int
	DurationMinutes int
}

// SourceSettings contains settings for the upstream snapshot source.
type SourceSettings struct {
	URL     string        // status endpoint returning the present-subject list
	APIKey  string        // API key, supports ${VAR} expansion
	Timeout time.Duration // per-request timeout
}

// SQLiteSettings contains settings for the SQLite output.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL output.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string // supports ${VAR} expansion
	Host     string
	Port     string
	Database string
}

// OutputSettings selects and configures the relational store.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// ConnectionSettings controls the datastore connection manager.
type ConnectionSettings struct {
	MaxAttempts       int           // reconnect attempt ceiling
	BaseDelay         time.Duration // backoff unit, attempt n waits n*BaseDelay
	IdleTimeout       time.Duration // tear the pool down after this much disuse
	IdleCheckInterval time.Duration // how often the idle checker runs
}

// NotifySettings configures the fire-and-forget status hook.
type NotifySettings struct {
	Enabled bool
	URL     string // shoutrrr service URL
}

// MetricsSettings configures prometheus metrics exposition.
type MetricsSettings struct {
	Enabled bool
	Listen  string // host:port for the /metrics endpoint
}

// Settings is the root configuration object.
type Settings struct {
	Debug      bool
	Main       MainSettings
	Tracker    TrackerSettings
	Schedule   []WindowConfig
	Source     SourceSettings
	Output     OutputSettings
	Connection ConnectionSettings
	Notify     NotifySettings
	Metrics    MetricsSettings
}

// Load reads the configuration file, applies defaults and environment
// overrides, and returns validated settings.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("GUILDWATCH")
	viper.AutomaticEnv()

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default configuration template to
// the first config path and loads it.
func createDefaultConfig(configPaths []string) error {
	if len(configPaths) == 0 {
		return fmt.Errorf("no config paths available")
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	defaultConfig, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the ordered list of directories searched for
// config.yaml: the working directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "guildwatch"))
	}
	return paths, nil
}

// resolveSecrets expands credential fields that support ${VAR} references.
func resolveSecrets(settings *Settings) error {
	password, err := secrets.ExpandString(settings.Output.MySQL.Password)
	if err != nil {
		return errors.Wrap(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("field", "output.mysql.password").
			Build()
	}
	settings.Output.MySQL.Password = password

	apiKey, err := secrets.ExpandString(settings.Source.APIKey)
	if err != nil {
		return errors.Wrap(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("field", "source.apikey").
			Build()
	}
	settings.Source.APIKey = apiKey
	return nil
}
