// Package track implements the long-running tracking command: it polls the
// upstream presence source and drives the session state machine.
package track

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/datastore"
	"github.com/tphakala/guildwatch/internal/dayclock"
	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/logging"
	"github.com/tphakala/guildwatch/internal/notify"
	"github.com/tphakala/guildwatch/internal/schedule"
	"github.com/tphakala/guildwatch/internal/source"
	"github.com/tphakala/guildwatch/internal/telemetry"
	"github.com/tphakala/guildwatch/internal/tracker"
)

// flushTimeout bounds the best-effort session flush during shutdown.
const flushTimeout = 30 * time.Second

// Command creates the track command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track presence and attendance continuously",
		Long:  "Poll the upstream status endpoint, maintain presence sessions, and record daily activity and raid attendance until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the track command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().DurationVar(&settings.Tracker.PollInterval, "pollinterval", viper.GetDuration("tracker.pollinterval"), "Delay between snapshot polls")
	cmd.Flags().StringVar(&settings.Source.URL, "source", viper.GetString("source.url"), "URL of the upstream status endpoint")
	cmd.Flags().BoolVar(&settings.Metrics.Enabled, "telemetry", viper.GetBool("metrics.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Metrics.Listen, "listen", viper.GetString("metrics.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// run wires the components together and drives the poll loop until the
// process is interrupted or the datastore connection is exhausted.
func run(settings *conf.Settings) error {
	logger := logging.ForService("track")

	if settings.Source.URL == "" {
		return errors.Newf("source.url is not configured").
			Component("track").
			Category(errors.CategoryConfiguration).
			Build()
	}

	fileLoggerClose, err := setupFileLogger(settings)
	if err != nil {
		return err
	}
	if fileLoggerClose != nil {
		defer func() {
			if err := fileLoggerClose(); err != nil {
				logger.Error("failed to close file logger", "error", err)
			}
		}()
	}

	clock, err := dayclock.New(settings.Main.TimeZone)
	if err != nil {
		return err
	}

	sched, err := schedule.New(settings.Schedule)
	if err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	var endpoint *telemetry.Endpoint
	if settings.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		metrics, err = telemetry.NewMetrics(registry)
		if err != nil {
			return err
		}
		endpoint, err = telemetry.NewEndpoint(settings.Metrics.Listen)
		if err != nil {
			return err
		}
		endpoint.Start(registry)
		defer endpoint.Shutdown()
	}

	store := datastore.New(settings, metrics)
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	notifier, err := notify.New(settings.Notify)
	if err != nil {
		return err
	}

	opts := []tracker.Option{tracker.WithMetrics(metrics)}
	if hook := notifier.StatusHook(); hook != nil {
		opts = append(opts, tracker.WithStatusHook(hook))
	}
	trk := tracker.New(store, sched, clock, settings.Tracker.Attendance, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	midnight := tracker.NewMidnightScheduler(clock, trk)
	midnight.Start(ctx)
	defer midnight.Stop()

	src := source.NewHTTPSource(settings.Source, store)

	logger.Info("tracking started",
		"instance", settings.Main.Name,
		"timezone", settings.Main.TimeZone,
		"poll_interval", settings.Tracker.PollInterval,
		"windows", len(settings.Schedule))

	err = pollLoop(ctx, settings, src, trk, metrics, logger)

	// best-effort flush so sessions open at shutdown still get recorded
	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if flushErr := trk.Reset(flushCtx); flushErr != nil {
		logger.Error("shutdown flush failed", "error", flushErr)
	}

	return err
}

// pollLoop fetches snapshots sequentially until the context is canceled. A
// fetch failure means "no snapshot this tick" and is retried after the
// configured delay; it is never treated as an empty presence set. Only fatal
// connection exhaustion from the tracker ends the loop early.
func pollLoop(ctx context.Context, settings *conf.Settings, src source.Source, trk tracker.Tracker, metrics *telemetry.Metrics, logger *slog.Logger) error {
	for {
		snap, err := src.Fetch(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			metrics.IncSnapshotFailures()
			logger.Error("snapshot fetch failed", "error", err)
			if !sleep(ctx, settings.Tracker.RetryDelay) {
				return nil
			}
			continue
		}

		if snap.SourceEmpty {
			logger.Debug("source empty", "message", snap.Message)
		}

		if err := trk.ProcessSnapshot(ctx, snap.PresentNames); err != nil {
			if errors.HasCategory(err, errors.CategoryDbConnection) {
				logger.Error("datastore connection exhausted, shutting down", "error", err)
				return err
			}
			logger.Error("snapshot processing failed", "error", err)
		}

		if !sleep(ctx, settings.Tracker.PollInterval) {
			return nil
		}
	}
}

// sleep waits for d or until ctx is canceled; reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// setupFileLogger attaches the optional rotating file logger.
func setupFileLogger(settings *conf.Settings) (func() error, error) {
	if !settings.Main.Log.Enabled {
		return nil, nil
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}

	rotation := logging.FileRotation{
		MaxSizeMB:  settings.Main.Log.MaxSizeMB,
		MaxBackups: settings.Main.Log.MaxBackups,
		MaxAgeDays: settings.Main.Log.MaxAgeDays,
	}
	if rotation.MaxSizeMB <= 0 {
		rotation = logging.DefaultFileRotation()
	}

	fileLogger, closeFunc, err := logging.NewFileLogger(settings.Main.Log.Path, settings.Main.Name, level, rotation)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("track").
			Category(errors.CategoryConfiguration).
			Context("path", settings.Main.Log.Path).
			Build()
	}

	slog.SetDefault(fileLogger)
	return closeFunc, nil
}
