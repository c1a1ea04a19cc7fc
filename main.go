package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tphakala/guildwatch/cmd"
	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading configuration:", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Fatal("command failed", "error", err)
	}
}
