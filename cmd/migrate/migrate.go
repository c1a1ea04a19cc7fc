// Package migrate implements the one-shot schema migration command.
package migrate

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/datastore"
	"github.com/tphakala/guildwatch/internal/logging"
)

// Command creates the migrate command. Opening the datastore runs the schema
// migration, so the command connects, migrates, and disconnects.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.ForService("migrate")

			store := datastore.New(settings, nil)
			if err := store.Open(); err != nil {
				return err
			}
			logger.Info("schema migration complete")
			return store.Close()
		},
	}
}
