package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/errors"
)

// SQLiteStore implements the datastore Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite connection manager and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("path", path).
				Build()
		}
	}

	open := func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger()})
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		return db, nil
	}

	store.manager = NewConnectionManager(open, store.Settings.Connection, store.logger, store.metrics)

	db, err := store.manager.Acquire(context.Background())
	if err != nil {
		return err
	}
	defer store.manager.Release()

	if err := performAutoMigration(db, store.Settings.Debug, "SQLite", path); err != nil {
		return errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	store.manager.StartIdleChecker()
	return nil
}

// Close shuts down the connection manager and the underlying pool.
func (store *SQLiteStore) Close() error {
	if store.manager == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	store.manager.Shutdown()
	return nil
}
