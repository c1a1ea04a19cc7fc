package datastore

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/errors"
)

// MySQLStore implements the datastore Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL connection manager and migrates the schema.
func (store *MySQLStore) Open() error {
	mysqlConf := &store.Settings.Output.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlConf.Username, mysqlConf.Password,
		mysqlConf.Host, mysqlConf.Port, mysqlConf.Database)

	open := func() (*gorm.DB, error) {
		db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger()})
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w", err)
		}
		return db, nil
	}

	store.manager = NewConnectionManager(open, store.Settings.Connection, store.logger, store.metrics)

	db, err := store.manager.Acquire(context.Background())
	if err != nil {
		return err
	}
	defer store.manager.Release()

	// connection info without credentials
	connInfo := fmt.Sprintf("%s:%s/%s", mysqlConf.Host, mysqlConf.Port, mysqlConf.Database)
	if err := performAutoMigration(db, store.Settings.Debug, "MySQL", connInfo); err != nil {
		return errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	store.manager.StartIdleChecker()
	return nil
}

// Close shuts down the connection manager and the underlying pool.
func (store *MySQLStore) Close() error {
	if store.manager == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	store.manager.Shutdown()
	if store.Settings.Debug {
		store.logger.Debug("MySQL database connection closed")
	}
	return nil
}
