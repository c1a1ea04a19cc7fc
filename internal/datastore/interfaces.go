// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/guildwatch/internal/conf"
	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/logging"
	"github.com/tphakala/guildwatch/internal/telemetry"
)

// Interface abstracts the underlying database implementation and defines the
// persistence gateway operations.
type Interface interface {
	Open() error
	Close() error
	UpsertSubject(ctx context.Context, name string, activeRaider bool) error
	AppendDailyActivity(ctx context.Context, rec *DailyActivity) (bool, error)
	UpsertAttendance(ctx context.Context, rec *AttendanceRecord) error
	SaveSessionBlob(ctx context.Context, data []byte) (uint, error)
	LoadLatestSessionBlob(ctx context.Context) (*SessionBlob, error)
	DailyActivityFor(ctx context.Context, dayBucket int64) ([]DailyActivity, error)
	AttendanceFor(ctx context.Context, dayBucket int64) ([]AttendanceRecord, error)
	SubjectMinutes(ctx context.Context, name string, dayBucket int64) (int, error)
}

// DataStore implements Interface on top of a managed GORM pool.
type DataStore struct {
	manager *ConnectionManager
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New creates a datastore instance for whichever output is enabled in the
// provided settings.
func New(settings *conf.Settings, metrics *telemetry.Metrics) Interface {
	logger := logging.ForService("datastore")
	base := DataStore{logger: logger, metrics: metrics}
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: base,
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: base,
			Settings:  settings,
		}
	default:
		return nil
	}
}

// acquire obtains the shared pool from the connection manager. Callers must
// call ds.manager.Release() when done, on every exit path.
func (ds *DataStore) acquire(ctx context.Context) (*gorm.DB, error) {
	if ds.manager == nil {
		return nil, errors.Newf("datastore is not open").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ds.manager.Acquire(ctx)
}

// UpsertSubject inserts the subject or updates its flag; last write wins.
func (ds *DataStore) UpsertSubject(ctx context.Context, name string, activeRaider bool) error {
	db, err := ds.acquire(ctx)
	if err != nil {
		return err
	}
	defer ds.manager.Release()

	subject := Subject{Name: name, ActiveRaider: activeRaider}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"active_raider"}),
	}).Create(&subject).Error
	if err != nil {
		ds.metrics.IncPersistenceErrors()
		return errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "upsert_subject").
			Context("subject", name).
			Build()
	}
	return nil
}

// AppendDailyActivity stores a closed session as a single transaction. The
// append is idempotent: if a row with the same (day_bucket, subject,
// session_start) key exists the transaction rolls back and the call reports
// inserted=false without error.
func (ds *DataStore) AppendDailyActivity(ctx context.Context, rec *DailyActivity) (bool, error) {
	db, err := ds.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer ds.manager.Release()

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		ds.metrics.IncPersistenceErrors()
		return false, errors.Wrap(tx.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "append_daily_activity").
			Build()
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var count int64
	err = tx.Model(&DailyActivity{}).
		Where("day_bucket = ? AND subject = ? AND session_start = ?",
			rec.DayBucket, rec.Subject, rec.SessionStart).
		Count(&count).Error
	if err != nil {
		tx.Rollback()
		ds.metrics.IncPersistenceErrors()
		return false, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "append_daily_activity").
			Context("subject", rec.Subject).
			Build()
	}

	if count > 0 {
		// duplicate closing event, discard silently
		tx.Rollback()
		ds.logger.Debug("skipping duplicate session",
			"subject", rec.Subject,
			"day_bucket", rec.DayBucket,
			"session_start", rec.SessionStart)
		return false, nil
	}

	if err := tx.Omit("SubjectRow").Create(rec).Error; err != nil {
		tx.Rollback()
		ds.metrics.IncPersistenceErrors()
		return false, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "append_daily_activity").
			Context("subject", rec.Subject).
			Build()
	}

	if err := tx.Commit().Error; err != nil {
		ds.metrics.IncPersistenceErrors()
		return false, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "append_daily_activity").
			Build()
	}
	return true, nil
}

// UpsertAttendance inserts or overwrites the subject's attendance row for
// the day. Accumulation happens in the caller; the store keeps the latest
// computed minutes and status.
func (ds *DataStore) UpsertAttendance(ctx context.Context, rec *AttendanceRecord) error {
	db, err := ds.acquire(ctx)
	if err != nil {
		return err
	}
	defer ds.manager.Release()

	err = db.WithContext(ctx).Omit("SubjectRow").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day_bucket"}, {Name: "subject"}},
		DoUpdates: clause.AssignmentColumns([]string{"window_id", "minutes", "status"}),
	}).Create(rec).Error
	if err != nil {
		ds.metrics.IncPersistenceErrors()
		return errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "upsert_attendance").
			Context("subject", rec.Subject).
			Build()
	}
	return nil
}

// SaveSessionBlob persists opaque resume data and returns its row id.
func (ds *DataStore) SaveSessionBlob(ctx context.Context, data []byte) (uint, error) {
	db, err := ds.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer ds.manager.Release()

	blob := SessionBlob{Data: data, CreatedAt: time.Now().UnixMilli()}
	if err := db.WithContext(ctx).Create(&blob).Error; err != nil {
		ds.metrics.IncPersistenceErrors()
		return 0, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_session_blob").
			Build()
	}
	return blob.ID, nil
}

// LoadLatestSessionBlob returns the most recent blob, or nil when none has
// been stored yet.
func (ds *DataStore) LoadLatestSessionBlob(ctx context.Context) (*SessionBlob, error) {
	db, err := ds.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer ds.manager.Release()

	var blob SessionBlob
	err = db.WithContext(ctx).Order("created_at DESC").First(&blob).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "load_latest_session_blob").
			Build()
	}
	return &blob, nil
}

// DailyActivityFor returns all activity records for a day bucket, oldest
// session first.
func (ds *DataStore) DailyActivityFor(ctx context.Context, dayBucket int64) ([]DailyActivity, error) {
	db, err := ds.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer ds.manager.Release()

	var records []DailyActivity
	err = db.WithContext(ctx).
		Where("day_bucket = ?", dayBucket).
		Order("session_start ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "daily_activity_for").
			Build()
	}
	return records, nil
}

// AttendanceFor returns all attendance records for a day bucket.
func (ds *DataStore) AttendanceFor(ctx context.Context, dayBucket int64) ([]AttendanceRecord, error) {
	db, err := ds.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer ds.manager.Release()

	var records []AttendanceRecord
	err = db.WithContext(ctx).
		Where("day_bucket = ?", dayBucket).
		Order("subject ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "attendance_for").
			Build()
	}
	return records, nil
}

// SubjectMinutes returns the subject's total recorded minutes for a day
// bucket, summed across all closed sessions.
func (ds *DataStore) SubjectMinutes(ctx context.Context, name string, dayBucket int64) (int, error) {
	db, err := ds.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer ds.manager.Release()

	var total int64
	err = db.WithContext(ctx).Model(&DailyActivity{}).
		Where("day_bucket = ? AND subject = ?", dayBucket, name).
		Select("COALESCE(SUM(minutes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, errors.Wrap(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "subject_minutes").
			Context("subject", name).
			Build()
	}
	return int(total), nil
}
