// model.go: this code defines the data model for the tracking engine
package datastore

// Attendance status values. EXCUSED is reserved for manual adjustment by
// operators; the engine itself only writes PRESENT and ABSENT.
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
	StatusExcused = "EXCUSED"
)

// Subject is a tracked individual, keyed by name. Subjects are upserted on
// first observation and never deleted by the engine; dependent rows are
// removed only by the store's cascade rules.
type Subject struct {
	Name         string `gorm:"primaryKey;size:255"`
	ActiveRaider bool
}

// SessionBlob is opaque resume data persisted on behalf of the upstream
// source client. The engine stores and retrieves it without interpreting
// the contents.
type SessionBlob struct {
	ID        uint   `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	CreatedAt int64  `gorm:"autoCreateTime:milli;index:idx_session_blobs_created_at"` // Unix milliseconds
}

// DailyActivity is one closed presence session. DayBucket is the canonical
// start-of-day instant (Unix milliseconds) in effect when the session was
// recorded. The composite primary key makes duplicate append attempts
// detectable.
type DailyActivity struct {
	DayBucket    int64   `gorm:"primaryKey;autoIncrement:false;index:idx_daily_activity_day"`
	Subject      string  `gorm:"primaryKey;size:255;index:idx_daily_activity_subject"`
	SessionStart int64   `gorm:"primaryKey;autoIncrement:false"` // Unix milliseconds
	SessionEnd   int64   `gorm:"not null"`                       // Unix milliseconds
	Minutes      int     `gorm:"not null"`
	SubjectRow   Subject `gorm:"foreignKey:Subject;references:Name;constraint:OnDelete:CASCADE"`
}

// AttendanceRecord is one subject's accumulated window minutes for one day.
// Minutes accumulates in the caller across sessions; the storage layer
// overwrites on conflict.
type AttendanceRecord struct {
	DayBucket  int64   `gorm:"primaryKey;autoIncrement:false;index:idx_attendance_day"`
	Subject    string  `gorm:"primaryKey;size:255;index:idx_attendance_subject"`
	WindowID   string  `gorm:"size:16;not null"`
	Minutes    int     `gorm:"not null"`
	Status     string  `gorm:"size:16;not null"`
	SubjectRow Subject `gorm:"foreignKey:Subject;references:Name;constraint:OnDelete:CASCADE"`
}
