// Package dayclock normalizes wall-clock instants to the deployment's
// canonical time zone and computes the day boundaries used for record
// partitioning and the midnight reset.
package dayclock

import (
	"sync"
	"time"

	"github.com/tphakala/guildwatch/internal/errors"
)

// cacheEntry holds the cached start-of-day instant for a given date
type cacheEntry struct {
	dayStart time.Time
	date     time.Time
}

// Clock converts instants to the canonical zone and answers day-boundary
// questions. Safe for concurrent use.
type Clock struct {
	location *time.Location
	cache    map[string]cacheEntry // start-of-day cache keyed by date
	lock     sync.RWMutex          // lock for cache access
	nowFunc  func() time.Time      // overridable for tests
}

// New creates a Clock for the given IANA zone name.
func New(timeZone string) (*Clock, error) {
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("dayclock").
			Category(errors.CategoryConfiguration).
			Context("timezone", timeZone).
			Build()
	}
	return &Clock{
		location: location,
		cache:    make(map[string]cacheEntry),
		nowFunc:  time.Now,
	}, nil
}

// NewFixed creates a Clock whose Now() is pinned to the given instant.
// Intended for tests.
func NewFixed(timeZone string, now time.Time) (*Clock, error) {
	c, err := New(timeZone)
	if err != nil {
		return nil, err
	}
	c.nowFunc = func() time.Time { return now }
	return c, nil
}

// NewManual creates a Clock whose current instant is advanced explicitly via
// the returned setter. Intended for tests.
func NewManual(timeZone string, start time.Time) (*Clock, func(time.Time), error) {
	c, err := New(timeZone)
	if err != nil {
		return nil, nil, err
	}
	var mu sync.Mutex
	now := start
	c.nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	set := func(t time.Time) {
		mu.Lock()
		now = t
		mu.Unlock()
	}
	return c, set, nil
}

// Location returns the canonical time zone.
func (c *Clock) Location() *time.Location {
	return c.location
}

// Now returns the current instant in the canonical zone.
func (c *Clock) Now() time.Time {
	return c.nowFunc().In(c.location)
}

// In normalizes an arbitrary instant to the canonical zone.
func (c *Clock) In(t time.Time) time.Time {
	return t.In(c.location)
}

// DayStart returns midnight of t's day in the canonical zone, using the
// cache when the date has been computed before.
func (c *Clock) DayStart(t time.Time) time.Time {
	local := c.In(t)
	dateKey := local.Format("2006-01-02")

	c.lock.RLock()
	entry, exists := c.cache[dateKey]
	c.lock.RUnlock()
	if exists {
		return entry.dayStart
	}

	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)

	c.lock.Lock()
	c.cache[dateKey] = cacheEntry{dayStart: dayStart, date: local}
	c.lock.Unlock()

	return dayStart
}

// NextMidnight returns the first instant of the day following t in the
// canonical zone. Computed by date arithmetic so DST transitions do not
// shift the boundary.
func (c *Clock) NextMidnight(t time.Time) time.Time {
	local := c.In(t)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, c.location)
}

// DayBucket returns the storage partition key for t: the start of t's day
// as Unix milliseconds.
func (c *Clock) DayBucket(t time.Time) int64 {
	return c.DayStart(t).UnixMilli()
}

// Format renders t for operator-facing log output.
func (c *Clock) Format(t time.Time) string {
	return c.In(t).Format("01/02/2006, 03:04:05 PM MST")
}
