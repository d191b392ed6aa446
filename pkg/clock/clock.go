// Package clock keeps the satellite time on top of the RTC.
package clock

import (
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/hal"
)

// Limits and defaults.
const (
	// MaxTimezoneOffset is the largest offset from UTC in minutes.
	MaxTimezoneOffset = 720
	// DefaultSyncInterval is the GPS sync interval in minutes.
	DefaultSyncInterval = 1440
	// MaxSyncInterval is one week in minutes.
	MaxSyncInterval = 7 * 1440
)

// ErrOutOfRange indicates a setting outside of its bounds.
var ErrOutOfRange = errors.New("out of range")

// Clock is the local time keeper.
type Clock struct {
	rtc hal.RTC

	lock         sync.Mutex
	tzOffset     int
	syncInterval uint32
	lastSync     uint32
}

// New creates a Clock.
func New(rtc hal.RTC) *Clock {
	return &Clock{rtc: rtc, syncInterval: DefaultSyncInterval}
}

// Now returns the UTC unix time.
func (c *Clock) Now() (uint32, error) {
	return c.rtc.Now()
}

// NowLocal returns the unix time shifted by the timezone offset.
func (c *Clock) NowLocal() (uint32, error) {
	t, err := c.rtc.Now()
	if err != nil {
		return 0, err
	}
	return uint32(int64(t) + int64(c.TimezoneOffset())*60), nil
}

// Source provides unix timestamps.
type Source interface {
	Now() (uint32, error)
}

type localSource struct {
	c *Clock
}

func (s localSource) Now() (uint32, error) {
	return s.c.NowLocal()
}

// Local returns a Source of local time.
func (c *Clock) Local() Source {
	return localSource{c: c}
}

// SetUnix sets the RTC to a UTC unix time.
func (c *Clock) SetUnix(t uint32) error {
	return c.rtc.Set(t)
}

// TimezoneOffset gets the offset in minutes.
func (c *Clock) TimezoneOffset() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.tzOffset
}

// SetTimezoneOffset sets the offset in minutes.
func (c *Clock) SetTimezoneOffset(minutes int) error {
	if minutes < -MaxTimezoneOffset || minutes > MaxTimezoneOffset {
		return ErrOutOfRange
	}
	c.lock.Lock()
	c.tzOffset = minutes
	c.lock.Unlock()
	return nil
}

// SyncInterval gets the GPS sync interval in minutes.
func (c *Clock) SyncInterval() uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.syncInterval
}

// SetSyncInterval sets the GPS sync interval in minutes.
func (c *Clock) SetSyncInterval(minutes uint32) error {
	if minutes == 0 || minutes > MaxSyncInterval {
		return ErrOutOfRange
	}
	c.lock.Lock()
	c.syncInterval = minutes
	c.lock.Unlock()
	return nil
}

// LastSync returns the time of the last GPS sync.
func (c *Clock) LastSync() (uint32, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.lastSync, c.lastSync != 0
}

// IsSyncNeeded tells if a GPS sync is due at now.
func (c *Clock) IsSyncNeeded(now uint32) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.lastSync == 0 || now < c.lastSync || now-c.lastSync >= c.syncInterval*60
}

// SyncFromGPS sets the RTC from a GPS fix.
func (c *Clock) SyncFromGPS(t uint32) error {
	if err := c.rtc.Set(t); err != nil {
		return err
	}
	c.lock.Lock()
	c.lastSync = t
	c.lock.Unlock()
	glog.V(2).Infof("clock synced from GPS: %d", t)
	return nil
}
