package clock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kubisat/flight.go/pkg/hal/sim"
)

func TestLocalTime(t *testing.T) {
	c := New(sim.NewFixedRTC(1700000000))
	now, err := c.NowLocal()
	require.NoError(t, err)
	require.EqualValues(t, 1700000000, now)

	require.NoError(t, c.SetTimezoneOffset(120))
	now, err = c.NowLocal()
	require.NoError(t, err)
	require.EqualValues(t, 1700000000+7200, now)

	require.NoError(t, c.SetTimezoneOffset(-720))
	require.Equal(t, ErrOutOfRange, c.SetTimezoneOffset(721))
	require.Equal(t, ErrOutOfRange, c.SetTimezoneOffset(-721))
	require.Equal(t, -720, c.TimezoneOffset())

	require.NoError(t, c.SetUnix(1800000000))
	utc, err := c.Now()
	require.NoError(t, err)
	require.EqualValues(t, 1800000000, utc)
}

func TestSync(t *testing.T) {
	c := New(sim.NewFixedRTC(1700000000))
	require.EqualValues(t, DefaultSyncInterval, c.SyncInterval())
	_, ok := c.LastSync()
	require.False(t, ok)
	require.True(t, c.IsSyncNeeded(1700000000))

	require.NoError(t, c.SyncFromGPS(1700000100))
	last, ok := c.LastSync()
	require.True(t, ok)
	require.EqualValues(t, 1700000100, last)
	require.False(t, c.IsSyncNeeded(1700000100+60))
	require.True(t, c.IsSyncNeeded(1700000100+DefaultSyncInterval*60))

	require.Equal(t, ErrOutOfRange, c.SetSyncInterval(0))
	require.Equal(t, ErrOutOfRange, c.SetSyncInterval(MaxSyncInterval+1))
	require.NoError(t, c.SetSyncInterval(1))
	require.True(t, c.IsSyncNeeded(1700000100+60))
}

func TestRTCFailure(t *testing.T) {
	rtc := sim.NewFixedRTC(1)
	rtc.Fail = true
	c := New(rtc)
	_, err := c.NowLocal()
	require.Error(t, err)
	require.Error(t, c.SyncFromGPS(2))
	_, ok := c.LastSync()
	require.False(t, ok)
}

func TestLocalSource(t *testing.T) {
	c := New(sim.NewFixedRTC(1000))
	require.NoError(t, c.SetTimezoneOffset(-1))
	now, err := c.Local().Now()
	require.NoError(t, err)
	require.EqualValues(t, 940, now)
}
