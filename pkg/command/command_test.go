package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kubisat/flight.go/pkg/clock"
	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/gps"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/hal/sim"
	"github.com/kubisat/flight.go/pkg/protocol"
	"github.com/kubisat/flight.go/pkg/state"
	"github.com/kubisat/flight.go/pkg/telemetry"
)

type fakeBridge struct {
	timeout time.Duration
	reason  gps.ExitReason
	err     error
}

func (b *fakeBridge) Run(_ context.Context, timeout time.Duration) (gps.ExitReason, error) {
	b.timeout = timeout
	return b.reason, b.err
}

type wakeCounter struct {
	wakes int
}

func (w *wakeCounter) TriggerNext() {
	w.wakes++
}

type testEnv struct {
	*Env
	rtc      *sim.RTC
	power    *sim.Power
	sensors  *sim.Sensors
	storage  *sim.Storage
	bridge   *fakeBridge
	loop     *wakeCounter
	registry *Registry
}

func newTestEnv() *testEnv {
	e := &testEnv{
		rtc:     sim.NewFixedRTC(1700000000),
		power:   sim.NewPower(),
		sensors: sim.NewSensors(),
		storage: sim.NewStorage(),
		bridge:  &fakeBridge{reason: gps.UserExit},
		loop:    &wakeCounter{},
	}
	st := state.New()
	clk := clock.New(e.rtc)
	gpsData := &gps.Data{}
	events := event.NewManager(event.DefaultConfig(), clk.Local(), e.storage, st)
	e.Env = &Env{
		Build:    17,
		State:    st,
		Clock:    clk,
		Events:   events,
		GPS:      gpsData,
		Bridge:   e.bridge,
		Power:    e.power,
		Sensors:  e.sensors,
		Storage:  e.storage,
		GPSPower: &sim.GPIO{},
		Loop:     e.loop,
	}
	e.Telemetry = telemetry.NewManager(telemetry.DefaultConfig(), 17, telemetry.Sources{
		Clock:   clk.Local(),
		Power:   e.power,
		Sensors: e.sensors,
		GPS:     gpsData,
	}, e.storage, st)
	e.registry = New(e.Env)
	return e
}

func (e *testEnv) do(group, command uint8, param string, op protocol.Operation) []protocol.Frame {
	return e.registry.Dispatch(context.Background(), group, command, param, op)
}

func single(t *testing.T, frames []protocol.Frame) protocol.Frame {
	require.Len(t, frames, 1)
	return frames[0]
}

func requireErr(t *testing.T, frames []protocol.Frame, code protocol.ErrorCode) {
	f := single(t, frames)
	require.Equal(t, protocol.Err, f.Operation)
	require.Equal(t, string(code), f.Value)
}

func TestKey(t *testing.T) {
	k := MakeKey(7, 2)
	require.EqualValues(t, 0x0702, k)
	require.EqualValues(t, 7, k.Group())
	require.EqualValues(t, 2, k.Command())
	require.Equal(t, "7.2", k.String())
}

func TestDuplicateEntryPanics(t *testing.T) {
	h := func(context.Context, Request) []protocol.Frame { return nil }
	require.Panics(t, func() {
		NewRegistry(Entry{1, 1, h}, Entry{1, 1, h})
	})
}

func TestDispatchUnknown(t *testing.T) {
	e := newTestEnv()
	for _, key := range []Key{MakeKey(0, 0), MakeKey(1, 2), MakeKey(9, 9), MakeKey(255, 255)} {
		f := single(t, e.do(key.Group(), key.Command(), "", protocol.Get))
		require.Equal(t, protocol.ErrFrame(0, 0, "INVALID COMMAND"), f)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRegistry(Entry{1, 1, func(context.Context, Request) []protocol.Frame {
		panic("boom")
	}})
	f := single(t, r.Dispatch(context.Background(), 1, 1, "", protocol.Get))
	require.Equal(t, protocol.ErrFrame(1, 1, "boom"), f)
}

func TestBuildVersion(t *testing.T) {
	e := newTestEnv()
	f := single(t, e.do(1, 1, "", protocol.Get))
	require.Equal(t, protocol.Val, f.Operation)
	require.EqualValues(t, 1, f.Group)
	require.EqualValues(t, 1, f.Command)
	require.Equal(t, "17", f.Value)

	requireErr(t, e.do(1, 1, "x", protocol.Get), protocol.ParamUnnecessary)
	requireErr(t, e.do(1, 1, "1", protocol.Set), protocol.InvalidOperation)
}

func TestListCommands(t *testing.T) {
	e := newTestEnv()
	frames := e.do(1, 0, "", protocol.Get)
	require.True(t, len(frames) >= 2)
	var all []string
	for _, f := range frames[:len(frames)-1] {
		require.Equal(t, protocol.Seq, f.Operation)
		require.True(t, len(f.Value) <= protocol.MaxChunk)
		all = append(all, strings.Split(f.Value, "-")...)
	}
	require.Equal(t, protocol.SeqDone(1, 0), frames[len(frames)-1])
	require.Len(t, all, len(e.registry.Keys()))
	require.Equal(t, "1.0", all[0])
	require.Contains(t, all, "7.2")
	require.Equal(t, "8.3", all[len(all)-1])
}

func TestVerbosity(t *testing.T) {
	e := newTestEnv()
	testCases := []struct {
		param string
		code  protocol.ErrorCode
	}{
		{param: "0"},
		{param: "4"},
		{param: "5", code: protocol.ParamInvalid},
		{param: "-1", code: protocol.ParamInvalid},
		{param: "abc", code: protocol.InvalidFormat},
		{param: "", code: protocol.ParamRequired},
	}
	for _, tc := range testCases {
		t.Run(tc.param, func(t *testing.T) {
			frames := e.do(1, 8, tc.param, protocol.Set)
			if tc.code != "" {
				requireErr(t, frames, tc.code)
				return
			}
			require.Equal(t, protocol.ResFrame(1, 8, tc.param), single(t, frames))
			require.Equal(t, tc.param, single(t, e.do(1, 8, "", protocol.Get)).Value)
		})
	}
}

func TestBootloader(t *testing.T) {
	e := newTestEnv()
	requireErr(t, e.do(1, 9, "USB", protocol.Get), protocol.InvalidOperation)
	requireErr(t, e.do(1, 9, "", protocol.Set), protocol.ParamRequired)
	requireErr(t, e.do(1, 9, "UART", protocol.Set), protocol.ParamInvalid)
	requireErr(t, e.do(1, 9, "USB", protocol.Set), protocol.NotAllowed)
	require.False(t, e.State.BootloaderResetPending())
	require.Zero(t, e.loop.wakes)

	e.State.SetMode(state.GroundPowered)
	f := single(t, e.do(1, 9, "USB", protocol.Set))
	require.Equal(t, protocol.Res, f.Operation)
	require.True(t, e.State.BootloaderResetPending())
	require.Equal(t, 1, e.loop.wakes)
}

func TestPower(t *testing.T) {
	e := newTestEnv()
	e.power.SetCurrent(hal.USB, 100)
	testCases := []struct {
		cmd   uint8
		value string
		unit  string
	}{
		{cmd: 0, value: "MAN 0x5449 - DIE 0x2260"},
		{cmd: 2, value: "3.900", unit: "V"},
		{cmd: 3, value: "5.020", unit: "V"},
		{cmd: 4, value: "100.0", unit: "mA"},
		{cmd: 5, value: "85.0", unit: "mA"},
		{cmd: 6, value: "185.0", unit: "mA"},
		{cmd: 7, value: "120.0", unit: "mA"},
	}
	for _, tc := range testCases {
		f := single(t, e.do(2, tc.cmd, "", protocol.Get))
		require.Equal(t, protocol.Val, f.Operation)
		require.Equal(t, tc.value, f.Value)
		require.Equal(t, tc.unit, f.Unit)
	}
	e.power.Fail = true
	for _, tc := range testCases {
		requireErr(t, e.do(2, tc.cmd, "", protocol.Get), protocol.InternalFailToRead)
	}
	requireErr(t, e.do(2, 2, "1", protocol.Get), protocol.ParamUnnecessary)
}

func TestClock(t *testing.T) {
	e := newTestEnv()
	require.Equal(t, "1700000000", single(t, e.do(3, 0, "", protocol.Get)).Value)

	requireErr(t, e.do(3, 0, "later", protocol.Set), protocol.InvalidFormat)
	requireErr(t, e.do(3, 0, "1000", protocol.Set), protocol.InvalidValue)
	requireErr(t, e.do(3, 0, "4102444800", protocol.Set), protocol.InvalidValue)
	require.Zero(t, e.Events.Count())

	require.Equal(t, protocol.ResFrame(3, 0, "1710000000"), single(t, e.do(3, 0, "1710000000", protocol.Set)))
	require.Equal(t, "1710000000", single(t, e.do(3, 0, "", protocol.Get)).Value)
	last := e.Events.Last(1)[0]
	require.Equal(t, event.Clock, last.Group)
	require.Equal(t, event.ClockChanged, last.Event)

	e.rtc.Fail = true
	requireErr(t, e.do(3, 0, "1720000000", protocol.Set), protocol.FailToSet)
	requireErr(t, e.do(3, 0, "", protocol.Get), protocol.InternalFailToRead)
}

func TestTimezoneAndSync(t *testing.T) {
	e := newTestEnv()
	require.Equal(t, "0", single(t, e.do(3, 1, "", protocol.Get)).Value)
	require.Equal(t, protocol.ResFrame(3, 1, "-120"), single(t, e.do(3, 1, "-120", protocol.Set)))
	require.Equal(t, "1699992800", single(t, e.do(3, 0, "", protocol.Get)).Value)
	requireErr(t, e.do(3, 1, "721", protocol.Set), protocol.InvalidValue)
	requireErr(t, e.do(3, 1, "x", protocol.Set), protocol.InvalidFormat)

	require.Equal(t, "1440", single(t, e.do(3, 2, "", protocol.Get)).Value)
	require.Equal(t, protocol.ResFrame(3, 2, "60"), single(t, e.do(3, 2, "60", protocol.Set)))
	requireErr(t, e.do(3, 2, "0", protocol.Set), protocol.InvalidValue)
	requireErr(t, e.do(3, 2, "-5", protocol.Set), protocol.InvalidFormat)

	require.Equal(t, "none", single(t, e.do(3, 3, "", protocol.Get)).Value)
	require.NoError(t, e.Clock.SyncFromGPS(1700000500))
	require.Equal(t, "1700000500", single(t, e.do(3, 3, "", protocol.Get)).Value)
}

func TestSensors(t *testing.T) {
	e := newTestEnv()
	f := single(t, e.do(4, 0, "environment-temperature", protocol.Get))
	require.Equal(t, "21.50", f.Value)
	require.Equal(t, "C", f.Unit)
	require.Equal(t, "humidity:40.00,pressure:1013.20,temperature:21.50",
		single(t, e.do(4, 0, "environment", protocol.Get)).Value)
	requireErr(t, e.do(4, 0, "", protocol.Get), protocol.ParamRequired)
	requireErr(t, e.do(4, 0, "radar", protocol.Get), protocol.ParamInvalid)
	requireErr(t, e.do(4, 0, "environment-wind", protocol.Get), protocol.ParamInvalid)

	require.Equal(t, protocol.ResFrame(4, 1, "CONFIGURED"),
		single(t, e.do(4, 1, "light:gain=2,mode=continuous", protocol.Set)))
	require.Equal(t, map[string]string{"gain": "2", "mode": "continuous"}, e.sensors.Config(hal.Light))
	requireErr(t, e.do(4, 1, "light", protocol.Set), protocol.InvalidFormat)
	requireErr(t, e.do(4, 1, "light:gain", protocol.Set), protocol.InvalidFormat)
	requireErr(t, e.do(4, 1, "radar:gain=1", protocol.Set), protocol.FailToSet)

	require.Equal(t, "environment,light", single(t, e.do(4, 2, "", protocol.Get)).Value)
}

func TestLastEvents(t *testing.T) {
	e := newTestEnv()
	for i := 0; i < 25; i++ {
		e.Events.Log(event.Comms, event.MsgReceived)
	}
	frames := e.do(5, 1, "25", protocol.Get)
	require.Len(t, frames, 4)
	for _, f := range frames[:3] {
		require.Equal(t, protocol.Seq, f.Operation)
	}
	require.Len(t, strings.Split(frames[0].Value, "-"), 10)
	require.Len(t, strings.Split(frames[2].Value, "-"), 5)
	require.Equal(t, "00186553F1000203", strings.Split(frames[0].Value, "-")[0])
	require.Equal(t, protocol.SeqDone(5, 1), frames[3])

	frames = e.do(5, 1, "", protocol.Get)
	require.Len(t, frames, 2)

	requireErr(t, e.do(5, 1, "0", protocol.Get), protocol.InvalidValue)
	requireErr(t, e.do(5, 1, "101", protocol.Get), protocol.InvalidValue)
	requireErr(t, e.do(5, 1, "ten", protocol.Get), protocol.InvalidFormat)
	requireErr(t, e.do(5, 1, "", protocol.Set), protocol.InvalidOperation)

	require.Equal(t, "25", single(t, e.do(5, 2, "", protocol.Get)).Value)
}

func TestStorage(t *testing.T) {
	e := newTestEnv()
	require.Equal(t, "0", single(t, e.do(6, 4, "", protocol.Get)).Value)
	requireErr(t, e.do(6, 0, "", protocol.Get), protocol.NotAllowed)
	requireErr(t, e.do(6, 4, "1", protocol.Set), protocol.NotAllowed)

	e.State.SetMode(state.GroundPowered)
	requireErr(t, e.do(6, 4, "2", protocol.Set), protocol.ParamInvalid)
	require.Equal(t, protocol.ResFrame(6, 4, "1"), single(t, e.do(6, 4, "1", protocol.Set)))
	require.True(t, e.State.SDCardMounted())

	e.storage.Append("/b.csv", []byte("1234"))
	e.storage.Append("/a.csv", []byte("1"))
	frames := e.do(6, 0, "", protocol.Get)
	require.Equal(t, []protocol.Frame{
		protocol.SeqFrame(6, 0, "a.csv:1"),
		protocol.SeqFrame(6, 0, "b.csv:4"),
		protocol.SeqDone(6, 0),
	}, frames)

	require.Equal(t, protocol.ResFrame(6, 4, "0"), single(t, e.do(6, 4, "0", protocol.Set)))
	require.False(t, e.State.SDCardMounted())
}

func TestGPSPower(t *testing.T) {
	e := newTestEnv()
	require.Equal(t, "0", single(t, e.do(7, 1, "", protocol.Get)).Value)
	requireErr(t, e.do(7, 1, "1", protocol.Set), protocol.NotAllowed)
	require.Equal(t, "0", single(t, e.do(7, 1, "", protocol.Get)).Value)

	e.State.SetMode(state.GroundPowered)
	require.Equal(t, protocol.ResFrame(7, 1, "1"), single(t, e.do(7, 1, "1", protocol.Set)))
	require.Equal(t, "1", single(t, e.do(7, 1, "", protocol.Get)).Value)
	require.Equal(t, event.GPSPowerOn, e.Events.Last(1)[0].Event)
	requireErr(t, e.do(7, 1, "on", protocol.Set), protocol.ParamInvalid)
	require.Equal(t, protocol.ResFrame(7, 1, "0"), single(t, e.do(7, 1, "0", protocol.Set)))
	require.Equal(t, event.GPSPowerOff, e.Events.Last(1)[0].Event)
}

func TestPassThrough(t *testing.T) {
	e := newTestEnv()
	requireErr(t, e.do(7, 2, "", protocol.Get), protocol.InvalidOperation)
	requireErr(t, e.do(7, 2, "abc", protocol.Set), protocol.InvalidTimeoutFormat)
	requireErr(t, e.do(7, 2, "601", protocol.Set), protocol.InvalidValue)
	requireErr(t, e.do(7, 2, "", protocol.Set), protocol.NotAllowed)

	e.State.SetMode(state.GroundPowered)
	f := single(t, e.do(7, 2, "", protocol.Set))
	require.Equal(t, protocol.ResFrame(7, 2, "GPS UART BRIDGE EXIT: USER_EXIT"), f)
	require.Equal(t, gps.DefaultBridgeTimeout, e.bridge.timeout)

	e.bridge.reason = gps.Timeout
	f = single(t, e.do(7, 2, "30", protocol.Set))
	require.Equal(t, "GPS UART BRIDGE EXIT: TIMEOUT", f.Value)
	require.Equal(t, 30*time.Second, e.bridge.timeout)

	e.bridge.err = gps.ErrBridgeActive
	requireErr(t, e.do(7, 2, "", protocol.Set), protocol.NotAllowed)
	e.bridge.err = errors.New("uart gone")
	requireErr(t, e.do(7, 2, "", protocol.Set), protocol.UnknownError)
}

func TestNMEAData(t *testing.T) {
	e := newTestEnv()
	requireErr(t, e.do(7, 3, "", protocol.Get), protocol.NoData)
	requireErr(t, e.do(7, 4, "", protocol.Get), protocol.NoData)
	e.GPS.UpdateRMC([]string{"$GPRMC", "123519", "A"})
	e.GPS.UpdateGGA([]string{"$GPGGA", "123519"})
	require.Equal(t, "$GPRMC,123519,A", single(t, e.do(7, 3, "", protocol.Get)).Value)
	require.Equal(t, "$GPGGA,123519", single(t, e.do(7, 4, "", protocol.Get)).Value)
}

func TestTelemetry(t *testing.T) {
	e := newTestEnv()
	requireErr(t, e.do(8, 2, "", protocol.Get), protocol.NoData)
	requireErr(t, e.do(8, 3, "", protocol.Get), protocol.NoData)
	e.Telemetry.Collect()
	f := single(t, e.do(8, 2, "", protocol.Get))
	require.Equal(t, protocol.Val, f.Operation)
	require.True(t, strings.HasPrefix(f.Value, "1700000000,17,3.900,"))
	require.Equal(t, "1700000000,21.500,1013.200,40.000,320.000", single(t, e.do(8, 3, "", protocol.Get)).Value)

	require.Equal(t, "2000", single(t, e.do(8, 0, "", protocol.Get)).Value)
	require.Equal(t, protocol.ResFrame(8, 0, "500"), single(t, e.do(8, 0, "500", protocol.Set)))
	requireErr(t, e.do(8, 0, "50", protocol.Set), protocol.InvalidValue)
	requireErr(t, e.do(8, 0, "fast", protocol.Set), protocol.InvalidFormat)
	require.Equal(t, 1, e.loop.wakes)

	require.Equal(t, "10", single(t, e.do(8, 1, "", protocol.Get)).Value)
	require.Equal(t, protocol.ResFrame(8, 1, "5"), single(t, e.do(8, 1, "5", protocol.Set)))
	requireErr(t, e.do(8, 1, "21", protocol.Set), protocol.InvalidValue)
	requireErr(t, e.do(8, 1, "0", protocol.Set), protocol.InvalidValue)
	require.Equal(t, 2, e.loop.wakes)
}
