package flight

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kubisat/flight.go/pkg/config"
	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/hal/sim"
	"github.com/kubisat/flight.go/pkg/state"
	"github.com/kubisat/flight.go/pkg/telemetry"
)

const (
	sampleRMC = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	sampleGGA = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
)

type rig struct {
	*System
	debug      *sim.Port
	gpsPort    *sim.Port
	radio      *sim.Radio
	rtc        *sim.RTC
	power      *sim.Power
	storage    *sim.Storage
	gpsPower   *sim.GPIO
	bootloader *sim.Bootloader
	now        time.Time
}

type recordingPublisher struct {
	records []telemetry.TelemetryRecord
}

func (p *recordingPublisher) Publish(tr telemetry.TelemetryRecord, _ telemetry.SensorRecord) error {
	p.records = append(p.records, tr)
	return nil
}

func newRig(t *testing.T, modify func(*config.Config)) *rig {
	cfg := config.Default()
	cfg.BuildNumber = 7
	cfg.LoRa.FrameInterval = 0
	if modify != nil {
		modify(cfg)
	}
	require.NoError(t, cfg.Validate())
	r := &rig{
		debug:      sim.NewPort(115200),
		gpsPort:    sim.NewPort(9600),
		radio:      &sim.Radio{},
		rtc:        sim.NewFixedRTC(1700000000),
		power:      sim.NewPower(),
		storage:    sim.NewStorage(),
		gpsPower:   &sim.GPIO{},
		bootloader: &sim.Bootloader{},
		now:        time.Unix(1700000000, 0),
	}
	s, err := New(cfg, Peripherals{
		DebugUART:  r.debug,
		GPSUART:    r.gpsPort,
		Radio:      r.radio,
		RTC:        r.rtc,
		Power:      r.power,
		Sensors:    sim.NewSensors(),
		Storage:    r.storage,
		GPSPower:   r.gpsPower,
		Bootloader: r.bootloader,
	})
	require.NoError(t, err)
	s.Loop.Now = func() time.Time { return r.now }
	r.System = s
	return r
}

func (r *rig) iterate(advance time.Duration) {
	r.now = r.now.Add(advance)
	r.Loop.RunIteration(context.Background())
}

func (r *rig) eventsOf(group event.Group) []uint8 {
	var events []uint8
	for _, l := range r.Events.Last(r.Events.Count()) {
		if l.Group == group {
			events = append([]uint8{l.Event}, events...)
		}
	}
	return events
}

func TestNewRequiresRTC(t *testing.T) {
	_, err := New(config.Default(), Peripherals{})
	require.Equal(t, ErrNoRTC, err)
}

func TestBoot(t *testing.T) {
	r := newRig(t, nil)
	r.Boot(context.Background())

	require.True(t, r.State.SDCardMounted())
	require.True(t, r.gpsPower.Get())
	require.Equal(t, []uint8{event.Boot}, r.eventsOf(event.System))
	require.Equal(t, []uint8{event.GPSPowerOn}, r.eventsOf(event.GPS))
	require.Equal(t, []uint8{event.RadioInit, event.MsgSent}, r.eventsOf(event.Comms))

	sent, _ := r.radio.Sent()
	require.Equal(t, [][]byte{append([]byte{0xA6, 0xA5}, "KBST;1;RES;0;0;HELLO;TSBK"...)}, sent)
	require.Contains(t, r.debug.Output(), "flight: build 7 booting\r\n")
}

func TestCommandOverUART(t *testing.T) {
	r := newRig(t, nil)
	r.debug.Feed([]byte("KBST;0;GET;1;1;;TSBK\r\nKBST;0;GET;9;9;;TSBK\r\n"))
	for r.Router.PollUART(context.Background()) {
	}
	require.Equal(t, "KBST;1;VAL;1;1;7;TSBK\r\nKBST;1;ERR;0;0;INVALID COMMAND;TSBK\r\n", r.debug.Output())
}

func TestCommandOverLoRa(t *testing.T) {
	r := newRig(t, nil)
	r.radio.Inject(append([]byte{0xA5, 0xA6}, "KBST;0;GET;2;2;;TSBK"...))
	require.True(t, r.Router.PollRadio(context.Background()))
	sent, _ := r.radio.Sent()
	require.Equal(t, [][]byte{append([]byte{0xA6, 0xA5}, "KBST;1;VAL;2;2;3.900;V;TSBK"...)}, sent)
}

func TestSamplingCore(t *testing.T) {
	pub := &recordingPublisher{}
	r := newRig(t, func(cfg *config.Config) {
		cfg.Telemetry.FlushEvery = 2
	})
	r.Downlink = pub
	r.Boot(context.Background())
	r.gpsPort.Feed([]byte(sampleRMC + "\r\n" + sampleGGA + "\r\n"))

	r.iterate(0)
	require.Equal(t, "A", r.GPS.RMC()[2])
	last, ok := r.Clock.LastSync()
	require.True(t, ok)
	require.EqualValues(t, 764426119, last)
	require.Contains(t, r.eventsOf(event.GPS), event.GPSLock)
	require.Equal(t, []uint8{event.ClockGPSSync}, r.eventsOf(event.Clock))

	require.Len(t, pub.records, 1)
	require.EqualValues(t, 764426119, pub.records[0].Timestamp)
	tr, ok := r.Telemetry.LastTelemetry()
	require.True(t, ok)
	require.Equal(t, "764426119,7,3.900,5.020,0.000,85.000,120.000,"+
		"123519,4807.038,N,01131.000,E,11.52,084.4,230394,1,08,545.4", tr.CSV())
	require.Empty(t, r.storage.Content(telemetry.DefaultTelemetryPath))
	require.Contains(t, r.storage.Content(event.DefaultPath), "\n")

	r.iterate(time.Second)
	require.Len(t, pub.records, 1)
	r.iterate(time.Second)
	require.Len(t, pub.records, 2)
	content := r.storage.Content(telemetry.DefaultTelemetryPath)
	require.True(t, strings.HasPrefix(content, telemetry.TelemetryHeader))
	require.Equal(t, 3, strings.Count(content, "\n"))
}

func TestBootloaderReset(t *testing.T) {
	r := newRig(t, nil)
	r.State.SetMode(state.GroundPowered)
	r.debug.Feed([]byte("KBST;0;SET;1;9;USB;TSBK\r\n"))
	for r.Router.PollUART(context.Background()) {
	}
	require.Contains(t, r.debug.Output(), "KBST;1;RES;1;9;REBOOT_BOOTSEL;TSBK")
	require.True(t, r.State.BootloaderResetPending())

	r.iterate(0)
	require.Zero(t, r.bootloader.Reboots())
	r.iterate(50 * time.Millisecond)
	require.Zero(t, r.bootloader.Reboots())
	r.iterate(60 * time.Millisecond)
	require.Equal(t, 1, r.bootloader.Reboots())
	require.False(t, r.State.BootloaderResetPending())
	require.Equal(t, []uint8{event.Shutdown}, r.eventsOf(event.System))
}

func TestPowerEvents(t *testing.T) {
	r := newRig(t, nil)
	r.power.SetCurrent(hal.USB, 120)
	r.iterate(0)
	require.Equal(t, state.GroundPowered, r.State.Mode())
	require.Contains(t, r.eventsOf(event.Power), event.USBConnected)
}

func TestRun(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.LoopInterval = 5 * time.Millisecond
	})
	r.Loop.Now = nil
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.debug.Feed([]byte("KBST;0;GET;8;0;;TSBK\r\n"))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, sampled := r.Telemetry.LastTelemetry()
		if sampled && strings.Contains(r.debug.Output(), "KBST;1;VAL;8;0;2000;TSBK") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)
	require.Contains(t, r.debug.Output(), "KBST;1;VAL;8;0;2000;TSBK\r\n")
	require.Contains(t, r.eventsOf(event.System), event.Shutdown)
	require.True(t, strings.HasPrefix(r.storage.Content(telemetry.DefaultTelemetryPath), telemetry.TelemetryHeader))
}
