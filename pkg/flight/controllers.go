package flight

import (
	"time"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/event"
	fx "github.com/kubisat/flight.go/pkg/framework"
	"github.com/kubisat/flight.go/pkg/telemetry"
)

// EventFlushInterval is the period of the background event flush.
const EventFlushInterval = time.Second

// AddToLoop implements framework.LoopAdder, it installs the controllers
// of the sampling core.
func (s *System) AddToLoop(l *fx.Loop) {
	if s.Collector != nil {
		l.AddController(fx.StageSense, fx.NamedControl("gps-collect", s.Collector))
	}
	l.AddController(fx.StageProcess,
		fx.NamedControl("clock-sync", fx.ControlFunc(s.syncClock)),
		fx.NamedControl("telemetry", fx.ControlFunc(s.collectTelemetry)))
	l.AddController(fx.StageStore,
		fx.NamedControl("event-flush", fx.Every(EventFlushInterval, fx.ControlFunc(s.flushEvents))))
	if s.Bootloader != nil {
		l.AddController(fx.StageAct,
			fx.NamedControl("bootloader", &bootloaderReset{s: s, delay: s.Config.BootloaderDelay}))
	}
}

// syncClock sets the RTC from the GPS fix when a sync is due.
func (s *System) syncClock(fx.ControlContext) error {
	t, ok := s.GPS.UnixTime()
	if !ok {
		return nil
	}
	now, err := s.Clock.Now()
	if err != nil {
		return err
	}
	if !s.Clock.IsSyncNeeded(now) {
		return nil
	}
	if err := s.Clock.SyncFromGPS(t); err != nil {
		return err
	}
	s.Events.Log(event.Clock, event.ClockGPSSync)
	s.Console.Infof("clock", "synced from GPS: %d", t)
	return nil
}

// collectTelemetry samples on the cadence, storing and publishing happen
// in the store stage.
func (s *System) collectTelemetry(cc fx.ControlContext) error {
	cadence := s.Telemetry.Cadence()
	if !cadence.IsCollectionTime(cc.Time()) {
		return nil
	}
	tr, sr := s.Telemetry.Collect()
	if s.Downlink != nil {
		cc.DeferAt(fx.StageStore, fx.NamedControl("downlink", fx.ControlFunc(func(fx.ControlContext) error {
			return s.Downlink.Publish(tr, sr)
		})))
	}
	if cadence.IsFlushTime() {
		cc.DeferAt(fx.StageStore, fx.NamedControl("telemetry-flush", fx.ControlFunc(s.flushTelemetry)))
	}
	return nil
}

func (s *System) flushTelemetry(fx.ControlContext) error {
	err := s.Telemetry.Flush()
	if err == telemetry.ErrStorageUnavailable {
		glog.V(2).Info("telemetry flush skipped, storage unavailable")
		return nil
	}
	return err
}

func (s *System) flushEvents(fx.ControlContext) error {
	if s.Events.Pending() == 0 {
		return nil
	}
	err := s.Events.Flush()
	if err == event.ErrStorageUnavailable {
		return nil
	}
	return err
}

// bootloaderReset reboots into the bootloader once a requested reset has
// been pending for delay, leaving time for the answer to go out. The
// reboot itself runs after the other controllers of the stage.
type bootloaderReset struct {
	s         *System
	delay     time.Duration
	requested time.Time
}

func (b *bootloaderReset) Control(cc fx.ControlContext) error {
	if !b.s.State.BootloaderResetPending() {
		b.requested = time.Time{}
		return nil
	}
	now := cc.Time()
	if b.requested.IsZero() {
		b.requested = now
	}
	if now.Sub(b.requested) < b.delay {
		return nil
	}
	b.s.Console.Warningf(origin, "rebooting into bootloader")
	b.s.Events.Log(event.System, event.Shutdown)
	if err := b.s.Events.Flush(); err != nil {
		glog.Warningf("event flush before reboot: %v", err)
	}
	b.s.State.SetBootloaderResetPending(false)
	b.requested = time.Time{}
	cc.Defer(fx.NamedControl("reboot", fx.ControlFunc(func(fx.ControlContext) error {
		return b.s.Bootloader.Reboot()
	})))
	return nil
}
