// Package flight assembles the flight core: the command core routing
// ground commands and the sampling core collecting GPS and telemetry.
package flight

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/clock"
	"github.com/kubisat/flight.go/pkg/command"
	"github.com/kubisat/flight.go/pkg/config"
	"github.com/kubisat/flight.go/pkg/console"
	"github.com/kubisat/flight.go/pkg/event"
	fx "github.com/kubisat/flight.go/pkg/framework"
	"github.com/kubisat/flight.go/pkg/gps"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/protocol"
	"github.com/kubisat/flight.go/pkg/state"
	"github.com/kubisat/flight.go/pkg/telemetry"
	"github.com/kubisat/flight.go/pkg/telemetry/downlink"
	"github.com/kubisat/flight.go/pkg/transport"
)

// HelloValue is sent over LoRa once booted.
const HelloValue = "HELLO"

const origin = "flight"

// ErrNoRTC is returned when no real-time clock is provided.
var ErrNoRTC = errors.New("real-time clock is required")

// Peripherals are the devices the flight core drives. Only RTC is
// mandatory, the features of missing devices are unavailable.
type Peripherals struct {
	DebugUART  hal.Port
	GPSUART    hal.Port
	Radio      hal.Radio
	RTC        hal.RTC
	Power      hal.Power
	Sensors    hal.Sensors
	Storage    hal.Storage
	GPSPower   hal.GPIO
	Bootloader hal.Bootloader
}

// System owns every singleton of the flight core. They are all created
// by New, before any core starts.
type System struct {
	Config *config.Config
	Peripherals

	State     *state.State
	Clock     *clock.Clock
	Events    *event.Manager
	GPS       *gps.Data
	Collector *gps.Collector
	Bridge    *gps.Bridge
	Monitor   *telemetry.PowerMonitor
	Telemetry *telemetry.Manager
	Registry  *command.Registry
	Router    *transport.Router
	Loop      *fx.Loop
	Console   *console.Console
	// Downlink optionally mirrors each telemetry sample.
	Downlink downlink.Publisher
}

// New creates a System.
func New(cfg *config.Config, p Peripherals) (*System, error) {
	if p.RTC == nil {
		return nil, ErrNoRTC
	}
	s := &System{
		Config:      cfg,
		Peripherals: p,
		State:       state.New(),
		Clock:       clock.New(p.RTC),
		GPS:         &gps.Data{},
	}
	s.Loop = fx.NewLoop(cfg.LoopInterval)
	s.Console = console.New(p.DebugUART, s.State, cfg.Console)
	s.Events = event.NewManager(cfg.Events, s.Clock.Local(), p.Storage, s.State)
	s.Monitor = telemetry.NewPowerMonitor(cfg.Telemetry.Thresholds, s.Events, s.State)
	s.Telemetry = telemetry.NewManager(cfg.Telemetry, cfg.BuildNumber, telemetry.Sources{
		Clock:   s.Clock.Local(),
		Power:   p.Power,
		Sensors: p.Sensors,
		GPS:     s.GPS,
		Monitor: s.Monitor,
	}, p.Storage, s.State)

	env := &command.Env{
		Build:     cfg.BuildNumber,
		State:     s.State,
		Clock:     s.Clock,
		Events:    s.Events,
		Telemetry: s.Telemetry,
		GPS:       s.GPS,
		Power:     p.Power,
		Sensors:   p.Sensors,
		Storage:   p.Storage,
		GPSPower:  p.GPSPower,
		Loop:      s.Loop,
	}
	if p.GPSUART != nil {
		s.Collector = gps.NewCollector(p.GPSUART, s.GPS, s.State, s.Events)
		if p.DebugUART != nil {
			s.Bridge = &gps.Bridge{Debug: p.DebugUART, GPS: p.GPSUART, Pauser: s.State, Events: s.Events}
			env.Bridge = s.Bridge
		}
	}
	s.Registry = command.New(env)

	s.Router = transport.NewRouter(s.Registry, p.DebugUART, p.Radio, s.Events)
	s.Router.LocalAddress = cfg.LoRa.LocalAddress
	s.Router.RemoteAddress = cfg.LoRa.RemoteAddress
	s.Router.FrameInterval = cfg.LoRa.FrameInterval

	s.Loop.Add(s)
	return s, nil
}

// Boot mounts the storage, powers the GPS and announces the satellite.
func (s *System) Boot(ctx context.Context) {
	s.Events.Log(event.System, event.Boot)
	s.Console.Infof(origin, "build %d booting", s.Config.BuildNumber)

	if s.Storage != nil {
		if err := s.Storage.Mount(); err != nil {
			glog.Errorf("mount storage: %v", err)
			s.Console.Errorf(origin, "storage mount failed: %v", err)
		} else {
			s.State.SetSDCardMounted(true)
		}
	}
	if s.GPSPower != nil {
		s.GPSPower.Set(true)
		s.Events.Log(event.GPS, event.GPSPowerOn)
	}
	if s.Radio != nil {
		s.Events.Log(event.Comms, event.RadioInit)
		s.Router.SendLoRa(ctx, []protocol.Frame{protocol.ResFrame(0, 0, HelloValue)})
	}
	s.Console.Infof(origin, "ready, storage mounted: %v", s.State.SDCardMounted())
}

// Run boots and runs both cores until ctx is done. Buffered data is
// flushed before returning.
func (s *System) Run(ctx context.Context) error {
	s.Boot(ctx)
	err := fx.NewRunnerWith(ctx).Go(
		fx.NamedRun("command-core", s.Router),
		fx.NamedRun("sampling-core", s.Loop),
	).Wait()
	s.Shutdown()
	return err
}

// Shutdown records the shutdown and flushes telemetry and events.
func (s *System) Shutdown() {
	s.Events.Log(event.System, event.Shutdown)
	if err := s.Telemetry.Flush(); err != nil {
		glog.Warningf("telemetry flush on shutdown: %v", err)
	}
	if err := s.Events.Flush(); err != nil {
		glog.Warningf("event flush on shutdown: %v", err)
	}
	s.Console.Infof(origin, "shutdown")
	s.Console.Close()
}
