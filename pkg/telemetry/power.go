package telemetry

import (
	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/state"
)

// Thresholds configures power event detection.
type Thresholds struct {
	BatteryLow  float32 `yaml:"battery_low_v"`
	BatteryFull float32 `yaml:"battery_full_v"`
	// USBActive and SolarActive are charge currents in mA.
	USBActive   float32 `yaml:"usb_active_ma"`
	SolarActive float32 `yaml:"solar_active_ma"`
	// A drop larger than FallingDelta in FallingCount consecutive samples
	// is reported as falling power.
	FallingDelta float32 `yaml:"falling_delta_v"`
	FallingCount int     `yaml:"falling_count"`
}

// DefaultThresholds returns thresholds for a single Li-ion cell.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BatteryLow:   3.3,
		BatteryFull:  4.1,
		USBActive:    50,
		SolarActive:  20,
		FallingDelta: 0.02,
		FallingCount: 3,
	}
}

type batteryLevel int

const (
	levelNormal batteryLevel = iota
	levelLow
	levelFull
)

// ModeSetter receives the operating mode derived from USB power.
type ModeSetter interface {
	SetMode(state.OperatingMode)
}

// PowerMonitor turns power samples into events. Every transition is
// compared with the last emitted state, so a crossing is reported once.
type PowerMonitor struct {
	Thresholds Thresholds
	Events     event.Logger
	Mode       ModeSetter

	battery         batteryLevel
	usb             bool
	solar           bool
	lastVoltage     float32
	falling         int
	fallingReported bool
}

// NewPowerMonitor creates a PowerMonitor.
func NewPowerMonitor(th Thresholds, events event.Logger, mode ModeSetter) *PowerMonitor {
	return &PowerMonitor{Thresholds: th, Events: events, Mode: mode}
}

// Check processes one sample.
func (m *PowerMonitor) Check(s hal.PowerSample) {
	th := m.Thresholds

	level := levelNormal
	if s.BatteryVoltage < th.BatteryLow {
		level = levelLow
	} else if s.BatteryVoltage > th.BatteryFull {
		level = levelFull
	}
	if level != m.battery {
		m.battery = level
		switch level {
		case levelLow:
			m.Events.Log(event.Power, event.BatteryLow)
		case levelFull:
			m.Events.Log(event.Power, event.BatteryFull)
		default:
			m.Events.Log(event.Power, event.BatteryNormal)
		}
	}

	if usb := s.USBCurrent >= th.USBActive; usb != m.usb {
		m.usb = usb
		if usb {
			m.Events.Log(event.Power, event.USBConnected)
		} else {
			m.Events.Log(event.Power, event.USBDisconnected)
		}
		if m.Mode != nil {
			mode := state.BatteryPowered
			if usb {
				mode = state.GroundPowered
			}
			m.Mode.SetMode(mode)
		}
	}

	if solar := s.SolarCurrent >= th.SolarActive; solar != m.solar {
		m.solar = solar
		if solar {
			m.Events.Log(event.Power, event.SolarActive)
		} else {
			m.Events.Log(event.Power, event.SolarInactive)
		}
	}

	if m.lastVoltage > 0 && m.lastVoltage-s.BatteryVoltage > th.FallingDelta {
		m.falling++
	} else {
		m.falling, m.fallingReported = 0, false
	}
	m.lastVoltage = s.BatteryVoltage
	if th.FallingCount > 0 && m.falling >= th.FallingCount && !m.fallingReported {
		m.fallingReported = true
		m.Events.Log(event.Power, event.PowerFalling)
	}
}
