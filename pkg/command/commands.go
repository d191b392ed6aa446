package command

import (
	"context"
	"time"

	"github.com/kubisat/flight.go/pkg/clock"
	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/gps"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/protocol"
	"github.com/kubisat/flight.go/pkg/state"
	"github.com/kubisat/flight.go/pkg/telemetry"
)

// Command groups.
const (
	GroupDiagnostics uint8 = 1
	GroupPower       uint8 = 2
	GroupClock       uint8 = 3
	GroupSensors     uint8 = 4
	GroupEvents      uint8 = 5
	GroupStorage     uint8 = 6
	GroupGPS         uint8 = 7
	GroupTelemetry   uint8 = 8
)

// BridgeRunner runs the GPS pass-through.
type BridgeRunner interface {
	Run(ctx context.Context, timeout time.Duration) (gps.ExitReason, error)
}

// LoopTrigger wakes the sampling loop up.
type LoopTrigger interface {
	TriggerNext()
}

// Env is what the handlers operate on.
type Env struct {
	Build     int
	State     *state.State
	Clock     *clock.Clock
	Events    *event.Manager
	Telemetry *telemetry.Manager
	GPS       *gps.Data
	Bridge    BridgeRunner
	Power     hal.Power
	Sensors   hal.Sensors
	Storage   hal.Storage
	GPSPower  hal.GPIO
	// Loop is woken up when a setting of the sampling core changes.
	Loop      LoopTrigger
}

// New builds the command table over env.
func New(env *Env) *Registry {
	h := &handlers{Env: env}
	var r *Registry
	r = NewRegistry(
		Entry{GroupDiagnostics, 0, func(ctx context.Context, req Request) []protocol.Frame {
			return h.listCommands(req, r.Keys())
		}},
		Entry{GroupDiagnostics, 1, h.buildVersion},
		Entry{GroupDiagnostics, 8, h.verbosity},
		Entry{GroupDiagnostics, 9, h.bootloader},

		Entry{GroupPower, 0, h.powerIDs},
		Entry{GroupPower, 2, h.voltage(hal.Battery)},
		Entry{GroupPower, 3, h.voltage(hal.System5V)},
		Entry{GroupPower, 4, h.current(hal.USB)},
		Entry{GroupPower, 5, h.current(hal.Solar)},
		Entry{GroupPower, 6, h.chargeCurrent},
		Entry{GroupPower, 7, h.current(hal.Discharge)},

		Entry{GroupClock, 0, h.clockTime},
		Entry{GroupClock, 1, h.timezoneOffset},
		Entry{GroupClock, 2, h.syncInterval},
		Entry{GroupClock, 3, h.lastSync},

		Entry{GroupSensors, 0, h.readSensor},
		Entry{GroupSensors, 1, h.configureSensor},
		Entry{GroupSensors, 2, h.listSensors},

		Entry{GroupEvents, 1, h.lastEvents},
		Entry{GroupEvents, 2, h.eventCount},

		Entry{GroupStorage, 0, h.listFiles},
		Entry{GroupStorage, 4, h.mount},

		Entry{GroupGPS, 1, h.gpsPower},
		Entry{GroupGPS, 2, h.passThrough},
		Entry{GroupGPS, 3, h.rmcData},
		Entry{GroupGPS, 4, h.ggaData},

		Entry{GroupTelemetry, 0, h.sampleInterval},
		Entry{GroupTelemetry, 1, h.flushEvery},
		Entry{GroupTelemetry, 2, h.lastTelemetry},
		Entry{GroupTelemetry, 3, h.lastSensor},
	)
	return r
}

type handlers struct {
	*Env
}

func (h *handlers) wakeLoop() {
	if h.Loop != nil {
		h.Loop.TriggerNext()
	}
}
