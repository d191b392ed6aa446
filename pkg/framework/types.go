// Package framework runs the periodic work of the flight core: a loop of
// controllers ordered by stage, plus long running tasks.
package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable is a long running task.
type Runnable interface {
	Run(context.Context) error
}

// Controller is invoked once per loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// TimeSource provides the time of the current iteration.
type TimeSource interface {
	Time() time.Time
}

// ControlContext is the context of the current loop iteration.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Stage gets the stage being run.
	Stage() Stage
	// Defer installs one-shot controllers run after the current stage.
	// When called from a deferred controller, they run in the next
	// iteration.
	Defer(ctls ...Controller)

	LoopControl
}

// LoopControl exposes access to the loop.
type LoopControl interface {
	// DeferAt installs one-shot controllers run after the specified stage.
	DeferAt(stage Stage, ctls ...Controller)
	// TriggerNext runs the next iteration right after the current one.
	TriggerNext()
}

// Stage orders controllers within an iteration.
type Stage int

// Stages, run in this order.
const (
	// StageSense reads peripherals.
	StageSense Stage = iota
	// StageProcess derives state from what was read.
	StageProcess
	// StageStore persists and transmits.
	StageStore
	// StageAct drives peripherals and the device itself.
	StageAct

	// StageCount is the number of stages.
	StageCount int = iota
)

var stageNames = [...]string{
	StageSense:   "sense",
	StageProcess: "process",
	StageStore:   "store",
	StageAct:     "act",
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}
