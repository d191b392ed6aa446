package framework

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the iteration period of a Loop.
const DefaultInterval = 100 * time.Millisecond

// Loop runs controllers periodically, stage by stage, and the Runnables
// alongside until its context is done.
type Loop struct {
	Interval time.Duration
	// Now is the time source of iterations, time.Now when nil.
	Now func() time.Time

	stages  [StageCount]stageList
	runners []Runnable

	wakeUpOnce sync.Once
	wakeUpCh   chan struct{}
}

type stageList struct {
	controllers []Controller
	lock        sync.Mutex
	deferred    []Controller
}

// LoopAdder adds its components to a Loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type iteration struct {
	*Loop
	ctx   context.Context
	time  time.Time
	stage Stage
}

// NewLoop creates a Loop.
func NewLoop(interval time.Duration) *Loop {
	return &Loop{Interval: interval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at a stage. A controller which is
// also a Runnable is run alongside the loop.
func (l *Loop) AddController(stage Stage, ctls ...Controller) *Loop {
	lst := &l.stages[stage]
	lst.controllers = append(lst.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds tasks run alongside the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

func (l *Loop) wakeUp() chan struct{} {
	l.wakeUpOnce.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
	return l.wakeUpCh
}

func (l *Loop) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	wakeUpCh := l.wakeUp()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := NewRunnerWith(ctx).Go(l.runners...)

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cancel()
			if err := runner.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			l.RunIteration(ctx)
		case <-wakeUpCh:
			l.RunIteration(ctx)
		}
	}
}

// RunIteration runs all stages once.
func (l *Loop) RunIteration(ctx context.Context) {
	iter := &iteration{Loop: l, ctx: ctx, time: l.now()}
	for stage := Stage(0); int(stage) < StageCount; stage++ {
		iter.stage = stage
		l.stages[stage].run(iter)
	}
}

// DeferAt implements LoopControl.
func (l *Loop) DeferAt(stage Stage, ctls ...Controller) {
	lst := &l.stages[stage]
	lst.lock.Lock()
	lst.deferred = append(lst.deferred, ctls...)
	lst.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

func (t *iteration) Context() context.Context {
	return t.ctx
}

func (t *iteration) Time() time.Time {
	return t.time
}

func (t *iteration) Stage() Stage {
	return t.stage
}

func (t *iteration) Defer(ctls ...Controller) {
	t.DeferAt(t.stage, ctls...)
}

func (s *stageList) run(iter *iteration) {
	runControllers(iter, s.controllers)
	s.lock.Lock()
	ctls := s.deferred
	s.deferred = nil
	s.lock.Unlock()
	runControllers(iter, ctls)
}

func runControllers(iter *iteration, ctls []Controller) {
	for _, ctl := range ctls {
		if err := control(iter, ctl); err != nil {
			glog.Errorf("%s controller %s: %v", iter.stage, nameOf(ctl), err)
		}
	}
}

func control(cc ControlContext, ctl Controller) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return ctl.Control(cc)
}

func nameOf(v interface{}) string {
	if named, ok := v.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", v)
}

type namedController struct {
	Controller
	name string
}

func (c *namedController) Name() string {
	return c.name
}

// NamedControl gives a Controller a name for logging.
func NamedControl(name string, ctl Controller) Controller {
	return &namedController{Controller: ctl, name: name}
}

// Every wraps a controller to run at most once per interval.
func Every(interval time.Duration, ctl Controller) Controller {
	return &throttled{interval: interval, ctl: ctl}
}

type throttled struct {
	interval time.Duration
	ctl      Controller
	last     time.Time
}

func (t *throttled) Name() string {
	return nameOf(t.ctl)
}

func (t *throttled) Control(cc ControlContext) error {
	now := cc.Time()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return nil
	}
	t.last = now
	return t.ctl.Control(cc)
}
