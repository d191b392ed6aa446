package gps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/hal"
)

// ExitSequence ends the bridge when typed on the debug UART.
const ExitSequence = "##EXIT##"

// DefaultBridgeTimeout is used when no timeout is requested.
const DefaultBridgeTimeout = 60 * time.Second

// ExitReason tells why the bridge ended.
type ExitReason string

// Exit reasons.
const (
	UserExit ExitReason = "USER_EXIT"
	Timeout  ExitReason = "TIMEOUT"
)

// ErrBridgeActive is returned when the bridge is already running.
var ErrBridgeActive = errors.New("bridge already active")

// CollectionPauser pauses GPS collection while bridging.
type CollectionPauser interface {
	SetGPSCollectionPaused(bool)
}

type bridgeState struct {
	active       bool
	deadline     time.Time
	originalBaud int
}

// Bridge connects the debug UART to the GPS UART so a host tool can talk
// to the receiver directly.
type Bridge struct {
	Debug  hal.Port
	GPS    hal.Port
	Pauser CollectionPauser
	Events event.Logger
	// Now is the time source, time.Now when nil.
	Now func() time.Time

	lock  sync.Mutex
	state bridgeState
}

// Active tells if the bridge is running.
func (b *Bridge) Active() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.state.active
}

func (b *Bridge) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Bridge) setPaused(paused bool) {
	if b.Pauser != nil {
		b.Pauser.SetGPSCollectionPaused(paused)
	}
}

func (b *Bridge) events() event.Logger {
	if b.Events != nil {
		return b.Events
	}
	return event.Discard
}

// Run bridges both UARTs until the exit sequence arrives from the debug
// UART or timeout elapses. The debug UART runs at the GPS baud rate
// meanwhile and is restored before returning.
func (b *Bridge) Run(ctx context.Context, timeout time.Duration) (ExitReason, error) {
	if timeout <= 0 {
		timeout = DefaultBridgeTimeout
	}
	b.lock.Lock()
	if b.state.active {
		b.lock.Unlock()
		return "", ErrBridgeActive
	}
	b.state = bridgeState{
		active:       true,
		deadline:     b.now().Add(timeout),
		originalBaud: b.Debug.BaudRate(),
	}
	st := b.state
	b.lock.Unlock()

	gpsBaud := b.GPS.BaudRate()
	b.setPaused(true)
	b.events().Log(event.GPS, event.GPSPassThroughStart)
	fmt.Fprintf(b.Debug, "GPS pass-through @%d for %ds, send %s to exit\r\n",
		gpsBaud, int(timeout/time.Second), ExitSequence)
	glog.Infof("gps bridge started, baud %d -> %d, timeout %v", st.originalBaud, gpsBaud, timeout)

	defer b.finish(st.originalBaud)

	if gpsBaud != st.originalBaud {
		if err := b.Debug.SetBaudRate(gpsBaud); err != nil {
			return "", err
		}
	}
	return b.forward(ctx, st.deadline)
}

func (b *Bridge) forward(ctx context.Context, deadline time.Time) (ExitReason, error) {
	var (
		detector exitDetector
		in       [64]byte
		out      [256]byte
		fwd      []byte
	)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if !b.now().Before(deadline) {
			return Timeout, nil
		}

		n, err := b.Debug.Read(in[:])
		if err != nil {
			return "", err
		}
		fwd = fwd[:0]
		for _, c := range in[:n] {
			forward, exit := detector.feed(c)
			if exit {
				if len(fwd) > 0 {
					b.GPS.Write(fwd)
				}
				return UserExit, nil
			}
			if forward {
				fwd = append(fwd, c)
			}
		}
		if len(fwd) > 0 {
			if _, err := b.GPS.Write(fwd); err != nil {
				return "", err
			}
		}

		if n, err = b.GPS.Read(out[:]); err != nil {
			return "", err
		}
		if n > 0 {
			if _, err := b.Debug.Write(out[:n]); err != nil {
				return "", err
			}
		}
	}
}

func (b *Bridge) finish(originalBaud int) {
	if b.Debug.BaudRate() != originalBaud {
		if err := b.Debug.SetBaudRate(originalBaud); err != nil {
			glog.Errorf("gps bridge: restore baud %d: %v", originalBaud, err)
		}
	}
	b.setPaused(false)
	b.events().Log(event.GPS, event.GPSPassThroughEnd)
	b.lock.Lock()
	b.state = bridgeState{}
	b.lock.Unlock()
	glog.Info("gps bridge stopped")
}

// exitDetector tracks the last bytes received against ExitSequence.
type exitDetector struct {
	window []byte
}

// feed returns whether c should be forwarded and whether the exit
// sequence is complete. Bytes extending a prefix of the sequence are held
// back.
func (d *exitDetector) feed(c byte) (forward, exit bool) {
	d.window = append(d.window, c)
	if len(d.window) > len(ExitSequence) {
		d.window = d.window[len(d.window)-len(ExitSequence):]
	}
	w := string(d.window)
	if w == ExitSequence {
		return false, true
	}
	if len(w) < len(ExitSequence) && ExitSequence[:len(w)] == w {
		return false, false
	}
	return true, false
}
