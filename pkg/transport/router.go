// Package transport carries command frames between the ground and the
// command registry over the debug UART and the LoRa radio.
package transport

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/protocol"
)

// Defaults.
const (
	DefaultLocalAddress  byte = 0xA5
	DefaultRemoteAddress byte = 0xA6
	// DefaultFrameInterval separates consecutive frames sent over LoRa.
	DefaultFrameInterval = 150 * time.Millisecond
	// LoRaHeaderSize is the size of the [dest, sender] packet header.
	LoRaHeaderSize = 2

	idleInterval = time.Millisecond
)

// Dispatcher executes the command carried by a request frame.
type Dispatcher interface {
	DispatchFrame(ctx context.Context, f protocol.Frame) []protocol.Frame
}

// Router polls the UART and the radio in turn and dispatches each request
// frame it finds, one at a time. Answers go back on the transport the
// request came from.
type Router struct {
	Dispatcher    Dispatcher
	UART          hal.Port
	Radio         hal.Radio
	LocalAddress  byte
	RemoteAddress byte
	FrameInterval time.Duration
	Events        event.Logger

	line protocol.LineAssembler
	buf  [64]byte
}

// NewRouter creates a Router with default addresses.
func NewRouter(d Dispatcher, uart hal.Port, radio hal.Radio, events event.Logger) *Router {
	return &Router{
		Dispatcher:    d,
		UART:          uart,
		Radio:         radio,
		LocalAddress:  DefaultLocalAddress,
		RemoteAddress: DefaultRemoteAddress,
		FrameInterval: DefaultFrameInterval,
		Events:        events,
	}
}

func (r *Router) events() event.Logger {
	if r.Events != nil {
		return r.Events
	}
	return event.Discard
}

// Run implements framework.Runnable.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		busy := r.PollUART(ctx)
		if r.PollRadio(ctx) {
			busy = true
		}
		if !busy && r.UART == nil {
			time.Sleep(idleInterval)
		}
	}
}

// PollUART reads what is available on the UART and answers the complete
// lines. It returns true if anything was read.
func (r *Router) PollUART(ctx context.Context) bool {
	if r.UART == nil {
		return false
	}
	n, err := r.UART.Read(r.buf[:])
	if err != nil {
		glog.Errorf("uart read: %v", err)
		r.events().Log(event.Comms, event.UARTError)
		r.line.Reset()
		time.Sleep(hal.ReadTimeout)
		return false
	}
	for _, b := range r.buf[:n] {
		if line, ok := r.line.Feed(b); ok {
			r.handleText(ctx, line, r.writeUART)
		}
	}
	return n > 0
}

func (r *Router) writeUART(_ context.Context, frames []protocol.Frame) {
	for _, f := range frames {
		if _, err := r.UART.Write([]byte(protocol.Encode(f) + "\r\n")); err != nil {
			glog.Errorf("uart write: %v", err)
			r.events().Log(event.Comms, event.UARTError)
			return
		}
	}
}

// PollRadio handles one received LoRa packet, if any. It returns true if
// a packet was received.
func (r *Router) PollRadio(ctx context.Context) bool {
	if r.Radio == nil {
		return false
	}
	pkt, ok := r.Radio.Receive()
	if !ok {
		return false
	}
	if len(pkt) < LoRaHeaderSize {
		glog.Warningf("lora packet too short: %d bytes", len(pkt))
		return true
	}
	if dest, sender := pkt[0], pkt[1]; dest != r.LocalAddress || sender != r.RemoteAddress {
		glog.V(2).Infof("lora packet rejected: dest 0x%02X sender 0x%02X", dest, sender)
		return true
	}
	r.events().Log(event.Comms, event.MsgReceived)
	r.handleText(ctx, string(pkt[LoRaHeaderSize:]), r.SendLoRa)
	return true
}

// SendLoRa sends frames one per packet, FrameInterval apart.
func (r *Router) SendLoRa(ctx context.Context, frames []protocol.Frame) {
	if r.Radio == nil {
		return
	}
	for n, f := range frames {
		if n > 0 && r.FrameInterval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.FrameInterval):
			}
		}
		text := protocol.Encode(f)
		pkt := make([]byte, 0, LoRaHeaderSize+len(text))
		pkt = append(pkt, r.RemoteAddress, r.LocalAddress)
		pkt = append(pkt, text...)
		if err := r.Radio.Send(pkt); err != nil {
			glog.Errorf("lora send: %v", err)
			r.events().Log(event.Comms, event.RadioError)
			continue
		}
		r.events().Log(event.Comms, event.MsgSent)
	}
}

type replyFunc func(context.Context, []protocol.Frame)

func (r *Router) handleText(ctx context.Context, text string, reply replyFunc) {
	spans := protocol.FindFrames(text)
	if len(spans) == 0 {
		glog.V(2).Infof("no frame in %q", text)
		return
	}
	for _, span := range spans {
		f, err := protocol.Decode(span)
		if err != nil {
			glog.V(2).Infof("decode %q: %v", span, err)
			reply(ctx, []protocol.Frame{protocol.ErrorFrame(err)})
			continue
		}
		glog.V(2).Infof("request %s", span)
		reply(ctx, r.Dispatcher.DispatchFrame(ctx, f))
	}
}
