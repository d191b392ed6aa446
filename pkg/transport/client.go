package transport

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/protocol"
)

// Client defaults.
const (
	DefaultClientTimeout = 5 * time.Second
	DefaultPollInterval  = 5 * time.Millisecond
)

// ErrTimeout is returned when the answer doesn't complete in time.
var ErrTimeout = errors.New("timeout waiting for answer")

// Link is the ground end of a transport.
type Link interface {
	SendFrame(protocol.Frame) error
	// Poll returns the frames received since the last call, it never
	// blocks longer than a read timeout.
	Poll() ([]protocol.Frame, error)
}

// UARTLink talks to the satellite over a serial port.
type UARTLink struct {
	Port hal.Port

	line protocol.LineAssembler
	buf  [256]byte
}

// SendFrame implements Link.
func (l *UARTLink) SendFrame(f protocol.Frame) error {
	_, err := l.Port.Write([]byte(protocol.Encode(f) + "\r\n"))
	return err
}

// Poll implements Link.
func (l *UARTLink) Poll() ([]protocol.Frame, error) {
	n, err := l.Port.Read(l.buf[:])
	if err != nil {
		return nil, err
	}
	var frames []protocol.Frame
	for _, b := range l.buf[:n] {
		if line, ok := l.line.Feed(b); ok {
			frames = append(frames, decodeAll(line)...)
		}
	}
	return frames, nil
}

// RadioLink talks to the satellite over LoRa, packets carry the
// [dest, sender] header.
type RadioLink struct {
	Radio hal.Radio
	// Local is the ground address, Remote the satellite one.
	Local  byte
	Remote byte
}

// NewRadioLink creates a RadioLink with the default addresses seen from
// the ground.
func NewRadioLink(radio hal.Radio) *RadioLink {
	return &RadioLink{Radio: radio, Local: DefaultRemoteAddress, Remote: DefaultLocalAddress}
}

// SendFrame implements Link.
func (l *RadioLink) SendFrame(f protocol.Frame) error {
	return l.Radio.Send(append([]byte{l.Remote, l.Local}, protocol.Encode(f)...))
}

// Poll implements Link.
func (l *RadioLink) Poll() ([]protocol.Frame, error) {
	var frames []protocol.Frame
	for {
		pkt, ok := l.Radio.Receive()
		if !ok {
			return frames, nil
		}
		if len(pkt) < LoRaHeaderSize || pkt[0] != l.Local || pkt[1] != l.Remote {
			continue
		}
		frames = append(frames, decodeAll(string(pkt[LoRaHeaderSize:]))...)
	}
}

func decodeAll(text string) []protocol.Frame {
	var frames []protocol.Frame
	for _, span := range protocol.FindFrames(text) {
		f, err := protocol.Decode(span)
		if err != nil {
			glog.Warningf("drop %q: %v", span, err)
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

// Client sends requests and collects their answers. Requests are
// serialized, the satellite answers one at a time.
type Client struct {
	Link         Link
	Timeout      time.Duration
	PollInterval time.Duration
	// Unsolicited receives frames not belonging to the pending request.
	Unsolicited func(protocol.Frame)
}

// NewClient creates a Client.
func NewClient(link Link) *Client {
	return &Client{Link: link, Timeout: DefaultClientTimeout, PollInterval: DefaultPollInterval}
}

// Do sends a request and returns the answer frames up to the terminal
// one. On timeout, the frames received so far are returned with
// ErrTimeout.
func (c *Client) Do(ctx context.Context, req protocol.Frame) ([]protocol.Frame, error) {
	if err := c.Link.SendFrame(req); err != nil {
		return nil, err
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)
	var answer []protocol.Frame
	for {
		frames, err := c.Link.Poll()
		if err != nil {
			return answer, err
		}
		for n, f := range frames {
			if !answers(req, f) {
				if c.Unsolicited != nil {
					c.Unsolicited(f)
				}
				continue
			}
			answer = append(answer, f)
			if f.IsTerminal() {
				for _, rest := range frames[n+1:] {
					if c.Unsolicited != nil {
						c.Unsolicited(rest)
					}
				}
				return answer, nil
			}
		}
		if !time.Now().Before(deadline) {
			return answer, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return answer, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// answers tells if f is part of the answer to req. Errors of unknown
// commands and undecodable requests carry group and command 0.
func answers(req, f protocol.Frame) bool {
	if f.Direction() != protocol.ToGround {
		return false
	}
	if f.Group == req.Group && f.Command == req.Command {
		return true
	}
	return f.Operation == protocol.Err && f.Group == 0 && f.Command == 0
}
