package gps

import (
	nmea "github.com/adrianmo/go-nmea"
	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/framework"
	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/protocol"
)

// PauseState tells if collection must be skipped.
type PauseState interface {
	GPSCollectionPaused() bool
}

// Collector reads sentences from the GPS UART into Data.
type Collector struct {
	Port   hal.Port
	Data   *Data
	Paused PauseState
	Events event.Logger

	lines  protocol.LineAssembler
	buf    [256]byte
	hasFix bool
}

// NewCollector creates a Collector.
func NewCollector(port hal.Port, data *Data, paused PauseState, events event.Logger) *Collector {
	return &Collector{Port: port, Data: data, Paused: paused, Events: events}
}

// Control implements framework.Controller.
func (c *Collector) Control(framework.ControlContext) error {
	_, err := c.Poll()
	return err
}

// Poll consumes the bytes available on the port and returns the number of
// sentences stored.
func (c *Collector) Poll() (int, error) {
	if c.Paused != nil && c.Paused.GPSCollectionPaused() {
		return 0, nil
	}
	n, err := c.Port.Read(c.buf[:])
	if err != nil {
		return 0, err
	}
	var stored int
	for _, b := range c.buf[:n] {
		if line, ok := c.lines.Feed(b); ok && c.handleLine(line) {
			stored++
		}
	}
	return stored, nil
}

func (c *Collector) handleLine(line string) bool {
	s, err := ParseSentence(line)
	if err != nil {
		glog.V(4).Infof("gps: drop %q: %v", line, err)
		return false
	}
	switch s.Type {
	case nmea.TypeRMC:
		c.Data.UpdateRMC(s.Tokens)
		c.checkFix()
	case nmea.TypeGGA:
		c.Data.UpdateGGA(s.Tokens)
	default:
		return false
	}
	return true
}

func (c *Collector) checkFix() {
	hasFix := c.Data.HasFix()
	if hasFix == c.hasFix {
		return
	}
	c.hasFix = hasFix
	if c.Events == nil {
		return
	}
	if hasFix {
		c.Events.Log(event.GPS, event.GPSLock)
	} else {
		c.Events.Log(event.GPS, event.GPSLost)
	}
}
