// Package serialport provides hal.Port over a host serial device.
package serialport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	"github.com/kubisat/flight.go/pkg/hal"
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0").
	Device string `yaml:"port"`
	Baud   int    `yaml:"baud"`
	// ReadTimeout bounds a single Read, 0 uses hal.ReadTimeout.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Port is a serial device which can change its baud rate at runtime.
type Port struct {
	cfg  Config
	lock sync.RWMutex
	port *serial.Port
}

// Open opens the serial device.
func Open(cfg Config) (*Port, error) {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = hal.ReadTimeout
	}
	p := &Port{cfg: cfg}
	port, err := p.open(cfg.Baud)
	if err != nil {
		return nil, err
	}
	p.port = port
	return p, nil
}

func (p *Port) open(baud int) (*serial.Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        p.cfg.Device,
		Baud:        baud,
		ReadTimeout: p.cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %v", p.cfg.Device, err)
	}
	return port, nil
}

// Read implements io.Reader. A read timeout yields 0, nil.
func (p *Port) Read(b []byte) (int, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	n, err := p.port.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.port.Write(b)
}

// BaudRate implements hal.Port.
func (p *Port) BaudRate() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.cfg.Baud
}

// SetBaudRate implements hal.Port by reopening the device.
func (p *Port) SetBaudRate(baud int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if baud == p.cfg.Baud {
		return nil
	}
	p.port.Close()
	port, err := p.open(baud)
	if err != nil {
		// keep the port usable at the previous rate
		if port, err2 := p.open(p.cfg.Baud); err2 == nil {
			p.port = port
		}
		return err
	}
	glog.V(2).Infof("%s: baud %d -> %d", p.cfg.Device, p.cfg.Baud, baud)
	p.port, p.cfg.Baud = port, baud
	return nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.port.Close()
}
