// Package console prints the human readable debug log of the satellite on
// its debug UART.
package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kubisat/flight.go/pkg/state"
)

// Config configures the file mirror of the console.
type Config struct {
	// File mirrors the console when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// VerbositySource provides the current verbosity.
type VerbositySource interface {
	Verbosity() state.Verbosity
}

// Console writes lines as "[<ms since start>ms] - <origin>: <msg>\r\n",
// dropping those above the current verbosity.
type Console struct {
	out       io.Writer
	verbosity VerbositySource
	start     time.Time
	// Now is the time source, time.Now when nil.
	Now func() time.Time

	lock   sync.Mutex
	mirror io.WriteCloser
}

// New creates a Console writing to out.
func New(out io.Writer, verbosity VerbositySource, cfg Config) *Console {
	c := &Console{out: out, verbosity: verbosity, start: time.Now()}
	if cfg.File != "" {
		c.mirror = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}
	return c
}

func (c *Console) elapsed() time.Duration {
	if c.Now != nil {
		return c.Now().Sub(c.start)
	}
	return time.Since(c.start)
}

// Enabled tells if lines at level are printed.
func (c *Console) Enabled(level state.Verbosity) bool {
	return level != state.Silent && level <= c.verbosity.Verbosity()
}

// Printf prints a line at level.
func (c *Console) Printf(level state.Verbosity, origin, format string, args ...interface{}) {
	if !c.Enabled(level) {
		return
	}
	line := fmt.Sprintf("[%dms] - %s: %s\r\n",
		c.elapsed()/time.Millisecond, origin, fmt.Sprintf(format, args...))
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.out != nil {
		io.WriteString(c.out, line)
	}
	if c.mirror != nil {
		io.WriteString(c.mirror, line)
	}
}

// Errorf prints at Error level.
func (c *Console) Errorf(origin, format string, args ...interface{}) {
	c.Printf(state.Error, origin, format, args...)
}

// Warningf prints at Warning level.
func (c *Console) Warningf(origin, format string, args ...interface{}) {
	c.Printf(state.Warning, origin, format, args...)
}

// Infof prints at Info level.
func (c *Console) Infof(origin, format string, args ...interface{}) {
	c.Printf(state.Info, origin, format, args...)
}

// Debugf prints at Debug level.
func (c *Console) Debugf(origin, format string, args ...interface{}) {
	c.Printf(state.Debug, origin, format, args...)
}

// Close closes the file mirror.
func (c *Console) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.mirror == nil {
		return nil
	}
	err := c.mirror.Close()
	c.mirror = nil
	return err
}
