// Package hal defines the peripherals the flight core talks to.
package hal

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrNotMounted indicates the storage is not available.
	ErrNotMounted = errors.New("storage not mounted")
	// ErrUnknownSensor indicates the sensor or field doesn't exist.
	ErrUnknownSensor = errors.New("unknown sensor")
)

// SensorType identifies a sensor.
type SensorType string

// Sensor types.
const (
	Environment SensorType = "environment"
	Light       SensorType = "light"
)

// Field is a measurement of a sensor.
type Field string

// Fields.
const (
	Temperature Field = "temperature"
	Pressure    Field = "pressure"
	Humidity    Field = "humidity"
	Illuminance Field = "light"
)

// Sensors provides the environment measurements.
type Sensors interface {
	Read(SensorType, Field) (float32, error)
	Configure(SensorType, map[string]string) bool
	List() []SensorType
	Fields(SensorType) []Field
}

// Channel is a measurement point of the power monitor.
type Channel uint8

// Channels.
const (
	Battery Channel = iota
	System5V
	USB
	Solar
	Discharge
)

// Power provides the power monitor measurements.
type Power interface {
	Voltage(Channel) (float32, error)
	// Current returns the current in mA.
	Current(Channel) (float32, error)
	IDs() (string, error)
}

// RTC is the real-time clock keeping UTC unix seconds.
type RTC interface {
	Now() (uint32, error)
	Set(uint32) error
}

// Radio is the LoRa modem.
type Radio interface {
	Send(packet []byte) error
	// Receive returns a received packet if there is one, it never blocks.
	Receive() ([]byte, bool)
}

// FileInfo describes a file in the storage.
type FileInfo struct {
	Name string
	Size int64
}

// Storage is the removable file storage.
type Storage interface {
	Append(path string, data []byte) error
	List() ([]FileInfo, error)
	Mount() error
	Unmount() error
}

// Port is a UART. Read returns 0, nil when nothing arrives within
// the read timeout of the port.
type Port interface {
	io.ReadWriter
	BaudRate() int
	SetBaudRate(int) error
}

// GPIO is a single output pin.
type GPIO interface {
	Get() bool
	Set(bool)
}

// Bootloader reboots the device into its firmware loader.
type Bootloader interface {
	Reboot() error
}

// BootloaderFunc is the func form of Bootloader.
type BootloaderFunc func() error

// Reboot implements Bootloader.
func (f BootloaderFunc) Reboot() error {
	return f()
}

// PowerSample is a snapshot of all power channels.
type PowerSample struct {
	BatteryVoltage   float32
	SystemVoltage    float32
	USBCurrent       float32
	SolarCurrent     float32
	DischargeCurrent float32
}

// ChargeCurrent is the total charge current.
func (s PowerSample) ChargeCurrent() float32 {
	return s.USBCurrent + s.SolarCurrent
}

// SamplePower reads all power channels, failed channels read as 0.
func SamplePower(p Power) (s PowerSample) {
	s.BatteryVoltage, _ = p.Voltage(Battery)
	s.SystemVoltage, _ = p.Voltage(System5V)
	s.USBCurrent, _ = p.Current(USB)
	s.SolarCurrent, _ = p.Current(Solar)
	s.DischargeCurrent, _ = p.Current(Discharge)
	return
}

// ReadTimeout is the default read timeout of ports.
const ReadTimeout = 10 * time.Millisecond
