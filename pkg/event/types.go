// Package event keeps the log of notable events.
package event

import "fmt"

// Group classifies events.
type Group uint8

// Groups.
const (
	System Group = iota
	Power
	Comms
	GPS
	Clock
)

var groupNames = [...]string{
	System: "SYSTEM",
	Power:  "POWER",
	Comms:  "COMMS",
	GPS:    "GPS",
	Clock:  "CLOCK",
}

// String implements fmt.Stringer.
func (g Group) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return fmt.Sprintf("GROUP%d", g)
}

// System events.
const (
	Boot          uint8 = 0x01
	Shutdown      uint8 = 0x02
	WatchdogReset uint8 = 0x03
	Core1Start    uint8 = 0x04
	Core1Stop     uint8 = 0x05
)

// Power events.
const (
	BatteryLow      uint8 = 0x01
	BatteryFull     uint8 = 0x02
	PowerFalling    uint8 = 0x03
	BatteryNormal   uint8 = 0x04
	SolarActive     uint8 = 0x05
	SolarInactive   uint8 = 0x06
	USBConnected    uint8 = 0x07
	USBDisconnected uint8 = 0x08
)

// Comms events.
const (
	RadioInit   uint8 = 0x01
	RadioError  uint8 = 0x02
	MsgReceived uint8 = 0x03
	MsgSent     uint8 = 0x04
	UARTError   uint8 = 0x06
)

// GPS events.
const (
	GPSLock             uint8 = 0x01
	GPSLost             uint8 = 0x02
	GPSError            uint8 = 0x03
	GPSPowerOn          uint8 = 0x04
	GPSPowerOff         uint8 = 0x05
	GPSDataReady        uint8 = 0x06
	GPSPassThroughStart uint8 = 0x07
	GPSPassThroughEnd   uint8 = 0x08
)

// Clock events.
const (
	ClockChanged uint8 = 0x01
	ClockGPSSync uint8 = 0x02
)

// Log is a logged event.
type Log struct {
	ID        uint16
	Timestamp uint32
	Group     Group
	Event     uint8
}

// Hex renders the event as IIIITTTTTTTTGGEE.
func (l Log) Hex() string {
	return fmt.Sprintf("%04X%08X%02X%02X", l.ID, l.Timestamp, uint8(l.Group), l.Event)
}

// CSV renders the event as a row of the event log file.
func (l Log) CSV() string {
	return fmt.Sprintf("%d;%d;%d;%d\n", l.ID, l.Timestamp, uint8(l.Group), l.Event)
}

// Logger records events.
type Logger interface {
	Log(group Group, event uint8) Log
}

// Discard is a Logger dropping everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Log(group Group, event uint8) Log {
	return Log{Group: group, Event: event}
}
