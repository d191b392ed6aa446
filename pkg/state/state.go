// Package state holds the system-wide flags shared by both cores.
package state

import "sync"

// Verbosity is the debug console verbosity.
type Verbosity uint8

// Verbosity levels.
const (
	Silent Verbosity = iota
	Error
	Warning
	Info
	Debug

	// MaxVerbosity is the highest accepted level.
	MaxVerbosity = Debug
)

// String implements fmt.Stringer.
func (v Verbosity) String() string {
	switch v {
	case Silent:
		return "SILENT"
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	}
	return "UNKNOWN"
}

// OperatingMode tells how the satellite is powered.
type OperatingMode uint8

// Operating modes.
const (
	// BatteryPowered is the flight mode.
	BatteryPowered OperatingMode = iota
	// GroundPowered means external USB power is present.
	GroundPowered
)

// String implements fmt.Stringer.
func (m OperatingMode) String() string {
	if m == GroundPowered {
		return "GROUND"
	}
	return "BATTERY"
}

// State is the process-wide set of flags. It's safe for concurrent use.
type State struct {
	lock                   sync.RWMutex
	verbosity              Verbosity
	sdCardMounted          bool
	bootloaderResetPending bool
	gpsCollectionPaused    bool
	mode                   OperatingMode
}

// New creates the State with defaults.
func New() *State {
	return &State{verbosity: Info, mode: BatteryPowered}
}

// Verbosity gets the console verbosity.
func (s *State) Verbosity() Verbosity {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.verbosity
}

// SetVerbosity sets the console verbosity, returns false when out of range.
func (s *State) SetVerbosity(v Verbosity) bool {
	if v > MaxVerbosity {
		return false
	}
	s.lock.Lock()
	s.verbosity = v
	s.lock.Unlock()
	return true
}

// SDCardMounted tells if the storage is available.
func (s *State) SDCardMounted() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.sdCardMounted
}

// SetSDCardMounted updates the storage availability.
func (s *State) SetSDCardMounted(mounted bool) {
	s.lock.Lock()
	s.sdCardMounted = mounted
	s.lock.Unlock()
}

// BootloaderResetPending tells if a reboot into bootloader is requested.
func (s *State) BootloaderResetPending() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.bootloaderResetPending
}

// SetBootloaderResetPending requests or clears the bootloader reboot.
func (s *State) SetBootloaderResetPending(pending bool) {
	s.lock.Lock()
	s.bootloaderResetPending = pending
	s.lock.Unlock()
}

// GPSCollectionPaused tells if GPS sentences must not be consumed.
func (s *State) GPSCollectionPaused() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.gpsCollectionPaused
}

// SetGPSCollectionPaused pauses or resumes GPS collection.
func (s *State) SetGPSCollectionPaused(paused bool) {
	s.lock.Lock()
	s.gpsCollectionPaused = paused
	s.lock.Unlock()
}

// Mode gets the operating mode.
func (s *State) Mode() OperatingMode {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.mode
}

// SetMode sets the operating mode.
func (s *State) SetMode(mode OperatingMode) {
	s.lock.Lock()
	s.mode = mode
	s.lock.Unlock()
}
