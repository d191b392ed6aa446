package event

import (
	"errors"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/hal"
)

// Defaults.
const (
	DefaultCapacity       = 100
	DefaultFlushThreshold = 10
	DefaultPath           = "/event_log.csv"
)

// ErrStorageUnavailable indicates the storage is not mounted.
var ErrStorageUnavailable = errors.New("storage unavailable")

// TimeSource provides event timestamps.
type TimeSource interface {
	Now() (uint32, error)
}

// MountState tells if the storage is mounted.
type MountState interface {
	SDCardMounted() bool
}

// Config configures the Manager.
type Config struct {
	Capacity       int    `yaml:"capacity"`
	FlushThreshold int    `yaml:"flush_threshold"`
	Path           string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultCapacity,
		FlushThreshold: DefaultFlushThreshold,
		Path:           DefaultPath,
	}
}

// Manager keeps recent events in a ring buffer and appends them to the
// event log file. It's safe for concurrent use.
type Manager struct {
	cfg     Config
	clock   TimeSource
	storage hal.Storage
	mount   MountState

	lock      sync.Mutex
	events    []Log
	count     int
	write     int
	nextID    uint16
	unflushed int
}

// NewManager creates a Manager.
func NewManager(cfg Config, clock TimeSource, storage hal.Storage, mount MountState) *Manager {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = def.FlushThreshold
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	return &Manager{
		cfg:     cfg,
		clock:   clock,
		storage: storage,
		mount:   mount,
		events:  make([]Log, cfg.Capacity),
	}
}

// Capacity returns the size of the ring buffer.
func (m *Manager) Capacity() int {
	return m.cfg.Capacity
}

// Log implements Logger.
func (m *Manager) Log(group Group, event uint8) Log {
	ts, err := m.clock.Now()
	if err != nil {
		glog.Warningf("event timestamp: %v", err)
	}
	mounted := m.mounted()

	m.lock.Lock()
	defer m.lock.Unlock()
	l := Log{ID: m.nextID, Timestamp: ts, Group: group, Event: event}
	m.nextID++
	m.events[m.write] = l
	m.write = (m.write + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}
	if m.unflushed < len(m.events) {
		m.unflushed++
	}
	glog.V(3).Infof("event %s/%d id=%d", group, event, l.ID)
	if m.unflushed >= m.cfg.FlushThreshold || group == Power {
		if err := m.flushLocked(mounted); err != nil {
			glog.V(2).Infof("event flush deferred: %v", err)
		}
	}
	return l
}

// Flush appends pending events to the event log file.
func (m *Manager) Flush() error {
	mounted := m.mounted()
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.flushLocked(mounted)
}

func (m *Manager) mounted() bool {
	return m.storage != nil && (m.mount == nil || m.mount.SDCardMounted())
}

func (m *Manager) flushLocked(mounted bool) error {
	if m.unflushed == 0 {
		return nil
	}
	if !mounted {
		return ErrStorageUnavailable
	}
	var sb strings.Builder
	size := len(m.events)
	start := (m.write - m.unflushed + size) % size
	for n := 0; n < m.unflushed; n++ {
		sb.WriteString(m.events[(start+n)%size].CSV())
	}
	if err := m.storage.Append(m.cfg.Path, []byte(sb.String())); err != nil {
		return err
	}
	m.unflushed = 0
	return nil
}

// Count returns the number of events in the buffer.
func (m *Manager) Count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.count
}

// Pending returns the number of events not yet written to storage.
func (m *Manager) Pending() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.unflushed
}

// Get returns the event at index, counted from the oldest.
// An out of range index yields an empty Log.
func (m *Manager) Get(index int) Log {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.getLocked(index)
}

func (m *Manager) getLocked(index int) Log {
	if index < 0 || index >= m.count {
		return Log{}
	}
	if m.count == len(m.events) {
		return m.events[(m.write+index)%len(m.events)]
	}
	return m.events[index]
}

// Last returns up to n most recent events, newest first.
func (m *Manager) Last(n int) []Log {
	m.lock.Lock()
	defer m.lock.Unlock()
	if n > m.count {
		n = m.count
	}
	logs := make([]Log, 0, n)
	for k := 0; k < n; k++ {
		logs = append(logs, m.getLocked(m.count-1-k))
	}
	return logs
}
