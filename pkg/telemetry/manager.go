package telemetry

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/clock"
	"github.com/kubisat/flight.go/pkg/gps"
	"github.com/kubisat/flight.go/pkg/hal"
)

// Defaults.
const (
	DefaultCapacity       = 20
	DefaultSampleInterval = 2 * time.Second
	DefaultFlushEvery     = 10
	DefaultTelemetryPath  = "/telemetry.csv"
	DefaultSensorPath     = "/sensors.csv"
)

// ErrStorageUnavailable indicates the storage is not mounted.
var ErrStorageUnavailable = errors.New("storage unavailable")

// MountState tells if the storage is mounted.
type MountState interface {
	SDCardMounted() bool
}

// Config configures the Manager.
type Config struct {
	Capacity       int           `yaml:"capacity"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	FlushEvery     int           `yaml:"flush_every"`
	TelemetryPath  string        `yaml:"telemetry_path"`
	SensorPath     string        `yaml:"sensor_path"`
	Thresholds     Thresholds    `yaml:"thresholds"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultCapacity,
		SampleInterval: DefaultSampleInterval,
		FlushEvery:     DefaultFlushEvery,
		TelemetryPath:  DefaultTelemetryPath,
		SensorPath:     DefaultSensorPath,
		Thresholds:     DefaultThresholds(),
	}
}

// Sources are the collaborators a Manager samples from.
type Sources struct {
	Clock   clock.Source
	Power   hal.Power
	Sensors hal.Sensors
	GPS     *gps.Data
	Monitor *PowerMonitor
}

// Manager keeps recent samples in parallel ring buffers until flushed.
// It's safe for concurrent use.
type Manager struct {
	cfg     Config
	build   int
	src     Sources
	storage hal.Storage
	mount   MountState
	cadence *Cadence

	lock          sync.Mutex
	telemetry     []TelemetryRecord
	sensors       []SensorRecord
	count         int
	write         int
	// oldest buffered samples already appended to each file by a flush
	// which failed on the other one
	telemetryDone int
	sensorDone    int
	lastTelemetry *TelemetryRecord
	lastSensor    *SensorRecord
	headers       map[string]bool
}

// NewManager creates a Manager.
func NewManager(cfg Config, build int, src Sources, storage hal.Storage, mount MountState) *Manager {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = def.SampleInterval
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = def.FlushEvery
	}
	if cfg.TelemetryPath == "" {
		cfg.TelemetryPath = def.TelemetryPath
	}
	if cfg.SensorPath == "" {
		cfg.SensorPath = def.SensorPath
	}
	return &Manager{
		cfg:       cfg,
		build:     build,
		src:       src,
		storage:   storage,
		mount:     mount,
		cadence:   NewCadence(cfg.SampleInterval, cfg.FlushEvery),
		telemetry: make([]TelemetryRecord, cfg.Capacity),
		sensors:   make([]SensorRecord, cfg.Capacity),
		headers:   make(map[string]bool),
	}
}

// Cadence returns the sampling and flushing schedule.
func (m *Manager) Cadence() *Cadence {
	return m.cadence
}

// Capacity returns the size of the ring buffers.
func (m *Manager) Capacity() int {
	return m.cfg.Capacity
}

// Collect takes a sample of every source and stores it.
func (m *Manager) Collect() (TelemetryRecord, SensorRecord) {
	var ts uint32
	if m.src.Clock != nil {
		var err error
		if ts, err = m.src.Clock.Now(); err != nil {
			glog.Warningf("telemetry timestamp: %v", err)
		}
	}

	tr := TelemetryRecord{Timestamp: ts, Build: m.build}
	if m.src.Power != nil {
		s := hal.SamplePower(m.src.Power)
		tr.BatteryVoltage = s.BatteryVoltage
		tr.SystemVoltage = s.SystemVoltage
		tr.USBCurrent = s.USBCurrent
		tr.SolarCurrent = s.SolarCurrent
		tr.DischargeCurrent = s.DischargeCurrent
		if m.src.Monitor != nil {
			m.src.Monitor.Check(s)
		}
	}
	var rmc, gga []string
	if m.src.GPS != nil {
		rmc, gga = m.src.GPS.RMC(), m.src.GPS.GGA()
	}
	tr.fillGPS(rmc, gga)

	sr := SensorRecord{Timestamp: ts}
	if s := m.src.Sensors; s != nil {
		sr.Temperature, _ = s.Read(hal.Environment, hal.Temperature)
		sr.Pressure, _ = s.Read(hal.Environment, hal.Pressure)
		sr.Humidity, _ = s.Read(hal.Environment, hal.Humidity)
		sr.Light, _ = s.Read(hal.Light, hal.Illuminance)
	}

	m.lock.Lock()
	m.telemetry[m.write] = tr
	m.sensors[m.write] = sr
	m.write = (m.write + 1) % m.cfg.Capacity
	if m.count < m.cfg.Capacity {
		m.count++
	} else {
		m.telemetryDone = decr(m.telemetryDone)
		m.sensorDone = decr(m.sensorDone)
	}
	m.lastTelemetry, m.lastSensor = &tr, &sr
	m.lock.Unlock()
	return tr, sr
}

// Flush appends the buffered samples, oldest first, to the CSV files and
// empties the buffers.
func (m *Manager) Flush() error {
	if m.storage == nil || (m.mount != nil && !m.mount.SDCardMounted()) {
		return ErrStorageUnavailable
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.count == 0 {
		return nil
	}
	start := (m.write - m.count + m.cfg.Capacity) % m.cfg.Capacity
	rows := func(from int, csv func(i int) string) string {
		var sb strings.Builder
		for n := from; n < m.count; n++ {
			sb.WriteString(csv((start + n) % m.cfg.Capacity))
			sb.WriteByte('\n')
		}
		return sb.String()
	}
	if m.telemetryDone < m.count {
		trows := rows(m.telemetryDone, func(i int) string { return m.telemetry[i].CSV() })
		if err := m.appendWithHeader(m.cfg.TelemetryPath, TelemetryHeader, trows); err != nil {
			return err
		}
		m.telemetryDone = m.count
	}
	if m.sensorDone < m.count {
		srows := rows(m.sensorDone, func(i int) string { return m.sensors[i].CSV() })
		if err := m.appendWithHeader(m.cfg.SensorPath, SensorHeader, srows); err != nil {
			return err
		}
		m.sensorDone = m.count
	}
	glog.V(2).Infof("telemetry flushed %d records", m.count)
	m.count, m.write = 0, 0
	m.telemetryDone, m.sensorDone = 0, 0
	return nil
}

func decr(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}

func (m *Manager) appendWithHeader(path, header, rows string) error {
	if !m.headers[path] {
		exists, err := m.fileExists(path)
		if err != nil {
			return err
		}
		if !exists {
			rows = header + "\n" + rows
		}
	}
	if err := m.storage.Append(path, []byte(rows)); err != nil {
		return err
	}
	m.headers[path] = true
	return nil
}

func (m *Manager) fileExists(path string) (bool, error) {
	files, err := m.storage.List()
	if err != nil {
		return false, err
	}
	name := strings.TrimPrefix(path, "/")
	for _, f := range files {
		if f.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of buffered samples.
func (m *Manager) Count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.count
}

// LastTelemetry returns the latest telemetry record.
func (m *Manager) LastTelemetry() (TelemetryRecord, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.lastTelemetry == nil {
		return TelemetryRecord{}, false
	}
	return *m.lastTelemetry, true
}

// LastSensor returns the latest sensor record.
func (m *Manager) LastSensor() (SensorRecord, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.lastSensor == nil {
		return SensorRecord{}, false
	}
	return *m.lastSensor, true
}
