// Package sim provides in-memory peripherals for lab runs and tests.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kubisat/flight.go/pkg/hal"
)

// ErrUnavailable is returned by peripherals configured to fail.
var ErrUnavailable = errors.New("peripheral unavailable")

// RTC keeps time as an offset to the host clock.
type RTC struct {
	lock   sync.Mutex
	offset int64
	fixed  *uint32
	Fail   bool
}

// NewRTC creates an RTC following the host clock.
func NewRTC() *RTC {
	return &RTC{}
}

// NewFixedRTC creates an RTC frozen at t.
func NewFixedRTC(t uint32) *RTC {
	return &RTC{fixed: &t}
}

// Now implements hal.RTC.
func (r *RTC) Now() (uint32, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Fail {
		return 0, ErrUnavailable
	}
	if r.fixed != nil {
		return *r.fixed, nil
	}
	return uint32(time.Now().Unix() + r.offset), nil
}

// Set implements hal.RTC.
func (r *RTC) Set(t uint32) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Fail {
		return ErrUnavailable
	}
	if r.fixed != nil {
		r.fixed = &t
		return nil
	}
	r.offset = int64(t) - time.Now().Unix()
	return nil
}

// Power reports configurable readings.
type Power struct {
	lock     sync.Mutex
	voltages map[hal.Channel]float32
	currents map[hal.Channel]float32
	Fail     bool
}

// NewPower creates a Power with nominal readings of a charged battery on
// solar power.
func NewPower() *Power {
	return &Power{
		voltages: map[hal.Channel]float32{
			hal.Battery:  3.9,
			hal.System5V: 5.02,
		},
		currents: map[hal.Channel]float32{
			hal.USB:       0,
			hal.Solar:     85,
			hal.Discharge: 120,
		},
	}
}

// SetVoltage sets a voltage reading.
func (p *Power) SetVoltage(ch hal.Channel, v float32) {
	p.lock.Lock()
	p.voltages[ch] = v
	p.lock.Unlock()
}

// SetCurrent sets a current reading in mA.
func (p *Power) SetCurrent(ch hal.Channel, v float32) {
	p.lock.Lock()
	p.currents[ch] = v
	p.lock.Unlock()
}

// Voltage implements hal.Power.
func (p *Power) Voltage(ch hal.Channel) (float32, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.Fail {
		return 0, ErrUnavailable
	}
	return p.voltages[ch], nil
}

// Current implements hal.Power.
func (p *Power) Current(ch hal.Channel) (float32, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.Fail {
		return 0, ErrUnavailable
	}
	return p.currents[ch], nil
}

// IDs implements hal.Power.
func (p *Power) IDs() (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.Fail {
		return "", ErrUnavailable
	}
	return "MAN 0x5449 - DIE 0x2260", nil
}

// Sensors reports configurable readings.
type Sensors struct {
	lock     sync.Mutex
	readings map[hal.SensorType]map[hal.Field]float32
	config   map[hal.SensorType]map[string]string
}

// NewSensors creates Sensors with room-condition readings.
func NewSensors() *Sensors {
	return &Sensors{
		readings: map[hal.SensorType]map[hal.Field]float32{
			hal.Environment: {
				hal.Temperature: 21.5,
				hal.Pressure:    1013.2,
				hal.Humidity:    40,
			},
			hal.Light: {
				hal.Illuminance: 320,
			},
		},
		config: make(map[hal.SensorType]map[string]string),
	}
}

// SetReading sets a reading.
func (s *Sensors) SetReading(st hal.SensorType, f hal.Field, v float32) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.readings[st] == nil {
		s.readings[st] = make(map[hal.Field]float32)
	}
	s.readings[st][f] = v
}

// Read implements hal.Sensors.
func (s *Sensors) Read(st hal.SensorType, f hal.Field) (float32, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, ok := s.readings[st][f]
	if !ok {
		return 0, hal.ErrUnknownSensor
	}
	return v, nil
}

// Configure implements hal.Sensors.
func (s *Sensors) Configure(st hal.SensorType, cfg map[string]string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.readings[st]; !ok {
		return false
	}
	if s.config[st] == nil {
		s.config[st] = make(map[string]string)
	}
	for k, v := range cfg {
		s.config[st][k] = v
	}
	return true
}

// Config gets the configuration applied to a sensor.
func (s *Sensors) Config(st hal.SensorType) map[string]string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.config[st]
}

// List implements hal.Sensors.
func (s *Sensors) List() []hal.SensorType {
	s.lock.Lock()
	defer s.lock.Unlock()
	types := make([]hal.SensorType, 0, len(s.readings))
	for st := range s.readings {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Fields implements hal.Sensors.
func (s *Sensors) Fields(st hal.SensorType) []hal.Field {
	s.lock.Lock()
	defer s.lock.Unlock()
	fields := make([]hal.Field, 0, len(s.readings[st]))
	for f := range s.readings[st] {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// GPIO is a pin keeping its level.
type GPIO struct {
	lock  sync.Mutex
	level bool
}

// Get implements hal.GPIO.
func (g *GPIO) Get() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.level
}

// Set implements hal.GPIO.
func (g *GPIO) Set(level bool) {
	g.lock.Lock()
	g.level = level
	g.lock.Unlock()
}

// Storage keeps files in memory.
type Storage struct {
	lock    sync.Mutex
	files   map[string]*bytes.Buffer
	mounted bool
	// FailAppend makes Append fail while mounted.
	FailAppend bool
	// FailPath makes Append fail for this path only.
	FailPath string
}

// NewStorage creates an unmounted Storage.
func NewStorage() *Storage {
	return &Storage{files: make(map[string]*bytes.Buffer)}
}

// Mount implements hal.Storage.
func (s *Storage) Mount() error {
	s.lock.Lock()
	s.mounted = true
	s.lock.Unlock()
	return nil
}

// Unmount implements hal.Storage.
func (s *Storage) Unmount() error {
	s.lock.Lock()
	s.mounted = false
	s.lock.Unlock()
	return nil
}

// Append implements hal.Storage.
func (s *Storage) Append(path string, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.mounted {
		return hal.ErrNotMounted
	}
	if s.FailAppend || (s.FailPath != "" && s.FailPath == path) {
		return ErrUnavailable
	}
	name := strings.TrimPrefix(path, "/")
	buf := s.files[name]
	if buf == nil {
		buf = &bytes.Buffer{}
		s.files[name] = buf
	}
	buf.Write(data)
	return nil
}

// List implements hal.Storage.
func (s *Storage) List() ([]hal.FileInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.mounted {
		return nil, hal.ErrNotMounted
	}
	files := make([]hal.FileInfo, 0, len(s.files))
	for name, buf := range s.files {
		files = append(files, hal.FileInfo{Name: name, Size: int64(buf.Len())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Content returns the content of a file.
func (s *Storage) Content(path string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if buf := s.files[strings.TrimPrefix(path, "/")]; buf != nil {
		return buf.String()
	}
	return ""
}

// Bootloader records reboot requests.
type Bootloader struct {
	lock    sync.Mutex
	reboots int
}

// Reboot implements hal.Bootloader.
func (b *Bootloader) Reboot() error {
	b.lock.Lock()
	b.reboots++
	b.lock.Unlock()
	return nil
}

// Reboots returns the number of reboot requests.
func (b *Bootloader) Reboots() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.reboots
}

// Radio is a loopback modem, packets queued with Inject are received and
// sent packets are collected.
type Radio struct {
	lock  sync.Mutex
	rx    [][]byte
	tx    [][]byte
	times []time.Time
	Fail  bool
}

// Inject queues a packet to be received.
func (r *Radio) Inject(pkt []byte) {
	r.lock.Lock()
	r.rx = append(r.rx, pkt)
	r.lock.Unlock()
}

// Send implements hal.Radio.
func (r *Radio) Send(pkt []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Fail {
		return ErrUnavailable
	}
	r.tx = append(r.tx, append([]byte(nil), pkt...))
	r.times = append(r.times, time.Now())
	return nil
}

// Receive implements hal.Radio.
func (r *Radio) Receive() ([]byte, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.rx) == 0 {
		return nil, false
	}
	pkt := r.rx[0]
	r.rx = r.rx[1:]
	return pkt, true
}

// Sent returns the packets sent and the time each was sent.
func (r *Radio) Sent() ([][]byte, []time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([][]byte(nil), r.tx...), append([]time.Time(nil), r.times...)
}

// Port is an in-memory UART. Bytes queued with Feed are read,
// written bytes are collected.
type Port struct {
	lock  sync.Mutex
	in    bytes.Buffer
	out   bytes.Buffer
	baud  int
	bauds []int
	// OnRead is called when Read finds no data, it may Feed more.
	OnRead func(*Port)
}

// NewPort creates a Port at a baud rate.
func NewPort(baud int) *Port {
	return &Port{baud: baud}
}

// Feed queues bytes to be read.
func (p *Port) Feed(data []byte) {
	p.lock.Lock()
	p.in.Write(data)
	p.lock.Unlock()
}

// Read implements io.Reader, it never blocks.
func (p *Port) Read(b []byte) (int, error) {
	p.lock.Lock()
	if p.in.Len() == 0 && p.OnRead != nil {
		fn := p.OnRead
		p.lock.Unlock()
		fn(p)
		p.lock.Lock()
	}
	defer p.lock.Unlock()
	if p.in.Len() == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	return p.in.Read(b)
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.out.Write(b)
}

// Output returns what has been written.
func (p *Port) Output() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.out.String()
}

// BaudRate implements hal.Port.
func (p *Port) BaudRate() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.baud
}

// SetBaudRate implements hal.Port.
func (p *Port) SetBaudRate(baud int) error {
	if baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", baud)
	}
	p.lock.Lock()
	p.baud = baud
	p.bauds = append(p.bauds, baud)
	p.lock.Unlock()
	return nil
}

// BaudHistory returns every baud rate set.
func (p *Port) BaudHistory() []int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]int(nil), p.bauds...)
}
