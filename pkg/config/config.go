// Package config loads the settings of the flight daemon from a YAML file,
// KBST_* environment variables and command line flags, in this order.
package config

import (
	"flag"
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v2"

	"github.com/kubisat/flight.go/pkg/console"
	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/hal/serialport"
	"github.com/kubisat/flight.go/pkg/telemetry"
	"github.com/kubisat/flight.go/pkg/transport"
)

// EnvConfigFile names the config file when -config is absent.
const EnvConfigFile = "KBST_CONFIG"

// AppID salts the machine id used as default node id.
const AppID = "kbst"

// LoRaConfig configures the radio link.
type LoRaConfig struct {
	LocalAddress  uint8 `yaml:"local_address"`
	RemoteAddress uint8 `yaml:"remote_address"`
	// LinkURL reaches the modem gateway, mqtt://host:port/prefix/ or
	// ws://host:port/path. Empty disables the radio.
	LinkURL       string        `yaml:"link_url"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// StorageConfig configures the file storage.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// DownlinkConfig configures the telemetry publisher.
type DownlinkConfig struct {
	// URL of the MQTT broker, empty disables the downlink.
	URL string `yaml:"url"`
}

// Config is the complete daemon configuration.
type Config struct {
	BuildNumber     int               `yaml:"build_number"`
	NodeID          string            `yaml:"node_id"`
	Simulate        bool              `yaml:"simulate"`
	LoopInterval    time.Duration     `yaml:"loop_interval"`
	BootloaderDelay time.Duration     `yaml:"bootloader_delay"`
	DebugUART       serialport.Config `yaml:"debug_uart"`
	GPSUART         serialport.Config `yaml:"gps_uart"`
	LoRa            LoRaConfig        `yaml:"lora"`
	Storage         StorageConfig     `yaml:"storage"`
	Telemetry       telemetry.Config  `yaml:"telemetry"`
	Events          event.Config      `yaml:"events"`
	Console         console.Config    `yaml:"console"`
	Downlink        DownlinkConfig    `yaml:"downlink"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		NodeID:          defaultNodeID(),
		LoopInterval:    100 * time.Millisecond,
		BootloaderDelay: 100 * time.Millisecond,
		DebugUART:       serialport.Config{Baud: 115200},
		GPSUART:         serialport.Config{Baud: 9600},
		LoRa: LoRaConfig{
			LocalAddress:  transport.DefaultLocalAddress,
			RemoteAddress: transport.DefaultRemoteAddress,
			FrameInterval: transport.DefaultFrameInterval,
		},
		Storage:   StorageConfig{Dir: "sd"},
		Telemetry: telemetry.DefaultConfig(),
		Events:    event.DefaultConfig(),
		Console:   console.Config{MaxSizeMB: 10, MaxBackups: 3},
	}
}

func defaultNodeID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil || len(id) < 12 {
		return AppID
	}
	return AppID + "-" + id[:12]
}

// LoadFile merges a YAML file into c.
func (c *Config) LoadFile(fn string) error {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("%s: %v", fn, err)
	}
	return nil
}

// ApplyEnv applies the KBST_* overrides found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, s := range settings {
		if raw, ok := lookup(s.env); ok && raw != "" {
			if err := s.apply(c, raw); err != nil {
				return fmt.Errorf("%s: %v", s.env, err)
			}
		}
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.BuildNumber < 0:
		return fmt.Errorf("build_number must not be negative")
	case c.LoopInterval <= 0:
		return fmt.Errorf("loop_interval must be positive")
	case c.Telemetry.Capacity < 1:
		return fmt.Errorf("telemetry capacity must be at least 1")
	case c.Telemetry.FlushEvery < 1 || c.Telemetry.FlushEvery > c.Telemetry.Capacity:
		return fmt.Errorf("telemetry flush_every must be in [1, %d]", c.Telemetry.Capacity)
	case c.Telemetry.SampleInterval < telemetry.MinSampleInterval:
		return fmt.Errorf("telemetry sample_interval must be at least %v", telemetry.MinSampleInterval)
	case c.Events.Capacity < 1:
		return fmt.Errorf("events capacity must be at least 1")
	case c.Events.FlushThreshold < 1:
		return fmt.Errorf("events flush_threshold must be at least 1")
	case c.LoRa.LocalAddress == c.LoRa.RemoteAddress:
		return fmt.Errorf("lora local and remote addresses must differ")
	case c.DebugUART.Baud <= 0 || c.GPSUART.Baud <= 0:
		return fmt.Errorf("baud rates must be positive")
	}
	if err := checkScheme("lora link_url", c.LoRa.LinkURL, "mqtt", "mqtts", "tcp", "ssl", "ws", "wss"); err != nil {
		return err
	}
	return checkScheme("downlink url", c.Downlink.URL, "mqtt", "mqtts", "tcp", "ssl")
}

func checkScheme(name, rawURL string, schemes ...string) error {
	if rawURL == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: %v", name, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown scheme %q", name, u.Scheme)
}

// Flags holds the command line overrides.
type Flags struct {
	ConfigFile string

	values map[string]string
}

// SetupFlags registers the flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{values: make(map[string]string)}
	fs.StringVar(&f.ConfigFile, "config", os.Getenv(EnvConfigFile), "YAML config file")
	def := Default()
	for _, s := range settings {
		fs.Var(&flagValue{s: s, f: f, def: s.format(def)}, s.flag, s.usage)
	}
	return f
}

// Load builds the configuration: defaults, config file, environment,
// then flags. The result is validated.
func (f *Flags) Load() (*Config, error) {
	return f.load(os.LookupEnv)
}

func (f *Flags) load(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	if f.ConfigFile != "" {
		if err := c.LoadFile(f.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := c.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	for _, s := range settings {
		if raw, ok := f.values[s.flag]; ok {
			if err := s.apply(c, raw); err != nil {
				return nil, fmt.Errorf("-%s: %v", s.flag, err)
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

type flagValue struct {
	s   setting
	f   *Flags
	def string
}

func (v *flagValue) String() string {
	if v == nil {
		return ""
	}
	return v.def
}

func (v *flagValue) Set(raw string) error {
	var scratch Config
	if err := v.s.apply(&scratch, raw); err != nil {
		return err
	}
	v.f.values[v.s.flag] = raw
	return nil
}

func (v *flagValue) IsBoolFlag() bool {
	_, ok := v.s.field(&Config{}).(*bool)
	return ok
}

// setting is a key overridable by environment and flag.
type setting struct {
	flag  string
	env   string
	usage string
	field func(*Config) interface{}
}

var settings = []setting{
	{"build", "KBST_BUILD", "Build number", func(c *Config) interface{} { return &c.BuildNumber }},
	{"node-id", "KBST_NODE_ID", "Node ID", func(c *Config) interface{} { return &c.NodeID }},
	{"simulate", "KBST_SIMULATE", "Use simulated peripherals", func(c *Config) interface{} { return &c.Simulate }},
	{"debug-port", "KBST_DEBUG_PORT", "Debug UART device", func(c *Config) interface{} { return &c.DebugUART.Device }},
	{"debug-baud", "KBST_DEBUG_BAUD", "Debug UART baud rate", func(c *Config) interface{} { return &c.DebugUART.Baud }},
	{"gps-port", "KBST_GPS_PORT", "GPS UART device", func(c *Config) interface{} { return &c.GPSUART.Device }},
	{"gps-baud", "KBST_GPS_BAUD", "GPS UART baud rate", func(c *Config) interface{} { return &c.GPSUART.Baud }},
	{"lora-local", "KBST_LORA_LOCAL", "LoRa local address", func(c *Config) interface{} { return &c.LoRa.LocalAddress }},
	{"lora-remote", "KBST_LORA_REMOTE", "LoRa remote address", func(c *Config) interface{} { return &c.LoRa.RemoteAddress }},
	{"link", "KBST_LINK_URL", "LoRa gateway URL", func(c *Config) interface{} { return &c.LoRa.LinkURL }},
	{"storage", "KBST_STORAGE_DIR", "Storage directory", func(c *Config) interface{} { return &c.Storage.Dir }},
	{"sample-interval", "KBST_SAMPLE_INTERVAL", "Telemetry sample interval", func(c *Config) interface{} { return &c.Telemetry.SampleInterval }},
	{"downlink", "KBST_DOWNLINK_URL", "Telemetry downlink MQTT URL", func(c *Config) interface{} { return &c.Downlink.URL }},
	{"console-file", "KBST_CONSOLE_FILE", "Mirror the debug console to file", func(c *Config) interface{} { return &c.Console.File }},
}

func (s setting) apply(c *Config, raw string) error {
	switch p := s.field(c).(type) {
	case *string:
		*p = raw
	case *int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*p = v
	case *uint8:
		v, err := strconv.ParseUint(raw, 0, 8)
		if err != nil {
			return err
		}
		*p = uint8(v)
	case *bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*p = v
	case *time.Duration:
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*p = v
	default:
		panic(fmt.Sprintf("setting %s: unsupported type %T", s.flag, p))
	}
	return nil
}

func (s setting) format(c *Config) string {
	switch p := s.field(c).(type) {
	case *uint8:
		return fmt.Sprintf("0x%02X", *p)
	default:
		return fmt.Sprint(deref(p))
	}
}

func deref(p interface{}) interface{} {
	switch v := p.(type) {
	case *string:
		return *v
	case *int:
		return *v
	case *bool:
		return *v
	case *time.Duration:
		return *v
	}
	return p
}
