package config

import (
	"flag"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.NotEmpty(t, c.NodeID)
	require.Equal(t, 115200, c.DebugUART.Baud)
	require.Equal(t, 9600, c.GPSUART.Baud)
	require.EqualValues(t, 0xA5, c.LoRa.LocalAddress)
	require.EqualValues(t, 0xA6, c.LoRa.RemoteAddress)
	require.Equal(t, 150*time.Millisecond, c.LoRa.FrameInterval)
	require.Equal(t, 20, c.Telemetry.Capacity)
	require.Equal(t, 2*time.Second, c.Telemetry.SampleInterval)
	require.Equal(t, 10, c.Telemetry.FlushEvery)
	require.Equal(t, 100, c.Events.Capacity)
	require.Equal(t, 10, c.Events.FlushThreshold)
	require.Equal(t, 100*time.Millisecond, c.BootloaderDelay)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"telemetry capacity", func(c *Config) { c.Telemetry.Capacity = 0 }},
		{"flush every zero", func(c *Config) { c.Telemetry.FlushEvery = 0 }},
		{"flush every above capacity", func(c *Config) { c.Telemetry.FlushEvery = 21 }},
		{"sample interval", func(c *Config) { c.Telemetry.SampleInterval = 50 * time.Millisecond }},
		{"event capacity", func(c *Config) { c.Events.Capacity = 0 }},
		{"event threshold", func(c *Config) { c.Events.FlushThreshold = 0 }},
		{"same addresses", func(c *Config) { c.LoRa.RemoteAddress = c.LoRa.LocalAddress }},
		{"link scheme", func(c *Config) { c.LoRa.LinkURL = "http://gateway/" }},
		{"downlink scheme", func(c *Config) { c.Downlink.URL = "ws://broker/" }},
		{"baud", func(c *Config) { c.GPSUART.Baud = 0 }},
		{"build", func(c *Config) { c.BuildNumber = -1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.modify(c)
			require.Error(t, c.Validate())
		})
	}

	c := Default()
	c.LoRa.LinkURL = "ws://localhost:8080/lora"
	c.Downlink.URL = "mqtt://localhost:1883/kbst/"
	require.NoError(t, c.Validate())
}

func writeFile(t *testing.T, content string) (string, func()) {
	dir, err := ioutil.TempDir("", "config")
	require.NoError(t, err)
	fn := filepath.Join(dir, "kbst.yaml")
	require.NoError(t, ioutil.WriteFile(fn, []byte(content), 0644))
	return fn, func() { os.RemoveAll(dir) }
}

const sample = `
build_number: 42
node_id: sat-1
debug_uart:
  port: /dev/ttyACM0
  baud: 57600
lora:
  local_address: 0x10
  remote_address: 0x20
  link_url: mqtt://gateway:1883/lora/
telemetry:
  capacity: 30
  sample_interval: 500ms
  flush_every: 15
`

func TestLoadFile(t *testing.T) {
	fn, cleanup := writeFile(t, sample)
	defer cleanup()
	c := Default()
	require.NoError(t, c.LoadFile(fn))
	require.Equal(t, 42, c.BuildNumber)
	require.Equal(t, "sat-1", c.NodeID)
	require.Equal(t, "/dev/ttyACM0", c.DebugUART.Device)
	require.Equal(t, 57600, c.DebugUART.Baud)
	require.Equal(t, 9600, c.GPSUART.Baud)
	require.EqualValues(t, 0x10, c.LoRa.LocalAddress)
	require.EqualValues(t, 0x20, c.LoRa.RemoteAddress)
	require.Equal(t, 150*time.Millisecond, c.LoRa.FrameInterval)
	require.Equal(t, 30, c.Telemetry.Capacity)
	require.Equal(t, 500*time.Millisecond, c.Telemetry.SampleInterval)
	require.Equal(t, 15, c.Telemetry.FlushEvery)
	require.NoError(t, c.Validate())

	bad, cleanupBad := writeFile(t, "unknown_key: 1\n")
	defer cleanupBad()
	require.Error(t, Default().LoadFile(bad))
}

func TestPrecedence(t *testing.T) {
	fn, cleanup := writeFile(t, sample)
	defer cleanup()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"-config", fn,
		"-simulate",
		"-debug-baud", "9600",
		"-lora-local", "0xA5",
	}))
	c, err := f.load(envMap(map[string]string{
		"KBST_NODE_ID":    "from-env",
		"KBST_DEBUG_BAUD": "19200",
		"KBST_GPS_PORT":   "/dev/ttyS1",
	}))
	require.NoError(t, err)
	require.Equal(t, 42, c.BuildNumber)
	require.Equal(t, "from-env", c.NodeID)
	require.Equal(t, "/dev/ttyS1", c.GPSUART.Device)
	require.Equal(t, 9600, c.DebugUART.Baud)
	require.True(t, c.Simulate)
	require.EqualValues(t, 0xA5, c.LoRa.LocalAddress)
	require.EqualValues(t, 0x20, c.LoRa.RemoteAddress)
}

func TestInvalidOverrides(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	SetupFlags(fs)
	require.Error(t, fs.Parse([]string{"-debug-baud", "fast"}))

	c := Default()
	require.Error(t, c.ApplyEnv(envMap(map[string]string{"KBST_SAMPLE_INTERVAL": "2"})))
	require.NoError(t, c.ApplyEnv(noEnv))

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	f := SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{"-lora-remote", "0xA5"}))
	_, err := f.load(noEnv)
	require.Error(t, err)
}
