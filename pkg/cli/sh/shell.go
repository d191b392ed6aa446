// Package sh is the interactive ground console talking to the satellite.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/kubisat/flight.go/pkg/hal/serialport"
	"github.com/kubisat/flight.go/pkg/protocol"
	"github.com/kubisat/flight.go/pkg/transport"
	"github.com/kubisat/flight.go/pkg/transport/link"
)

// Config provides the options of the console.
type Config struct {
	// Target is a serial device, optionally serial:///dev/tty?baud=N, or
	// a gateway URL (mqtt://host:port/prefix/, ws://host:port/path).
	Target string
	// Node is the satellite node id on the gateway.
	Node    string
	Baud    int
	Timeout time.Duration
}

var defaultConfig = Config{
	Node:    "kbst",
	Baud:    115200,
	Timeout: transport.DefaultClientTimeout,
}

func init() {
	if val := os.Getenv("KBST_TARGET"); val != "" {
		defaultConfig.Target = val
	}
	if val := os.Getenv("KBST_NODE_ID"); val != "" {
		defaultConfig.Node = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Target, "target", defaultConfig.Target, "Serial device or gateway URL")
	flag.StringVar(&defaultConfig.Node, "node", defaultConfig.Node, "Satellite node ID on the gateway")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Answer timeout")
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *Config
	Conn   *Conn
}

// Conn is an open link to the satellite.
type Conn struct {
	Target string
	Client *transport.Client

	cancel func()
	closer io.Closer
}

// Close closes the link.
func (c *Conn) Close() error {
	c.cancel()
	return c.closer.Close()
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Dial opens the link to target.
func (s *Shell) Dial(target string) (*Conn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Conn{Target: target, cancel: cancel}
	var l transport.Link
	if link.IsRadioURL(target) {
		radio, err := link.Open(ctx, target, s.Config.Node, link.Ground)
		if err != nil {
			cancel()
			return nil, err
		}
		conn.closer = radio
		l = transport.NewRadioLink(radio)
	} else {
		cfg, err := serialConfig(target, s.Config.Baud)
		if err != nil {
			cancel()
			return nil, err
		}
		port, err := serialport.Open(cfg)
		if err != nil {
			cancel()
			return nil, err
		}
		conn.closer = port
		l = &transport.UARTLink{Port: port}
	}
	conn.Client = transport.NewClient(l)
	conn.Client.Timeout = s.Config.Timeout
	conn.Client.Unsolicited = func(f protocol.Frame) {
		s.Shell.Printf("! %s\n", protocol.Encode(f))
	}
	return conn, nil
}

func serialConfig(target string, baud int) (serialport.Config, error) {
	cfg := serialport.Config{Device: target, Baud: baud}
	if !strings.HasPrefix(target, "serial://") {
		return cfg, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return cfg, err
	}
	cfg.Device = u.Path
	if val := u.Query().Get("baud"); val != "" {
		if cfg.Baud, err = strconv.Atoi(val); err != nil {
			return cfg, fmt.Errorf("invalid baud %q", val)
		}
	}
	return cfg, nil
}

// Connect opens the link to target and makes it current.
func (s *Shell) Connect(target string) error {
	conn, err := s.Dial(target)
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", target))
	return nil
}

// Disconnect closes the current link.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Request sends a request and prints the answer.
func Request(c *ishell.Context, req protocol.Frame) ([]protocol.Frame, error) {
	s := ShellFrom(c)
	if s.Conn == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return nil, err
	}
	frames, err := s.Conn.Client.Do(context.Background(), req)
	s.Print(c, frames)
	if err != nil {
		c.Err(err)
	}
	return frames, err
}

// Print prints answer frames.
func (s *Shell) Print(c *ishell.Context, frames []protocol.Frame) {
	if s.OutputJSON {
		out, err := json.Marshal(FramesJSON(frames))
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	for _, f := range frames {
		c.Println(FormatFrame(f))
	}
}

// FormatFrame renders a frame for display.
func FormatFrame(f protocol.Frame) string {
	line := fmt.Sprintf("%s %s %s", f.Operation, f.Key(), f.Value)
	if f.Unit != "" {
		line += " " + f.Unit
	}
	return line
}

// FrameJSON is the JSON form of a frame.
type FrameJSON struct {
	Op      string `json:"op"`
	Group   uint8  `json:"group"`
	Command uint8  `json:"command"`
	Value   string `json:"value"`
	Unit    string `json:"unit,omitempty"`
}

// FramesJSON converts frames to their JSON form.
func FramesJSON(frames []protocol.Frame) []FrameJSON {
	out := make([]FrameJSON, len(frames))
	for n, f := range frames {
		out[n] = FrameJSON{Op: f.Operation.String(), Group: f.Group, Command: f.Command, Value: f.Value, Unit: f.Unit}
	}
	return out
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.Config.Target != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Target)
		}
		if err := s.Connect(s.Config.Target); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Target, err)
		}
		defer s.Disconnect()
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects the satellite.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "TARGET",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			target := s.Config.Target
			if len(c.Args) > 0 {
				target = c.Args[0]
			}
			if target == "" {
				c.Err(fmt.Errorf("TARGET required"))
				return
			}
			if err := s.Connect(target); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects the satellite.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(NewConfig()).Run(flag.Args()...)
}
