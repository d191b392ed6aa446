// Package kbst exposes the satellite commands in the ground console.
package kbst

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/kubisat/flight.go/pkg/cli/sh"
	"github.com/kubisat/flight.go/pkg/protocol"
)

// ParseKey parses the "group.command" notation.
func ParseKey(s string) (group, command uint8, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid command %q, GROUP.COMMAND expected", s)
	}
	g, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid group %q", parts[0])
	}
	c, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid command %q", parts[1])
	}
	return uint8(g), uint8(c), nil
}

// BuildRequest builds a request from the arguments KEY [VALUE...].
// Values are joined by space.
func BuildRequest(op protocol.Operation, args []string) (protocol.Frame, error) {
	if len(args) == 0 {
		return protocol.Frame{}, fmt.Errorf("GROUP.COMMAND required")
	}
	g, c, err := ParseKey(args[0])
	if err != nil {
		return protocol.Frame{}, err
	}
	value := strings.Join(args[1:], " ")
	if op == protocol.Set && value == "" {
		return protocol.Frame{}, fmt.Errorf("VALUE required")
	}
	return protocol.NewFrame(op, g, c, value, protocol.Undefined), nil
}

// Shortcut names a frequently used request.
type Shortcut struct {
	Name    string
	Group   uint8
	Command uint8
	Help    string
}

// Shortcuts are the named GET requests.
var Shortcuts = []Shortcut{
	{"commands", 1, 0, "list the supported commands"},
	{"version", 1, 1, "firmware build number"},
	{"battery", 2, 2, "battery voltage"},
	{"charge", 2, 6, "total charge current"},
	{"time", 3, 0, "satellite clock"},
	{"sensors", 4, 2, "list sensors"},
	{"events", 5, 1, "last events"},
	{"files", 6, 0, "list files on storage"},
	{"rmc", 7, 3, "last RMC sentence"},
	{"gga", 7, 4, "last GGA sentence"},
	{"telemetry", 8, 2, "last telemetry sample"},
}

func requestCmd(name string, op protocol.Operation, help string) *ishell.Cmd {
	return &ishell.Cmd{
		Name: name,
		Help: help,
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			req, err := BuildRequest(op, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Request(c, req)
		}),
	}
}

func shortcutCmd(s Shortcut) *ishell.Cmd {
	return &ishell.Cmd{
		Name: s.Name,
		Help: "[VALUE] " + s.Help,
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.Request(c, protocol.NewFrame(protocol.Get, s.Group, s.Command,
				strings.Join(c.Args, " "), protocol.Undefined))
		}),
	}
}

var (
	// GetCmd sends a GET request.
	GetCmd = requestCmd("get", protocol.Get, "GROUP.COMMAND [VALUE]")
	// SetCmd sends a SET request.
	SetCmd = requestCmd("set", protocol.Set, "GROUP.COMMAND VALUE")

	// RawCmd sends a frame as typed.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "KBST;0;OP;G;C;VALUE;TSBK",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			req, err := protocol.Decode(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			sh.Request(c, req)
		}),
	}
)

func init() {
	sh.AddCmds(GetCmd, SetCmd, &RawCmd)
	for _, s := range Shortcuts {
		sh.AddCmds(shortcutCmd(s))
	}
}
