// Package command maps (group, command) pairs to their handlers.
package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/protocol"
)

// Key identifies a command as group<<8 | command.
type Key uint16

// MakeKey builds a Key.
func MakeKey(group, command uint8) Key {
	return Key(group)<<8 | Key(command)
}

// Group returns the group of the key.
func (k Key) Group() uint8 {
	return uint8(k >> 8)
}

// Command returns the command of the key.
func (k Key) Command() uint8 {
	return uint8(k)
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("%d.%d", k.Group(), k.Command())
}

// Request is a decoded command.
type Request struct {
	Group   uint8
	Command uint8
	Param   string
	Op      protocol.Operation
}

// Handler executes a command and returns the answer frames.
type Handler func(ctx context.Context, req Request) []protocol.Frame

// Registry is the immutable command table.
type Registry struct {
	handlers map[Key]Handler
	keys     []Key
}

// Entry is a row of the command table.
type Entry struct {
	Group   uint8
	Command uint8
	Handler Handler
}

// NewRegistry builds a Registry. Duplicated keys panic.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{handlers: make(map[Key]Handler, len(entries))}
	for _, e := range entries {
		key := MakeKey(e.Group, e.Command)
		if _, exist := r.handlers[key]; exist {
			panic(fmt.Sprintf("command %s registered twice", key))
		}
		r.handlers[key] = e.Handler
		r.keys = append(r.keys, key)
	}
	sort.Slice(r.keys, func(i, j int) bool { return r.keys[i] < r.keys[j] })
	return r
}

// Keys returns all registered keys in ascending order.
func (r *Registry) Keys() []Key {
	return append([]Key(nil), r.keys...)
}

// Dispatch executes a command. Unknown commands and handler panics are
// answered with an Err frame.
func (r *Registry) Dispatch(ctx context.Context, group, command uint8, param string, op protocol.Operation) (frames []protocol.Frame) {
	key := MakeKey(group, command)
	h, ok := r.handlers[key]
	if !ok {
		glog.V(2).Infof("command %s not found", key)
		return []protocol.Frame{protocol.ErrCode(0, 0, protocol.InvalidCommand)}
	}
	defer func() {
		if p := recover(); p != nil {
			glog.Errorf("command %s panic: %v", key, p)
			frames = []protocol.Frame{protocol.ErrFrame(group, command, fmt.Sprint(p))}
		}
	}()
	frames = h(ctx, Request{Group: group, Command: command, Param: param, Op: op})
	if len(frames) == 0 {
		frames = []protocol.Frame{protocol.ErrCode(group, command, protocol.UnknownError)}
	}
	return frames
}

// DispatchFrame executes the command carried by a request frame.
func (r *Registry) DispatchFrame(ctx context.Context, f protocol.Frame) []protocol.Frame {
	return r.Dispatch(ctx, f.Group, f.Command, f.Value, f.Operation)
}

// Err answers with an error code.
func (req Request) Err(code protocol.ErrorCode) []protocol.Frame {
	return []protocol.Frame{protocol.ErrCode(req.Group, req.Command, code)}
}

// Val answers with a value.
func (req Request) Val(value string, unit protocol.ValueUnit) []protocol.Frame {
	return []protocol.Frame{protocol.ValFrame(req.Group, req.Command, value, unit)}
}

// Res answers with the result of a SET.
func (req Request) Res(value string) []protocol.Frame {
	return []protocol.Frame{protocol.ResFrame(req.Group, req.Command, value)}
}

// Seq answers with a sequence of chunks.
func (req Request) Seq(chunks []string) []protocol.Frame {
	return protocol.Sequence(req.Group, req.Command, chunks)
}

// getOnly validates a GET without parameter, it returns the error answer
// or nil.
func (req Request) getOnly() []protocol.Frame {
	if req.Op != protocol.Get {
		return req.Err(protocol.InvalidOperation)
	}
	if req.Param != "" {
		return req.Err(protocol.ParamUnnecessary)
	}
	return nil
}

// getOrSet validates a GET without parameter or a SET with one.
func (req Request) getOrSet() []protocol.Frame {
	switch req.Op {
	case protocol.Get:
		if req.Param != "" {
			return req.Err(protocol.ParamUnnecessary)
		}
	case protocol.Set:
		if req.Param == "" {
			return req.Err(protocol.ParamRequired)
		}
	default:
		return req.Err(protocol.InvalidOperation)
	}
	return nil
}
