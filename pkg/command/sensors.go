package command

import (
	"context"
	"strings"

	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/protocol"
)

func fieldUnit(f hal.Field) protocol.ValueUnit {
	if f == hal.Temperature {
		return protocol.Celsius
	}
	return protocol.Undefined
}

// readSensor reads "type-field", or every field of "type".
func (h *handlers) readSensor(_ context.Context, req Request) []protocol.Frame {
	if req.Op != protocol.Get {
		return req.Err(protocol.InvalidOperation)
	}
	if req.Param == "" {
		return req.Err(protocol.ParamRequired)
	}
	if h.Sensors == nil {
		return req.Err(protocol.InternalFailToRead)
	}
	parts := strings.SplitN(req.Param, "-", 2)
	st := hal.SensorType(parts[0])
	if len(parts) == 2 {
		f := hal.Field(parts[1])
		v, err := h.Sensors.Read(st, f)
		if err == hal.ErrUnknownSensor {
			return req.Err(protocol.ParamInvalid)
		} else if err != nil {
			return req.Err(protocol.InternalFailToRead)
		}
		return req.Val(formatFloat(v, 2), fieldUnit(f))
	}
	fields := h.Sensors.Fields(st)
	if len(fields) == 0 {
		return req.Err(protocol.ParamInvalid)
	}
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		v, err := h.Sensors.Read(st, f)
		if err != nil {
			return req.Err(protocol.InternalFailToRead)
		}
		values = append(values, string(f)+":"+formatFloat(v, 2))
	}
	return req.Val(strings.Join(values, ","), protocol.Undefined)
}

// configureSensor applies "type:key=value[,key=value]".
func (h *handlers) configureSensor(_ context.Context, req Request) []protocol.Frame {
	if req.Op != protocol.Set {
		return req.Err(protocol.InvalidOperation)
	}
	if req.Param == "" {
		return req.Err(protocol.ParamRequired)
	}
	if h.Sensors == nil {
		return req.Err(protocol.FailToSet)
	}
	parts := strings.SplitN(req.Param, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return req.Err(protocol.InvalidFormat)
	}
	cfg := make(map[string]string)
	for _, kv := range strings.Split(parts[1], ",") {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 || pair[0] == "" {
			return req.Err(protocol.InvalidFormat)
		}
		cfg[pair[0]] = pair[1]
	}
	if !h.Sensors.Configure(hal.SensorType(parts[0]), cfg) {
		return req.Err(protocol.FailToSet)
	}
	return req.Res("CONFIGURED")
}

func (h *handlers) listSensors(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	if h.Sensors == nil {
		return req.Err(protocol.NoData)
	}
	var names []string
	for _, st := range h.Sensors.List() {
		names = append(names, string(st))
	}
	if len(names) == 0 {
		return req.Err(protocol.NoData)
	}
	return req.Val(strings.Join(names, ","), protocol.Text)
}
