package command

import (
	"context"
	"strconv"
	"time"

	"github.com/kubisat/flight.go/pkg/protocol"
)

func (h *handlers) sampleInterval(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	cadence := h.Telemetry.Cadence()
	if req.Op == protocol.Get {
		ms := cadence.SampleInterval() / time.Millisecond
		return req.Val(strconv.FormatInt(int64(ms), 10), protocol.Undefined)
	}
	ms, err := strconv.ParseUint(req.Param, 10, 32)
	if err != nil {
		return req.Err(protocol.InvalidFormat)
	}
	if !cadence.SetSampleInterval(time.Duration(ms) * time.Millisecond) {
		return req.Err(protocol.InvalidValue)
	}
	h.wakeLoop()
	return req.Res(strconv.FormatUint(ms, 10))
}

func (h *handlers) flushEvery(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	cadence := h.Telemetry.Cadence()
	if req.Op == protocol.Get {
		return req.Val(strconv.Itoa(cadence.FlushEvery()), protocol.Undefined)
	}
	n, err := strconv.Atoi(req.Param)
	if err != nil {
		return req.Err(protocol.InvalidFormat)
	}
	if n > h.Telemetry.Capacity() || !cadence.SetFlushEvery(n) {
		return req.Err(protocol.InvalidValue)
	}
	h.wakeLoop()
	return req.Res(strconv.Itoa(n))
}

func (h *handlers) lastTelemetry(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	r, ok := h.Telemetry.LastTelemetry()
	if !ok {
		return req.Err(protocol.NoData)
	}
	return req.Val(r.CSV(), protocol.Undefined)
}

func (h *handlers) lastSensor(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	r, ok := h.Telemetry.LastSensor()
	if !ok {
		return req.Err(protocol.NoData)
	}
	return req.Val(r.CSV(), protocol.Undefined)
}
