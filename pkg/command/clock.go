package command

import (
	"context"
	"strconv"

	"github.com/kubisat/flight.go/pkg/clock"
	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/protocol"
)

// Accepted range of clock settings: [2020-01-01, 2100-01-01).
const (
	MinClockTime = 1577836800
	MaxClockTime = 4102444800
)

func (h *handlers) clockTime(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	if req.Op == protocol.Get {
		now, err := h.Clock.NowLocal()
		if err != nil {
			return req.Err(protocol.InternalFailToRead)
		}
		return req.Val(strconv.FormatUint(uint64(now), 10), protocol.Datetime)
	}
	t, err := strconv.ParseUint(req.Param, 10, 64)
	if err != nil {
		return req.Err(protocol.InvalidFormat)
	}
	if t < MinClockTime || t >= MaxClockTime {
		return req.Err(protocol.InvalidValue)
	}
	if err := h.Clock.SetUnix(uint32(t)); err != nil {
		return req.Err(protocol.FailToSet)
	}
	h.Events.Log(event.Clock, event.ClockChanged)
	return req.Res(req.Param)
}

func (h *handlers) timezoneOffset(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	if req.Op == protocol.Get {
		return req.Val(strconv.Itoa(h.Clock.TimezoneOffset()), protocol.Undefined)
	}
	offset, err := strconv.Atoi(req.Param)
	if err != nil {
		return req.Err(protocol.InvalidFormat)
	}
	if err := h.Clock.SetTimezoneOffset(offset); err != nil {
		return req.Err(protocol.InvalidValue)
	}
	return req.Res(strconv.Itoa(offset))
}

func (h *handlers) syncInterval(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	if req.Op == protocol.Get {
		return req.Val(strconv.FormatUint(uint64(h.Clock.SyncInterval()), 10), protocol.Undefined)
	}
	minutes, err := strconv.ParseUint(req.Param, 10, 32)
	if err != nil {
		return req.Err(protocol.InvalidFormat)
	}
	if err := h.Clock.SetSyncInterval(uint32(minutes)); err == clock.ErrOutOfRange {
		return req.Err(protocol.InvalidValue)
	} else if err != nil {
		return req.Err(protocol.FailToSet)
	}
	return req.Res(strconv.FormatUint(minutes, 10))
}

func (h *handlers) lastSync(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	last, ok := h.Clock.LastSync()
	if !ok {
		return req.Val("none", protocol.Datetime)
	}
	return req.Val(strconv.FormatUint(uint64(last), 10), protocol.Datetime)
}
