package command

import (
	"context"
	"strconv"

	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/protocol"
)

func formatFloat(v float32, prec int) string {
	return strconv.FormatFloat(float64(v), 'f', prec, 32)
}

func (h *handlers) powerIDs(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	if h.Power == nil {
		return req.Err(protocol.InternalFailToRead)
	}
	ids, err := h.Power.IDs()
	if err != nil {
		return req.Err(protocol.InternalFailToRead)
	}
	return req.Val(ids, protocol.Text)
}

func (h *handlers) voltage(ch hal.Channel) Handler {
	return func(_ context.Context, req Request) []protocol.Frame {
		if errs := req.getOnly(); errs != nil {
			return errs
		}
		if h.Power == nil {
			return req.Err(protocol.InternalFailToRead)
		}
		v, err := h.Power.Voltage(ch)
		if err != nil {
			return req.Err(protocol.InternalFailToRead)
		}
		return req.Val(formatFloat(v, 3), protocol.Volt)
	}
}

func (h *handlers) current(ch hal.Channel) Handler {
	return func(_ context.Context, req Request) []protocol.Frame {
		if errs := req.getOnly(); errs != nil {
			return errs
		}
		if h.Power == nil {
			return req.Err(protocol.InternalFailToRead)
		}
		v, err := h.Power.Current(ch)
		if err != nil {
			return req.Err(protocol.InternalFailToRead)
		}
		return req.Val(formatFloat(v, 1), protocol.Miliamp)
	}
}

func (h *handlers) chargeCurrent(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	if h.Power == nil {
		return req.Err(protocol.InternalFailToRead)
	}
	usb, err := h.Power.Current(hal.USB)
	if err != nil {
		return req.Err(protocol.InternalFailToRead)
	}
	solar, err := h.Power.Current(hal.Solar)
	if err != nil {
		return req.Err(protocol.InternalFailToRead)
	}
	return req.Val(formatFloat(usb+solar, 1), protocol.Miliamp)
}
