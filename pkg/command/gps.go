package command

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/event"
	"github.com/kubisat/flight.go/pkg/gps"
	"github.com/kubisat/flight.go/pkg/protocol"
	"github.com/kubisat/flight.go/pkg/state"
)

// MaxBridgeTimeout is the longest accepted pass-through, in seconds.
const MaxBridgeTimeout = 600

func (h *handlers) gpsPower(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	if h.GPSPower == nil {
		return req.Err(protocol.InternalFailToRead)
	}
	if req.Op == protocol.Get {
		if h.GPSPower.Get() {
			return req.Val("1", protocol.Bool)
		}
		return req.Val("0", protocol.Bool)
	}
	if h.State.Mode() == state.BatteryPowered {
		return req.Err(protocol.NotAllowed)
	}
	switch req.Param {
	case "1":
		h.GPSPower.Set(true)
		h.Events.Log(event.GPS, event.GPSPowerOn)
	case "0":
		h.GPSPower.Set(false)
		h.Events.Log(event.GPS, event.GPSPowerOff)
	default:
		return req.Err(protocol.ParamInvalid)
	}
	return req.Res(req.Param)
}

func (h *handlers) passThrough(ctx context.Context, req Request) []protocol.Frame {
	if req.Op != protocol.Set {
		return req.Err(protocol.InvalidOperation)
	}
	timeout := gps.DefaultBridgeTimeout
	if req.Param != "" {
		secs, err := strconv.Atoi(req.Param)
		if err != nil {
			return req.Err(protocol.InvalidTimeoutFormat)
		}
		if secs < 1 || secs > MaxBridgeTimeout {
			return req.Err(protocol.InvalidValue)
		}
		timeout = time.Duration(secs) * time.Second
	}
	if h.Bridge == nil || h.State.Mode() == state.BatteryPowered {
		return req.Err(protocol.NotAllowed)
	}
	reason, err := h.Bridge.Run(ctx, timeout)
	if err == gps.ErrBridgeActive {
		return req.Err(protocol.NotAllowed)
	} else if err != nil {
		glog.Errorf("gps bridge: %v", err)
		return req.Err(protocol.UnknownError)
	}
	return req.Res("GPS UART BRIDGE EXIT: " + string(reason))
}

func (h *handlers) rmcData(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	tokens := h.GPS.RMC()
	if len(tokens) == 0 {
		return req.Err(protocol.NoData)
	}
	return req.Val(strings.Join(tokens, ","), protocol.Text)
}

func (h *handlers) ggaData(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	tokens := h.GPS.GGA()
	if len(tokens) == 0 {
		return req.Err(protocol.NoData)
	}
	return req.Val(strings.Join(tokens, ","), protocol.Text)
}
