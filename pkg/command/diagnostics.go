package command

import (
	"context"
	"strconv"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/protocol"
	"github.com/kubisat/flight.go/pkg/state"
)

// BootloaderParam is the only accepted parameter of the bootloader command.
const BootloaderParam = "USB"

func (h *handlers) listCommands(req Request, keys []Key) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	items := make([]string, len(keys))
	for n, key := range keys {
		items[n] = key.String()
	}
	return req.Seq(protocol.Chunk(items, "-", protocol.MaxChunk))
}

func (h *handlers) buildVersion(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	return req.Val(strconv.Itoa(h.Build), protocol.Text)
}

func (h *handlers) verbosity(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	if req.Op == protocol.Get {
		return req.Val(strconv.Itoa(int(h.State.Verbosity())), protocol.Undefined)
	}
	level, err := strconv.Atoi(req.Param)
	if err != nil {
		return req.Err(protocol.InvalidFormat)
	}
	if level < 0 || level > int(state.MaxVerbosity) || !h.State.SetVerbosity(state.Verbosity(level)) {
		return req.Err(protocol.ParamInvalid)
	}
	return req.Res(strconv.Itoa(level))
}

func (h *handlers) bootloader(_ context.Context, req Request) []protocol.Frame {
	if req.Op != protocol.Set {
		return req.Err(protocol.InvalidOperation)
	}
	if req.Param == "" {
		return req.Err(protocol.ParamRequired)
	}
	if req.Param != BootloaderParam {
		return req.Err(protocol.ParamInvalid)
	}
	if h.State.Mode() == state.BatteryPowered {
		return req.Err(protocol.NotAllowed)
	}
	glog.Warning("bootloader reset requested")
	h.State.SetBootloaderResetPending(true)
	h.wakeLoop()
	return req.Res("REBOOT_BOOTSEL")
}
