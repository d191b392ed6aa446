package command

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/protocol"
	"github.com/kubisat/flight.go/pkg/state"
)

func (h *handlers) listFiles(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	if !h.State.SDCardMounted() {
		return req.Err(protocol.NotAllowed)
	}
	files, err := h.Storage.List()
	if err != nil {
		return req.Err(protocol.InternalFailToRead)
	}
	chunks := make([]string, 0, len(files))
	for _, f := range files {
		chunks = append(chunks, fmt.Sprintf("%s:%d", f.Name, f.Size))
	}
	return req.Seq(chunks)
}

func (h *handlers) mount(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOrSet(); errs != nil {
		return errs
	}
	if req.Op == protocol.Get {
		if h.State.SDCardMounted() {
			return req.Val("1", protocol.Bool)
		}
		return req.Val("0", protocol.Bool)
	}
	if req.Param != "0" && req.Param != "1" {
		return req.Err(protocol.ParamInvalid)
	}
	if h.State.Mode() == state.BatteryPowered {
		return req.Err(protocol.NotAllowed)
	}
	if h.Storage == nil {
		return req.Err(protocol.FailToSet)
	}
	if req.Param == "1" {
		if err := h.Storage.Mount(); err != nil {
			glog.Errorf("mount: %v", err)
			return req.Err(protocol.FailToSet)
		}
		h.State.SetSDCardMounted(true)
	} else {
		if err := h.Storage.Unmount(); err != nil {
			glog.Errorf("unmount: %v", err)
			return req.Err(protocol.FailToSet)
		}
		h.State.SetSDCardMounted(false)
	}
	return req.Res(req.Param)
}
