package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/kubisat/flight.go/pkg/protocol"
)

// Event listing parameters.
const (
	DefaultEventCount = 10
	EventsPerFrame    = 10
)

func (h *handlers) lastEvents(_ context.Context, req Request) []protocol.Frame {
	if req.Op != protocol.Get {
		return req.Err(protocol.InvalidOperation)
	}
	n := DefaultEventCount
	if req.Param != "" {
		var err error
		if n, err = strconv.Atoi(req.Param); err != nil {
			return req.Err(protocol.InvalidFormat)
		}
		if n < 1 || n > h.Events.Capacity() {
			return req.Err(protocol.InvalidValue)
		}
	}
	var chunks []string
	var batch []string
	for _, l := range h.Events.Last(n) {
		batch = append(batch, l.Hex())
		if len(batch) == EventsPerFrame {
			chunks = append(chunks, strings.Join(batch, "-"))
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		chunks = append(chunks, strings.Join(batch, "-"))
	}
	return req.Seq(chunks)
}

func (h *handlers) eventCount(_ context.Context, req Request) []protocol.Frame {
	if errs := req.getOnly(); errs != nil {
		return errs
	}
	return req.Val(strconv.Itoa(h.Events.Count()), protocol.Undefined)
}
