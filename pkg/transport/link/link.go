// Package link opens the radio link described by a URL.
package link

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/golang/glog"

	"github.com/kubisat/flight.go/pkg/hal"
	"github.com/kubisat/flight.go/pkg/mqtt"
	"github.com/kubisat/flight.go/pkg/transport/radio/mqttradio"
	"github.com/kubisat/flight.go/pkg/transport/radio/wsradio"
)

// Side tells which end of the link is opened.
type Side string

// Sides.
const (
	Satellite Side = "sat"
	Ground    Side = "gnd"
)

// Link is an open radio link.
type Link interface {
	hal.Radio
	io.Closer
}

// IsRadioURL tells if rawURL has a scheme served by Open.
func IsRadioURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "mqtt", "mqtts", "tcp", "ssl", "ws", "wss":
		return true
	}
	return false
}

// Open connects to the gateway of node. Websocket links receive until ctx
// is done.
func Open(ctx context.Context, rawURL, node string, side Side) (Link, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "mqtt", "mqtts", "tcp", "ssl":
		q, err := mqtt.Dial(rawURL, node+"-"+string(side))
		if err != nil {
			return nil, err
		}
		var r *mqttradio.Radio
		if side == Ground {
			r = mqttradio.ForGround(q, node)
		} else {
			r = mqttradio.ForSatellite(q, node)
		}
		if err := r.Open(); err != nil {
			q.Close()
			return nil, err
		}
		return &mqttLink{Radio: r, queue: q}, nil
	case "ws", "wss":
		r, err := wsradio.Dial(rawURL, "")
		if err != nil {
			return nil, err
		}
		go func() {
			if err := r.Run(ctx); err != nil && err != context.Canceled {
				glog.Errorf("websocket link %s: %v", rawURL, err)
			}
		}()
		return &wsLink{Radio: r}, nil
	}
	return nil, fmt.Errorf("unknown link scheme %q", u.Scheme)
}

type mqttLink struct {
	*mqttradio.Radio
	queue *mqtt.Queue
}

func (l *mqttLink) Close() error {
	l.Radio.Close()
	return l.queue.Close()
}

type wsLink struct {
	*wsradio.Radio
}

func (l *wsLink) Close() error {
	return l.Conn.Close()
}
