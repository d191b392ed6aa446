// Package wsradio carries LoRa packets over a websocket, used on the lab
// bench in place of the modem.
package wsradio

import (
	"context"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/kubisat/flight.go/pkg/framework"
	"github.com/kubisat/flight.go/pkg/transport/radio"
)

// Radio implements hal.Radio over a websocket connection.
type Radio struct {
	Conn *websocket.Conn

	inbox radio.Inbox
}

// New creates a Radio on an established connection.
func New(conn *websocket.Conn) *Radio {
	return &Radio{Conn: conn, inbox: radio.NewInbox(0)}
}

// Dial connects to a websocket server.
func Dial(url, origin string) (*Radio, error) {
	if origin == "" {
		origin = "http://localhost/"
	}
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Run receives packets until the connection closes or ctx is done.
func (r *Radio) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, r.Conn, func() error {
		for {
			var pkt []byte
			if err := websocket.Message.Receive(r.Conn, &pkt); err != nil {
				return err
			}
			glog.V(4).Infof("ws radio: received %d bytes", len(pkt))
			r.inbox.Put(pkt)
		}
	})
}

// Send implements hal.Radio.
func (r *Radio) Send(pkt []byte) error {
	return websocket.Message.Send(r.Conn, pkt)
}

// Receive implements hal.Radio.
func (r *Radio) Receive() ([]byte, bool) {
	return r.inbox.Get()
}
