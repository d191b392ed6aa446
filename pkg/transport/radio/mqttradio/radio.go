// Package mqttradio carries LoRa packets through the ground gateway broker.
package mqttradio

import (
	"github.com/kubisat/flight.go/pkg/mqtt"
	"github.com/kubisat/flight.go/pkg/transport/radio"
)

// Topic names relative to the node prefix.
const (
	UplinkTopic   = "uplink"
	DownlinkTopic = "downlink"
)

// Radio implements hal.Radio over MQTT topics.
type Radio struct {
	Queue   *mqtt.Queue
	RxTopic string
	TxTopic string

	inbox radio.Inbox
	sub   *mqtt.Subscription
}

// New creates a Radio receiving from rx and sending to tx.
func New(q *mqtt.Queue, rx, tx string) *Radio {
	return &Radio{Queue: q, RxTopic: rx, TxTopic: tx, inbox: radio.NewInbox(0)}
}

// ForSatellite receives uplink packets of node and sends downlink packets.
func ForSatellite(q *mqtt.Queue, node string) *Radio {
	return New(q, node+"/"+UplinkTopic, node+"/"+DownlinkTopic)
}

// ForGround is the counterpart of ForSatellite.
func ForGround(q *mqtt.Queue, node string) *Radio {
	return New(q, node+"/"+DownlinkTopic, node+"/"+UplinkTopic)
}

// Open subscribes the receive topic.
func (r *Radio) Open() error {
	sub, err := r.Queue.Sub(r.RxTopic, r.handle)
	r.sub = sub
	return err
}

// Close implements io.Closer.
func (r *Radio) Close() error {
	if r.sub != nil {
		return r.sub.Close()
	}
	return nil
}

func (r *Radio) handle(_ string, payload []byte) {
	r.inbox.Put(append([]byte(nil), payload...))
}

// Send implements hal.Radio.
func (r *Radio) Send(pkt []byte) error {
	return r.Queue.Pub(r.TxTopic, pkt)
}

// Receive implements hal.Radio.
func (r *Radio) Receive() ([]byte, bool) {
	return r.inbox.Get()
}
