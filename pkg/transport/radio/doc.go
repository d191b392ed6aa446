// Package radio holds the hal.Radio links used in place of the LoRa modem.
package radio

import "github.com/golang/glog"

// DefaultQueueSize is the number of received packets buffered by a link.
const DefaultQueueSize = 16

// Inbox buffers received packets, dropping the oldest when full.
type Inbox chan []byte

// NewInbox creates an Inbox.
func NewInbox(size int) Inbox {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return make(Inbox, size)
}

// Put queues a packet.
func (in Inbox) Put(pkt []byte) {
	for {
		select {
		case in <- pkt:
			return
		default:
		}
		select {
		case dropped := <-in:
			glog.Warningf("radio inbox full, dropped %d bytes", len(dropped))
		default:
		}
	}
}

// Get returns a queued packet without blocking.
func (in Inbox) Get() ([]byte, bool) {
	select {
	case pkt := <-in:
		return pkt, true
	default:
		return nil, false
	}
}
