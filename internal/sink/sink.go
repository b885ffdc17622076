// Package sink delivers pipeline events to real-time subscribers. The
// websocket hub is the primary surface; a NATS publisher can mirror the
// same events onto a broker for other consumers.
package sink

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/sdrhub/acarshub/internal/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the wire form of every sink event.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Multi fans one Emit out to several sinks. Nil members are skipped so
// callers can wire optional sinks unconditionally.
type Multi []events.Sink

// Emit delivers the event to every non-nil member, in order.
func (m Multi) Emit(event string, payload any) {
	for _, s := range m {
		if s != nil {
			s.Emit(event, payload)
		}
	}
}
