// Package listener implements the transport listeners that ingest
// framed JSON from the upstream decoders. One listener per connection
// descriptor; all listeners for a kind fan into the shared queue.
package listener

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/types"
)

// Events wires a listener to its owner. All callbacks are invoked from
// the listener's own goroutines; nil callbacks are skipped.
type Events struct {
	OnConnected    func()
	OnDisconnected func()
	OnError        func(err error)
	OnMessage      func(kind types.Kind, payload map[string]any)
}

func (e Events) connected() {
	if e.OnConnected != nil {
		e.OnConnected()
	}
}

func (e Events) disconnected() {
	if e.OnDisconnected != nil {
		e.OnDisconnected()
	}
}

func (e Events) error(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

func (e Events) message(kind types.Kind, payload map[string]any) {
	if e.OnMessage != nil {
		e.OnMessage(kind, payload)
	}
}

// Stats is a point-in-time snapshot of one listener.
type Stats struct {
	Kind      types.Kind      `json:"kind"`
	Transport types.Transport `json:"transport"`
	Endpoint  string          `json:"endpoint"`
	Connected bool            `json:"connected"`
}

// Listener is the contract every transport implements. Start and Stop
// are idempotent; Connected is a snapshot.
type Listener interface {
	Start() error
	Stop()
	Connected() bool
	Stats() Stats
}

// New builds the transport-specific listener for a descriptor.
func New(kind types.Kind, desc types.ConnectionDescriptor, ev Events, logger zerolog.Logger) (Listener, error) {
	switch desc.Transport {
	case types.TransportUDP:
		return newUDPListener(kind, desc, ev, logger), nil
	case types.TransportTCP:
		return newTCPListener(kind, desc, ev, logger), nil
	case types.TransportZMQ:
		return newZMQListener(kind, desc, ev, logger), nil
	}
	return nil, fmt.Errorf("unknown transport %q", desc.Transport)
}

func endpoint(desc types.ConnectionDescriptor) string {
	return fmt.Sprintf("%s:%d", desc.Host, desc.Port)
}
