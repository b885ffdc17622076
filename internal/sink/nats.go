package sink

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSSink mirrors sink events onto a NATS broker so consumers beyond
// the websocket surface (dashboards, archivers) can subscribe. Events
// publish to acarshub.<event>.
type NATSSink struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSSink connects to the broker at url. Reconnection is delegated
// to the client: it buffers publishes while reconnecting and retries
// forever.
func NewNATSSink(url string, logger zerolog.Logger) (*NATSSink, error) {
	log := logger.With().Str("component", "nats").Logger()

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Info().Str("url", url).Msg("NATS sink connected")
	return &NATSSink{conn: conn, logger: log}, nil
}

// Emit publishes the event envelope. Publish failures log and drop;
// the broker mirror is best-effort.
func (n *NATSSink) Emit(event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		n.logger.Error().Err(err).Str("event", event).Msg("Event serialization failed")
		return
	}
	if err := n.conn.Publish("acarshub."+event, data); err != nil {
		n.logger.Warn().Err(err).Str("event", event).Msg("NATS publish failed")
	}
}

// Close flushes pending publishes and drops the connection.
func (n *NATSSink) Close() {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}
