package sink

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/monitoring"
)

const (
	// clientBuffer sizes each client's outgoing channel. At typical
	// decoder rates (a few messages per second) this is minutes of
	// slack; a full buffer means the client stopped reading.
	clientBuffer = 256

	// slowClientStrikes is the number of consecutive full-buffer sends
	// before a client is disconnected.
	slowClientStrikes = 3
)

// wsClient is one connected websocket subscriber. The send channel is
// never closed; writePump exits via done so a concurrent broadcast can
// never hit a closed channel.
type wsClient struct {
	id        int64
	conn      net.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	failedSends int32
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// WSHub is a websocket broadcast hub. Every event emitted to the hub is
// serialized once and fanned out to all connected clients. Clients that
// cannot keep up are disconnected rather than allowed to block the
// broadcast path.
type WSHub struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[int64]*wsClient
	nextID  int64

	closed atomic.Bool
}

// NewWSHub returns an empty hub.
func NewWSHub(logger zerolog.Logger) *WSHub {
	return &WSHub{
		logger:  logger.With().Str("component", "wshub").Logger(),
		clients: make(map[int64]*wsClient),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// client. The connection lives until the client disconnects, fails a
// write, or falls too far behind.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	client := &wsClient{
		id:   atomic.AddInt64(&h.nextID, 1),
		conn: conn,
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()
	monitoring.SinkClients.Set(float64(count))

	h.logger.Info().
		Int64("client_id", client.id).
		Str("remote", r.RemoteAddr).
		Int("clients", count).
		Msg("Websocket client connected")

	go h.writePump(client)
	go h.readPump(client)
}

// writePump drains the client's send channel onto the wire.
func (h *WSHub) writePump(client *wsClient) {
	defer h.remove(client)
	for {
		select {
		case <-client.done:
			return
		case data := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := wsutil.WriteServerText(client.conn, data); err != nil {
				h.logger.Debug().Err(err).Int64("client_id", client.id).Msg("Websocket write failed")
				return
			}
		}
	}
}

// readPump consumes and discards client frames so control frames
// (close, ping) are handled; its exit signals disconnect.
func (h *WSHub) readPump(client *wsClient) {
	defer h.remove(client)
	for {
		if _, _, err := wsutil.ReadClientData(client.conn); err != nil {
			return
		}
	}
}

// remove unregisters and closes the client. Safe to call twice.
func (h *WSHub) remove(client *wsClient) {
	h.mu.Lock()
	_, present := h.clients[client.id]
	delete(h.clients, client.id)
	count := len(h.clients)
	h.mu.Unlock()

	client.close()
	if present {
		monitoring.SinkClients.Set(float64(count))
		h.logger.Info().
			Int64("client_id", client.id).
			Int("clients", count).
			Msg("Websocket client disconnected")
	}
}

// Emit serializes the event once and queues it to every client. A
// client with a full buffer accrues a strike; three consecutive strikes
// disconnect it with a policy-violation close frame.
func (h *WSHub) Emit(event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Event serialization failed")
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- data:
			atomic.StoreInt32(&client.failedSends, 0)
		default:
			strikes := atomic.AddInt32(&client.failedSends, 1)
			if strikes >= slowClientStrikes {
				h.logger.Warn().
					Int64("client_id", client.id).
					Int32("consecutive_failures", strikes).
					Msg("Disconnecting slow websocket client")
				frame := ws.NewCloseFrame(ws.NewCloseFrameBody(
					ws.StatusPolicyViolation, "too slow"))
				ws.WriteFrame(client.conn, frame)
				h.remove(client)
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new upgrades.
func (h *WSHub) Close() {
	h.closed.Store(true)

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[int64]*wsClient)
	h.mu.Unlock()

	for _, client := range clients {
		frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusGoingAway, "server shutdown"))
		ws.WriteFrame(client.conn, frame)
		client.close()
	}
	monitoring.SinkClients.Set(0)
}
