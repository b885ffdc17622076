package listener

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/types"
)

const udpReadBuffer = 32 * 1024

// udpListener binds a datagram socket and treats each datagram as one
// potential frame. A bound socket counts as connected: UDP has no
// session, so there is no disconnect to observe short of Stop.
type udpListener struct {
	kind   types.Kind
	desc   types.ConnectionDescriptor
	ev     Events
	logger zerolog.Logger

	mu      sync.Mutex
	conn    net.PacketConn
	running bool
	wg      sync.WaitGroup
}

func newUDPListener(kind types.Kind, desc types.ConnectionDescriptor, ev Events, logger zerolog.Logger) *udpListener {
	return &udpListener{
		kind:   kind,
		desc:   desc,
		ev:     ev,
		logger: logger.With().Str("component", "udp_listener").Str("kind", string(kind)).Str("endpoint", endpoint(desc)).Logger(),
	}
}

func (l *udpListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}

	conn, err := net.ListenPacket("udp", endpoint(l.desc))
	if err != nil {
		l.ev.error(err)
		return fmt.Errorf("udp bind %s: %w", endpoint(l.desc), err)
	}
	l.conn = conn
	l.running = true

	l.wg.Add(1)
	go l.readLoop(conn)

	l.logger.Info().Msg("UDP listener bound")
	l.ev.connected()
	return nil
}

func (l *udpListener) readLoop(conn net.PacketConn) {
	defer l.wg.Done()
	buf := make([]byte, udpReadBuffer)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Error().Err(err).Msg("UDP read failed")
			l.ev.error(err)
			continue
		}
		decodeFrame(l.kind, string(buf[:n]), l.ev, l.logger)
	}
}

func (l *udpListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	_ = conn.Close()
	l.wg.Wait()
	l.ev.disconnected()
	l.logger.Info().Msg("UDP listener stopped")
}

func (l *udpListener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *udpListener) Stats() Stats {
	return Stats{
		Kind:      l.kind,
		Transport: types.TransportUDP,
		Endpoint:  endpoint(l.desc),
		Connected: l.Connected(),
	}
}
