package listener

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/types"
)

const (
	tcpDialTimeout    = 5 * time.Second
	tcpReconnectDelay = 1 * time.Second
	tcpReadBuffer     = 32 * 1024
)

// tcpListener dials the remote decoder and assembles newline-delimited
// JSON out of the byte stream. On any disconnect it retries with a
// small backoff until Stop is called.
type tcpListener struct {
	kind   types.Kind
	desc   types.ConnectionDescriptor
	ev     Events
	logger zerolog.Logger

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	conn      net.Conn
	connected atomic.Bool
	wg        sync.WaitGroup
}

func newTCPListener(kind types.Kind, desc types.ConnectionDescriptor, ev Events, logger zerolog.Logger) *tcpListener {
	return &tcpListener{
		kind:   kind,
		desc:   desc,
		ev:     ev,
		logger: logger.With().Str("component", "tcp_listener").Str("kind", string(kind)).Str("endpoint", endpoint(desc)).Logger(),
	}
}

func (l *tcpListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	l.running = true
	l.stop = make(chan struct{})

	l.wg.Add(1)
	go l.run(l.stop)
	return nil
}

// run owns the connect/read/reconnect cycle for the lifetime of the
// listener. The stop channel is checked before every sleep so Stop
// never waits out a backoff.
func (l *tcpListener) run(stop chan struct{}) {
	defer l.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}

		conn, err := net.DialTimeout("tcp", endpoint(l.desc), tcpDialTimeout)
		if err != nil {
			l.logger.Debug().Err(err).Msg("TCP connect failed, retrying")
			l.ev.error(err)
			select {
			case <-stop:
				return
			case <-time.After(tcpReconnectDelay):
			}
			continue
		}

		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()
		l.connected.Store(true)
		l.logger.Info().Msg("TCP listener connected")
		l.ev.connected()

		l.readUntilClosed(conn)

		l.connected.Store(false)
		l.ev.disconnected()

		select {
		case <-stop:
			return
		case <-time.After(tcpReconnectDelay):
		}
	}
}

// readUntilClosed accumulates reads into a line buffer. Message
// boundaries are newlines; concatenated objects inside one read are
// separated by the "}{"" split before line extraction.
func (l *tcpListener) readUntilClosed(conn net.Conn) {
	var pending strings.Builder
	buf := make([]byte, tcpReadBuffer)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pending.WriteString(strings.ReplaceAll(string(buf[:n]), "}{", "}\n{"))
			data := pending.String()
			if idx := strings.LastIndexByte(data, '\n'); idx >= 0 {
				complete, rest := data[:idx], data[idx+1:]
				pending.Reset()
				pending.WriteString(rest)
				decodeFrame(l.kind, complete, l.ev, l.logger)
			}
		}
		if err != nil {
			// Whatever is left in the buffer is a final unterminated
			// line; flush it before reporting the disconnect.
			if tail := strings.TrimSpace(pending.String()); tail != "" {
				decodeFrame(l.kind, tail, l.ev, l.logger)
			}
			l.logger.Debug().Err(err).Msg("TCP stream ended")
			return
		}
	}
}

func (l *tcpListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	l.wg.Wait()
	if l.connected.Swap(false) {
		l.ev.disconnected()
	}
	l.logger.Info().Msg("TCP listener stopped")
}

func (l *tcpListener) Connected() bool {
	return l.connected.Load()
}

func (l *tcpListener) Stats() Stats {
	return Stats{
		Kind:      l.kind,
		Transport: types.TransportTCP,
		Endpoint:  endpoint(l.desc),
		Connected: l.Connected(),
	}
}
