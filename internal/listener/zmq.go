package listener

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/types"
)

// zmqRecvTimeout bounds every blocking receive so the loops can observe
// the stop flag without tearing the socket out from under libzmq.
const zmqRecvTimeout = 500 * time.Millisecond

var zmqMonitorSeq atomic.Uint64

// zmqListener subscribes to a remote publisher. Reconnection is
// libzmq's job; connection state comes from the socket's monitor
// stream, not from data arrival, so a quiet publisher still reads as
// connected.
type zmqListener struct {
	kind   types.Kind
	desc   types.ConnectionDescriptor
	ev     Events
	logger zerolog.Logger

	mu        sync.Mutex
	running   bool
	stopped   atomic.Bool
	connected atomic.Bool
	wg        sync.WaitGroup
}

func newZMQListener(kind types.Kind, desc types.ConnectionDescriptor, ev Events, logger zerolog.Logger) *zmqListener {
	return &zmqListener{
		kind:   kind,
		desc:   desc,
		ev:     ev,
		logger: logger.With().Str("component", "zmq_listener").Str("kind", string(kind)).Str("endpoint", endpoint(desc)).Logger(),
	}
}

func (l *zmqListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}

	sub, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return fmt.Errorf("zmq socket: %w", err)
	}
	if err := sub.SetSubscribe(""); err != nil {
		_ = sub.Close()
		return fmt.Errorf("zmq subscribe: %w", err)
	}
	if err := sub.SetRcvtimeo(zmqRecvTimeout); err != nil {
		_ = sub.Close()
		return fmt.Errorf("zmq rcvtimeo: %w", err)
	}

	// The monitor pair must be wired up before Connect so the initial
	// EVENT_CONNECTED transition is not missed.
	monAddr := fmt.Sprintf("inproc://zmq-monitor-%s-%d", l.kind, zmqMonitorSeq.Add(1))
	if err := sub.Monitor(monAddr, zmq.EVENT_CONNECTED|zmq.EVENT_DISCONNECTED); err != nil {
		_ = sub.Close()
		return fmt.Errorf("zmq monitor: %w", err)
	}
	mon, err := zmq.NewSocket(zmq.PAIR)
	if err != nil {
		_ = sub.Close()
		return fmt.Errorf("zmq monitor socket: %w", err)
	}
	if err := mon.SetRcvtimeo(zmqRecvTimeout); err != nil {
		_ = mon.Close()
		_ = sub.Close()
		return fmt.Errorf("zmq monitor rcvtimeo: %w", err)
	}
	if err := mon.Connect(monAddr); err != nil {
		_ = mon.Close()
		_ = sub.Close()
		return fmt.Errorf("zmq monitor connect: %w", err)
	}

	if err := sub.Connect("tcp://" + endpoint(l.desc)); err != nil {
		_ = mon.Close()
		_ = sub.Close()
		return fmt.Errorf("zmq connect %s: %w", endpoint(l.desc), err)
	}

	l.running = true
	l.stopped.Store(false)

	l.wg.Add(2)
	go l.readLoop(sub)
	go l.monitorLoop(mon)

	l.logger.Info().Msg("ZMQ subscriber started")
	return nil
}

// readLoop receives frames on the subscriber socket. The socket is
// owned by this goroutine; it is closed here once the stop flag is set
// (libzmq sockets are not safe for cross-goroutine close).
func (l *zmqListener) readLoop(sub *zmq.Socket) {
	defer l.wg.Done()
	defer sub.Close()
	for !l.stopped.Load() {
		data, err := sub.RecvBytes(0)
		if err != nil {
			if isZMQTimeout(err) {
				continue
			}
			if l.stopped.Load() {
				return
			}
			l.logger.Error().Err(err).Msg("ZMQ receive failed")
			l.ev.error(err)
			continue
		}
		decodeFrame(l.kind, string(data), l.ev, l.logger)
	}
}

// monitorLoop surfaces transport-layer connect/disconnect transitions.
func (l *zmqListener) monitorLoop(mon *zmq.Socket) {
	defer l.wg.Done()
	defer mon.Close()
	for !l.stopped.Load() {
		event, _, _, err := mon.RecvEvent(0)
		if err != nil {
			if isZMQTimeout(err) || l.stopped.Load() {
				continue
			}
			return
		}
		switch event {
		case zmq.EVENT_CONNECTED:
			if !l.connected.Swap(true) {
				l.logger.Info().Msg("ZMQ transport connected")
				l.ev.connected()
			}
		case zmq.EVENT_DISCONNECTED:
			if l.connected.Swap(false) {
				l.logger.Info().Msg("ZMQ transport disconnected")
				l.ev.disconnected()
			}
		}
	}
}

func isZMQTimeout(err error) bool {
	return zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN)
}

func (l *zmqListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	l.stopped.Store(true)
	l.wg.Wait()
	if l.connected.Swap(false) {
		l.ev.disconnected()
	}
	l.logger.Info().Msg("ZMQ subscriber stopped")
}

func (l *zmqListener) Connected() bool {
	return l.connected.Load()
}

func (l *zmqListener) Stats() Stats {
	return Stats{
		Kind:      l.kind,
		Transport: types.TransportZMQ,
		Endpoint:  endpoint(l.desc),
		Connected: l.Connected(),
	}
}
