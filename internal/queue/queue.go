// Package queue is the bounded fan-in point between the listener
// fabric and the processor. It counts arrivals per decoder kind,
// drops oldest on overflow, and feeds a single downstream consumer in
// FIFO order.
package queue

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sdrhub/acarshub/internal/types"
)

// DefaultCapacity is the queue depth used when the caller passes 0.
// The processor drains far faster than the decoders produce; a deep
// queue would only hide a stuck storage engine.
const DefaultCapacity = 15

// Item is one queued tuple.
type Item struct {
	Kind      types.Kind
	Payload   map[string]any
	Timestamp time.Time
}

// KindStats are the arrival counters for one decoder kind. Cumulative
// counters persist for the process lifetime; the last-minute pair is
// zeroed at each wall-clock minute boundary.
type KindStats struct {
	Total            int64 `json:"total"`
	Errors           int64 `json:"errors"`
	LastMinute       int64 `json:"last_minute"`
	LastMinuteErrors int64 `json:"last_minute_errors"`
}

// Statistics is a deep-copied snapshot of the queue counters.
type Statistics struct {
	Kinds     map[types.Kind]KindStats `json:"kinds"`
	Overflows int64                    `json:"overflows"`
}

// Consumer receives queued items one at a time, in push order.
type Consumer func(Item)

// Queue is the bounded FIFO. Pushes come from any listener goroutine;
// a single consumer goroutine drains.
type Queue struct {
	logger zerolog.Logger

	mu       sync.Mutex
	ch       chan Item
	stats    map[types.Kind]*KindStats
	overflow int64

	consumer   Consumer
	onOverflow func()

	overflowLog *rate.Limiter

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a queue of the given capacity (0 means DefaultCapacity).
func New(capacity int, logger zerolog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		logger:      logger.With().Str("component", "queue").Logger(),
		ch:          make(chan Item, capacity),
		stats:       make(map[types.Kind]*KindStats),
		overflowLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
		stop:        make(chan struct{}),
	}
	for _, k := range types.AllKinds {
		q.stats[k] = &KindStats{}
	}
	return q
}

// SetConsumer wires the single downstream consumer. Must be called
// before Start.
func (q *Queue) SetConsumer(c Consumer) { q.consumer = c }

// SetOverflowHandler registers an optional callback fired once per
// dropped item.
func (q *Queue) SetOverflowHandler(f func()) { q.onOverflow = f }

// Start launches the consumer drain loop and the minute-boundary
// statistics reset. Idempotent.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	q.wg.Add(2)
	go q.drain()
	go q.minuteReset()
}

// Push enqueues a payload for its kind, updating the arrival counters.
// If the queue is full the oldest tuple is discarded and the overflow
// signal fires.
func (q *Queue) Push(kind types.Kind, payload map[string]any) {
	item := Item{Kind: kind, Payload: payload, Timestamp: time.Now()}

	q.mu.Lock()
	s, ok := q.stats[kind]
	if !ok {
		s = &KindStats{}
		q.stats[kind] = s
	}
	s.Total++
	s.LastMinute++
	if errs := numericField(payload, "error"); errs > 0 {
		s.Errors += int64(errs)
		s.LastMinuteErrors += int64(errs)
	}

	select {
	case q.ch <- item:
	default:
		// Full: drop the oldest tuple to make room. The consumer may
		// race us for it, in which case the retry slot is free anyway.
		select {
		case <-q.ch:
			q.overflow++
			if q.onOverflow != nil {
				q.onOverflow()
			}
			if q.overflowLog.Allow() {
				q.logger.Warn().
					Str("kind", string(kind)).
					Int64("overflows", q.overflow).
					Msg("Queue full, dropping oldest message")
			}
		default:
		}
		select {
		case q.ch <- item:
		default:
		}
	}
	q.mu.Unlock()
}

// drain feeds the consumer in FIFO order until Destroy.
func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stop:
			return
		case item := <-q.ch:
			if q.consumer != nil {
				q.consumer(item)
			}
		}
	}
}

// minuteReset zeroes the last-minute counters at each wall-clock
// minute boundary. Alignment uses ceil(now/60) so clock jumps cannot
// produce a negative sleep.
func (q *Queue) minuteReset() {
	defer q.wg.Done()
	for {
		now := time.Now()
		next := time.Unix(((now.Unix()/60)+1)*60, 0)
		select {
		case <-q.stop:
			return
		case <-time.After(time.Until(next)):
		}

		q.mu.Lock()
		for _, s := range q.stats {
			s.LastMinute = 0
			s.LastMinuteErrors = 0
		}
		q.mu.Unlock()
	}
}

// Len returns the number of queued tuples.
func (q *Queue) Len() int { return len(q.ch) }

// Stats returns an independent copy of the counters.
func (q *Queue) Stats() Statistics {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := Statistics{Kinds: make(map[types.Kind]KindStats, len(q.stats)), Overflows: q.overflow}
	for k, s := range q.stats {
		out.Kinds[k] = *s
	}
	return out
}

// ClearStats zeroes every counter, cumulative included.
func (q *Queue) ClearStats() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range q.stats {
		*s = KindStats{}
	}
	q.overflow = 0
}

// Destroy stops the drain loop and the reset timer. Idempotent; used
// between test runs and at shutdown.
func (q *Queue) Destroy() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	close(q.stop)
	q.mu.Unlock()
	q.wg.Wait()
}

// numericField pulls a numeric value out of a decoded JSON payload.
// JSON numbers decode as float64; decoders that stringify are handled
// by the formatter, not here.
func numericField(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
