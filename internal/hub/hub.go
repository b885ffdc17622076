// Package hub wires the full pipeline together: listeners feed the
// bounded queue, the processor drains it into storage and the sink,
// and the scheduler runs the periodic maintenance around them.
package hub

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/adsb"
	"github.com/sdrhub/acarshub/internal/config"
	"github.com/sdrhub/acarshub/internal/events"
	"github.com/sdrhub/acarshub/internal/listener"
	"github.com/sdrhub/acarshub/internal/monitoring"
	"github.com/sdrhub/acarshub/internal/process"
	"github.com/sdrhub/acarshub/internal/queue"
	"github.com/sdrhub/acarshub/internal/scheduler"
	"github.com/sdrhub/acarshub/internal/storage"
	"github.com/sdrhub/acarshub/internal/timeseries"
	"github.com/sdrhub/acarshub/internal/types"
)

// Hub owns the pipeline components and their lifecycle. Start brings
// them up bottom-up (queue, processor, listeners, scheduler, poller);
// Stop tears them down in reverse. Both are idempotent.
type Hub struct {
	cfg    *config.Config
	store  *storage.Store
	sink   events.Sink
	logger zerolog.Logger

	queue     *queue.Queue
	processor *process.Processor
	sched     *scheduler.Scheduler
	tsWriter  *timeseries.Writer
	poller    *adsb.Poller

	mu        sync.Mutex
	listeners map[types.Kind][]listener.Listener
	started   bool
}

// New assembles a hub from its dependencies. Nothing starts until
// Start.
func New(cfg *config.Config, store *storage.Store, sink events.Sink, logger zerolog.Logger) *Hub {
	h := &Hub{
		cfg:       cfg,
		store:     store,
		sink:      sink,
		logger:    logger.With().Str("component", "hub").Logger(),
		listeners: make(map[types.Kind][]listener.Listener),
	}

	h.queue = queue.New(0, logger)
	h.queue.SetOverflowHandler(func() { monitoring.QueueOverflows.Inc() })
	h.processor = process.New(store, sink, logger)
	h.queue.SetConsumer(h.processor.Consume)

	h.tsWriter = timeseries.NewWriter(store, h.queue, timeseries.Retention{
		OneMin:  cfg.Retention1Min,
		FiveMin: cfg.Retention5Min,
		OneHour: cfg.Retention1Hour,
		SixHour: cfg.Retention6Hour,
	}, logger)

	h.sched = scheduler.New(logger)
	h.registerTasks()

	if cfg.EnableADSB {
		h.poller = adsb.NewPoller(cfg.ADSBURL, cfg.ADSBInterval, cfg.ADSBTimeout, sink, logger)
	}
	return h
}

// Start builds the listeners from the configured connection strings
// and brings the pipeline up.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	h.queue.Start()

	total := 0
	for kind, descs := range h.cfg.Connections() {
		for _, desc := range descs {
			l, err := h.buildListener(kind, desc)
			if err != nil {
				return fmt.Errorf("build %s listener: %w", kind, err)
			}
			if err := l.Start(); err != nil {
				return fmt.Errorf("start %s listener %s:%d: %w", kind, desc.Host, desc.Port, err)
			}
			h.mu.Lock()
			h.listeners[kind] = append(h.listeners[kind], l)
			h.mu.Unlock()
			total++
		}
	}

	h.sched.Start()
	if h.poller != nil {
		h.poller.Start()
	}

	h.logger.Info().Int("listeners", total).Msg("Hub started")
	return nil
}

// Stop tears the pipeline down in reverse start order and waits for
// each component to finish.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	listeners := h.allListeners()
	h.mu.Unlock()

	if h.poller != nil {
		h.poller.Stop()
	}
	h.sched.Stop()
	for _, l := range listeners {
		l.Stop()
	}
	h.queue.Destroy()
	h.logger.Info().Msg("Hub stopped")
}

// buildListener wires one listener's callbacks into the queue, the
// metrics, and the connection-status broadcast.
func (h *Hub) buildListener(kind types.Kind, desc types.ConnectionDescriptor) (listener.Listener, error) {
	endpoint := fmt.Sprintf("%s:%d", desc.Host, desc.Port)
	gauge := monitoring.ListenerConnected.WithLabelValues(
		string(kind), string(desc.Transport), endpoint)

	ev := listener.Events{
		OnConnected: func() {
			gauge.Set(1)
			h.logger.Info().
				Str("kind", string(kind)).
				Str("transport", string(desc.Transport)).
				Str("endpoint", endpoint).
				Msg("Decoder connected")
			h.broadcastStatus()
		},
		OnDisconnected: func() {
			gauge.Set(0)
			h.logger.Warn().
				Str("kind", string(kind)).
				Str("transport", string(desc.Transport)).
				Str("endpoint", endpoint).
				Msg("Decoder disconnected")
			h.broadcastStatus()
		},
		OnError: func(err error) {
			h.logger.Error().Err(err).
				Str("kind", string(kind)).
				Str("endpoint", endpoint).
				Msg("Listener error")
		},
		OnMessage: func(kind types.Kind, payload map[string]any) {
			monitoring.MessagesReceived.WithLabelValues(string(kind)).Inc()
			h.queue.Push(kind, payload)
		},
	}
	return listener.New(kind, desc, ev, h.logger)
}

// registerTasks installs the periodic maintenance schedule. Everything
// runs sequentially on the scheduler goroutine so database maintenance
// never overlaps itself.
func (h *Hub) registerTasks() {
	// Status broadcast keeps idle clients' dashboards current between
	// connection transitions.
	h.sched.Add(scheduler.Task{
		Name:     "status-broadcast",
		Every:    30 * time.Second,
		AtSecond: -1,
		Run: func(ctx context.Context) error {
			h.broadcastStatus()
			return nil
		},
	})

	// Capture at :59 so the minute's counters are read just before the
	// queue's boundary reset zeroes them.
	h.sched.Add(scheduler.Task{
		Name:     "timeseries-1min",
		Every:    time.Minute,
		AtSecond: 59,
		Run:      h.tsWriter.CaptureMinute,
	})
	h.sched.Add(scheduler.Task{
		Name:  "timeseries-5min",
		Every: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			return h.tsWriter.Flush(ctx, storage.Res5Min)
		},
	})
	h.sched.Add(scheduler.Task{
		Name:  "timeseries-1hour",
		Every: time.Hour,
		Run: func(ctx context.Context) error {
			return h.tsWriter.Flush(ctx, storage.Res1Hour)
		},
	})
	h.sched.Add(scheduler.Task{
		Name:  "timeseries-6hour",
		Every: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			return h.tsWriter.Flush(ctx, storage.Res6Hour)
		},
	})
	h.sched.Add(scheduler.Task{
		Name:  "timeseries-prune",
		Every: h.cfg.RetentionPruneInterval,
		Run:   h.tsWriter.Prune,
	})

	// Retention pruning runs each minute at :30, off the boundary so it
	// never coincides with the timeseries capture. The DELETE is cheap
	// when nothing has aged out.
	h.sched.Add(scheduler.Task{
		Name:     "database-prune",
		Every:    time.Minute,
		AtSecond: 30,
		Run: func(ctx context.Context) error {
			_, err := h.store.PruneDatabase(h.cfg.MessageDays, h.cfg.AlertDays)
			return err
		},
	})

	h.sched.Add(scheduler.Task{
		Name:     "listener-health",
		Every:    time.Minute,
		AtSecond: 45,
		Run: func(ctx context.Context) error {
			h.checkListenerHealth()
			return nil
		},
	})
	h.sched.Add(scheduler.Task{
		Name:  "fts-merge",
		Every: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			h.store.OptimizeMerge(64)
			return nil
		},
	})
	h.sched.Add(scheduler.Task{
		Name:  "database-optimize",
		Every: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			h.store.OptimizeRegular()
			return nil
		},
	})
}

// checkListenerHealth re-syncs the connection gauges from listener
// state and logs any endpoint that is down. Listeners reconnect on
// their own; this is the periodic audit of where they stand.
func (h *Hub) checkListenerHealth() {
	h.mu.Lock()
	listeners := h.allListeners()
	h.mu.Unlock()

	for _, l := range listeners {
		st := l.Stats()
		up := 0.0
		if st.Connected {
			up = 1.0
		} else {
			h.logger.Warn().
				Str("kind", string(st.Kind)).
				Str("transport", string(st.Transport)).
				Str("endpoint", st.Endpoint).
				Msg("Decoder endpoint down")
		}
		monitoring.ListenerConnected.WithLabelValues(
			string(st.Kind), string(st.Transport), st.Endpoint).Set(up)
	}
}

// ConnectionStatus reports per-kind decoder connectivity. A kind is
// connected when any of its listeners is.
func (h *Hub) ConnectionStatus() map[types.Kind]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[types.Kind]bool, len(h.listeners))
	for kind, ls := range h.listeners {
		connected := false
		for _, l := range ls {
			if l.Connected() {
				connected = true
				break
			}
		}
		out[kind] = connected
	}
	return out
}

// SystemStatus is the periodic health broadcast payload.
type SystemStatus struct {
	Connections map[types.Kind]bool       `json:"connections"`
	QueueDepth  int                       `json:"queue_depth"`
	Queue       queue.Statistics          `json:"queue"`
	System      monitoring.SystemSnapshot `json:"system"`
}

func (h *Hub) systemStatus() SystemStatus {
	depth := h.queue.Len()
	monitoring.QueueDepth.Set(float64(depth))
	return SystemStatus{
		Connections: h.ConnectionStatus(),
		QueueDepth:  depth,
		Queue:       h.queue.Stats(),
		System:      monitoring.SnapshotSystem(filepath.Dir(h.cfg.DatabasePath), h.logger),
	}
}

func (h *Hub) broadcastStatus() {
	h.sink.Emit("system_status", h.systemStatus())
}

// StatsSnapshot is the /stats payload: per-kind message counts over
// roughly the last hour.
type StatsSnapshot struct {
	Acars  int64  `json:"acars"`
	Vdlm2  int64  `json:"vdlm2"`
	Hfdl   int64  `json:"hfdl"`
	Imsl   int64  `json:"imsl"`
	Irdm   int64  `json:"irdm"`
	Total  int64  `json:"total"`
	Errors int64  `json:"error_count"`
	Source string `json:"source"`
}

// Stats sums the last hour of timeseries rows. Before the first bucket
// closes (fresh database, early uptime) it falls back to the queue's
// cumulative arrival counters so the endpoint is never empty.
func (h *Hub) Stats() (StatsSnapshot, error) {
	row, ok, err := h.store.HourlyTotals()
	if err != nil {
		return StatsSnapshot{}, err
	}
	if ok {
		return StatsSnapshot{
			Acars:  row.Acars,
			Vdlm2:  row.Vdlm,
			Hfdl:   row.Hfdl,
			Imsl:   row.Imsl,
			Irdm:   row.Irdm,
			Total:  row.Total,
			Errors: row.Error,
			Source: "timeseries",
		}, nil
	}

	qs := h.queue.Stats()
	snap := StatsSnapshot{
		Acars:  qs.Kinds[types.KindACARS].Total,
		Vdlm2:  qs.Kinds[types.KindVDLM2].Total,
		Hfdl:   qs.Kinds[types.KindHFDL].Total,
		Imsl:   qs.Kinds[types.KindIMSL].Total,
		Irdm:   qs.Kinds[types.KindIRDM].Total,
		Source: "queue",
	}
	for _, ks := range qs.Kinds {
		snap.Errors += ks.Errors
	}
	snap.Total = snap.Acars + snap.Vdlm2 + snap.Hfdl + snap.Imsl + snap.Irdm
	return snap, nil
}

// Queue exposes the queue for tests and the stats endpoint.
func (h *Hub) Queue() *queue.Queue { return h.queue }

func (h *Hub) allListeners() []listener.Listener {
	var out []listener.Listener
	for _, ls := range h.listeners {
		out = append(out, ls...)
	}
	return out
}
