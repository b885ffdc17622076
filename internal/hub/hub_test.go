package hub

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrhub/acarshub/internal/alerts"
	"github.com/sdrhub/acarshub/internal/config"
	"github.com/sdrhub/acarshub/internal/listener"
	"github.com/sdrhub/acarshub/internal/storage"
	"github.com/sdrhub/acarshub/internal/types"
)

type nopSink struct{}

func (nopSink) Emit(string, any) {}

type fakeListener struct {
	connected bool
	stats     listener.Stats
}

func (f *fakeListener) Start() error          { return nil }
func (f *fakeListener) Stop()                 {}
func (f *fakeListener) Connected() bool       { return f.connected }
func (f *fakeListener) Stats() listener.Stats { return f.stats }

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	alerts.DestroyCache()
	t.Cleanup(alerts.DestroyCache)

	store, err := storage.Open(":memory:", storage.Options{}, alerts.GetCache(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		DatabasePath:           ":memory:",
		MessageDays:            7,
		AlertDays:              120,
		Retention1Min:          24 * time.Hour,
		Retention5Min:          7 * 24 * time.Hour,
		Retention1Hour:         30 * 24 * time.Hour,
		Retention6Hour:         180 * 24 * time.Hour,
		RetentionPruneInterval: time.Hour,
	}

	h := New(cfg, store, nopSink{}, zerolog.Nop())
	t.Cleanup(h.Stop)
	return h
}

func TestConnectionStatusORAcrossListeners(t *testing.T) {
	h := newTestHub(t)

	// Two ACARS listeners, one down: the kind still reports connected.
	h.listeners[types.KindACARS] = []listener.Listener{
		&fakeListener{connected: false},
		&fakeListener{connected: true},
	}
	h.listeners[types.KindVDLM2] = []listener.Listener{
		&fakeListener{connected: false},
	}

	status := h.ConnectionStatus()
	assert.True(t, status[types.KindACARS])
	assert.False(t, status[types.KindVDLM2])
}

func TestStatsFallsBackToQueueCounters(t *testing.T) {
	h := newTestHub(t)

	// No timeseries rows yet: counts come from the queue's cumulative
	// arrival counters.
	h.queue.Push(types.KindACARS, map[string]any{"text": "A"})
	h.queue.Push(types.KindACARS, map[string]any{"text": "B"})
	h.queue.Push(types.KindHFDL, map[string]any{"text": "C"})

	snap, err := h.Stats()
	require.NoError(t, err)
	assert.Equal(t, "queue", snap.Source)
	assert.Equal(t, int64(2), snap.Acars)
	assert.Equal(t, int64(1), snap.Hfdl)
	assert.Equal(t, int64(3), snap.Total)
}

func TestStatsPrefersTimeseries(t *testing.T) {
	h := newTestHub(t)

	require.NoError(t, h.store.InsertTimeseriesRow(storage.TimeseriesRow{
		Timestamp:  time.Now().Unix() - 60,
		Resolution: storage.Res1Min,
		Acars:      5, Vdlm: 3, Total: 8,
	}))

	// Queue counters exist too but the timeseries rows win.
	h.queue.Push(types.KindACARS, map[string]any{"text": "A"})

	snap, err := h.Stats()
	require.NoError(t, err)
	assert.Equal(t, "timeseries", snap.Source)
	assert.Equal(t, int64(5), snap.Acars)
	assert.Equal(t, int64(3), snap.Vdlm2)
	assert.Equal(t, int64(8), snap.Total)
}

func TestSystemStatusPayload(t *testing.T) {
	h := newTestHub(t)
	h.listeners[types.KindACARS] = []listener.Listener{&fakeListener{connected: true}}

	h.queue.Push(types.KindACARS, map[string]any{"text": "A"})

	status := h.systemStatus()
	assert.True(t, status.Connections[types.KindACARS])
	assert.Equal(t, 1, status.QueueDepth)
	assert.Equal(t, int64(1), status.Queue.Kinds[types.KindACARS].Total)
}

func TestStartStopIdempotent(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.Start())
	require.NoError(t, h.Start())
	h.Stop()
	h.Stop()
}
