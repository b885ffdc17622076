package timeseries

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrhub/acarshub/internal/alerts"
	"github.com/sdrhub/acarshub/internal/queue"
	"github.com/sdrhub/acarshub/internal/storage"
	"github.com/sdrhub/acarshub/internal/types"
)

func newTestWriter(t *testing.T) (*Writer, *storage.Store, *queue.Queue) {
	t.Helper()
	alerts.DestroyCache()
	t.Cleanup(alerts.DestroyCache)

	store, err := storage.Open(":memory:", storage.Options{}, alerts.GetCache(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	q := queue.New(0, zerolog.Nop())
	t.Cleanup(q.Destroy)

	w := NewWriter(store, q, Retention{
		OneMin:  24 * time.Hour,
		FiveMin: 7 * 24 * time.Hour,
		OneHour: 30 * 24 * time.Hour,
		SixHour: 180 * 24 * time.Hour,
	}, zerolog.Nop())
	return w, store, q
}

func TestCaptureMinuteWritesOneMinBucket(t *testing.T) {
	w, store, q := newTestWriter(t)

	q.Push(types.KindACARS, map[string]any{"text": "A"})
	q.Push(types.KindACARS, map[string]any{"text": "B"})
	q.Push(types.KindVDLM2, map[string]any{"text": "C", "error": float64(2)})

	require.NoError(t, w.CaptureMinute(context.Background()))

	row, err := store.LatestTimeseriesRow(storage.Res1Min)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(2), row.Acars)
	assert.Equal(t, int64(1), row.Vdlm)
	assert.Equal(t, int64(3), row.Total)
	assert.Equal(t, int64(2), row.Error)
}

func TestFlushAccumulatesMinutes(t *testing.T) {
	w, store, q := newTestWriter(t)

	// Two captured minutes of two ACARS arrivals each. The queue's
	// minute reset has not run, so clear the counters manually between
	// captures the way the boundary reset would.
	q.Push(types.KindACARS, map[string]any{"text": "A"})
	q.Push(types.KindACARS, map[string]any{"text": "B"})
	require.NoError(t, w.CaptureMinute(context.Background()))
	q.ClearStats()

	q.Push(types.KindACARS, map[string]any{"text": "C"})
	q.Push(types.KindACARS, map[string]any{"text": "D"})
	require.NoError(t, w.CaptureMinute(context.Background()))

	require.NoError(t, w.Flush(context.Background(), storage.Res5Min))

	row, err := store.LatestTimeseriesRow(storage.Res5Min)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(4), row.Acars)
	assert.Equal(t, int64(4), row.Total)

	// Flushing again writes an empty bucket, not a duplicate count.
	require.NoError(t, w.Flush(context.Background(), storage.Res5Min))
	row, err = store.LatestTimeseriesRow(storage.Res5Min)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(0), row.Acars)
}

func TestPruneHonorsRetentionWindows(t *testing.T) {
	w, store, _ := newTestWriter(t)

	old := time.Now().Add(-48 * time.Hour).Unix()
	require.NoError(t, store.InsertTimeseriesRow(storage.TimeseriesRow{
		Timestamp: old, Resolution: storage.Res1Min, Acars: 1, Total: 1,
	}))
	// Same age at 5min resolution stays: its window is a week.
	require.NoError(t, store.InsertTimeseriesRow(storage.TimeseriesRow{
		Timestamp: old, Resolution: storage.Res5Min, Acars: 1, Total: 1,
	}))

	require.NoError(t, w.Prune(context.Background()))

	row, err := store.LatestTimeseriesRow(storage.Res1Min)
	require.NoError(t, err)
	assert.Nil(t, row)

	row, err = store.LatestTimeseriesRow(storage.Res5Min)
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestBucketStartAlignment(t *testing.T) {
	// A capture at 12:01:00.2 closes the 12:00 bucket.
	now := time.Date(2024, 3, 1, 12, 1, 0, int(200*time.Millisecond), time.UTC)
	assert.Equal(t,
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),
		bucketStart(now, time.Minute))

	// A 5min flush at 12:05 closes the 12:00 bucket.
	now = time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)
	assert.Equal(t,
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),
		bucketStart(now, 5*time.Minute))
}
