// Package timeseries rolls queue arrival counters into per-resolution
// message-rate buckets and enforces their retention windows.
package timeseries

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/queue"
	"github.com/sdrhub/acarshub/internal/storage"
	"github.com/sdrhub/acarshub/internal/types"
)

// Retention holds the per-resolution retention windows.
type Retention struct {
	OneMin  time.Duration
	FiveMin time.Duration
	OneHour time.Duration
	SixHour time.Duration
}

// counts is one minute's worth of per-kind arrivals.
type counts struct {
	acars, vdlm, hfdl, imsl, irdm, errors int64
}

func (c counts) total() int64 { return c.acars + c.vdlm + c.hfdl + c.imsl + c.irdm }

func (c *counts) add(o counts) {
	c.acars += o.acars
	c.vdlm += o.vdlm
	c.hfdl += o.hfdl
	c.imsl += o.imsl
	c.irdm += o.irdm
	c.errors += o.errors
}

// Writer samples the queue's last-minute counters and writes closed
// buckets to storage. The 1min capture is the source of truth; coarser
// resolutions accumulate the captured minutes and flush on their own
// schedule.
type Writer struct {
	store     *storage.Store
	q         *queue.Queue
	retention Retention
	logger    zerolog.Logger

	mu      sync.Mutex
	pending map[storage.Resolution]*counts

	// now is swapped in tests.
	now func() time.Time
}

// NewWriter creates a writer sampling q into store.
func NewWriter(store *storage.Store, q *queue.Queue, retention Retention, logger zerolog.Logger) *Writer {
	w := &Writer{
		store:     store,
		q:         q,
		retention: retention,
		logger:    logger.With().Str("component", "timeseries").Logger(),
		pending:   make(map[storage.Resolution]*counts),
		now:       time.Now,
	}
	for _, res := range []storage.Resolution{storage.Res5Min, storage.Res1Hour, storage.Res6Hour} {
		w.pending[res] = &counts{}
	}
	return w
}

// CaptureMinute reads the queue's last-minute counters, writes the
// closed 1min bucket, and folds the sample into the coarser pending
// accumulators. Scheduled just before each minute boundary so the
// counters have not been reset yet.
func (w *Writer) CaptureMinute(ctx context.Context) error {
	stats := w.q.Stats()
	sample := counts{
		acars: stats.Kinds[types.KindACARS].LastMinute,
		vdlm:  stats.Kinds[types.KindVDLM2].LastMinute,
		hfdl:  stats.Kinds[types.KindHFDL].LastMinute,
		imsl:  stats.Kinds[types.KindIMSL].LastMinute,
		irdm:  stats.Kinds[types.KindIRDM].LastMinute,
	}
	for _, ks := range stats.Kinds {
		sample.errors += ks.LastMinuteErrors
	}

	now := w.now()
	if err := w.insert(storage.Res1Min, bucketStart(now, time.Minute), sample); err != nil {
		return err
	}

	w.mu.Lock()
	for _, acc := range w.pending {
		acc.add(sample)
	}
	w.mu.Unlock()
	return nil
}

// Flush writes the accumulated bucket for one coarse resolution and
// zeroes its accumulator. Scheduled at the resolution's own interval.
func (w *Writer) Flush(ctx context.Context, res storage.Resolution) error {
	w.mu.Lock()
	acc, ok := w.pending[res]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	sample := *acc
	*acc = counts{}
	w.mu.Unlock()

	return w.insert(res, bucketStart(w.now(), resolutionWidth(res)), sample)
}

func (w *Writer) insert(res storage.Resolution, ts int64, c counts) error {
	return w.store.InsertTimeseriesRow(storage.TimeseriesRow{
		Timestamp:  ts,
		Resolution: res,
		Acars:      c.acars,
		Vdlm:       c.vdlm,
		Hfdl:       c.hfdl,
		Imsl:       c.imsl,
		Irdm:       c.irdm,
		Total:      c.total(),
		Error:      c.errors,
	})
}

// Prune deletes rows past each resolution's retention window.
func (w *Writer) Prune(ctx context.Context) error {
	now := w.now().Unix()
	windows := map[storage.Resolution]time.Duration{
		storage.Res1Min:  w.retention.OneMin,
		storage.Res5Min:  w.retention.FiveMin,
		storage.Res1Hour: w.retention.OneHour,
		storage.Res6Hour: w.retention.SixHour,
	}
	for _, res := range storage.AllResolutions {
		window := windows[res]
		if window <= 0 {
			continue
		}
		n, err := w.store.PruneTimeseries(res, now-int64(window.Seconds()))
		if err != nil {
			return err
		}
		if n > 0 {
			w.logger.Debug().
				Str("resolution", string(res)).
				Int64("deleted", n).
				Msg("Pruned timeseries rows")
		}
	}
	return nil
}

// bucketStart is the aligned start of the bucket that just closed.
func bucketStart(now time.Time, width time.Duration) int64 {
	return now.Add(-width).Truncate(width).Unix()
}

func resolutionWidth(res storage.Resolution) time.Duration {
	switch res {
	case storage.Res5Min:
		return 5 * time.Minute
	case storage.Res1Hour:
		return time.Hour
	case storage.Res6Hour:
		return 6 * time.Hour
	default:
		return time.Minute
	}
}
