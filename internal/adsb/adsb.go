// Package adsb polls a tar1090/readsb-style aircraft.json endpoint and
// broadcasts position snapshots alongside the message stream.
package adsb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Aircraft is one tracked airframe, projected down to the fields the
// message view correlates on.
type Aircraft struct {
	Hex      string  `json:"hex"`
	Flight   string  `json:"flight,omitempty"`
	AltBaro  float64 `json:"alt_baro,omitempty"`
	GS       float64 `json:"gs,omitempty"`
	Track    float64 `json:"track,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Seen     float64 `json:"seen,omitempty"`
	SeenPos  float64 `json:"seen_pos,omitempty"`
	RSSI     float64 `json:"rssi,omitempty"`
	Messages int64   `json:"messages,omitempty"`
	Category string  `json:"category,omitempty"`
}

// Snapshot is one poll result.
type Snapshot struct {
	Now      float64    `json:"now"`
	Aircraft []Aircraft `json:"aircraft"`
}

// Poller fetches the feed on an interval and emits adsb_snapshot
// events. The last good snapshot is retained across fetch failures so
// the UI degrades to stale data instead of an empty map.
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client
	sink     events.Sink
	logger   zerolog.Logger

	mu     sync.RWMutex
	cached *Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller for the feed at url.
func NewPoller(url string, interval, timeout time.Duration, sink events.Sink, logger zerolog.Logger) *Poller {
	return &Poller{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		sink:     sink,
		logger:   logger.With().Str("component", "adsb").Logger(),
	}
}

// Start launches the poll loop. The first fetch happens immediately.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		p.poll(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()
	p.logger.Info().Str("url", p.url).Dur("interval", p.interval).Msg("ADS-B poller started")
}

// Stop halts the poll loop.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.logger.Info().Msg("ADS-B poller stopped")
}

func (p *Poller) poll(ctx context.Context) {
	snap, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", p.url).Msg("ADS-B fetch failed")
		p.sink.Emit("adsb_error", map[string]string{"error": err.Error()})
		return
	}

	p.mu.Lock()
	p.cached = snap
	p.mu.Unlock()

	p.sink.Emit("adsb_snapshot", snap)
}

func (p *Poller) fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return ParseSnapshot(body)
}

// ParseSnapshot decodes an aircraft.json document. Fields that some
// feeds ship as strings ("ground" altitudes, stringified numerics) are
// coerced; aircraft without a hex id are dropped.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var raw struct {
		Now      float64          `json:"now"`
		Aircraft []map[string]any `json:"aircraft"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse aircraft.json: %w", err)
	}

	snap := &Snapshot{Now: raw.Now, Aircraft: make([]Aircraft, 0, len(raw.Aircraft))}
	for _, a := range raw.Aircraft {
		hex, _ := a["hex"].(string)
		if hex == "" {
			continue
		}
		ac := Aircraft{
			Hex:      hex,
			Flight:   trimString(a["flight"]),
			AltBaro:  coerceFloat(a["alt_baro"]),
			GS:       coerceFloat(a["gs"]),
			Track:    coerceFloat(a["track"]),
			Lat:      coerceFloat(a["lat"]),
			Lon:      coerceFloat(a["lon"]),
			Seen:     coerceFloat(a["seen"]),
			SeenPos:  coerceFloat(a["seen_pos"]),
			RSSI:     coerceFloat(a["rssi"]),
			Messages: int64(coerceFloat(a["messages"])),
			Category: trimString(a["category"]),
		}
		snap.Aircraft = append(snap.Aircraft, ac)
	}
	return snap, nil
}

// GetCachedData returns the last successful snapshot, or nil before the
// first good poll.
func (p *Poller) GetCachedData() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

func trimString(v any) string {
	s, _ := v.(string)
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

// coerceFloat handles numerics that some feeds stringify, plus the
// "ground" altitude sentinel (treated as 0).
func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
