package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Resolution is a time-series bucket width.
type Resolution string

const (
	Res1Min  Resolution = "1min"
	Res5Min  Resolution = "5min"
	Res1Hour Resolution = "1hour"
	Res6Hour Resolution = "6hour"
)

// AllResolutions lists every bucket width, finest first.
var AllResolutions = []Resolution{Res1Min, Res5Min, Res1Hour, Res6Hour}

// TimeseriesRow is one closed bucket of per-kind message counts.
type TimeseriesRow struct {
	Timestamp  int64      `json:"timestamp"`
	Resolution Resolution `json:"resolution"`
	Acars      int64      `json:"acars_count"`
	Vdlm       int64      `json:"vdlm_count"`
	Hfdl       int64      `json:"hfdl_count"`
	Imsl       int64      `json:"imsl_count"`
	Irdm       int64      `json:"irdm_count"`
	Total      int64      `json:"total_count"`
	Error      int64      `json:"error_count"`
}

// InsertTimeseriesRow stores one bucket. (resolution, timestamp) is
// unique; replacing keeps the latest write for a re-closed bucket.
func (s *Store) InsertTimeseriesRow(row TimeseriesRow) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO timeseries_stats
		(timestamp, resolution, acars_count, vdlm_count, hfdl_count, imsl_count, irdm_count,
		 total_count, error_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp, string(row.Resolution), row.Acars, row.Vdlm, row.Hfdl,
		row.Imsl, row.Irdm, row.Total, row.Error, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert timeseries row: %w", err)
	}
	return nil
}

// PruneTimeseries deletes rows of one resolution older than cutoff
// (seconds), returning the deleted count.
func (s *Store) PruneTimeseries(res Resolution, cutoff int64) (int64, error) {
	r, err := s.db.Exec(`DELETE FROM timeseries_stats WHERE resolution = ? AND timestamp < ?`,
		string(res), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune timeseries %s: %w", res, err)
	}
	return r.RowsAffected()
}

// LatestTimeseriesRow returns the newest row for a resolution, or nil.
func (s *Store) LatestTimeseriesRow(res Resolution) (*TimeseriesRow, error) {
	row := &TimeseriesRow{Resolution: res}
	err := s.db.QueryRow(`SELECT timestamp, acars_count, vdlm_count, hfdl_count, imsl_count,
		irdm_count, total_count, error_count
		FROM timeseries_stats WHERE resolution = ? ORDER BY timestamp DESC LIMIT 1`, string(res)).
		Scan(&row.Timestamp, &row.Acars, &row.Vdlm, &row.Hfdl, &row.Imsl,
			&row.Irdm, &row.Total, &row.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest timeseries row: %w", err)
	}
	return row, nil
}

// HourlyTotals sums the per-kind counters over rows from the last
// hour. ok is false when no rows qualify, in which case the caller
// falls back to the queue's cumulative totals.
func (s *Store) HourlyTotals() (row TimeseriesRow, ok bool, err error) {
	since := time.Now().Unix() - 3600
	var n int64
	err = s.db.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(acars_count), 0), COALESCE(SUM(vdlm_count), 0),
		COALESCE(SUM(hfdl_count), 0), COALESCE(SUM(imsl_count), 0),
		COALESCE(SUM(irdm_count), 0), COALESCE(SUM(error_count), 0)
		FROM timeseries_stats WHERE timestamp >= ?`, since).
		Scan(&n, &row.Acars, &row.Vdlm, &row.Hfdl, &row.Imsl, &row.Irdm, &row.Error)
	if err != nil {
		return row, false, fmt.Errorf("hourly totals: %w", err)
	}
	row.Total = row.Acars + row.Vdlm + row.Hfdl + row.Imsl + row.Irdm
	return row, n > 0, nil
}
