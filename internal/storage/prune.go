package storage

import (
	"fmt"
	"time"
)

// PruneResult reports how many rows a prune pass removed.
type PruneResult struct {
	PrunedMessages int64 `json:"prunedMessages"`
	PrunedAlerts   int64 `json:"prunedAlerts"`
}

// PruneDatabase deletes messages older than the message retention
// window, except those still referenced by an alert match inside the
// alert retention window. Alert matches past their own window go
// unconditionally.
func (s *Store) PruneDatabase(messageSaveDays, alertSaveDays int) (*PruneResult, error) {
	now := float64(time.Now().Unix())
	messageCutoff := now - float64(messageSaveDays)*86400
	alertCutoff := now - float64(alertSaveDays)*86400

	res, err := s.db.Exec(`DELETE FROM messages WHERE time < ?
		AND uid NOT IN (SELECT DISTINCT message_uid FROM alert_matches WHERE matched_at >= ?)`,
		messageCutoff, alertCutoff)
	if err != nil {
		return nil, fmt.Errorf("prune messages: %w", err)
	}
	prunedMessages, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	prunedAlerts, err := s.DeleteOldAlertMatches(alertCutoff)
	if err != nil {
		return nil, err
	}

	if prunedMessages > 0 || prunedAlerts > 0 {
		s.logger.Info().
			Int64("pruned_messages", prunedMessages).
			Int64("pruned_alerts", prunedAlerts).
			Msg("Database pruned")
	}
	return &PruneResult{PrunedMessages: prunedMessages, PrunedAlerts: prunedAlerts}, nil
}

// OptimizeRegular refreshes the query planner statistics. Best-effort.
func (s *Store) OptimizeRegular() {
	if _, err := s.db.Exec(`PRAGMA optimize`); err != nil {
		s.logger.Error().Err(err).Msg("PRAGMA optimize failed")
		return
	}
	if _, err := s.db.Exec(`ANALYZE`); err != nil {
		s.logger.Error().Err(err).Msg("ANALYZE failed")
		return
	}
	s.logger.Debug().Msg("Regular optimization complete")
}

// OptimizeMerge consolidates full-text index segments. Best-effort.
func (s *Store) OptimizeMerge(level int) {
	if _, err := s.db.Exec(`INSERT INTO messages_fts(messages_fts, rank) VALUES ('merge', ?)`, level); err != nil {
		s.logger.Error().Err(err).Int("level", level).Msg("FTS merge failed")
		return
	}
	s.logger.Debug().Int("level", level).Msg("FTS merge complete")
}
