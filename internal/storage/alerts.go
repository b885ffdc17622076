package storage

import (
	"fmt"
	"strings"

	"github.com/sdrhub/acarshub/internal/alerts"
	"github.com/sdrhub/acarshub/internal/types"
)

// SetAlertTerms replaces the persisted alert-term set: missing terms
// are inserted with a zero counter, rows absent from the input are
// deleted, and the in-memory cache is refreshed. Idempotent.
func (s *Store) SetAlertTerms(terms []string) error {
	normalized := alerts.NormalizeTerms(terms)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set terms: %w", err)
	}
	defer tx.Rollback()

	for _, term := range normalized {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO alert_stats (term, count) VALUES (?, 0)`, term); err != nil {
			return fmt.Errorf("insert term %s: %w", term, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM alert_stats WHERE term NOT IN (`+placeholders(len(normalized))+`)`,
		asAny(normalized)...); err != nil {
		return fmt.Errorf("delete stale terms: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set terms: %w", err)
	}
	s.cache.SetTerms(normalized)
	return nil
}

// SetAlertIgnore replaces the persisted ignore-term set and refreshes
// the cache. Idempotent.
func (s *Store) SetAlertIgnore(terms []string) error {
	normalized := alerts.NormalizeTerms(terms)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set ignores: %w", err)
	}
	defer tx.Rollback()

	for _, term := range normalized {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO ignore_alert_terms (term) VALUES (?)`, term); err != nil {
			return fmt.Errorf("insert ignore %s: %w", term, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM ignore_alert_terms WHERE term NOT IN (`+placeholders(len(normalized))+`)`,
		asAny(normalized)...); err != nil {
		return fmt.Errorf("delete stale ignores: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set ignores: %w", err)
	}
	s.cache.SetIgnores(normalized)
	return nil
}

// RefreshAlertCache reloads both term sets from the database into the
// process-wide cache.
func (s *Store) RefreshAlertCache() error {
	terms, err := s.readTerms(`SELECT term FROM alert_stats ORDER BY id`)
	if err != nil {
		return err
	}
	ignores, err := s.readTerms(`SELECT term FROM ignore_alert_terms ORDER BY id`)
	if err != nil {
		return err
	}
	s.cache.SetTerms(terms)
	s.cache.SetIgnores(ignores)
	return nil
}

func (s *Store) readTerms(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("read terms: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddAlertMatch persists one alert match row.
func (s *Store) AddAlertMatch(messageUID, term string, matchType alerts.MatchType, matchedAt float64) error {
	_, err := s.db.Exec(
		`INSERT INTO alert_matches (message_uid, term, match_type, matched_at) VALUES (?, ?, ?, ?)`,
		messageUID, strings.ToUpper(term), string(matchType), matchedAt)
	if err != nil {
		return fmt.Errorf("add alert match: %w", err)
	}
	return nil
}

// AlertMatchRecord is one alert match joined with its message.
type AlertMatchRecord struct {
	MessageUID string         `json:"message_uid"`
	Term       string         `json:"term"`
	MatchType  string         `json:"match_type"`
	MatchedAt  float64        `json:"matched_at"`
	Message    *types.Message `json:"message,omitempty"`
}

// SearchAlerts returns alert matches joined against messages, newest
// first.
func (s *Store) SearchAlerts(limit, offset int) ([]AlertMatchRecord, error) {
	return s.searchAlerts("", limit, offset)
}

// SearchAlertsByTerm is SearchAlerts filtered to one term.
func (s *Store) SearchAlertsByTerm(term string, limit, offset int) ([]AlertMatchRecord, error) {
	return s.searchAlerts(strings.ToUpper(term), limit, offset)
}

func (s *Store) searchAlerts(term string, limit, offset int) ([]AlertMatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT am.message_uid, am.term, am.match_type, am.matched_at, ` + prefixedMessageColumns("m") + `
		FROM alert_matches am LEFT JOIN messages m ON m.uid = am.message_uid`
	var args []any
	if term != "" {
		query += ` WHERE am.term = ?`
		args = append(args, term)
	}
	query += ` ORDER BY am.matched_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertMatchRecord
	for rows.Next() {
		var r AlertMatchRecord
		var m nullableMessage
		if err := rows.Scan(append([]any{&r.MessageUID, &r.Term, &r.MatchType, &r.MatchedAt},
			m.scanTargets()...)...); err != nil {
			return nil, fmt.Errorf("scan alert match: %w", err)
		}
		r.Message = m.message()
		out = append(out, r)
	}
	return out, rows.Err()
}

// TermCount is one alert term with its cumulative match counter.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// GetAlertCounts returns every term counter row.
func (s *Store) GetAlertCounts() ([]TermCount, error) {
	rows, err := s.db.Query(`SELECT term, count FROM alert_stats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("alert counts: %w", err)
	}
	defer rows.Close()
	var out []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// DeleteOldAlertMatches removes matches older than cutoff (seconds),
// returning the deleted count.
func (s *Store) DeleteOldAlertMatches(cutoff float64) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM alert_matches WHERE matched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old alert matches: %w", err)
	}
	return res.RowsAffected()
}

// RegenStats summarizes a full alert regeneration pass.
type RegenStats struct {
	TotalMessages   int64 `json:"total_messages"`
	MatchedMessages int64 `json:"matched_messages"`
	TotalMatches    int64 `json:"total_matches"`
}

const regenBatchSize = 500

// RegenerateAllAlertMatches wipes every alert match and counter, then
// re-matches the whole message corpus under the given term sets. The
// corpus is walked in id order in batches so the single connection is
// never held by a reader while writing.
func (s *Store) RegenerateAllAlertMatches(terms, ignores []string) (*RegenStats, error) {
	terms = alerts.NormalizeTerms(terms)
	ignores = alerts.NormalizeTerms(ignores)

	if _, err := s.db.Exec(`DELETE FROM alert_matches`); err != nil {
		return nil, fmt.Errorf("clear alert matches: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE alert_stats SET count = 0`); err != nil {
		return nil, fmt.Errorf("reset alert counters: %w", err)
	}

	stats := &RegenStats{}
	counters := make(map[string]int64)
	lastID := int64(0)

	for {
		batch, maxID, err := s.readMessageBatch(lastID, regenBatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		lastID = maxID

		tx, err := s.db.Begin()
		if err != nil {
			return nil, fmt.Errorf("begin regen batch: %w", err)
		}
		for i := range batch {
			m := &batch[i]
			stats.TotalMessages++
			matches := alerts.MatchMessage(m, terms, ignores)
			if len(matches) == 0 {
				continue
			}
			stats.MatchedMessages++
			for _, match := range matches {
				stats.TotalMatches++
				counters[match.Term]++
				if _, err := tx.Exec(
					`INSERT INTO alert_matches (message_uid, term, match_type, matched_at) VALUES (?, ?, ?, ?)`,
					m.UID, match.Term, string(match.Type), m.Timestamp); err != nil {
					_ = tx.Rollback()
					return nil, fmt.Errorf("regen insert match: %w", err)
				}
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit regen batch: %w", err)
		}
	}

	for term, n := range counters {
		if _, err := s.db.Exec(`INSERT INTO alert_stats (term, count) VALUES (?, ?)
			ON CONFLICT(term) DO UPDATE SET count = ?`, term, n, n); err != nil {
			return nil, fmt.Errorf("regen counter %s: %w", term, err)
		}
	}
	return stats, nil
}

// readMessageBatch loads messages with id > after, lowest first, and
// reports the highest id seen so the caller can resume.
func (s *Store) readMessageBatch(after int64, limit int) ([]types.Message, int64, error) {
	rows, err := s.db.Query(`SELECT id, `+messageColumns+` FROM messages WHERE id > ? ORDER BY id LIMIT ?`,
		after, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("read message batch: %w", err)
	}
	defer rows.Close()

	var out []types.Message
	maxID := after
	for rows.Next() {
		var id int64
		var m types.Message
		var kind string
		if err := rows.Scan(&id, &m.UID, &kind, &m.Timestamp, &m.StationID, &m.ToAddr, &m.FromAddr,
			&m.Depa, &m.Dsta, &m.ETA, &m.GateOut, &m.GateIn, &m.WheelOff, &m.WheelOn,
			&m.Lat, &m.Lon, &m.Alt, &m.Text, &m.Tail, &m.Flight, &m.ICAO, &m.Freq,
			&m.Ack, &m.Mode, &m.Label, &m.BlockID, &m.MsgNo, &m.Response, &m.OnGround,
			&m.Error, &m.Libacars, &m.Level, &m.Data); err != nil {
			return nil, 0, fmt.Errorf("scan batch message: %w", err)
		}
		m.Kind = types.Kind(kind)
		out = append(out, m)
		if id > maxID {
			maxID = id
		}
	}
	return out, maxID, rows.Err()
}

func placeholders(n int) string {
	if n == 0 {
		// NOT IN () is a syntax error; use a value no term can equal.
		return "''"
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func asAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
