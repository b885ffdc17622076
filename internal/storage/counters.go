package storage

import (
	"fmt"
	"strconv"

	"github.com/sdrhub/acarshub/internal/types"
)

// IncrementFrequency bumps the per-kind frequency arrival counter.
// Counted on arrival, not persistence, so the tallies can over-report
// relative to stored rows when empty messages are dropped.
func (s *Store) IncrementFrequency(kind types.Kind, freq string) error {
	if freq == "" {
		return nil
	}
	stmt := fmt.Sprintf(`INSERT INTO freqs_%s (freq, count) VALUES (?, 1)
		ON CONFLICT(freq) DO UPDATE SET count = count + 1`, kindSuffix(kind))
	if _, err := s.db.Exec(stmt, freq); err != nil {
		return fmt.Errorf("increment frequency %s/%s: %w", kind, freq, err)
	}
	return nil
}

// IncrementLevel bumps the per-kind signal-level counter when the
// level string parses as a real number.
func (s *Store) IncrementLevel(kind types.Kind, level string) error {
	if level == "" {
		return nil
	}
	val, err := strconv.ParseFloat(level, 64)
	if err != nil {
		return nil
	}
	stmt := fmt.Sprintf(`INSERT INTO level_%s (level, count) VALUES (?, 1)
		ON CONFLICT(level) DO UPDATE SET count = count + 1`, kindSuffix(kind))
	if _, err := s.db.Exec(stmt, val); err != nil {
		return fmt.Errorf("increment level %s/%s: %w", kind, level, err)
	}
	return nil
}

// FrequencyCounts returns the frequency → count map for one kind.
func (s *Store) FrequencyCounts(kind types.Kind) (map[string]int64, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT freq, count FROM freqs_%s`, kindSuffix(kind)))
	if err != nil {
		return nil, fmt.Errorf("frequency counts %s: %w", kind, err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var freq string
		var count int64
		if err := rows.Scan(&freq, &count); err != nil {
			return nil, err
		}
		out[freq] = count
	}
	return out, rows.Err()
}

// MessageCounts is the singleton counter row for persisted messages.
type MessageCounts struct {
	Total  int64 `json:"total"`
	Good   int64 `json:"good"`
	Errors int64 `json:"errors"`
}

// NonloggedCounts is the singleton counter row for discarded-as-empty
// messages.
type NonloggedCounts struct {
	Good   int64 `json:"nonlogged_good"`
	Errors int64 `json:"nonlogged_errors"`
}

func (s *Store) incrementMessageCount(hasError bool) error {
	stmt := `UPDATE message_count SET total = total + 1, good = good + 1 WHERE id = 1`
	if hasError {
		stmt = `UPDATE message_count SET total = total + 1, errors = errors + 1 WHERE id = 1`
	}
	_, err := s.db.Exec(stmt)
	return err
}

func (s *Store) incrementNonlogged(hasError bool) error {
	stmt := `UPDATE nonlogged_count SET nonlogged_good = nonlogged_good + 1 WHERE id = 1`
	if hasError {
		stmt = `UPDATE nonlogged_count SET nonlogged_errors = nonlogged_errors + 1 WHERE id = 1`
	}
	_, err := s.db.Exec(stmt)
	return err
}

// GetMessageCounts returns the persisted-message counter row.
func (s *Store) GetMessageCounts() (MessageCounts, error) {
	var c MessageCounts
	err := s.db.QueryRow(`SELECT total, good, errors FROM message_count WHERE id = 1`).
		Scan(&c.Total, &c.Good, &c.Errors)
	return c, err
}

// GetNonloggedCounts returns the discarded-message counter row.
func (s *Store) GetNonloggedCounts() (NonloggedCounts, error) {
	var c NonloggedCounts
	err := s.db.QueryRow(`SELECT nonlogged_good, nonlogged_errors FROM nonlogged_count WHERE id = 1`).
		Scan(&c.Good, &c.Errors)
	return c, err
}

// AddStationID records a station identifier, reporting whether it was
// new. The processor re-broadcasts the set only on growth.
func (s *Store) AddStationID(stationID string) (bool, error) {
	if stationID == "" {
		return false, nil
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO station_ids (station_id) VALUES (?)`, stationID)
	if err != nil {
		return false, fmt.Errorf("add station id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StationIDs returns every observed station identifier.
func (s *Store) StationIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT station_id FROM station_ids ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("station ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
