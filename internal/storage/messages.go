package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sdrhub/acarshub/internal/alerts"
	"github.com/sdrhub/acarshub/internal/types"
)

// messageColumns is the canonical column order used by inserts and
// scans. Keep in sync with the schema and scanMessage.
const messageColumns = `uid, kind, time, station_id, toaddr, fromaddr, depa, dsta, eta,
	gtout, gtin, wloff, wlon, lat, lon, alt, text, tail, flight, icao, freq,
	ack, mode, label, block_id, msgno, is_response, is_onground, error, libacars, level, data`

// InsertResult reports what AddMessage did with one message.
type InsertResult struct {
	UID           string   `json:"uid"`
	Saved         bool     `json:"saved"`
	Matched       bool     `json:"matched"`
	MatchedText   []string `json:"matched_text"`
	MatchedICAO   []string `json:"matched_icao"`
	MatchedTail   []string `json:"matched_tail"`
	MatchedFlight []string `json:"matched_flight"`
}

// AddMessage runs the arrival pipeline for one formatted message:
// frequency counter, save decision, level counter, alert matching, and
// the row insert with its alert matches in one transaction. The uid is
// generated internally and only assigned when the row persists.
func (s *Store) AddMessage(m *types.Message) (*InsertResult, error) {
	res := &InsertResult{}

	if err := s.IncrementFrequency(m.Kind, m.Freq); err != nil {
		s.logger.Error().Err(err).Msg("Frequency counter update failed")
	}

	hasError := m.Error > 0
	if !s.saveAll && m.IsEmpty() {
		if err := s.incrementNonlogged(hasError); err != nil {
			return nil, fmt.Errorf("nonlogged counter: %w", err)
		}
		return res, nil
	}

	if err := s.IncrementLevel(m.Kind, m.Level); err != nil {
		s.logger.Error().Err(err).Msg("Level counter update failed")
	}

	terms, ignores := s.cache.Snapshot()
	matches := alerts.MatchMessage(m, terms, ignores)

	uid := s.nextUID()
	matchedAt := m.Timestamp
	if matchedAt <= 0 {
		matchedAt = float64(time.Now().Unix())
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO messages (`+messageColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uid, string(m.Kind), m.Timestamp, m.StationID, m.ToAddr, m.FromAddr,
		m.Depa, m.Dsta, m.ETA, m.GateOut, m.GateIn, m.WheelOff, m.WheelOn,
		m.Lat, m.Lon, m.Alt, m.Text, m.Tail, m.Flight, m.ICAO, m.Freq,
		m.Ack, m.Mode, m.Label, m.BlockID, m.MsgNo, m.Response, m.OnGround,
		m.Error, m.Libacars, m.Level, m.Data); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	countStmt := `UPDATE message_count SET total = total + 1, good = good + 1 WHERE id = 1`
	if hasError {
		countStmt = `UPDATE message_count SET total = total + 1, errors = errors + 1 WHERE id = 1`
	}
	if _, err := tx.Exec(countStmt); err != nil {
		return nil, fmt.Errorf("message counter: %w", err)
	}

	for _, match := range matches {
		if _, err := tx.Exec(
			`INSERT INTO alert_matches (message_uid, term, match_type, matched_at) VALUES (?, ?, ?, ?)`,
			uid, match.Term, string(match.Type), matchedAt); err != nil {
			return nil, fmt.Errorf("insert alert match: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO alert_stats (term, count) VALUES (?, 1)
			ON CONFLICT(term) DO UPDATE SET count = count + 1`, match.Term); err != nil {
			return nil, fmt.Errorf("alert counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	res.UID = uid
	res.Saved = true
	for _, match := range matches {
		res.Matched = true
		switch match.Type {
		case alerts.MatchText:
			res.MatchedText = append(res.MatchedText, match.Term)
		case alerts.MatchICAO:
			res.MatchedICAO = append(res.MatchedICAO, match.Term)
		case alerts.MatchTail:
			res.MatchedTail = append(res.MatchedTail, match.Term)
		case alerts.MatchFlight:
			res.MatchedFlight = append(res.MatchedFlight, match.Term)
		}
	}
	return res, nil
}

// SearchQuery is the storage search contract. Empty string fields are
// not part of the filter.
type SearchQuery struct {
	Tail      string
	Flight    string
	ICAO      string
	Depa      string
	Dsta      string
	Label     string
	MsgNo     string
	Text      string
	Freq      string
	Kind      string
	StationID string

	StartTime float64
	EndTime   float64

	Limit     int
	Offset    int
	SortBy    string // time | tail | flight | label
	SortOrder string // asc | desc
}

// SearchResult is the paged result plus the unpaged total.
type SearchResult struct {
	Messages   []types.Message `json:"messages"`
	TotalCount int             `json:"totalCount"`
}

var sortColumns = map[string]string{
	"time":   "time",
	"tail":   "tail",
	"flight": "flight",
	"label":  "label",
}

// Search runs the message search. When the query demands
// substring-anywhere semantics (station_id or icao present) it matches
// with LIKE on the base table; otherwise it uses FTS prefix matching.
func (q *SearchQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = "time"
	}
	if q.SortOrder != "asc" && q.SortOrder != "desc" {
		q.SortOrder = "desc"
	}
}

func (s *Store) Search(q SearchQuery) (*SearchResult, error) {
	q.normalize()

	var where []string
	var args []any

	ftsFields := map[string]string{
		"tail": q.Tail, "flight": q.Flight, "depa": q.Depa, "dsta": q.Dsta,
		"label": q.Label, "text": q.Text, "freq": q.Freq,
	}
	likeOnly := q.StationID != "" || q.ICAO != ""

	if likeOnly {
		likeFields := map[string]string{
			"tail": q.Tail, "flight": q.Flight, "icao": q.ICAO, "depa": q.Depa,
			"dsta": q.Dsta, "label": q.Label, "msgno": q.MsgNo, "text": q.Text,
			"freq": q.Freq, "station_id": q.StationID,
		}
		for col, val := range likeFields {
			if val == "" {
				continue
			}
			where = append(where, fmt.Sprintf("%s LIKE '%%' || ? || '%%'", col))
			args = append(args, val)
		}
	} else {
		var matchTerms []string
		for col, val := range ftsFields {
			if val == "" {
				continue
			}
			matchTerms = append(matchTerms, fmt.Sprintf(`%s:"%s"*`, col, sanitizeFTS(val)))
		}
		if q.MsgNo != "" {
			where = append(where, "msgno LIKE ? || '%'")
			args = append(args, q.MsgNo)
		}
		if len(matchTerms) > 0 {
			where = append(where, "id IN (SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?)")
			args = append(args, strings.Join(matchTerms, " AND "))
		}
	}

	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	if q.StartTime > 0 {
		where = append(where, "time >= ?")
		args = append(args, q.StartTime)
	}
	if q.EndTime > 0 {
		where = append(where, "time <= ?")
		args = append(args, q.EndTime)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("search count: %w", err)
	}

	order := fmt.Sprintf(" ORDER BY %s %s LIMIT ? OFFSET ?", sortColumns[q.SortBy], strings.ToUpper(q.SortOrder))
	rows, err := s.db.Query(`SELECT `+messageColumns+` FROM messages`+clause+order,
		append(append([]any{}, args...), q.Limit, q.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Messages: msgs, TotalCount: total}, nil
}

// sanitizeFTS makes user input safe inside a quoted FTS5 token:
// embedded double quotes are doubled, control characters stripped.
func sanitizeFTS(in string) string {
	var b strings.Builder
	for _, r := range in {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if r == '"' {
			b.WriteString(`""`)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// prefixedMessageColumns qualifies every message column with a table
// alias for joins.
func prefixedMessageColumns(alias string) string {
	parts := strings.Split(messageColumns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// nullableMessage scans message columns that may all be NULL (LEFT
// JOIN against a pruned message).
type nullableMessage struct {
	uid, kind                        sql.NullString
	timestamp                        sql.NullFloat64
	stationID, toAddr, fromAddr      sql.NullString
	depa, dsta, eta                  sql.NullString
	gtout, gtin, wloff, wlon         sql.NullString
	lat, lon, alt                    sql.NullString
	text, tail, flight, icao, freq   sql.NullString
	ack, mode, label, blockID, msgno sql.NullString
	response, onGround               sql.NullString
	errCount                         sql.NullInt64
	libacars, level, data            sql.NullString
}

func (n *nullableMessage) scanTargets() []any {
	return []any{&n.uid, &n.kind, &n.timestamp, &n.stationID, &n.toAddr, &n.fromAddr,
		&n.depa, &n.dsta, &n.eta, &n.gtout, &n.gtin, &n.wloff, &n.wlon,
		&n.lat, &n.lon, &n.alt, &n.text, &n.tail, &n.flight, &n.icao, &n.freq,
		&n.ack, &n.mode, &n.label, &n.blockID, &n.msgno, &n.response, &n.onGround,
		&n.errCount, &n.libacars, &n.level, &n.data}
}

func (n *nullableMessage) message() *types.Message {
	if !n.uid.Valid {
		return nil
	}
	return &types.Message{
		UID:       n.uid.String,
		Kind:      types.Kind(n.kind.String),
		Timestamp: n.timestamp.Float64,
		StationID: n.stationID.String,
		ToAddr:    n.toAddr.String,
		FromAddr:  n.fromAddr.String,
		Depa:      n.depa.String,
		Dsta:      n.dsta.String,
		ETA:       n.eta.String,
		GateOut:   n.gtout.String,
		GateIn:    n.gtin.String,
		WheelOff:  n.wloff.String,
		WheelOn:   n.wlon.String,
		Lat:       n.lat.String,
		Lon:       n.lon.String,
		Alt:       n.alt.String,
		Text:      n.text.String,
		Tail:      n.tail.String,
		Flight:    n.flight.String,
		ICAO:      n.icao.String,
		Freq:      n.freq.String,
		Ack:       n.ack.String,
		Mode:      n.mode.String,
		Label:     n.label.String,
		BlockID:   n.blockID.String,
		MsgNo:     n.msgno.String,
		Response:  n.response.String,
		OnGround:  n.onGround.String,
		Error:     int(n.errCount.Int64),
		Libacars:  n.libacars.String,
		Level:     n.level.String,
		Data:      n.data.String,
	}
}

func scanMessages(rows *sql.Rows) ([]types.Message, error) {
	var out []types.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(rows *sql.Rows) (types.Message, error) {
	var m types.Message
	var kind string
	err := rows.Scan(&m.UID, &kind, &m.Timestamp, &m.StationID, &m.ToAddr, &m.FromAddr,
		&m.Depa, &m.Dsta, &m.ETA, &m.GateOut, &m.GateIn, &m.WheelOff, &m.WheelOn,
		&m.Lat, &m.Lon, &m.Alt, &m.Text, &m.Tail, &m.Flight, &m.ICAO, &m.Freq,
		&m.Ack, &m.Mode, &m.Label, &m.BlockID, &m.MsgNo, &m.Response, &m.OnGround,
		&m.Error, &m.Libacars, &m.Level, &m.Data)
	if err != nil {
		return m, fmt.Errorf("scan message: %w", err)
	}
	m.Kind = types.Kind(kind)
	return m, nil
}
