// Package storage is the embedded relational store: messages with
// full-text search, alert matches and counters, per-kind frequency and
// level tallies, and the time-series table.
//
// The store is single-writer as observed externally. One connection is
// allowed at the database/sql level, so every operation serializes on
// the pool; callers never coordinate writes themselves.
package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"

	"github.com/sdrhub/acarshub/internal/alerts"
	"github.com/sdrhub/acarshub/internal/types"
)

// Store wraps the SQLite database and the alert cache it keeps in sync.
type Store struct {
	db      *sql.DB
	logger  zerolog.Logger
	cache   *alerts.Cache
	saveAll bool

	sid    *shortid.Shortid
	uidSeq atomic.Uint64
}

// Options tune store behavior at open time.
type Options struct {
	// SaveAll forces persistence of every formatted message, including
	// those classified as empty.
	SaveAll bool
}

// Open opens (creating if needed) the database at path, applies the
// schema, and loads the alert cache from the persisted term sets.
// Use ":memory:" for tests.
func Open(path string, opts Options, cache *alerts.Cache, logger zerolog.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// Single writer: all reads and writes funnel through one connection.
	db.SetMaxOpenConns(1)

	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("uid generator: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger.With().Str("component", "storage").Logger(),
		cache:   cache,
		saveAll: opts.SaveAll,
		sid:     sid,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.RefreshAlertCache(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info().Str("path", path).Bool("save_all", opts.SaveAll).Msg("Storage opened")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// kindSuffix maps a decoder kind to its per-kind table suffix.
func kindSuffix(k types.Kind) string {
	switch k {
	case types.KindACARS:
		return "acars"
	case types.KindVDLM2:
		return "vdlm"
	case types.KindHFDL:
		return "hfdl"
	case types.KindIMSL:
		return "imsl"
	case types.KindIRDM:
		return "irdm"
	}
	return "unknown"
}

// nextUID generates a process-unique opaque message identifier.
// shortid is collision-free per generator; the sequence suffix guards
// the error path.
func (s *Store) nextUID() string {
	uid, err := s.sid.Generate()
	if err != nil {
		return fmt.Sprintf("uid-%d", s.uidSeq.Add(1))
	}
	return uid
}

// migrate applies the additive schema. Every statement is idempotent,
// so upgrades are re-runs.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT UNIQUE NOT NULL,
			kind TEXT NOT NULL,
			time REAL NOT NULL,
			station_id TEXT NOT NULL DEFAULT '',
			toaddr TEXT NOT NULL DEFAULT '',
			fromaddr TEXT NOT NULL DEFAULT '',
			depa TEXT NOT NULL DEFAULT '',
			dsta TEXT NOT NULL DEFAULT '',
			eta TEXT NOT NULL DEFAULT '',
			gtout TEXT NOT NULL DEFAULT '',
			gtin TEXT NOT NULL DEFAULT '',
			wloff TEXT NOT NULL DEFAULT '',
			wlon TEXT NOT NULL DEFAULT '',
			lat TEXT NOT NULL DEFAULT '',
			lon TEXT NOT NULL DEFAULT '',
			alt TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			tail TEXT NOT NULL DEFAULT '',
			flight TEXT NOT NULL DEFAULT '',
			icao TEXT NOT NULL DEFAULT '',
			freq TEXT NOT NULL DEFAULT '',
			ack TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL DEFAULT '',
			block_id TEXT NOT NULL DEFAULT '',
			msgno TEXT NOT NULL DEFAULT '',
			is_response TEXT NOT NULL DEFAULT '',
			is_onground TEXT NOT NULL DEFAULT '',
			error INTEGER NOT NULL DEFAULT 0,
			libacars TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(time)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
			flight, tail, icao, depa, dsta, label, freq, text,
			content='messages', content_rowid='id'
		)`,
		`CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, flight, tail, icao, depa, dsta, label, freq, text)
			VALUES (new.id, new.flight, new.tail, new.icao, new.depa, new.dsta, new.label, new.freq, new.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, flight, tail, icao, depa, dsta, label, freq, text)
			VALUES ('delete', old.id, old.flight, old.tail, old.icao, old.depa, old.dsta, old.label, old.freq, old.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, flight, tail, icao, depa, dsta, label, freq, text)
			VALUES ('delete', old.id, old.flight, old.tail, old.icao, old.depa, old.dsta, old.label, old.freq, old.text);
			INSERT INTO messages_fts(rowid, flight, tail, icao, depa, dsta, label, freq, text)
			VALUES (new.id, new.flight, new.tail, new.icao, new.depa, new.dsta, new.label, new.freq, new.text);
		END`,
		`CREATE TABLE IF NOT EXISTS alert_matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_uid TEXT NOT NULL,
			term TEXT NOT NULL,
			match_type TEXT NOT NULL,
			matched_at REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_matches_matched_at ON alert_matches(matched_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_matches_term ON alert_matches(term)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_matches_uid ON alert_matches(message_uid)`,
		`CREATE TABLE IF NOT EXISTS alert_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			term TEXT UNIQUE NOT NULL,
			count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ignore_alert_terms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			term TEXT UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS message_count (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total INTEGER NOT NULL DEFAULT 0,
			good INTEGER NOT NULL DEFAULT 0,
			errors INTEGER NOT NULL DEFAULT 0
		)`,
		`INSERT OR IGNORE INTO message_count (id, total, good, errors) VALUES (1, 0, 0, 0)`,
		`CREATE TABLE IF NOT EXISTS nonlogged_count (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			nonlogged_good INTEGER NOT NULL DEFAULT 0,
			nonlogged_errors INTEGER NOT NULL DEFAULT 0
		)`,
		`INSERT OR IGNORE INTO nonlogged_count (id, nonlogged_good, nonlogged_errors) VALUES (1, 0, 0)`,
		`CREATE TABLE IF NOT EXISTS timeseries_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			resolution TEXT NOT NULL,
			acars_count INTEGER NOT NULL DEFAULT 0,
			vdlm_count INTEGER NOT NULL DEFAULT 0,
			hfdl_count INTEGER NOT NULL DEFAULT 0,
			imsl_count INTEGER NOT NULL DEFAULT 0,
			irdm_count INTEGER NOT NULL DEFAULT 0,
			total_count INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			UNIQUE (resolution, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS station_ids (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			station_id TEXT UNIQUE NOT NULL
		)`,
	}
	for _, k := range types.AllKinds {
		suffix := kindSuffix(k)
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS freqs_%s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				freq TEXT UNIQUE NOT NULL,
				count INTEGER NOT NULL DEFAULT 0
			)`, suffix),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS level_%s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				level REAL UNIQUE NOT NULL,
				count INTEGER NOT NULL DEFAULT 0
			)`, suffix),
		)
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if idx := strings.IndexByte(stmt, '\n'); idx > 0 {
		stmt = stmt[:idx]
	}
	if len(stmt) > 60 {
		stmt = stmt[:60]
	}
	return stmt
}
