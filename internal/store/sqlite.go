package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    keyer       INTEGER NOT NULL,
    wpm         INTEGER NOT NULL,
    started_ns  INTEGER NOT NULL,
    ended_ns    INTEGER
);

CREATE TABLE IF NOT EXISTS elements (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id),
    ordinal     INTEGER NOT NULL,
    paddle      TEXT NOT NULL,
    start_ms    INTEGER NOT NULL,
    end_ms      INTEGER NOT NULL,
    UNIQUE (session_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_ns);
`

// Store is the SQLite element journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StartSession opens a session and returns it with a fresh UUID.
func (s *Store) StartSession(keyer, wpm int) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		Keyer:     keyer,
		WPM:       wpm,
		StartedNs: time.Now().UnixNano(),
	}

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, keyer, wpm, started_ns)
		VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Keyer, sess.WPM, sess.StartedNs,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// EndSession stamps the end time of a session.
func (s *Store) EndSession(id string, endNs int64) error {
	res, err := s.db.Exec(`UPDATE sessions SET ended_ns = ? WHERE id = ?`, endNs, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(`
		SELECT id, keyer, wpm, started_ns, ended_ns
		FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Keyer, &sess.WPM, &sess.StartedNs, &sess.EndedNs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// Sessions returns the most recent sessions, newest first.
// A limit of zero or less returns all of them.
func (s *Store) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT id, keyer, wpm, started_ns, ended_ns
		FROM sessions
		ORDER BY started_ns DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Keyer, &sess.WPM, &sess.StartedNs, &sess.EndedNs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// InsertElement appends an element and sets e.ID.
func (s *Store) InsertElement(e *Element) error {
	if e.EndMs < e.StartMs {
		return fmt.Errorf("insert element: end %d before start %d", e.EndMs, e.StartMs)
	}

	result, err := s.db.Exec(`
		INSERT INTO elements (session_id, ordinal, paddle, start_ms, end_ms)
		VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Ordinal, e.Paddle, e.StartMs, e.EndMs,
	)
	if err != nil {
		return fmt.Errorf("insert element: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// Elements returns a session's elements in ordinal order.
func (s *Store) Elements(sessionID string) ([]Element, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, ordinal, paddle, start_ms, end_ms
		FROM elements
		WHERE session_id = ?
		ORDER BY ordinal ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	var elements []Element
	for rows.Next() {
		var e Element
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Ordinal, &e.Paddle, &e.StartMs, &e.EndMs); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		elements = append(elements, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elements: %w", err)
	}
	return elements, nil
}

// SessionStats aggregates a session's elements. An unknown session
// yields nil, nil.
func (s *Store) SessionStats(id string) (*SessionStats, error) {
	sess, err := s.GetSession(id)
	if err != nil || sess == nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT paddle, COUNT(*), COALESCE(SUM(end_ms - start_ms), 0),
		       COALESCE(MIN(start_ms), 0), COALESCE(MAX(end_ms), 0)
		FROM elements
		WHERE session_id = ?
		GROUP BY paddle`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query session stats: %w", err)
	}
	defer rows.Close()

	stats := &SessionStats{SessionID: id, ByPaddle: make(map[string]int)}
	first := true
	for rows.Next() {
		var (
			paddle          string
			count           int
			keyDown, lo, hi int64
		)
		if err := rows.Scan(&paddle, &count, &keyDown, &lo, &hi); err != nil {
			return nil, fmt.Errorf("scan session stats: %w", err)
		}
		stats.ByPaddle[paddle] = count
		stats.Elements += count
		stats.KeyDownMs += keyDown
		if first || lo < stats.FirstMs {
			stats.FirstMs = lo
		}
		if first || hi > stats.LastMs {
			stats.LastMs = hi
		}
		first = false
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session stats: %w", err)
	}
	return stats, nil
}
