// Package session persists question/answer exchanges to a SQLite database so
// conversations survive process restarts and can be replayed or inspected.
package session

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Exchange is one question routed to a tool and its JSON result.
type Exchange struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Tool      string    `json:"tool"`
	Args      string    `json:"args"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

// Log records exchanges in a SQLite database.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the session database and runs migrations.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so API reads do not block CLI writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] session log opened: %s", dbPath)
	return l, nil
}

func (l *Log) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exchanges (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			question   TEXT NOT NULL,
			tool       TEXT NOT NULL,
			args       TEXT,
			result     TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, created_at)`,
	}
	for _, s := range stmts {
		if _, err := l.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:32], err)
		}
	}
	return nil
}

// Record appends one exchange to a session.
func (l *Log) Record(sessionID, question, tool, args, result string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO exchanges (session_id, question, tool, args, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, question, tool, args, result, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	return nil
}

// History returns a session's exchanges in chronological order, capped at
// limit when limit > 0.
func (l *Log) History(sessionID string, limit int) ([]Exchange, error) {
	q := `SELECT id, session_id, question, tool, args, result, created_at
	      FROM exchanges WHERE session_id = ? ORDER BY created_at, id`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = l.db.Query(q+" LIMIT ?", sessionID, limit)
	} else {
		rows, err = l.db.Query(q, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var ts int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Question, &e.Tool, &e.Args, &e.Result, &ts); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions returns the distinct session ids, most recent first.
func (l *Log) Sessions() ([]string, error) {
	rows, err := l.db.Query(
		`SELECT session_id FROM exchanges GROUP BY session_id ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
