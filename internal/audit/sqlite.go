package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores audit entries in a SQLite table, for hosts that want
// to query call history. Sequence numbers come from the row id.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLite opens the database at path and creates the schema.
func NewSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteSink{db: db}
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the schema if needed.
func (s *SQLiteSink) Init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS calls (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			call_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			args_json TEXT NOT NULL,
			tier TEXT NOT NULL,
			retry INTEGER NOT NULL DEFAULT 0,
			interpreter TEXT,
			exit_code INTEGER NOT NULL,
			error_kind TEXT,
			error TEXT,
			duration_ms REAL NOT NULL,
			cwd TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_operation ON calls(operation);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_call_id ON calls(call_id);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite: %w", err)
		}
	}
	return nil
}

// Record inserts e.
func (s *SQLiteSink) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	args, err := json.Marshal(e.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO calls
		(ts, call_id, operation, args_json, tier, retry, interpreter, exit_code, error_kind, error, duration_ms, cwd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.Format(time.RFC3339Nano), e.CallID, e.Operation, string(args), e.Tier, boolInt(e.Retry),
		e.Interpreter, e.ExitCode, e.ErrorKind, e.Error, e.Duration, e.Cwd,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Tail returns the last n entries in sequence order; n <= 0 returns all.
func (s *SQLiteSink) Tail(ctx context.Context, n int) ([]Entry, error) {
	limit := n
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq, ts, call_id, operation, args_json, tier, retry,
		interpreter, exit_code, error_kind, error, duration_ms, cwd
		FROM calls ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                   Entry
			ts, args                            string
			retry                               int
			interpreter, errorKind, errMsg, cwd sql.NullString
		)
		if err := rows.Scan(&e.Seq, &ts, &e.CallID, &e.Operation, &args, &e.Tier, &retry,
			&interpreter, &e.ExitCode, &errorKind, &errMsg, &e.Duration, &cwd); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
		_ = json.Unmarshal([]byte(args), &e.Args)
		e.Retry = retry != 0
		e.Interpreter = interpreter.String
		e.ErrorKind = errorKind.String
		e.Error = errMsg.String
		e.Cwd = cwd.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
