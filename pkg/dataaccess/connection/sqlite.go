package connection

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite describes an embedded SQLite database file.
type SQLite struct {
	// Path is the database file. ":memory:" opens a private in-memory database.
	Path string
}

// Connect opens the database. The pool is limited to a single connection so that every statement is serialized
// and in-memory databases are shared across calls.
func (s *SQLite) Connect(ctx context.Context) (*sql.DB, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	if s.Path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error setting %q: %w", p, err)
		}
	}
	return db, nil
}
