// Package store opens the per-service SQLite databases used for lineage,
// session, and checkpoint persistence (spec.md §6 Persisted state layout).
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open returns a *sql.DB for the named file under dataDir, with the same
// busy-timeout/WAL/foreign-key pragmas and single-writer connection pool the
// teacher's sqliteutil package applies.
func Open(dataDir, fileName string) (*sql.DB, error) {
	path := filepath.Join(dataDir, fileName)
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
