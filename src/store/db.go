// Package store opens the durable SQLite database shared by the
// persistent cache tier and the outcome log.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the database at path and applies pragmas
// suitable for a single-writer service. busyTimeout bounds how long a
// statement waits on a locked database before erroring.
func Open(path string, busyTimeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	// modernc's sqlite driver is safe for one writer at a time.
	db.SetMaxOpenConns(1)

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	pragmas := fmt.Sprintf(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = %d;`, busyTimeout.Milliseconds())
	if _, err := db.Exec(pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure store db: %w", err)
	}

	return db, nil
}
