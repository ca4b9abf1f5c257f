// Package sqlite opens the SQLite-backed store, used for local runs and
// tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/store/sqlstore"
	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the database at path and bootstraps the
// schema. ":memory:" gives an ephemeral database for tests.
func Open(ctx context.Context, path string) (store.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The driver serializes writes; one connection avoids SQLITE_BUSY and
	// keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := sqlstore.Init(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlstore.New(db), nil
}
