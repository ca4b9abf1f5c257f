// Package postgres opens the Postgres-backed store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/store/sqlstore"
)

// Open connects to Postgres, bootstraps the schema and returns the store.
func Open(ctx context.Context, dsn string) (store.Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlstore.Init(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlstore.New(db), nil
}
