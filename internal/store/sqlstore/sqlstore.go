// Package sqlstore implements store.Store over database/sql.
//
// The same implementation serves Postgres (pgx stdlib driver) and SQLite
// (modernc driver). Portability rules: TEXT ISO-8601 timestamps with a
// fixed-width fraction so lexicographic order is chronological, booleans as
// INTEGER 0/1, and $N placeholders always numbered in ascending
// first-occurrence order (SQLite assigns named-parameter indices by first
// occurrence).
package sqlstore

import (
	"database/sql"

	"github.com/lifedash/lifedash/internal/store"
)

type Store struct {
	db *sql.DB
}

// New wraps an opened database. Callers run Init first.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Entries() store.Entries   { return &entries{db: s.db} }
func (s *Store) Settings() store.Settings { return &settings{db: s.db} }
func (s *Store) Tasks() store.Tasks       { return &tasks{db: s.db} }
func (s *Store) Subtasks() store.Subtasks { return &subtasks{db: s.db} }
func (s *Store) Outbox() store.Outbox     { return &outbox{db: s.db} }
func (s *Store) Cursors() store.Cursors   { return &cursors{db: s.db} }
func (s *Store) Tokens() store.Tokens     { return &tokens{db: s.db} }

func (s *Store) Close() error { return s.db.Close() }
