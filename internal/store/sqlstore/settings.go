package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lifedash/lifedash/internal/model"
)

type settings struct {
	db *sql.DB
}

func (r *settings) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = $1", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return v, nil
}

func (r *settings) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (r *settings) ListPrefix(ctx context.Context, prefix string) ([]model.Setting, error) {
	// Prefix scan over the primary key; '%' and '_' never occur in our keys.
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, value FROM settings WHERE key LIKE $1 ORDER BY key", prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, fmt.Errorf("list settings: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
