package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lifedash/lifedash/internal/model"
)

type cursors struct {
	db *sql.DB
}

func scanCursor(row rowScanner) (*model.SyncCursor, error) {
	var (
		c       model.SyncCursor
		token   sql.NullString
		lastErr sql.NullString
	)
	if err := row.Scan(&c.User, &c.CalendarID, &token, &c.LastSyncedAt, &lastErr); err != nil {
		return nil, err
	}
	c.SyncToken = strPtr(token)
	c.LastError = strPtr(lastErr)
	return &c, nil
}

func (r *cursors) Get(ctx context.Context, user, calendarID string) (*model.SyncCursor, error) {
	c, err := scanCursor(r.db.QueryRowContext(ctx, `SELECT user_email, calendar_id, sync_token, last_synced_at, last_error
FROM sync_cursors WHERE user_email = $1 AND calendar_id = $2`, user, calendarID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync cursor: %w", err)
	}
	return c, nil
}

func (r *cursors) Update(ctx context.Context, user, calendarID string, token, lastError *string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_cursors (user_email, calendar_id, sync_token, last_synced_at, last_error)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_email, calendar_id) DO UPDATE SET
sync_token = excluded.sync_token,
last_synced_at = excluded.last_synced_at,
last_error = excluded.last_error`,
		user, calendarID, nullStr(token), model.NowUTC(), nullStr(lastError))
	if err != nil {
		return fmt.Errorf("update sync cursor: %w", err)
	}
	return nil
}

func (r *cursors) ListForUser(ctx context.Context, user string) ([]*model.SyncCursor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_email, calendar_id, sync_token, last_synced_at, last_error
FROM sync_cursors WHERE user_email = $1 ORDER BY calendar_id`, user)
	if err != nil {
		return nil, fmt.Errorf("list sync cursors: %w", err)
	}
	defer rows.Close()

	var out []*model.SyncCursor
	for rows.Next() {
		c, err := scanCursor(rows)
		if err != nil {
			return nil, fmt.Errorf("list sync cursors: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
