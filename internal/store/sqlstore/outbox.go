package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lifedash/lifedash/internal/model"
)

type outbox struct {
	db *sql.DB
}

const outboxCols = `id, user_email, entity_type, entity_id, action, payload,
status, attempts, next_retry_at, last_error, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertOutbox writes one outbox row, filling id and timestamps when unset.
// Runs inside the caller's transaction for task mutations.
func insertOutbox(ctx context.Context, ex execer, e *model.OutboxEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := model.NowUTC()
	if e.CreatedAt == "" {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = model.OutboxPending
	}

	var payload sql.NullString
	if len(e.Payload) > 0 {
		payload = sql.NullString{String: string(e.Payload), Valid: true}
	}
	q := fmt.Sprintf("INSERT INTO outbox (%s) VALUES (%s)", outboxCols, placeholders(12))
	_, err := ex.ExecContext(ctx, q,
		e.ID, e.User, e.EntityType, e.EntityID, e.Action, payload,
		e.Status, e.Attempts, nullStr(e.NextRetryAt), nullStr(e.LastError),
		e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *outbox) Enqueue(ctx context.Context, e *model.OutboxEntry) error {
	if err := insertOutbox(ctx, r.db, e); err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

func (r *outbox) ListPending(ctx context.Context, limit int) ([]*model.OutboxEntry, error) {
	q := fmt.Sprintf(`SELECT %s FROM outbox
WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= $1)
ORDER BY created_at, id LIMIT $2`, outboxCols)
	rows, err := r.db.QueryContext(ctx, q, model.NowUTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox: %w", err)
	}
	defer rows.Close()

	var out []*model.OutboxEntry
	for rows.Next() {
		var (
			e       model.OutboxEntry
			payload sql.NullString
			retry   sql.NullString
			lastErr sql.NullString
		)
		err := rows.Scan(&e.ID, &e.User, &e.EntityType, &e.EntityID, &e.Action, &payload,
			&e.Status, &e.Attempts, &retry, &lastErr, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("list pending outbox: %w", err)
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		e.NextRetryAt = strPtr(retry)
		e.LastError = strPtr(lastErr)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *outbox) MarkDone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE outbox SET status = 'done', updated_at = $1 WHERE id = $2", model.NowUTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox done: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox done: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *outbox) MarkError(ctx context.Context, id string, attempts int, nextRetryAt, lastError string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET
attempts = $1, next_retry_at = $2, last_error = $3, updated_at = $4 WHERE id = $5`,
		attempts, nextRetryAt, lastError, model.NowUTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox error: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
