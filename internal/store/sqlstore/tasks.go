package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lifedash/lifedash/internal/model"
)

type tasks struct {
	db *sql.DB
}

const taskCols = `id, user_email, title, source, scheduled_date, scheduled_time,
priority_tag, estimated_minutes, actual_minutes, is_done,
google_calendar_id, google_event_id, external_event_key,
created_at, updated_at, version`

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t              model.Task
		schedDate      sql.NullString
		schedTime      sql.NullString
		estMin, actMin sql.NullInt64
		isDone         int64
		calID, eventID sql.NullString
		extKey         sql.NullString
	)
	err := row.Scan(&t.ID, &t.User, &t.Title, &t.Source, &schedDate, &schedTime,
		&t.PriorityTag, &estMin, &actMin, &isDone,
		&calID, &eventID, &extKey, &t.CreatedAt, &t.UpdatedAt, &t.Version)
	if err != nil {
		return nil, err
	}
	t.ScheduledDate = strPtr(schedDate)
	t.ScheduledTime = strPtr(schedTime)
	t.EstimatedMinutes = intPtr(estMin)
	t.ActualMinutes = intPtr(actMin)
	t.IsDone = isDone != 0
	t.GoogleCalendarID = strPtr(calID)
	t.GoogleEventID = strPtr(eventID)
	t.ExternalEventKey = strPtr(extKey)
	return &t, nil
}

func (r *tasks) Create(ctx context.Context, t *model.Task, ob *model.OutboxEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := model.NowUTC()
	if t.CreatedAt == "" {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Version == 0 {
		t.Version = 1
	}

	q := fmt.Sprintf("INSERT INTO tasks (%s) VALUES (%s)", taskCols, placeholders(16))
	_, err = tx.ExecContext(ctx, q,
		t.ID, t.User, t.Title, t.Source, nullStr(t.ScheduledDate), nullStr(t.ScheduledTime),
		t.PriorityTag, nullInt(t.EstimatedMinutes), nullInt(t.ActualMinutes), boolToInt(t.IsDone),
		nullStr(t.GoogleCalendarID), nullStr(t.GoogleEventID), nullStr(t.ExternalEventKey),
		t.CreatedAt, t.UpdatedAt, t.Version)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if ob != nil {
		if err := insertOutbox(ctx, tx, ob); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *tasks) Get(ctx context.Context, user, id string) (*model.Task, error) {
	q := fmt.Sprintf("SELECT %s FROM tasks WHERE user_email = $1 AND id = $2", taskCols)
	t, err := scanTask(r.db.QueryRowContext(ctx, q, user, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// applyTaskPatch merges a patch. Nil fields are untouched. For nullable
// string columns an explicit "" clears; a negative minutes value clears.
func applyTaskPatch(cur *model.Task, p model.TaskPatch) *model.Task {
	out := *cur
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Source != nil {
		out.Source = *p.Source
	}
	setNullableStr := func(dst **string, src *string) {
		if src == nil {
			return
		}
		if *src == "" {
			*dst = nil
		} else {
			v := *src
			*dst = &v
		}
	}
	setNullableStr(&out.ScheduledDate, p.ScheduledDate)
	setNullableStr(&out.ScheduledTime, p.ScheduledTime)
	setNullableStr(&out.GoogleCalendarID, p.GoogleCalendarID)
	setNullableStr(&out.GoogleEventID, p.GoogleEventID)
	setNullableStr(&out.ExternalEventKey, p.ExternalEventKey)
	if p.PriorityTag != nil {
		out.PriorityTag = *p.PriorityTag
	}
	setNullableInt := func(dst **int, src *int) {
		if src == nil {
			return
		}
		if *src < 0 {
			*dst = nil
		} else {
			v := *src
			*dst = &v
		}
	}
	setNullableInt(&out.EstimatedMinutes, p.EstimatedMinutes)
	setNullableInt(&out.ActualMinutes, p.ActualMinutes)
	if p.IsDone != nil {
		out.IsDone = *p.IsDone
	}
	return &out
}

func (r *tasks) Update(ctx context.Context, user, id string, patch model.TaskPatch, ob *model.OutboxEntry) (*model.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	q := fmt.Sprintf("SELECT %s FROM tasks WHERE user_email = $1 AND id = $2", taskCols)
	cur, err := scanTask(tx.QueryRowContext(ctx, q, user, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	t := applyTaskPatch(cur, patch)
	t.UpdatedAt = model.NowUTC()
	t.Version = cur.Version + 1

	_, err = tx.ExecContext(ctx, `UPDATE tasks SET
title = $1, source = $2, scheduled_date = $3, scheduled_time = $4, priority_tag = $5,
estimated_minutes = $6, actual_minutes = $7, is_done = $8,
google_calendar_id = $9, google_event_id = $10, external_event_key = $11,
updated_at = $12, version = $13
WHERE user_email = $14 AND id = $15`,
		t.Title, t.Source, nullStr(t.ScheduledDate), nullStr(t.ScheduledTime), t.PriorityTag,
		nullInt(t.EstimatedMinutes), nullInt(t.ActualMinutes), boolToInt(t.IsDone),
		nullStr(t.GoogleCalendarID), nullStr(t.GoogleEventID), nullStr(t.ExternalEventKey),
		t.UpdatedAt, t.Version, user, id)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if ob != nil {
		if err := insertOutbox(ctx, tx, ob); err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (r *tasks) Delete(ctx context.Context, user, id string, ob *model.OutboxEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"DELETE FROM tasks WHERE user_email = $1 AND id = $2", user, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	_, err = tx.ExecContext(ctx,
		"DELETE FROM subtasks WHERE user_email = $1 AND task_id = $2", user, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if ob != nil {
		if err := insertOutbox(ctx, tx, ob); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *tasks) ListRange(ctx context.Context, user, start, end string) ([]*model.Task, error) {
	q := fmt.Sprintf(`SELECT %s FROM tasks
WHERE user_email = $1 AND scheduled_date IS NOT NULL
  AND scheduled_date >= $2 AND scheduled_date <= $3
ORDER BY scheduled_date, scheduled_time, created_at`, taskCols)
	return r.queryTasks(ctx, q, user, start, end)
}

func (r *tasks) ListUnscheduled(ctx context.Context, user, source string) ([]*model.Task, error) {
	if source != "" {
		q := fmt.Sprintf(`SELECT %s FROM tasks
WHERE user_email = $1 AND scheduled_date IS NULL AND source = $2
ORDER BY created_at`, taskCols)
		return r.queryTasks(ctx, q, user, source)
	}
	q := fmt.Sprintf(`SELECT %s FROM tasks
WHERE user_email = $1 AND scheduled_date IS NULL ORDER BY created_at`, taskCols)
	return r.queryTasks(ctx, q, user)
}

func (r *tasks) GetByGoogleIDs(ctx context.Context, user, calendarID, eventID string) (*model.Task, error) {
	q := fmt.Sprintf(`SELECT %s FROM tasks
WHERE user_email = $1 AND google_calendar_id = $2 AND google_event_id = $3`, taskCols)
	t, err := scanTask(r.db.QueryRowContext(ctx, q, user, calendarID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task by google ids: %w", err)
	}
	return t, nil
}

func (r *tasks) CountPending(ctx context.Context, user, day string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks
WHERE user_email = $1 AND scheduled_date = $2 AND is_done = 0`, user, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return n, nil
}

func (r *tasks) queryTasks(ctx context.Context, q string, args ...any) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
