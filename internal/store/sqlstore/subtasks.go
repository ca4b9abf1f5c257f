package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lifedash/lifedash/internal/model"
)

type subtasks struct {
	db *sql.DB
}

const subtaskCols = `id, task_id, user_email, title, priority_tag,
estimated_minutes, actual_minutes, is_done, created_at, updated_at`

func scanSubtask(row rowScanner) (*model.Subtask, error) {
	var (
		s              model.Subtask
		estMin, actMin sql.NullInt64
		isDone         int64
	)
	err := row.Scan(&s.ID, &s.TaskID, &s.User, &s.Title, &s.PriorityTag,
		&estMin, &actMin, &isDone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.EstimatedMinutes = intPtr(estMin)
	s.ActualMinutes = intPtr(actMin)
	s.IsDone = isDone != 0
	return &s, nil
}

func (r *subtasks) Add(ctx context.Context, s *model.Subtask) error {
	now := model.NowUTC()
	if s.CreatedAt == "" {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	// Parent must exist and share the owner.
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM tasks WHERE user_email = $1 AND id = $2", s.User, s.TaskID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("add subtask: %w", err)
	}

	q := fmt.Sprintf("INSERT INTO subtasks (%s) VALUES (%s)", subtaskCols, placeholders(10))
	_, err = r.db.ExecContext(ctx, q,
		s.ID, s.TaskID, s.User, s.Title, s.PriorityTag,
		nullInt(s.EstimatedMinutes), nullInt(s.ActualMinutes), boolToInt(s.IsDone),
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("add subtask: %w", err)
	}
	return nil
}

func (r *subtasks) Get(ctx context.Context, user, id string) (*model.Subtask, error) {
	q := fmt.Sprintf("SELECT %s FROM subtasks WHERE user_email = $1 AND id = $2", subtaskCols)
	s, err := scanSubtask(r.db.QueryRowContext(ctx, q, user, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subtask: %w", err)
	}
	return s, nil
}

func (r *subtasks) Update(ctx context.Context, user, id string, patch model.SubtaskPatch) (*model.Subtask, error) {
	cur, err := r.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	s := *cur
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.PriorityTag != nil {
		s.PriorityTag = *patch.PriorityTag
	}
	if patch.EstimatedMinutes != nil {
		if *patch.EstimatedMinutes < 0 {
			s.EstimatedMinutes = nil
		} else {
			v := *patch.EstimatedMinutes
			s.EstimatedMinutes = &v
		}
	}
	if patch.ActualMinutes != nil {
		if *patch.ActualMinutes < 0 {
			s.ActualMinutes = nil
		} else {
			v := *patch.ActualMinutes
			s.ActualMinutes = &v
		}
	}
	if patch.IsDone != nil {
		s.IsDone = *patch.IsDone
	}
	s.UpdatedAt = model.NowUTC()

	_, err = r.db.ExecContext(ctx, `UPDATE subtasks SET
title = $1, priority_tag = $2, estimated_minutes = $3, actual_minutes = $4,
is_done = $5, updated_at = $6
WHERE user_email = $7 AND id = $8`,
		s.Title, s.PriorityTag, nullInt(s.EstimatedMinutes), nullInt(s.ActualMinutes),
		boolToInt(s.IsDone), s.UpdatedAt, user, id)
	if err != nil {
		return nil, fmt.Errorf("update subtask: %w", err)
	}
	return &s, nil
}

func (r *subtasks) Delete(ctx context.Context, user, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM subtasks WHERE user_email = $1 AND id = $2", user, id)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *subtasks) ListForTasks(ctx context.Context, user string, taskIDs []string) ([]*model.Subtask, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	ph := make([]string, len(taskIDs))
	args := []any{user}
	for i, id := range taskIDs {
		ph[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	q := fmt.Sprintf(`SELECT %s FROM subtasks
WHERE user_email = $1 AND task_id IN (%s) ORDER BY task_id, created_at`,
		subtaskCols, strings.Join(ph, ", "))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	var out []*model.Subtask
	for rows.Next() {
		s, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("list subtasks: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
