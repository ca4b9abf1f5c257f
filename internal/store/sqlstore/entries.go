package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lifedash/lifedash/internal/model"
)

type entries struct {
	db *sql.DB
}

var entryCols = func() string {
	cols := append([]string{"user_email", "date"}, model.FixedHabitKeys...)
	cols = append(cols,
		"sleep_hours", "anxiety_level", "work_hours", "boredom_minutes",
		"mood_category", "priority_label", "priority_done",
		"mood_note", "mood_media_url", "mood_tags_json", "updated_at")
	return strings.Join(cols, ", ")
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.DayEntry, error) {
	var (
		e        model.DayEntry
		habits   = make([]int64, len(model.FixedHabitKeys))
		anxiety  sql.NullInt64
		boredom  sql.NullInt64
		sleep    sql.NullFloat64
		work     sql.NullFloat64
		mood     sql.NullString
		label    sql.NullString
		note     sql.NullString
		mediaURL sql.NullString
		tagsJSON sql.NullString
		prioDone int64
	)
	dest := []any{&e.User, &e.Date}
	for i := range habits {
		dest = append(dest, &habits[i])
	}
	dest = append(dest, &sleep, &anxiety, &work, &boredom,
		&mood, &label, &prioDone, &note, &mediaURL, &tagsJSON, &e.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.Habits = make(map[string]bool, len(model.FixedHabitKeys))
	for i, k := range model.FixedHabitKeys {
		e.Habits[k] = habits[i] != 0
	}
	e.SleepHours = floatPtr(sleep)
	e.AnxietyLevel = intPtr(anxiety)
	e.WorkHours = floatPtr(work)
	e.BoredomMinutes = intPtr(boredom)
	e.MoodCategory = strPtr(mood)
	e.PriorityLabel = strPtr(label)
	e.PriorityDone = prioDone != 0
	e.MoodNote = strPtr(note)
	e.MoodMediaURL = strPtr(mediaURL)
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &e.MoodTags); err != nil {
			return nil, fmt.Errorf("decode mood tags: %w", err)
		}
	}
	return &e, nil
}

func (r *entries) Get(ctx context.Context, user, date string) (*model.DayEntry, error) {
	q := fmt.Sprintf("SELECT %s FROM entries WHERE user_email = $1 AND date = $2", entryCols)
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, user, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (r *entries) Patch(ctx context.Context, user, date string, patch model.EntryPatch) (*model.DayEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("patch entry: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	q := fmt.Sprintf("SELECT %s FROM entries WHERE user_email = $1 AND date = $2", entryCols)
	cur, err := scanEntry(tx.QueryRowContext(ctx, q, user, date))
	if errors.Is(err, sql.ErrNoRows) {
		cur = &model.DayEntry{User: user, Date: date, Habits: map[string]bool{}}
	} else if err != nil {
		return nil, fmt.Errorf("patch entry: %w", err)
	}

	merged := applyEntryPatch(cur, patch)
	merged.UpdatedAt = model.NowUTC()

	if err := upsertEntry(ctx, tx, merged); err != nil {
		return nil, fmt.Errorf("patch entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("patch entry: %w", err)
	}
	return merged, nil
}

func applyEntryPatch(cur *model.DayEntry, p model.EntryPatch) *model.DayEntry {
	out := *cur
	out.Habits = make(map[string]bool, len(cur.Habits))
	for k, v := range cur.Habits {
		out.Habits[k] = v
	}
	for k, v := range p.Habits {
		out.Habits[k] = v
	}
	if p.SleepHours != nil {
		out.SleepHours = p.SleepHours
	}
	if p.AnxietyLevel != nil {
		out.AnxietyLevel = p.AnxietyLevel
	}
	if p.WorkHours != nil {
		out.WorkHours = p.WorkHours
	}
	if p.BoredomMinutes != nil {
		out.BoredomMinutes = p.BoredomMinutes
	}
	if p.MoodCategory != nil {
		out.MoodCategory = p.MoodCategory
	}
	if p.PriorityLabel != nil {
		out.PriorityLabel = p.PriorityLabel
	}
	if p.PriorityDone != nil {
		out.PriorityDone = *p.PriorityDone
	}
	if p.MoodNote != nil {
		out.MoodNote = p.MoodNote
	}
	if p.MoodMediaURL != nil {
		out.MoodMediaURL = p.MoodMediaURL
	}
	if p.MoodTags != nil {
		out.MoodTags = p.MoodTags
	}
	return &out
}

func upsertEntry(ctx context.Context, tx *sql.Tx, e *model.DayEntry) error {
	var tagsJSON sql.NullString
	if e.MoodTags != nil {
		b, err := json.Marshal(e.MoodTags)
		if err != nil {
			return fmt.Errorf("encode mood tags: %w", err)
		}
		tagsJSON = sql.NullString{String: string(b), Valid: true}
	}

	args := []any{e.User, e.Date}
	for _, k := range model.FixedHabitKeys {
		args = append(args, boolToInt(e.Habits[k]))
	}
	args = append(args,
		nullFloat(e.SleepHours), nullInt(e.AnxietyLevel),
		nullFloat(e.WorkHours), nullInt(e.BoredomMinutes),
		nullStr(e.MoodCategory), nullStr(e.PriorityLabel), boolToInt(e.PriorityDone),
		nullStr(e.MoodNote), nullStr(e.MoodMediaURL), tagsJSON, e.UpdatedAt)

	cols := strings.Split(entryCols, ", ")
	var sets []string
	for _, c := range cols[2:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	q := fmt.Sprintf(`INSERT INTO entries (%s) VALUES (%s)
ON CONFLICT (user_email, date) DO UPDATE SET %s`,
		entryCols, placeholders(len(args)), strings.Join(sets, ", "))

	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func (r *entries) ListRange(ctx context.Context, user, start, end string) ([]*model.DayEntry, error) {
	q := fmt.Sprintf(`SELECT %s FROM entries
WHERE user_email = $1 AND date >= $2 AND date <= $3 ORDER BY date`, entryCols)
	rows, err := r.db.QueryContext(ctx, q, user, start, end)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*model.DayEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
