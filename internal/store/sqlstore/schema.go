package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lifedash/lifedash/internal/model"
)

func habitColumnsDDL() string {
	ddl := ""
	for _, k := range model.FixedHabitKeys {
		ddl += fmt.Sprintf("    %s INTEGER NOT NULL DEFAULT 0,\n", k)
	}
	return ddl
}

// Init creates the schema. Evolution is additive only: the ALTER statements
// below add columns introduced after the initial release and ignore the
// duplicate-column error on databases that already have them.
func Init(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
    user_email TEXT NOT NULL,
    date TEXT NOT NULL,
` + habitColumnsDDL() + `    sleep_hours REAL,
    anxiety_level INTEGER,
    work_hours REAL,
    boredom_minutes INTEGER,
    mood_category TEXT,
    priority_label TEXT,
    priority_done INTEGER NOT NULL DEFAULT 0,
    mood_note TEXT,
    mood_media_url TEXT,
    mood_tags_json TEXT,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (user_email, date)
)`,
		`CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    user_email TEXT NOT NULL,
    title TEXT NOT NULL,
    source TEXT NOT NULL,
    scheduled_date TEXT,
    scheduled_time TEXT,
    priority_tag TEXT NOT NULL DEFAULT 'Medium',
    estimated_minutes INTEGER,
    actual_minutes INTEGER,
    is_done INTEGER NOT NULL DEFAULT 0,
    google_calendar_id TEXT,
    google_event_id TEXT,
    external_event_key TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
)`,
		`CREATE TABLE IF NOT EXISTS subtasks (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    user_email TEXT NOT NULL,
    title TEXT NOT NULL,
    priority_tag TEXT NOT NULL DEFAULT 'Medium',
    estimated_minutes INTEGER,
    actual_minutes INTEGER,
    is_done INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS outbox (
    id TEXT PRIMARY KEY,
    user_email TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    action TEXT NOT NULL,
    payload TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    next_retry_at TEXT,
    last_error TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS sync_cursors (
    user_email TEXT NOT NULL,
    calendar_id TEXT NOT NULL,
    sync_token TEXT,
    last_synced_at TEXT NOT NULL,
    last_error TEXT,
    PRIMARY KEY (user_email, calendar_id)
)`,
		`CREATE TABLE IF NOT EXISTS google_tokens (
    user_email TEXT PRIMARY KEY,
    refresh_token_enc TEXT NOT NULL,
    access_token TEXT,
    expires_at TEXT,
    scope TEXT,
    updated_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_date ON tasks (user_email, scheduled_date)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_google_ids ON tasks (user_email, google_calendar_id, google_event_id)
    WHERE google_calendar_id IS NOT NULL AND google_event_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_subtasks_task ON subtasks (task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (status, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema init: %w", err)
		}
	}

	additive := []string{
		`ALTER TABLE entries ADD COLUMN mood_note TEXT`,
		`ALTER TABLE entries ADD COLUMN mood_media_url TEXT`,
		`ALTER TABLE entries ADD COLUMN mood_tags_json TEXT`,
		`ALTER TABLE tasks ADD COLUMN external_event_key TEXT`,
		`ALTER TABLE google_tokens ADD COLUMN scope TEXT`,
	}
	for _, stmt := range additive {
		// Fails with a duplicate-column error on fresh schemas; ignore.
		_, _ = db.ExecContext(ctx, stmt)
	}
	return nil
}
