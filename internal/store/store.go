// Package store defines the persistence interfaces for the life dashboard.
// Implementations live in subpackages; callers depend only on these
// interfaces. All operations are scoped to a single owning user.
package store

import (
	"context"

	"github.com/lifedash/lifedash/internal/model"
)

// Store is the root interface grouping entity-scoped sub-interfaces.
type Store interface {
	Entries() Entries
	Settings() Settings
	Tasks() Tasks
	Subtasks() Subtasks
	Outbox() Outbox
	Cursors() Cursors
	Tokens() Tokens

	// Close releases the underlying pool.
	Close() error
}

// Entries persists per-day records.
type Entries interface {
	// Get returns the entry for (user, date) or model.ErrNotFound.
	Get(ctx context.Context, user, date string) (*model.DayEntry, error)

	// Patch upsert-merges: a missing row is created, present patch fields
	// overwrite, absent fields are untouched. updated_at is always set.
	Patch(ctx context.Context, user, date string, patch model.EntryPatch) (*model.DayEntry, error)

	// ListRange returns entries with start <= date <= end, ordered by date.
	ListRange(ctx context.Context, user, start, end string) ([]*model.DayEntry, error)
}

// Settings is a flat string key/value store with upsert semantics.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error

	// ListPrefix returns all settings whose key starts with prefix,
	// ordered by key.
	ListPrefix(ctx context.Context, prefix string) ([]model.Setting, error)
}

// Tasks persists tasks. Mutations optionally write an outbox row in the same
// transaction; a nil outbox means no remote side effect is scheduled.
type Tasks interface {
	Create(ctx context.Context, t *model.Task, outbox *model.OutboxEntry) error
	Get(ctx context.Context, user, id string) (*model.Task, error)
	Update(ctx context.Context, user, id string, patch model.TaskPatch, outbox *model.OutboxEntry) (*model.Task, error)

	// Delete removes the task and its subtasks.
	Delete(ctx context.Context, user, id string, outbox *model.OutboxEntry) error

	// ListRange returns scheduled tasks with start <= scheduled_date <= end,
	// ordered by (scheduled_date, scheduled_time).
	ListRange(ctx context.Context, user, start, end string) ([]*model.Task, error)

	// ListUnscheduled returns tasks without a scheduled_date; source filters
	// when non-empty.
	ListUnscheduled(ctx context.Context, user, source string) ([]*model.Task, error)

	GetByGoogleIDs(ctx context.Context, user, calendarID, eventID string) (*model.Task, error)

	// CountPending counts not-done tasks scheduled on day.
	CountPending(ctx context.Context, user, day string) (int, error)
}

// Subtasks persists subtasks of tasks.
type Subtasks interface {
	Add(ctx context.Context, s *model.Subtask) error
	Get(ctx context.Context, user, id string) (*model.Subtask, error)
	Update(ctx context.Context, user, id string, patch model.SubtaskPatch) (*model.Subtask, error)
	Delete(ctx context.Context, user, id string) error
	ListForTasks(ctx context.Context, user string, taskIDs []string) ([]*model.Subtask, error)
}

// Outbox is the durable queue of pending remote side effects. Backoff and
// status transitions are caller-computed; the store only applies them
// atomically.
type Outbox interface {
	Enqueue(ctx context.Context, e *model.OutboxEntry) error

	// ListPending returns pending rows whose next_retry_at is null or due,
	// oldest first, at most limit.
	ListPending(ctx context.Context, limit int) ([]*model.OutboxEntry, error)

	MarkDone(ctx context.Context, id string) error
	MarkError(ctx context.Context, id string, attempts int, nextRetryAt, lastError string) error
}

// Cursors tracks incremental-sync state per (user, calendar).
type Cursors interface {
	Get(ctx context.Context, user, calendarID string) (*model.SyncCursor, error)

	// Update upserts the cursor. token == nil clears the stored sync token;
	// lastError == nil clears the stored error.
	Update(ctx context.Context, user, calendarID string, token, lastError *string) error

	ListForUser(ctx context.Context, user string) ([]*model.SyncCursor, error)
}

// Tokens persists per-user OAuth material.
type Tokens interface {
	// Store upserts the token row. Empty RefreshTokenEnc keeps the stored
	// one, so re-consent without a refresh token does not lose the grant.
	Store(ctx context.Context, t *model.GoogleToken) error

	Get(ctx context.Context, user string) (*model.GoogleToken, error)
	UpdateAccessToken(ctx context.Context, user, accessToken, expiresAt string) error
	Delete(ctx context.Context, user string) error
}
