package model

import (
	"encoding/json"
	"time"
)

// TimestampLayout is the storage format for all timestamps. The fixed-width
// fraction keeps lexicographic order equal to chronological order, which the
// outbox and entry queries rely on.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DateLayout and ClockLayout are the wire formats for dates and times of day.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// NowUTC returns the current time formatted for storage.
func NowUTC() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// Task sources.
const (
	SourceManual           = "manual"
	SourceRemembered       = "remembered"
	SourceGoogle           = "google"
	SourceCalendarOverride = "calendar_override"
	SourceCalendarSync     = "calendar_sync"
)

// Priority tags.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Outbox actions and statuses.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	OutboxPending = "pending"
	OutboxDone    = "done"
)

// DayEntry is one user's record for one calendar day.
type DayEntry struct {
	User           string          `json:"user_email"`
	Date           string          `json:"date"`
	Habits         map[string]bool `json:"habits"`
	SleepHours     *float64        `json:"sleep_hours,omitempty"`
	AnxietyLevel   *int            `json:"anxiety_level,omitempty"`
	WorkHours      *float64        `json:"work_hours,omitempty"`
	BoredomMinutes *int            `json:"boredom_minutes,omitempty"`
	MoodCategory   *string         `json:"mood_category,omitempty"`
	PriorityLabel  *string         `json:"priority_label,omitempty"`
	PriorityDone   bool            `json:"priority_done"`
	MoodNote       *string         `json:"mood_note,omitempty"`
	MoodMediaURL   *string         `json:"mood_media_url,omitempty"`
	MoodTags       []string        `json:"mood_tags,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
}

// EntryPatch carries the fields of a day-entry mutation. Nil fields are left
// untouched by the store; present fields overwrite.
type EntryPatch struct {
	Habits         map[string]bool `json:"habits,omitempty"`
	SleepHours     *float64        `json:"sleep_hours,omitempty"`
	AnxietyLevel   *int            `json:"anxiety_level,omitempty"`
	WorkHours      *float64        `json:"work_hours,omitempty"`
	BoredomMinutes *int            `json:"boredom_minutes,omitempty"`
	MoodCategory   *string         `json:"mood_category,omitempty"`
	PriorityLabel  *string         `json:"priority_label,omitempty"`
	PriorityDone   *bool           `json:"priority_done,omitempty"`
	MoodNote       *string         `json:"mood_note,omitempty"`
	MoodMediaURL   *string         `json:"mood_media_url,omitempty"`
	MoodTags       []string        `json:"mood_tags,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p EntryPatch) IsEmpty() bool {
	return len(p.Habits) == 0 && p.SleepHours == nil && p.AnxietyLevel == nil &&
		p.WorkHours == nil && p.BoredomMinutes == nil && p.MoodCategory == nil &&
		p.PriorityLabel == nil && p.PriorityDone == nil && p.MoodNote == nil &&
		p.MoodMediaURL == nil && p.MoodTags == nil
}

// CustomHabit is one entry of a user's custom habit catalog. Deletion is soft;
// inactive habits keep their historical done maps.
type CustomHabit struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Task is a to-do item, optionally mirrored to a Google Calendar event.
type Task struct {
	ID               string  `json:"id"`
	User             string  `json:"user_email"`
	Title            string  `json:"title"`
	Source           string  `json:"source"`
	ScheduledDate    *string `json:"scheduled_date"`
	ScheduledTime    *string `json:"scheduled_time"`
	PriorityTag      string  `json:"priority_tag"`
	EstimatedMinutes *int    `json:"estimated_minutes"`
	ActualMinutes    *int    `json:"actual_minutes"`
	IsDone           bool    `json:"is_done"`
	GoogleCalendarID *string `json:"google_calendar_id"`
	GoogleEventID    *string `json:"google_event_id"`
	ExternalEventKey *string `json:"external_event_key"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	Version          int     `json:"version"`
}

// TaskPatch is a partial task update. Nil means untouched; for the nullable
// string fields an explicit empty string clears the column.
type TaskPatch struct {
	Title            *string `json:"title,omitempty"`
	Source           *string `json:"source,omitempty"`
	ScheduledDate    *string `json:"scheduled_date,omitempty"`
	ScheduledTime    *string `json:"scheduled_time,omitempty"`
	PriorityTag      *string `json:"priority_tag,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	ActualMinutes    *int    `json:"actual_minutes,omitempty"`
	IsDone           *bool   `json:"is_done,omitempty"`
	GoogleCalendarID *string `json:"google_calendar_id,omitempty"`
	GoogleEventID    *string `json:"google_event_id,omitempty"`
	ExternalEventKey *string `json:"external_event_key,omitempty"`
}

// Subtask belongs to a task and shares its owner. Deleted with the parent.
type Subtask struct {
	ID               string `json:"id"`
	TaskID           string `json:"task_id"`
	User             string `json:"user_email"`
	Title            string `json:"title"`
	PriorityTag      string `json:"priority_tag"`
	EstimatedMinutes *int   `json:"estimated_minutes"`
	ActualMinutes    *int   `json:"actual_minutes"`
	IsDone           bool   `json:"is_done"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// SubtaskPatch is a partial subtask update.
type SubtaskPatch struct {
	Title            *string `json:"title,omitempty"`
	PriorityTag      *string `json:"priority_tag,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	ActualMinutes    *int    `json:"actual_minutes,omitempty"`
	IsDone           *bool   `json:"is_done,omitempty"`
}

// OutboxEntry is one pending remote side effect. Rows are written in the same
// transaction as the local mutation they mirror.
type OutboxEntry struct {
	ID          string          `json:"id"`
	User        string          `json:"user_email"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Action      string          `json:"action"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	NextRetryAt *string         `json:"next_retry_at,omitempty"`
	LastError   *string         `json:"last_error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// SyncCursor tracks incremental-sync state for one (user, calendar) pair.
type SyncCursor struct {
	User         string  `json:"user_email"`
	CalendarID   string  `json:"calendar_id"`
	SyncToken    *string `json:"sync_token,omitempty"`
	LastSyncedAt string  `json:"last_synced_at"`
	LastError    *string `json:"last_error,omitempty"`
}

// GoogleToken holds one user's OAuth material. The refresh token is stored
// encrypted; the access token is short-lived plaintext.
type GoogleToken struct {
	User            string  `json:"user_email"`
	RefreshTokenEnc string  `json:"-"`
	AccessToken     *string `json:"-"`
	ExpiresAt       *string `json:"expires_at,omitempty"`
	Scope           *string `json:"scope,omitempty"`
	UpdatedAt       string  `json:"updated_at"`
}

// Setting is one row of the flat key/value settings table.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
