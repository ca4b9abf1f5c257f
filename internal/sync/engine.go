// Package sync reconciles local tasks with Google Calendar: inbound pulls
// through per-calendar sync cursors and outbound pushes through a durable
// outbox.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifedash/lifedash/internal/calendar"
	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
)

// CalendarAPI is the slice of the calendar client the engine needs; tests
// substitute a fake.
type CalendarAPI interface {
	ListEvents(ctx context.Context, user, calendarID, timeMin, timeMax, syncToken string) (*calendar.EventList, error)
	CreateEvent(ctx context.Context, user, calendarID string, payload *calendar.EventPayload) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, user, calendarID, eventID string, payload *calendar.EventPayload) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, user, calendarID, eventID string) error
	CalendarTimezone(ctx context.Context, user, calendarID string) string
}

// Config wires the engine to its users and calendars.
type Config struct {
	Users           []string
	CalendarFor     func(user string) string
	DefaultTimezone string
	BatchSize       int
}

// Engine drives both sync directions over one store and one calendar API.
type Engine struct {
	store  store.Store
	api    CalendarAPI
	cfg    Config
	log    zerolog.Logger
	window time.Duration
}

const (
	pullWindow      = 7 * 24 * time.Hour
	maxBackoff      = 300 * time.Second
	maxErrorLen     = 500
	fallbackSummary = "Google event"
)

func NewEngine(st store.Store, api CalendarAPI, cfg Config, log zerolog.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Engine{store: st, api: api, cfg: cfg, log: log, window: pullWindow}
}

// PullAll runs an inbound pull for every configured user.
func (e *Engine) PullAll(ctx context.Context) {
	for _, user := range e.cfg.Users {
		if err := e.PullUser(ctx, user); err != nil {
			e.log.Error().Stack().Err(err).Str("user", user).Msg("inbound pull failed")
		}
	}
}

// PullUser reconciles one user's calendar into local tasks. Incremental when
// a sync token is stored; otherwise a full list over the next 7 days. A
// rejected sync token clears the cursor so the next tick re-lists the window.
func (e *Engine) PullUser(ctx context.Context, user string) error {
	calendarID := e.cfg.CalendarFor(user)

	syncToken := ""
	cursor, err := e.store.Cursors().Get(ctx, user, calendarID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("pull %s: %w", user, err)
	}
	if cursor != nil && cursor.SyncToken != nil {
		syncToken = *cursor.SyncToken
	}

	timeMin, timeMax := "", ""
	if syncToken == "" {
		now := time.Now().UTC().Truncate(24 * time.Hour)
		timeMin = now.Format(time.RFC3339)
		timeMax = now.Add(e.window).Format(time.RFC3339)
	}

	list, err := e.api.ListEvents(ctx, user, calendarID, timeMin, timeMax, syncToken)
	if err != nil {
		if calendar.IsKind(err, calendar.KindTokenInvalid) && syncToken != "" {
			// 410: discard the token, re-list the full window next tick.
			msg := truncate(err.Error(), maxErrorLen)
			if uerr := e.store.Cursors().Update(ctx, user, calendarID, nil, &msg); uerr != nil {
				return fmt.Errorf("pull %s: %w", user, uerr)
			}
			return nil
		}
		msg := truncate(err.Error(), maxErrorLen)
		keep := optional(syncToken)
		_ = e.store.Cursors().Update(ctx, user, calendarID, keep, &msg)
		return fmt.Errorf("pull %s: %w", user, err)
	}

	for _, ev := range list.Items {
		if err := e.applyEvent(ctx, user, calendarID, &ev); err != nil {
			return fmt.Errorf("pull %s: %w", user, err)
		}
	}

	return e.store.Cursors().Update(ctx, user, calendarID, optional(list.NextSyncToken), nil)
}

// applyEvent upserts or deletes the local mirror of one inbound event.
// Inbound writes never enqueue outbox rows.
func (e *Engine) applyEvent(ctx context.Context, user, calendarID string, ev *calendar.Event) error {
	if ev.ID == "" {
		return nil
	}

	existing, err := e.store.Tasks().GetByGoogleIDs(ctx, user, calendarID, ev.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}

	if ev.Status == "cancelled" {
		if existing == nil {
			return nil
		}
		e.log.Info().Str("user", user).Str("event", ev.ID).Msg("inbound cancellation, deleting local task")
		err := e.store.Tasks().Delete(ctx, user, existing.ID, nil)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}

	title := ev.Summary
	if title == "" {
		title = fallbackSummary
	}
	date, clock := eventSchedule(ev.Start)

	if existing != nil {
		patch := model.TaskPatch{
			Title:         &title,
			ScheduledDate: orEmpty(date),
			ScheduledTime: orEmpty(clock),
		}
		if ev.ICalUID != "" {
			patch.ExternalEventKey = &ev.ICalUID
		}
		_, err := e.store.Tasks().Update(ctx, user, existing.ID, patch, nil)
		return err
	}

	task := &model.Task{
		ID:               newID(),
		User:             user,
		Title:            title,
		Source:           model.SourceGoogle,
		ScheduledDate:    date,
		ScheduledTime:    clock,
		PriorityTag:      model.PriorityMedium,
		GoogleCalendarID: &calendarID,
		GoogleEventID:    &ev.ID,
	}
	if ev.ICalUID != "" {
		task.ExternalEventKey = &ev.ICalUID
	}
	return e.store.Tasks().Create(ctx, task, nil)
}

// outboxPayload is the opaque payload tasks attach to their outbox rows.
type outboxPayload struct {
	CalendarID string `json:"calendar_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
}

// ProcessOutboxOnce drains at most limit pending entries and returns how
// many it handled. Failures stay pending with capped exponential backoff.
func (e *Engine) ProcessOutboxOnce(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = e.cfg.BatchSize
	}
	entries, err := e.store.Outbox().ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, entry := range entries {
		done, herr := e.handleEntry(ctx, entry)
		switch {
		case herr != nil:
			attempts := entry.Attempts + 1
			retryAt := time.Now().UTC().Add(backoff(attempts)).Format(model.TimestampLayout)
			msg := truncate(herr.Error(), maxErrorLen)
			e.log.Warn().Str("outbox_id", entry.ID).Str("action", entry.Action).
				Int("attempts", attempts).Str("error", msg).Msg("outbox entry failed")
			if merr := e.store.Outbox().MarkError(ctx, entry.ID, attempts, retryAt, msg); merr != nil {
				return handled, merr
			}
		case done:
			if merr := e.store.Outbox().MarkDone(ctx, entry.ID); merr != nil {
				return handled, merr
			}
			handled++
		default:
			// Not ready yet (e.g. create for a still-unscheduled task);
			// stays pending untouched.
		}
	}
	return handled, nil
}

// backoff returns min(300s, 2^min(attempts, 8) seconds).
func backoff(attempts int) time.Duration {
	if attempts > 8 {
		attempts = 8
	}
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (e *Engine) handleEntry(ctx context.Context, entry *model.OutboxEntry) (done bool, err error) {
	var payload outboxPayload
	if len(entry.Payload) > 0 {
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			return false, fmt.Errorf("decode outbox payload: %w", err)
		}
	}

	switch entry.Action {
	case model.ActionCreate:
		return e.pushCreate(ctx, entry.User, entry.EntityID)
	case model.ActionUpdate:
		return e.pushUpdate(ctx, entry.User, entry.EntityID)
	case model.ActionDelete:
		if payload.EventID == "" {
			return true, nil
		}
		calendarID := payload.CalendarID
		if calendarID == "" {
			calendarID = e.cfg.CalendarFor(entry.User)
		}
		if err := e.api.DeleteEvent(ctx, entry.User, calendarID, payload.EventID); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown outbox action %q", entry.Action)
	}
}

func (e *Engine) pushCreate(ctx context.Context, user, taskID string) (bool, error) {
	task, err := e.store.Tasks().Get(ctx, user, taskID)
	if errors.Is(err, model.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if task.ScheduledDate == nil {
		// Stays pending until the task gains a schedule.
		return false, nil
	}
	if task.GoogleEventID != nil {
		return true, nil
	}

	calendarID := e.cfg.CalendarFor(user)
	tz := e.api.CalendarTimezone(ctx, user, calendarID)
	payload, err := BuildEventPayload(task, tz)
	if err != nil {
		return false, err
	}

	ev, err := e.api.CreateEvent(ctx, user, calendarID, payload)
	if err != nil {
		return false, err
	}
	_, err = e.store.Tasks().Update(ctx, user, taskID, model.TaskPatch{
		GoogleCalendarID: &calendarID,
		GoogleEventID:    &ev.ID,
	}, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) pushUpdate(ctx context.Context, user, taskID string) (bool, error) {
	task, err := e.store.Tasks().Get(ctx, user, taskID)
	if errors.Is(err, model.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if task.GoogleEventID == nil || task.GoogleCalendarID == nil || task.ScheduledDate == nil {
		// Nothing to mirror; the create entry owns first propagation.
		return true, nil
	}

	tz := e.api.CalendarTimezone(ctx, user, *task.GoogleCalendarID)
	payload, err := BuildEventPayload(task, tz)
	if err != nil {
		return false, err
	}
	if _, err := e.api.UpdateEvent(ctx, user, *task.GoogleCalendarID, *task.GoogleEventID, payload); err != nil {
		return false, err
	}
	return true, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmpty(p *string) *string {
	if p == nil {
		empty := ""
		return &empty
	}
	return p
}
