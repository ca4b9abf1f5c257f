// Package services holds the application services between the HTTP layer
// and the store: task CRUD with outbox emission, the custom habit catalog,
// and the streak/metric calculations.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
)

// TaskService owns task and subtask mutations. Every user-initiated mutation
// enqueues its remote side effect in the same transaction as the local write.
type TaskService struct {
	store       store.Store
	calendarFor func(user string) string
	log         zerolog.Logger
}

func NewTaskService(st store.Store, calendarFor func(string) string, log zerolog.Logger) *TaskService {
	return &TaskService{store: st, calendarFor: calendarFor, log: log}
}

// TaskInput is the raw create request before normalization.
type TaskInput struct {
	Title            string  `json:"title"`
	Source           string  `json:"source,omitempty"`
	ScheduledDate    string  `json:"scheduled_date,omitempty"`
	ScheduledTime    string  `json:"scheduled_time,omitempty"`
	PriorityTag      string  `json:"priority_tag,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	ActualMinutes    *int    `json:"actual_minutes,omitempty"`
	IsDone           bool    `json:"is_done,omitempty"`
}

func normalizePriority(p string) string {
	switch p {
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
		return p
	default:
		return model.PriorityMedium
	}
}

// normalizeClock truncates a time-of-day to HH:MM. Empty or unparseable
// values become null.
func normalizeClock(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if len(v) > 5 {
		v = v[:5]
	}
	if _, err := time.Parse(model.ClockLayout, v); err != nil {
		return nil
	}
	return &v
}

func normalizeDate(v string) (*string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if _, err := time.Parse(model.DateLayout, v); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", model.ErrValidation, v)
	}
	return &v, nil
}

func normalizeMinutes(p *int) *int {
	if p == nil || *p < 0 {
		return nil
	}
	return p
}

// Create validates and stores a new task, enqueueing the remote create when
// the task is born scheduled.
func (s *TaskService) Create(ctx context.Context, user string, in TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	date, err := normalizeDate(in.ScheduledDate)
	if err != nil {
		return nil, err
	}

	source := in.Source
	switch source {
	case model.SourceManual, model.SourceRemembered, model.SourceGoogle,
		model.SourceCalendarOverride, model.SourceCalendarSync:
	default:
		source = model.SourceManual
	}
	// A remembered task is exactly an unscheduled one.
	if date == nil {
		source = model.SourceRemembered
	} else if source == model.SourceRemembered {
		source = model.SourceManual
	}

	task := &model.Task{
		ID:               uuid.NewString(),
		User:             user,
		Title:            title,
		Source:           source,
		ScheduledDate:    date,
		ScheduledTime:    normalizeClock(in.ScheduledTime),
		PriorityTag:      normalizePriority(in.PriorityTag),
		EstimatedMinutes: normalizeMinutes(in.EstimatedMinutes),
		ActualMinutes:    normalizeMinutes(in.ActualMinutes),
		IsDone:           in.IsDone,
	}

	var ob *model.OutboxEntry
	if task.ScheduledDate != nil {
		ob = &model.OutboxEntry{
			User: user, EntityType: "task", EntityID: task.ID, Action: model.ActionCreate,
		}
	}
	if err := s.store.Tasks().Create(ctx, task, ob); err != nil {
		return nil, err
	}
	return task, nil
}

// TaskUpdate is the raw partial update before normalization. Nil fields are
// untouched; empty strings clear nullable fields.
type TaskUpdate struct {
	Title            *string `json:"title,omitempty"`
	ScheduledDate    *string `json:"scheduled_date,omitempty"`
	ScheduledTime    *string `json:"scheduled_time,omitempty"`
	PriorityTag      *string `json:"priority_tag,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	ActualMinutes    *int    `json:"actual_minutes,omitempty"`
	IsDone           *bool   `json:"is_done,omitempty"`
}

// Update applies a partial update and enqueues the matching outbox entry:
// a create when the task just gained its first schedule and has no remote
// event yet, an update otherwise.
func (s *TaskService) Update(ctx context.Context, user, id string, in TaskUpdate) (*model.Task, error) {
	cur, err := s.store.Tasks().Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	patch := model.TaskPatch{
		EstimatedMinutes: in.EstimatedMinutes,
		ActualMinutes:    in.ActualMinutes,
		IsDone:           in.IsDone,
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			title = "Untitled task"
		}
		patch.Title = &title
	}
	if in.ScheduledDate != nil {
		if *in.ScheduledDate == "" {
			patch.ScheduledDate = in.ScheduledDate
		} else {
			d, err := normalizeDate(*in.ScheduledDate)
			if err != nil {
				return nil, err
			}
			patch.ScheduledDate = d
		}
	}
	if in.ScheduledTime != nil {
		c := normalizeClock(*in.ScheduledTime)
		if c == nil {
			empty := ""
			patch.ScheduledTime = &empty
		} else {
			patch.ScheduledTime = c
		}
	}
	if in.PriorityTag != nil {
		p := normalizePriority(*in.PriorityTag)
		patch.PriorityTag = &p
	}

	gainsSchedule := cur.ScheduledDate == nil &&
		patch.ScheduledDate != nil && *patch.ScheduledDate != ""
	losesSchedule := cur.ScheduledDate != nil &&
		patch.ScheduledDate != nil && *patch.ScheduledDate == ""

	// The remembered/manual split follows the schedule.
	if gainsSchedule && cur.Source == model.SourceRemembered {
		src := model.SourceManual
		patch.Source = &src
	}
	if losesSchedule {
		src := model.SourceRemembered
		patch.Source = &src
	}

	ob := &model.OutboxEntry{User: user, EntityType: "task", EntityID: id, Action: model.ActionUpdate}
	if gainsSchedule && cur.GoogleEventID == nil {
		ob.Action = model.ActionCreate
	}
	return s.store.Tasks().Update(ctx, user, id, patch, ob)
}

// Schedule moves a remembered task onto the calendar.
func (s *TaskService) Schedule(ctx context.Context, user, id, date, clock string) (*model.Task, error) {
	if strings.TrimSpace(date) == "" {
		return nil, fmt.Errorf("%w: scheduled_date is required", model.ErrValidation)
	}
	return s.Update(ctx, user, id, TaskUpdate{
		ScheduledDate: &date,
		ScheduledTime: &clock,
	})
}

// Delete removes the task (cascading subtasks) and enqueues the remote
// delete with the last known event coordinates in the payload.
func (s *TaskService) Delete(ctx context.Context, user, id string) error {
	cur, err := s.store.Tasks().Get(ctx, user, id)
	if err != nil {
		return err
	}

	var ob *model.OutboxEntry
	if cur.GoogleEventID != nil {
		calendarID := deref(cur.GoogleCalendarID)
		if calendarID == "" {
			calendarID = s.calendarFor(user)
		}
		payload, merr := json.Marshal(map[string]string{
			"calendar_id": calendarID,
			"event_id":    *cur.GoogleEventID,
		})
		if merr != nil {
			return merr
		}
		ob = &model.OutboxEntry{
			User: user, EntityType: "task", EntityID: id,
			Action: model.ActionDelete, Payload: payload,
		}
	}
	return s.store.Tasks().Delete(ctx, user, id, ob)
}

func (s *TaskService) Get(ctx context.Context, user, id string) (*model.Task, error) {
	return s.store.Tasks().Get(ctx, user, id)
}

func (s *TaskService) ListRange(ctx context.Context, user, start, end string) ([]*model.Task, error) {
	return s.store.Tasks().ListRange(ctx, user, start, end)
}

func (s *TaskService) ListUnscheduled(ctx context.Context, user, source string) ([]*model.Task, error) {
	return s.store.Tasks().ListUnscheduled(ctx, user, source)
}

func (s *TaskService) Subtasks(ctx context.Context, user string, taskIDs []string) ([]*model.Subtask, error) {
	return s.store.Subtasks().ListForTasks(ctx, user, taskIDs)
}

// SubtaskInput is the raw subtask create request.
type SubtaskInput struct {
	TaskID           string `json:"task_id"`
	Title            string `json:"title"`
	PriorityTag      string `json:"priority_tag,omitempty"`
	EstimatedMinutes *int   `json:"estimated_minutes,omitempty"`
	ActualMinutes    *int   `json:"actual_minutes,omitempty"`
	IsDone           bool   `json:"is_done,omitempty"`
}

// AddSubtask creates a subtask and re-propagates parent completion.
func (s *TaskService) AddSubtask(ctx context.Context, user string, in SubtaskInput) (*model.Subtask, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	sub := &model.Subtask{
		ID:               uuid.NewString(),
		TaskID:           in.TaskID,
		User:             user,
		Title:            title,
		PriorityTag:      normalizePriority(in.PriorityTag),
		EstimatedMinutes: normalizeMinutes(in.EstimatedMinutes),
		ActualMinutes:    normalizeMinutes(in.ActualMinutes),
		IsDone:           in.IsDone,
	}
	if err := s.store.Subtasks().Add(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.propagateCompletion(ctx, user, in.TaskID); err != nil {
		return nil, err
	}
	return sub, nil
}

// UpdateSubtask applies a partial update and re-propagates parent completion.
func (s *TaskService) UpdateSubtask(ctx context.Context, user, id string, patch model.SubtaskPatch) (*model.Subtask, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			title = "Untitled task"
		}
		patch.Title = &title
	}
	if patch.PriorityTag != nil {
		p := normalizePriority(*patch.PriorityTag)
		patch.PriorityTag = &p
	}
	sub, err := s.store.Subtasks().Update(ctx, user, id, patch)
	if err != nil {
		return nil, err
	}
	if err := s.propagateCompletion(ctx, user, sub.TaskID); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *TaskService) DeleteSubtask(ctx context.Context, user, id string) error {
	sub, err := s.store.Subtasks().Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.store.Subtasks().Delete(ctx, user, id); err != nil {
		return err
	}
	return s.propagateCompletion(ctx, user, sub.TaskID)
}

// propagateCompletion mirrors subtask state onto the parent: all done marks
// the parent done, any undone clears it. With no subtasks the parent flag is
// authoritative and left alone. Propagation writes skip the outbox since the
// calendar payload carries no done flag.
func (s *TaskService) propagateCompletion(ctx context.Context, user, taskID string) error {
	subs, err := s.store.Subtasks().ListForTasks(ctx, user, []string{taskID})
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}
	allDone := true
	for _, sub := range subs {
		if !sub.IsDone {
			allDone = false
			break
		}
	}

	parent, err := s.store.Tasks().Get(ctx, user, taskID)
	if err != nil {
		return err
	}
	if parent.IsDone == allDone {
		return nil
	}
	_, err = s.store.Tasks().Update(ctx, user, taskID, model.TaskPatch{IsDone: &allDone}, nil)
	return err
}

// PriorityHint surfaces a read-only priority from schedule pressure, source
// and subtask progress. Never persisted.
func (s *TaskService) PriorityHint(task *model.Task, subs []*model.Subtask, now time.Time) string {
	progress := 0.0
	if len(subs) > 0 {
		done := 0
		for _, sub := range subs {
			if sub.IsDone {
				done++
			}
		}
		progress = float64(done) / float64(len(subs))
	} else if task.IsDone {
		progress = 1.0
	}

	if task.ScheduledDate != nil {
		due, err := time.ParseInLocation(model.DateLayout, *task.ScheduledDate, now.Location())
		if err == nil {
			if task.ScheduledTime != nil {
				if at, terr := time.Parse(model.ClockLayout, *task.ScheduledTime); terr == nil {
					due = due.Add(time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute)
				}
			} else {
				due = due.AddDate(0, 0, 1) // all-day: due at end of day
			}
			if due.Before(now) && progress < 1.0 {
				return model.PriorityHigh
			}
			if *task.ScheduledDate == now.Format(model.DateLayout) && task.ScheduledTime != nil {
				until := due.Sub(now)
				if until <= 2*time.Hour {
					return model.PriorityHigh
				}
				if until <= 6*time.Hour {
					return model.PriorityMedium
				}
			}
		}
	}
	if task.Source == model.SourceGoogle {
		return model.PriorityMedium
	}
	if progress < 0.5 {
		return model.PriorityMedium
	}
	return model.PriorityLow
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
