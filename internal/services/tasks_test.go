package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/store/sqlite"
)

const owner = "ana@example.com"

func newStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTaskService(t *testing.T) (store.Store, *TaskService) {
	st := newStore(t)
	svc := NewTaskService(st, func(string) string { return "primary" }, zerolog.Nop())
	return st, svc
}

func sp(v string) *string { return &v }
func ip(v int) *int       { return &v }
func bp(v bool) *bool     { return &v }

func TestCreateNormalizes(t *testing.T) {
	ctx := context.Background()
	st, svc := newTaskService(t)

	neg := -5
	task, err := svc.Create(ctx, owner, TaskInput{
		Title:            "  Dissertation block  ",
		ScheduledDate:    "2025-02-03",
		ScheduledTime:    "09:00:00",
		PriorityTag:      "urgent!!",
		EstimatedMinutes: &neg,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dissertation block", task.Title)
	assert.Equal(t, "09:00", *task.ScheduledTime)
	assert.Equal(t, model.PriorityMedium, task.PriorityTag)
	assert.Nil(t, task.EstimatedMinutes)
	assert.Equal(t, model.SourceManual, task.Source)

	// Scheduled create enqueues the remote create.
	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.ActionCreate, pending[0].Action)
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	_, svc := newTaskService(t)
	_, err := svc.Create(context.Background(), owner, TaskInput{Title: "   "})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateRejectsBadDate(t *testing.T) {
	_, svc := newTaskService(t)
	_, err := svc.Create(context.Background(), owner, TaskInput{Title: "X", ScheduledDate: "03/02/2025"})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestUnscheduledCreateIsRemembered(t *testing.T) {
	ctx := context.Background()
	st, svc := newTaskService(t)

	task, err := svc.Create(ctx, owner, TaskInput{Title: "Buy sandpaper"})
	require.NoError(t, err)
	assert.Equal(t, model.SourceRemembered, task.Source)
	assert.Nil(t, task.ScheduledDate)

	// No outbox entry until the task is scheduled.
	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rem, err := svc.ListUnscheduled(ctx, owner, model.SourceRemembered)
	require.NoError(t, err)
	require.Len(t, rem, 1)
}

func TestScheduleTransitionEnqueuesCreate(t *testing.T) {
	ctx := context.Background()
	st, svc := newTaskService(t)

	task, err := svc.Create(ctx, owner, TaskInput{Title: "Buy sandpaper"})
	require.NoError(t, err)

	scheduled, err := svc.Schedule(ctx, owner, task.ID, "2025-02-07", "15:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-07", *scheduled.ScheduledDate)
	assert.Equal(t, "15:00", *scheduled.ScheduledTime)
	assert.Equal(t, model.SourceManual, scheduled.Source)

	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.ActionCreate, pending[0].Action)
}

func TestUpdateEnqueuesUpdate(t *testing.T) {
	ctx := context.Background()
	st, svc := newTaskService(t)

	task, err := svc.Create(ctx, owner, TaskInput{Title: "X", ScheduledDate: "2025-02-03"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner, task.ID, TaskUpdate{Title: sp("Y")})
	require.NoError(t, err)

	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.ActionCreate, pending[0].Action)
	assert.Equal(t, model.ActionUpdate, pending[1].Action)
}

func TestUpdateBlankTitleBecomesUntitled(t *testing.T) {
	ctx := context.Background()
	_, svc := newTaskService(t)

	task, err := svc.Create(ctx, owner, TaskInput{Title: "X", ScheduledDate: "2025-02-03"})
	require.NoError(t, err)

	upd, err := svc.Update(ctx, owner, task.ID, TaskUpdate{Title: sp("  ")})
	require.NoError(t, err)
	assert.Equal(t, "Untitled task", upd.Title)
}

func TestDeleteEnqueuesDeleteWithEventCoordinates(t *testing.T) {
	ctx := context.Background()
	st, svc := newTaskService(t)

	task, err := svc.Create(ctx, owner, TaskInput{Title: "X", ScheduledDate: "2025-02-03"})
	require.NoError(t, err)
	_, err = st.Tasks().Update(ctx, owner, task.ID, model.TaskPatch{
		GoogleCalendarID: sp("primary"), GoogleEventID: sp("evt-9"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, st.Outbox().MarkDone(ctx, mustPendingID(t, st)))

	require.NoError(t, svc.Delete(ctx, owner, task.ID))

	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.ActionDelete, pending[0].Action)
	assert.Contains(t, string(pending[0].Payload), "evt-9")
	assert.Contains(t, string(pending[0].Payload), "primary")
}

func mustPendingID(t *testing.T, st store.Store) string {
	t.Helper()
	rows, err := st.Outbox().ListPending(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	return rows[0].ID
}

func TestCompletionPropagation(t *testing.T) {
	ctx := context.Background()
	_, svc := newTaskService(t)

	task, err := svc.Create(ctx, owner, TaskInput{Title: "Parent", ScheduledDate: "2025-02-03"})
	require.NoError(t, err)

	s1, err := svc.AddSubtask(ctx, owner, SubtaskInput{TaskID: task.ID, Title: "one"})
	require.NoError(t, err)
	s2, err := svc.AddSubtask(ctx, owner, SubtaskInput{TaskID: task.ID, Title: "two"})
	require.NoError(t, err)

	_, err = svc.UpdateSubtask(ctx, owner, s1.ID, model.SubtaskPatch{IsDone: bp(true)})
	require.NoError(t, err)
	parent, err := svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.False(t, parent.IsDone)

	_, err = svc.UpdateSubtask(ctx, owner, s2.ID, model.SubtaskPatch{IsDone: bp(true)})
	require.NoError(t, err)
	parent, err = svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.True(t, parent.IsDone)

	// Undoing one subtask undoes the parent.
	_, err = svc.UpdateSubtask(ctx, owner, s2.ID, model.SubtaskPatch{IsDone: bp(false)})
	require.NoError(t, err)
	parent, err = svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.False(t, parent.IsDone)

	// Deleting the undone subtask leaves only done ones.
	require.NoError(t, svc.DeleteSubtask(ctx, owner, s2.ID))
	parent, err = svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.True(t, parent.IsDone)
}

func TestParentAuthoritativeWithoutSubtasks(t *testing.T) {
	ctx := context.Background()
	_, svc := newTaskService(t)

	task, err := svc.Create(ctx, owner, TaskInput{Title: "Solo", ScheduledDate: "2025-02-03", IsDone: true})
	require.NoError(t, err)
	got, err := svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDone)
}

func TestPriorityHint(t *testing.T) {
	_, svc := newTaskService(t)
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)

	pastDue := &model.Task{ScheduledDate: sp("2025-02-01"), ScheduledTime: sp("09:00")}
	assert.Equal(t, model.PriorityHigh, svc.PriorityHint(pastDue, nil, now))

	soon := &model.Task{ScheduledDate: sp("2025-02-03"), ScheduledTime: sp("13:30")}
	assert.Equal(t, model.PriorityHigh, svc.PriorityHint(soon, nil, now))

	later := &model.Task{ScheduledDate: sp("2025-02-03"), ScheduledTime: sp("17:00")}
	assert.Equal(t, model.PriorityMedium, svc.PriorityHint(later, nil, now))

	synced := &model.Task{Source: model.SourceGoogle, ScheduledDate: sp("2025-02-10"), ScheduledTime: sp("09:00")}
	assert.Equal(t, model.PriorityMedium, svc.PriorityHint(synced, nil, now))

	halfDone := &model.Task{ScheduledDate: sp("2025-02-10"), ScheduledTime: sp("09:00")}
	subs := []*model.Subtask{{IsDone: true}, {IsDone: true}, {IsDone: false}}
	assert.Equal(t, model.PriorityLow, svc.PriorityHint(halfDone, subs, now))

	barelyStarted := &model.Task{ScheduledDate: sp("2025-02-10"), ScheduledTime: sp("09:00")}
	subs = []*model.Subtask{{IsDone: true}, {IsDone: false}, {IsDone: false}}
	assert.Equal(t, model.PriorityMedium, svc.PriorityHint(barelyStarted, subs, now))

	// Past-due but fully complete is not urgent.
	doneTask := &model.Task{ScheduledDate: sp("2025-02-01"), ScheduledTime: sp("09:00"), IsDone: true}
	assert.Equal(t, model.PriorityLow, svc.PriorityHint(doneTask, nil, now))
}
