// Package storetest holds a compliance suite run against every store
// implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
)

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the full store contract against the given factory.
func Run(t *testing.T, factory Factory) {
	t.Run("EntriesPatchMerge", func(t *testing.T) { testEntriesPatchMerge(t, factory(t)) })
	t.Run("EntriesRange", func(t *testing.T) { testEntriesRange(t, factory(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, factory(t)) })
	t.Run("TaskLifecycle", func(t *testing.T) { testTaskLifecycle(t, factory(t)) })
	t.Run("TaskGoogleIDs", func(t *testing.T) { testTaskGoogleIDs(t, factory(t)) })
	t.Run("SubtaskCascade", func(t *testing.T) { testSubtaskCascade(t, factory(t)) })
	t.Run("Outbox", func(t *testing.T) { testOutbox(t, factory(t)) })
	t.Run("Cursors", func(t *testing.T) { testCursors(t, factory(t)) })
	t.Run("Tokens", func(t *testing.T) { testTokens(t, factory(t)) })
}

const owner = "ana@example.com"

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }
func s(v string) *string     { return &v }
func b(v bool) *bool         { return &v }

func testEntriesPatchMerge(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	_, err := st.Entries().Get(ctx, owner, "2025-02-03")
	require.ErrorIs(t, err, model.ErrNotFound)

	patch := model.EntryPatch{
		Habits:     map[string]bool{"workout": true},
		SleepHours: f64(7.5),
	}
	e, err := st.Entries().Patch(ctx, owner, "2025-02-03", patch)
	require.NoError(t, err)
	assert.True(t, e.Habits["workout"])
	assert.Equal(t, 7.5, *e.SleepHours)
	assert.NotEmpty(t, e.UpdatedAt)

	// Unrelated patch leaves prior fields untouched.
	_, err = st.Entries().Patch(ctx, owner, "2025-02-03", model.EntryPatch{
		MoodCategory: s("Paz"),
		MoodTags:     []string{"calma", "sol"},
	})
	require.NoError(t, err)

	got, err := st.Entries().Get(ctx, owner, "2025-02-03")
	require.NoError(t, err)
	assert.True(t, got.Habits["workout"])
	assert.Equal(t, 7.5, *got.SleepHours)
	assert.Equal(t, "Paz", *got.MoodCategory)
	assert.Equal(t, []string{"calma", "sol"}, got.MoodTags)

	// Applying the same patch again changes nothing but updated_at.
	again, err := st.Entries().Patch(ctx, owner, "2025-02-03", patch)
	require.NoError(t, err)
	again.UpdatedAt, got.UpdatedAt = "", ""
	assert.Equal(t, got, again)
}

func testEntriesRange(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	for _, d := range []string{"2025-02-05", "2025-02-03", "2025-02-10"} {
		_, err := st.Entries().Patch(ctx, owner, d, model.EntryPatch{Habits: map[string]bool{"shower": true}})
		require.NoError(t, err)
	}
	_, err := st.Entries().Patch(ctx, "bob@example.com", "2025-02-04", model.EntryPatch{Habits: map[string]bool{"shower": true}})
	require.NoError(t, err)

	got, err := st.Entries().ListRange(ctx, owner, "2025-02-03", "2025-02-05")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-02-03", got[0].Date)
	assert.Equal(t, "2025-02-05", got[1].Date)
}

func testSettings(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	_, err := st.Settings().Get(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, st.Settings().Set(ctx, owner+"::meeting_days", "[1,3]"))
	require.NoError(t, st.Settings().Set(ctx, owner+"::meeting_days", "[1,3,5]"))

	v, err := st.Settings().Get(ctx, owner+"::meeting_days")
	require.NoError(t, err)
	assert.Equal(t, "[1,3,5]", v)

	require.NoError(t, st.Settings().Set(ctx, owner+"::custom_habit_done::2025-02-03", `{"h1":true}`))
	require.NoError(t, st.Settings().Set(ctx, owner+"::custom_habit_done::2025-02-04", `{"h1":false}`))

	list, err := st.Settings().ListPrefix(ctx, owner+"::custom_habit_done::")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, owner+"::custom_habit_done::2025-02-03", list[0].Key)
}

func testTaskLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	task := &model.Task{
		ID:            uuid.NewString(),
		User:          owner,
		Title:         "Dissertation block",
		Source:        model.SourceManual,
		ScheduledDate: s("2025-02-03"),
		ScheduledTime: s("09:00"),
		PriorityTag:   model.PriorityHigh,
	}
	ob := &model.OutboxEntry{
		User:       owner,
		EntityType: "task",
		EntityID:   task.ID,
		Action:     model.ActionCreate,
	}
	require.NoError(t, st.Tasks().Create(ctx, task, ob))

	// Outbox row landed in the same transaction.
	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].EntityID)

	got, err := st.Tasks().Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)

	upd, err := st.Tasks().Update(ctx, owner, task.ID, model.TaskPatch{
		ScheduledTime:    s("10:30"),
		EstimatedMinutes: i(60),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "10:30", *upd.ScheduledTime)
	assert.Equal(t, 60, *upd.EstimatedMinutes)
	assert.Equal(t, 2, upd.Version)

	// Empty string clears a nullable column.
	upd, err = st.Tasks().Update(ctx, owner, task.ID, model.TaskPatch{ScheduledTime: s("")}, nil)
	require.NoError(t, err)
	assert.Nil(t, upd.ScheduledTime)

	n, err := st.Tasks().CountPending(ctx, owner, "2025-02-03")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	listed, err := st.Tasks().ListRange(ctx, owner, "2025-02-01", "2025-02-28")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	unsched := &model.Task{
		ID:     uuid.NewString(),
		User:   owner,
		Title:  "Buy sandpaper",
		Source: model.SourceRemembered,
	}
	require.NoError(t, st.Tasks().Create(ctx, unsched, nil))

	rem, err := st.Tasks().ListUnscheduled(ctx, owner, model.SourceRemembered)
	require.NoError(t, err)
	require.Len(t, rem, 1)
	assert.Equal(t, "Buy sandpaper", rem[0].Title)

	// Remembered tasks never appear in ranged listings.
	listed, err = st.Tasks().ListRange(ctx, owner, "0000-01-01", "9999-12-31")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, st.Tasks().Delete(ctx, owner, task.ID, nil))
	_, err = st.Tasks().Get(ctx, owner, task.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	require.ErrorIs(t, st.Tasks().Delete(ctx, owner, task.ID, nil), model.ErrNotFound)
}

func testTaskGoogleIDs(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	task := &model.Task{
		ID:               uuid.NewString(),
		User:             owner,
		Title:            "Google event",
		Source:           model.SourceGoogle,
		ScheduledDate:    s("2025-02-03"),
		PriorityTag:      model.PriorityMedium,
		GoogleCalendarID: s("primary"),
		GoogleEventID:    s("evt_1"),
	}
	require.NoError(t, st.Tasks().Create(ctx, task, nil))

	got, err := st.Tasks().GetByGoogleIDs(ctx, owner, "primary", "evt_1")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = st.Tasks().GetByGoogleIDs(ctx, owner, "primary", "evt_2")
	require.ErrorIs(t, err, model.ErrNotFound)

	// Same (calendar, event) pair is unique per owner.
	dup := &model.Task{
		ID:               uuid.NewString(),
		User:             owner,
		Title:            "Duplicate",
		Source:           model.SourceGoogle,
		PriorityTag:      model.PriorityMedium,
		GoogleCalendarID: s("primary"),
		GoogleEventID:    s("evt_1"),
	}
	require.Error(t, st.Tasks().Create(ctx, dup, nil))
}

func testSubtaskCascade(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	task := &model.Task{
		ID: uuid.NewString(), User: owner, Title: "Parent",
		Source: model.SourceManual, PriorityTag: model.PriorityMedium,
	}
	require.NoError(t, st.Tasks().Create(ctx, task, nil))

	sub := &model.Subtask{
		ID: uuid.NewString(), TaskID: task.ID, User: owner,
		Title: "Child", PriorityTag: model.PriorityLow,
	}
	require.NoError(t, st.Subtasks().Add(ctx, sub))

	orphan := &model.Subtask{
		ID: uuid.NewString(), TaskID: "nope", User: owner,
		Title: "Orphan", PriorityTag: model.PriorityLow,
	}
	require.ErrorIs(t, st.Subtasks().Add(ctx, orphan), model.ErrNotFound)

	upd, err := st.Subtasks().Update(ctx, owner, sub.ID, model.SubtaskPatch{IsDone: b(true)})
	require.NoError(t, err)
	assert.True(t, upd.IsDone)

	subs, err := st.Subtasks().ListForTasks(ctx, owner, []string{task.ID})
	require.NoError(t, err)
	require.Len(t, subs, 1)

	require.NoError(t, st.Tasks().Delete(ctx, owner, task.ID, nil))
	subs, err = st.Subtasks().ListForTasks(ctx, owner, []string{task.ID})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func testOutbox(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	first := &model.OutboxEntry{
		User: owner, EntityType: "task", EntityID: "t1", Action: model.ActionCreate,
		Payload: []byte(`{"calendar_id":"primary"}`),
	}
	require.NoError(t, st.Outbox().Enqueue(ctx, first))
	second := &model.OutboxEntry{
		User: owner, EntityType: "task", EntityID: "t1", Action: model.ActionUpdate,
	}
	require.NoError(t, st.Outbox().Enqueue(ctx, second))

	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.ActionCreate, pending[0].Action)
	assert.Equal(t, []byte(`{"calendar_id":"primary"}`), []byte(pending[0].Payload))

	require.NoError(t, st.Outbox().MarkDone(ctx, first.ID))
	pending, err = st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.ActionUpdate, pending[0].Action)

	// A future retry hides the row; a past one surfaces it again.
	require.NoError(t, st.Outbox().MarkError(ctx, second.ID, 1, "9999-01-01T00:00:00.000000000Z", "boom"))
	pending, err = st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, st.Outbox().MarkError(ctx, second.ID, 2, "2000-01-01T00:00:00.000000000Z", "boom"))
	pending, err = st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Equal(t, "boom", *pending[0].LastError)

	// Done rows never come back.
	require.NoError(t, st.Outbox().MarkDone(ctx, second.ID))
	pending, err = st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func testCursors(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	_, err := st.Cursors().Get(ctx, owner, "primary")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, st.Cursors().Update(ctx, owner, "primary", s("tok1"), nil))
	c, err := st.Cursors().Get(ctx, owner, "primary")
	require.NoError(t, err)
	assert.Equal(t, "tok1", *c.SyncToken)
	assert.Nil(t, c.LastError)

	// Nil token clears it (410 recovery path).
	require.NoError(t, st.Cursors().Update(ctx, owner, "primary", nil, s("sync token expired")))
	c, err = st.Cursors().Get(ctx, owner, "primary")
	require.NoError(t, err)
	assert.Nil(t, c.SyncToken)
	assert.Equal(t, "sync token expired", *c.LastError)

	list, err := st.Cursors().ListForUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func testTokens(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	require.NoError(t, st.Tokens().Store(ctx, &model.GoogleToken{
		User:            owner,
		RefreshTokenEnc: "enc1",
		Scope:           s("calendar"),
	}))
	require.NoError(t, st.Tokens().UpdateAccessToken(ctx, owner, "acc1", "2025-02-03T10:00:00.000000000Z"))

	got, err := st.Tokens().Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "enc1", got.RefreshTokenEnc)
	assert.Equal(t, "acc1", *got.AccessToken)

	// Re-consent without a refresh token keeps the stored ciphertext.
	require.NoError(t, st.Tokens().Store(ctx, &model.GoogleToken{User: owner, RefreshTokenEnc: ""}))
	got, err = st.Tokens().Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "enc1", got.RefreshTokenEnc)
	assert.Nil(t, got.AccessToken)

	require.NoError(t, st.Tokens().Delete(ctx, owner))
	_, err = st.Tokens().Get(ctx, owner)
	require.ErrorIs(t, err, model.ErrNotFound)
	require.ErrorIs(t, st.Tokens().UpdateAccessToken(ctx, owner, "a", "e"), model.ErrNotFound)
}
