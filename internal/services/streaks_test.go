package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
)

const partner = "bob@example.com"

func newStreakService(t *testing.T) (store.Store, *StreakService) {
	st := newStore(t)
	return st, NewStreakService(st, NewHabitService(st))
}

func setHabit(t *testing.T, st store.Store, user, date, habit string, done bool) {
	t.Helper()
	_, err := st.Entries().Patch(context.Background(), user, date, model.EntryPatch{
		Habits: map[string]bool{habit: done},
	})
	require.NoError(t, err)
}

func TestStreakSkipsExcludedWeekdays(t *testing.T) {
	ctx := context.Background()
	st, svc := newStreakService(t)

	// Tuesdays and Thursdays only. 2025-02-04 (Tue) and 2025-02-06 (Thu)
	// attended; evaluated on Saturday 2025-02-08 the streak is 2 because
	// Fri/Sat/Wed are skipped, not broken.
	require.NoError(t, svc.SetMeetingDays(ctx, owner, []int{1, 3}))
	setHabit(t, st, owner, "2025-02-04", model.HabitMeetingAttended, true)
	setHabit(t, st, owner, "2025-02-06", model.HabitMeetingAttended, true)

	out, err := svc.SharedStreaks(ctx, owner, partner, "2025-02-08")
	require.NoError(t, err)

	var row *HabitStreak
	for i := range out.Habits {
		if out.Habits[i].Habit == model.HabitMeetingAttended {
			row = &out.Habits[i]
		}
	}
	require.NotNil(t, row)
	assert.Equal(t, 2, row.StreakA)
	// Saturday (weekday 5) is not a meeting day for A.
	assert.False(t, row.ExpectedA)
}

func TestStreakBreaksOnMissedValidDay(t *testing.T) {
	ctx := context.Background()
	st, svc := newStreakService(t)

	require.NoError(t, svc.SetMeetingDays(ctx, owner, []int{1, 3}))
	// Thursday missing, Tuesday attended: streak counts only Thursday-side
	// walk back from Saturday and stops at the missed Thursday.
	setHabit(t, st, owner, "2025-02-04", model.HabitMeetingAttended, true)
	setHabit(t, st, owner, "2025-02-06", model.HabitMeetingAttended, false)

	out, err := svc.SharedStreaks(ctx, owner, partner, "2025-02-08")
	require.NoError(t, err)
	for _, row := range out.Habits {
		if row.Habit == model.HabitMeetingAttended {
			assert.Zero(t, row.StreakA)
		}
	}
}

// Literal couple scenario: A meets on {1,3}, B on {1,3,5}. On Saturday
// 2025-02-08 only B is expected; B not having done it surfaces the notice.
func TestSharedStreaksMeetingDayDivergence(t *testing.T) {
	ctx := context.Background()
	st, svc := newStreakService(t)

	require.NoError(t, svc.SetMeetingDays(ctx, owner, []int{1, 3}))
	require.NoError(t, svc.SetMeetingDays(ctx, partner, []int{1, 3, 5}))

	setHabit(t, st, owner, "2025-02-06", model.HabitMeetingAttended, true)
	setHabit(t, st, partner, "2025-02-06", model.HabitMeetingAttended, true)
	setHabit(t, st, partner, "2025-02-08", model.HabitMeetingAttended, false)

	out, err := svc.SharedStreaks(ctx, owner, partner, "2025-02-08")
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "Meeting-day habits are pending for one partner.")
}

func TestSharedStreaksFamilyWorshipDivergenceNotice(t *testing.T) {
	ctx := context.Background()
	_, svc := newStreakService(t)

	require.NoError(t, svc.SetFamilyWorshipDay(ctx, owner, 6))
	require.NoError(t, svc.SetFamilyWorshipDay(ctx, partner, 5))

	out, err := svc.SharedStreaks(ctx, owner, partner, "2025-02-08")
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "Family worship day differs between partners.")
}

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	_, svc := newStreakService(t)

	days, err := svc.MeetingDays(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, days)

	day, err := svc.FamilyWorshipDay(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 6, day)

	require.ErrorIs(t, svc.SetMeetingDays(ctx, owner, []int{7}), model.ErrValidation)
	require.ErrorIs(t, svc.SetMeetingDays(ctx, owner, nil), model.ErrValidation)
	require.ErrorIs(t, svc.SetFamilyWorshipDay(ctx, owner, -1), model.ErrValidation)
}

func TestLifeBalanceScore(t *testing.T) {
	sleep := 8.0
	work := 4.0
	ideal := 20
	entry := &model.DayEntry{SleepHours: &sleep, WorkHours: &work, BoredomMinutes: &ideal}

	// 0.35*100 + 0.25*50 + 0.25*100 + 0.15*100 = 87.5
	assert.InDelta(t, 87.5, LifeBalance(entry, 100), 0.001)

	// Boredom decays linearly outside [10,40].
	low := 5
	entry = &model.DayEntry{BoredomMinutes: &low}
	assert.InDelta(t, 0.15*50, LifeBalance(entry, 0), 0.001)

	high := 50
	entry = &model.DayEntry{BoredomMinutes: &high}
	assert.InDelta(t, 0.15*50, LifeBalance(entry, 0), 0.001)

	extreme := 60
	entry = &model.DayEntry{BoredomMinutes: &extreme}
	assert.InDelta(t, 0, LifeBalance(entry, 0), 0.001)

	// Missing metrics score zero rather than failing.
	assert.InDelta(t, 35, LifeBalance(&model.DayEntry{}, 100), 0.001)
}

func TestZeroBoredomStreak(t *testing.T) {
	ctx := context.Background()
	st, svc := newStreakService(t)

	zero, thirty := 0, 30
	for _, d := range []string{"2025-02-06", "2025-02-07", "2025-02-08"} {
		_, err := st.Entries().Patch(ctx, owner, d, model.EntryPatch{BoredomMinutes: &zero})
		require.NoError(t, err)
	}
	_, err := st.Entries().Patch(ctx, owner, "2025-02-05", model.EntryPatch{BoredomMinutes: &thirty})
	require.NoError(t, err)

	n, err := svc.ZeroBoredomStreak(ctx, owner, "2025-02-08")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSnapshotAndHabitsProgress(t *testing.T) {
	ctx := context.Background()
	st, svc := newStreakService(t)

	// Saturday: meeting habits not expected (default {1,3}), family worship
	// not expected (default 6 = Sunday). Expected shared habits are the
	// unfiltered four: bible_reading, workout, shower, daily_text.
	label := "Finish chapter 3"
	_, err := st.Entries().Patch(ctx, owner, "2025-02-08", model.EntryPatch{
		Habits:        map[string]bool{"bible_reading": true, "workout": true},
		PriorityLabel: &label,
	})
	require.NoError(t, err)

	done, total, err := svc.HabitsProgress(ctx, owner, "2025-02-08")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, done)

	snap, err := svc.Snapshot(ctx, owner, "2025-02-08")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.HabitsDone)
	assert.Equal(t, 5, snap.HabitsTotal)
	assert.InDelta(t, 40.0, snap.HabitsPercent, 0.001)
	assert.Zero(t, snap.PendingTasks)
	assert.NotNil(t, snap.Entry)
}

func TestMoodboard(t *testing.T) {
	ctx := context.Background()
	st, svc := newStreakService(t)

	paz, note := "Paz", "praia"
	_, err := st.Entries().Patch(ctx, owner, "2025-02-01", model.EntryPatch{
		MoodCategory: &paz, MoodNote: &note,
	})
	require.NoError(t, err)
	legacy := "Joy"
	_, err = st.Entries().Patch(ctx, partner, "2025-02-02", model.EntryPatch{MoodCategory: &legacy})
	require.NoError(t, err)

	board, err := svc.MoodboardRange(ctx, []string{owner, partner}, "2025-02-01", "2025-02-03")
	require.NoError(t, err)
	require.Len(t, board.Dates, 3)

	require.NotNil(t, board.Rows[owner][0])
	assert.Equal(t, 0, *board.Rows[owner][0]) // Paz is row 0
	assert.Equal(t, "Paz: praia", board.Hover[owner][0])
	assert.Nil(t, board.Rows[owner][1])

	// Legacy label maps onto the current palette.
	require.NotNil(t, board.Rows[partner][1])
	assert.Equal(t, 1, *board.Rows[partner][1]) // Felicidade

	_, err = svc.MoodboardRange(ctx, []string{owner}, "2025-02-10", "2025-02-01")
	require.ErrorIs(t, err, model.ErrValidation)
}
