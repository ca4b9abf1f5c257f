package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
)

// Weekday filters use the Monday=0..Sunday=6 convention everywhere they are
// stored and exposed.
func pyWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

var (
	defaultMeetingDays      = []int{1, 3}
	defaultFamilyWorshipDay = 6
)

// StreakService is the read-side engine for streaks, per-day percentages,
// the life-balance score and the couple views.
type StreakService struct {
	store  store.Store
	habits *HabitService
}

func NewStreakService(st store.Store, habits *HabitService) *StreakService {
	return &StreakService{store: st, habits: habits}
}

// MeetingDays returns the user's meeting weekdays, defaulting to Tuesday
// and Thursday.
func (s *StreakService) MeetingDays(ctx context.Context, user string) ([]int, error) {
	raw, err := s.store.Settings().Get(ctx, user+"::meeting_days")
	if errors.Is(err, model.ErrNotFound) {
		return append([]int(nil), defaultMeetingDays...), nil
	}
	if err != nil {
		return nil, err
	}
	var days []int
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, fmt.Errorf("decode meeting days: %w", err)
	}
	return days, nil
}

func (s *StreakService) SetMeetingDays(ctx context.Context, user string, days []int) error {
	if len(days) == 0 {
		return fmt.Errorf("%w: meeting days must not be empty", model.ErrValidation)
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range", model.ErrValidation, d)
		}
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return err
	}
	return s.store.Settings().Set(ctx, user+"::meeting_days", string(raw))
}

// FamilyWorshipDay returns the user's family worship weekday, defaulting to
// Sunday.
func (s *StreakService) FamilyWorshipDay(ctx context.Context, user string) (int, error) {
	raw, err := s.store.Settings().Get(ctx, user+"::family_worship_day")
	if errors.Is(err, model.ErrNotFound) {
		return defaultFamilyWorshipDay, nil
	}
	if err != nil {
		return 0, err
	}
	var day int
	if err := json.Unmarshal([]byte(raw), &day); err != nil {
		return 0, fmt.Errorf("decode family worship day: %w", err)
	}
	return day, nil
}

func (s *StreakService) SetFamilyWorshipDay(ctx context.Context, user string, day int) error {
	if day < 0 || day > 6 {
		return fmt.Errorf("%w: weekday %d out of range", model.ErrValidation, day)
	}
	raw, _ := json.Marshal(day)
	return s.store.Settings().Set(ctx, user+"::family_worship_day", string(raw))
}

// validWeekdays returns the weekday filter for one habit, or nil when every
// weekday counts.
func validWeekdays(habit string, meetingDays []int, familyWorshipDay int) map[int]bool {
	switch habit {
	case model.HabitMeetingAttended, model.HabitPrepareMeeting:
		v := make(map[int]bool, len(meetingDays))
		for _, d := range meetingDays {
			v[d] = true
		}
		return v
	case model.HabitFamilyWorship:
		return map[int]bool{familyWorshipDay: true}
	default:
		return nil
	}
}

// streakFor walks backward from day T. Excluded weekdays neither break nor
// grow the streak; a missing entry or a false flag on a valid weekday
// breaks it.
func streakFor(entries map[string]*model.DayEntry, habit, day string, valid map[int]bool) int {
	t, err := time.Parse(model.DateLayout, day)
	if err != nil {
		return 0
	}
	earliest := ""
	for d := range entries {
		if earliest == "" || d < earliest {
			earliest = d
		}
	}
	if earliest == "" {
		return 0
	}

	streak := 0
	for {
		d := t.Format(model.DateLayout)
		if d < earliest {
			return streak
		}
		if valid != nil && !valid[pyWeekday(t)] {
			t = t.AddDate(0, 0, -1)
			continue
		}
		e, ok := entries[d]
		if !ok || !e.Habits[habit] {
			return streak
		}
		streak++
		t = t.AddDate(0, 0, -1)
	}
}

// HabitStreak is one habit row of the couple streak view.
type HabitStreak struct {
	Habit     string `json:"habit"`
	StreakA   int    `json:"streak_a"`
	StreakB   int    `json:"streak_b"`
	DoneA     bool   `json:"done_a"`
	DoneB     bool   `json:"done_b"`
	ExpectedA bool   `json:"expected_a"`
	ExpectedB bool   `json:"expected_b"`
}

// CoupleStreaks is the shared streak view for one day.
type CoupleStreaks struct {
	Date    string        `json:"date"`
	UserA   string        `json:"user_a"`
	UserB   string        `json:"user_b"`
	Habits  []HabitStreak `json:"habits"`
	Summary string        `json:"summary"`
}

// SharedStreaks compares both users over the shared habit set at day T,
// honoring each user's own weekday filters.
func (s *StreakService) SharedStreaks(ctx context.Context, userA, userB, day string) (*CoupleStreaks, error) {
	t, err := time.Parse(model.DateLayout, day)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", model.ErrValidation, day)
	}
	weekday := pyWeekday(t)

	entriesA, err := s.entriesUpTo(ctx, userA, day)
	if err != nil {
		return nil, err
	}
	entriesB, err := s.entriesUpTo(ctx, userB, day)
	if err != nil {
		return nil, err
	}

	meetA, err := s.MeetingDays(ctx, userA)
	if err != nil {
		return nil, err
	}
	meetB, err := s.MeetingDays(ctx, userB)
	if err != nil {
		return nil, err
	}
	fwA, err := s.FamilyWorshipDay(ctx, userA)
	if err != nil {
		return nil, err
	}
	fwB, err := s.FamilyWorshipDay(ctx, userB)
	if err != nil {
		return nil, err
	}

	out := &CoupleStreaks{Date: day, UserA: userA, UserB: userB}
	total, both, any := 0, 0, 0
	meetingPending := false

	for _, habit := range model.SharedHabitKeys {
		validA := validWeekdays(habit, meetA, fwA)
		validB := validWeekdays(habit, meetB, fwB)

		row := HabitStreak{
			Habit:     habit,
			StreakA:   streakFor(entriesA, habit, day, validA),
			StreakB:   streakFor(entriesB, habit, day, validB),
			ExpectedA: validA == nil || validA[weekday],
			ExpectedB: validB == nil || validB[weekday],
		}
		if e, ok := entriesA[day]; ok {
			row.DoneA = e.Habits[habit]
		}
		if e, ok := entriesB[day]; ok {
			row.DoneB = e.Habits[habit]
		}
		out.Habits = append(out.Habits, row)

		if !row.ExpectedA && !row.ExpectedB {
			continue
		}
		total++
		if row.ExpectedA && row.ExpectedB && row.DoneA && row.DoneB {
			both++
		}
		if (row.ExpectedA && row.DoneA) || (row.ExpectedB && row.DoneB) {
			any++
		}
		if (habit == model.HabitMeetingAttended || habit == model.HabitPrepareMeeting) &&
			row.ExpectedA != row.ExpectedB {
			if (row.ExpectedA && !row.DoneA) || (row.ExpectedB && !row.DoneB) {
				meetingPending = true
			}
		}
	}

	parts := []string{fmt.Sprintf("Completed together %d/%d. Completed by at least one %d/%d.", both, total, any, total)}
	if meetingPending {
		parts = append(parts, "Meeting-day habits are pending for one partner.")
	}
	if fwA != fwB {
		parts = append(parts, "Family worship day differs between partners.")
	}
	out.Summary = strings.Join(parts, " ")
	return out, nil
}

func (s *StreakService) entriesUpTo(ctx context.Context, user, day string) (map[string]*model.DayEntry, error) {
	list, err := s.store.Entries().ListRange(ctx, user, "0001-01-01", day)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.DayEntry, len(list))
	for _, e := range list {
		out[e.Date] = e
	}
	return out, nil
}

// HabitsProgress counts one user's day over the expected shared habits, the
// active custom habits and the priority slot.
func (s *StreakService) HabitsProgress(ctx context.Context, user, day string) (done, total int, err error) {
	t, err := time.Parse(model.DateLayout, day)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid date %q", model.ErrValidation, day)
	}
	weekday := pyWeekday(t)

	entry, err := s.store.Entries().Get(ctx, user, day)
	if errors.Is(err, model.ErrNotFound) {
		entry = &model.DayEntry{User: user, Date: day, Habits: map[string]bool{}}
	} else if err != nil {
		return 0, 0, err
	}

	meet, err := s.MeetingDays(ctx, user)
	if err != nil {
		return 0, 0, err
	}
	fw, err := s.FamilyWorshipDay(ctx, user)
	if err != nil {
		return 0, 0, err
	}

	for _, habit := range model.SharedHabitKeys {
		valid := validWeekdays(habit, meet, fw)
		if valid != nil && !valid[weekday] {
			continue
		}
		total++
		if entry.Habits[habit] {
			done++
		}
	}

	custom, err := s.habits.List(ctx, user, true)
	if err != nil {
		return 0, 0, err
	}
	if len(custom) > 0 {
		doneMap, derr := s.habits.DoneMap(ctx, user, day)
		if derr != nil {
			return 0, 0, derr
		}
		for _, h := range custom {
			total++
			if doneMap[h.ID] {
				done++
			}
		}
	}

	if entry.PriorityLabel != nil && *entry.PriorityLabel != "" {
		total++
		if entry.PriorityDone {
			done++
		}
	}
	return done, total, nil
}

// LifeBalance is the 0-100 composite day score.
func LifeBalance(entry *model.DayEntry, habitsPercent float64) float64 {
	clamp8 := func(v *float64) float64 {
		if v == nil {
			return 0
		}
		h := *v
		if h > 8 {
			h = 8
		}
		if h < 0 {
			h = 0
		}
		return h / 8 * 100
	}
	work := clamp8(entry.WorkHours)
	sleep := clamp8(entry.SleepHours)

	boredom := 0.0
	if entry.BoredomMinutes != nil {
		b := float64(*entry.BoredomMinutes)
		switch {
		case b >= 10 && b <= 40:
			boredom = 100
		case b < 10:
			boredom = b / 10 * 100
		case b < 60:
			boredom = (60 - b) / 20 * 100
		}
	}
	return 0.35*habitsPercent + 0.25*work + 0.25*sleep + 0.15*boredom
}

// ZeroBoredomStreak counts consecutive days ending at day with a recorded
// zero boredom_minutes.
func (s *StreakService) ZeroBoredomStreak(ctx context.Context, user, day string) (int, error) {
	entries, err := s.entriesUpTo(ctx, user, day)
	if err != nil {
		return 0, err
	}
	t, err := time.Parse(model.DateLayout, day)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid date %q", model.ErrValidation, day)
	}
	streak := 0
	for {
		e, ok := entries[t.Format(model.DateLayout)]
		if !ok || e.BoredomMinutes == nil || *e.BoredomMinutes != 0 {
			return streak, nil
		}
		streak++
		t = t.AddDate(0, 0, -1)
	}
}

// DaySnapshot is the per-user figure block behind the header and bootstrap
// endpoints.
type DaySnapshot struct {
	Date              string          `json:"date"`
	Entry             *model.DayEntry `json:"entry,omitempty"`
	PendingTasks      int             `json:"pending_tasks"`
	HabitsDone        int             `json:"habits_done"`
	HabitsTotal       int             `json:"habits_total"`
	HabitsPercent     float64         `json:"habits_percent"`
	LifeBalance       float64         `json:"life_balance_score"`
	ZeroBoredomStreak int             `json:"zero_boredom_streak"`
}

// Snapshot assembles one user's day figures.
func (s *StreakService) Snapshot(ctx context.Context, user, day string) (*DaySnapshot, error) {
	snap := &DaySnapshot{Date: day}

	entry, err := s.store.Entries().Get(ctx, user, day)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	snap.Entry = entry

	snap.PendingTasks, err = s.store.Tasks().CountPending(ctx, user, day)
	if err != nil {
		return nil, err
	}

	snap.HabitsDone, snap.HabitsTotal, err = s.HabitsProgress(ctx, user, day)
	if err != nil {
		return nil, err
	}
	if snap.HabitsTotal > 0 {
		snap.HabitsPercent = float64(snap.HabitsDone) / float64(snap.HabitsTotal) * 100
	}

	scoreEntry := entry
	if scoreEntry == nil {
		scoreEntry = &model.DayEntry{User: user, Date: day, Habits: map[string]bool{}}
	}
	snap.LifeBalance = LifeBalance(scoreEntry, snap.HabitsPercent)

	snap.ZeroBoredomStreak, err = s.ZeroBoredomStreak(ctx, user, day)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Moodboard is the couple mood grid: one row index per user per date, null
// when no mood was recorded.
type Moodboard struct {
	Dates []string            `json:"dates"`
	Users []string            `json:"users"`
	Moods []string            `json:"moods"`
	Rows  map[string][]*int   `json:"rows"`
	Hover map[string][]string `json:"hover"`
}

// MoodboardRange builds the grid over [start, end] for the given users.
// Legacy mood labels are normalized to the current palette.
func (s *StreakService) MoodboardRange(ctx context.Context, users []string, start, end string) (*Moodboard, error) {
	startT, err := time.Parse(model.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", model.ErrValidation, start)
	}
	endT, err := time.Parse(model.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", model.ErrValidation, end)
	}
	if endT.Before(startT) {
		return nil, fmt.Errorf("%w: end before start", model.ErrValidation)
	}

	moodIndex := map[string]int{}
	for i, m := range model.MoodCategories {
		moodIndex[m] = i
	}

	board := &Moodboard{
		Users: users,
		Moods: model.MoodCategories,
		Rows:  map[string][]*int{},
		Hover: map[string][]string{},
	}
	for t := startT; !t.After(endT); t = t.AddDate(0, 0, 1) {
		board.Dates = append(board.Dates, t.Format(model.DateLayout))
	}

	for _, user := range users {
		entries, err := s.store.Entries().ListRange(ctx, user, start, end)
		if err != nil {
			return nil, err
		}
		byDate := map[string]*model.DayEntry{}
		for _, e := range entries {
			byDate[e.Date] = e
		}

		rows := make([]*int, len(board.Dates))
		hover := make([]string, len(board.Dates))
		for i, date := range board.Dates {
			e, ok := byDate[date]
			if !ok || e.MoodCategory == nil || *e.MoodCategory == "" {
				continue
			}
			mood := model.CanonicalMood(*e.MoodCategory)
			if idx, ok := moodIndex[mood]; ok {
				v := idx
				rows[i] = &v
			}
			hover[i] = mood
			if e.MoodNote != nil && *e.MoodNote != "" {
				hover[i] = mood + ": " + *e.MoodNote
			}
		}
		board.Rows[user] = rows
		board.Hover[user] = hover
	}
	return board, nil
}
