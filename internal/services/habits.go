package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
)

const maxHabitNameLen = 60

// HabitService manages the per-user custom habit catalog and its per-day
// done maps. The catalog lives in one settings blob per user; done maps in
// one blob per (user, date).
type HabitService struct {
	store store.Store
}

func NewHabitService(st store.Store) *HabitService {
	return &HabitService{store: st}
}

func catalogKey(user string) string { return user + "::custom_habits" }
func doneKey(user, date string) string {
	return user + "::custom_habit_done::" + date
}

func (s *HabitService) catalog(ctx context.Context, user string) ([]model.CustomHabit, error) {
	raw, err := s.store.Settings().Get(ctx, catalogKey(user))
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var habits []model.CustomHabit
	if err := json.Unmarshal([]byte(raw), &habits); err != nil {
		return nil, fmt.Errorf("decode custom habits: %w", err)
	}
	return habits, nil
}

func (s *HabitService) saveCatalog(ctx context.Context, user string, habits []model.CustomHabit) error {
	raw, err := json.Marshal(habits)
	if err != nil {
		return err
	}
	return s.store.Settings().Set(ctx, catalogKey(user), string(raw))
}

// List returns the catalog; activeOnly hides soft-deleted entries.
func (s *HabitService) List(ctx context.Context, user string, activeOnly bool) ([]model.CustomHabit, error) {
	habits, err := s.catalog(ctx, user)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return habits, nil
	}
	var out []model.CustomHabit
	for _, h := range habits {
		if h.Active {
			out = append(out, h)
		}
	}
	return out, nil
}

// Add creates a habit. Names are unique case-insensitively among active
// entries; duplicates conflict.
func (s *HabitService) Add(ctx context.Context, user, name string) (*model.CustomHabit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: habit name is required", model.ErrValidation)
	}
	if len(name) > maxHabitNameLen {
		return nil, fmt.Errorf("%w: habit name exceeds %d characters", model.ErrValidation, maxHabitNameLen)
	}

	habits, err := s.catalog(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, h := range habits {
		if h.Active && strings.EqualFold(h.Name, name) {
			return nil, fmt.Errorf("%w: habit %q already exists", model.ErrConflict, name)
		}
	}

	habit := model.CustomHabit{ID: uuid.NewString(), Name: name, Active: true}
	habits = append(habits, habit)
	if err := s.saveCatalog(ctx, user, habits); err != nil {
		return nil, err
	}
	return &habit, nil
}

// Rename changes a habit's name, keeping its id and history.
func (s *HabitService) Rename(ctx context.Context, user, id, name string) (*model.CustomHabit, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxHabitNameLen {
		return nil, fmt.Errorf("%w: invalid habit name", model.ErrValidation)
	}

	habits, err := s.catalog(ctx, user)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, h := range habits {
		if h.ID == id {
			idx = i
			continue
		}
		if h.Active && strings.EqualFold(h.Name, name) {
			return nil, fmt.Errorf("%w: habit %q already exists", model.ErrConflict, name)
		}
	}
	if idx < 0 || !habits[idx].Active {
		return nil, model.ErrNotFound
	}
	habits[idx].Name = name
	if err := s.saveCatalog(ctx, user, habits); err != nil {
		return nil, err
	}
	return &habits[idx], nil
}

// Delete soft-deletes a habit. Historical done maps keep its id.
func (s *HabitService) Delete(ctx context.Context, user, id string) error {
	habits, err := s.catalog(ctx, user)
	if err != nil {
		return err
	}
	for i, h := range habits {
		if h.ID == id && h.Active {
			habits[i].Active = false
			return s.saveCatalog(ctx, user, habits)
		}
	}
	return model.ErrNotFound
}

// DoneMap returns habit_id -> done for one day. Missing blob means nothing
// done.
func (s *HabitService) DoneMap(ctx context.Context, user, date string) (map[string]bool, error) {
	raw, err := s.store.Settings().Get(ctx, doneKey(user, date))
	if errors.Is(err, model.ErrNotFound) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode done map: %w", err)
	}
	return out, nil
}

// SetDone flips one habit for one day. Unknown or inactive ids are input
// errors.
func (s *HabitService) SetDone(ctx context.Context, user, date, habitID string, done bool) (map[string]bool, error) {
	habits, err := s.catalog(ctx, user)
	if err != nil {
		return nil, err
	}
	known := false
	for _, h := range habits {
		if h.ID == habitID && h.Active {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: unknown habit id %q", model.ErrValidation, habitID)
	}

	m, err := s.DoneMap(ctx, user, date)
	if err != nil {
		return nil, err
	}
	m[habitID] = done
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := s.store.Settings().Set(ctx, doneKey(user, date), string(raw)); err != nil {
		return nil, err
	}
	return m, nil
}

// DoneRange returns date -> done map for start <= date <= end, from a prefix
// scan over the settings table.
func (s *HabitService) DoneRange(ctx context.Context, user, start, end string) (map[string]map[string]bool, error) {
	prefix := user + "::custom_habit_done::"
	rows, err := s.store.Settings().ListPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := map[string]map[string]bool{}
	for _, row := range rows {
		date := strings.TrimPrefix(row.Key, prefix)
		if date < start || date > end {
			continue
		}
		m := map[string]bool{}
		if err := json.Unmarshal([]byte(row.Value), &m); err != nil {
			return nil, fmt.Errorf("decode done map for %s: %w", date, err)
		}
		out[date] = m
	}
	return out, nil
}
