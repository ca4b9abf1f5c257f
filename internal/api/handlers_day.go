package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lifedash/lifedash/internal/api/respond"
	"github.com/lifedash/lifedash/internal/model"
)

func validDate(v string) bool {
	_, err := time.Parse(model.DateLayout, v)
	return err == nil
}

// today resolves "now" in the caller's timezone (?tz=) falling back to the
// configured default.
func (h *Handler) today(r *http.Request) string {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		tz = h.cfg.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format(model.DateLayout)
}

// bootstrap backs /v1/bootstrap, /v1/init and /v1/header: today's snapshot
// plus the couple view.
func (h *Handler) bootstrap(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	day := h.today(r)

	snap, err := h.streaks.Snapshot(r.Context(), user, day)
	if err != nil {
		respond.Error(w, err)
		return
	}

	out := map[string]any{
		"date":     day,
		"user":     user,
		"snapshot": snap,
	}
	if partner := h.cfg.PartnerOf(user); partner != "" {
		couple, err := h.streaks.SharedStreaks(r.Context(), user, partner, day)
		if err != nil {
			respond.Error(w, err)
			return
		}
		out["couple"] = couple
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) getDay(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	date := mux.Vars(r)["date"]
	if !validDate(date) {
		respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", date))
		return
	}

	entry, err := h.store.Entries().Get(r.Context(), user, date)
	switch {
	case errors.Is(err, model.ErrNotFound):
		// A day with no record reads as an empty entry, not a 404.
		entry = &model.DayEntry{User: user, Date: date, Habits: map[string]bool{}}
	case err != nil:
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, entry)
}

func (h *Handler) patchDay(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	date := mux.Vars(r)["date"]
	if !validDate(date) {
		respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", date))
		return
	}

	var patch model.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for key := range patch.Habits {
		if !model.IsFixedHabit(key) {
			respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("unknown habit %q", key))
			return
		}
	}
	if patch.AnxietyLevel != nil && (*patch.AnxietyLevel < 1 || *patch.AnxietyLevel > 10) {
		respond.Detail(w, http.StatusBadRequest, "anxiety_level must be 1..10")
		return
	}
	if patch.BoredomMinutes != nil && *patch.BoredomMinutes < 0 {
		respond.Detail(w, http.StatusBadRequest, "boredom_minutes must be >= 0")
		return
	}
	if patch.MoodCategory != nil {
		canon := model.CanonicalMood(*patch.MoodCategory)
		patch.MoodCategory = &canon
	}

	entry, err := h.store.Entries().Patch(r.Context(), user, date, patch)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if !validDate(start) || !validDate(end) {
		respond.Detail(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD")
		return
	}
	if end < start {
		respond.Detail(w, http.StatusBadRequest, "end before start")
		return
	}

	entries, err := h.store.Entries().ListRange(r.Context(), user, start, end)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if entries == nil {
		entries = []*model.DayEntry{}
	}
	respond.JSON(w, http.StatusOK, entries)
}
