package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lifedash/lifedash/internal/api/respond"
	"github.com/lifedash/lifedash/internal/model"
)

func (h *Handler) listCustomHabits(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	activeOnly := r.URL.Query().Get("all") == ""

	habits, err := h.habits.List(r.Context(), user, activeOnly)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if habits == nil {
		habits = []model.CustomHabit{}
	}
	respond.JSON(w, http.StatusOK, habits)
}

func (h *Handler) addCustomHabit(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	habit, err := h.habits.Add(r.Context(), user, in.Name)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, habit)
}

func (h *Handler) renameCustomHabit(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id := mux.Vars(r)["id"]

	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	habit, err := h.habits.Rename(r.Context(), user, id, in.Name)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, habit)
}

func (h *Handler) deleteCustomHabit(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if err := h.habits.Delete(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCustomDone(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	date := mux.Vars(r)["date"]
	if !validDate(date) {
		respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", date))
		return
	}

	m, err := h.habits.DoneMap(r.Context(), user, date)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, m)
}

func (h *Handler) putCustomDone(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	date := mux.Vars(r)["date"]
	if !validDate(date) {
		respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", date))
		return
	}

	var in struct {
		HabitID string `json:"habit_id"`
		Done    bool   `json:"done"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	m, err := h.habits.SetDone(r.Context(), user, date, in.HabitID, in.Done)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, m)
}

func (h *Handler) getCustomDoneRange(w http.ResponseWriter, r *http.Request) {
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

	out, err := h.habits.DoneRange(r.Context(), user, start, end)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}
