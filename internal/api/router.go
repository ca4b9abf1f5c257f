// Package api exposes the HTTP surface: identity-checked JSON routes over
// the task, habit, streak and sync services.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/lifedash/lifedash/internal/api/respond"
	"github.com/lifedash/lifedash/internal/calendar"
	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/services"
	"github.com/lifedash/lifedash/internal/store"
	syncengine "github.com/lifedash/lifedash/internal/sync"
)

// Handler bundles the services behind the HTTP routes.
type Handler struct {
	cfg     *config.Config
	store   store.Store
	tasks   *services.TaskService
	habits  *services.HabitService
	streaks *services.StreakService
	engine  *syncengine.Engine
	oauth   *calendar.OAuth
	ics     *calendar.ICSFeed
	log     zerolog.Logger
}

func New(
	cfg *config.Config,
	st store.Store,
	tasks *services.TaskService,
	habits *services.HabitService,
	streaks *services.StreakService,
	engine *syncengine.Engine,
	oauth *calendar.OAuth,
	log zerolog.Logger,
) *Handler {
	h := &Handler{
		cfg:     cfg,
		store:   st,
		tasks:   tasks,
		habits:  habits,
		streaks: streaks,
		engine:  engine,
		oauth:   oauth,
		log:     log,
	}
	if cfg.ICSFallbackURL != "" {
		h.ics = calendar.NewICSFeed(cfg.ICSFallbackURL)
	}
	return h
}

// Router builds the full route table. The health probe and the OAuth
// callback (hit by Google's redirect, not by a client) bypass identity.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(Recovery(h.log))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/v1/oauth/google/callback", h.oauthCallback).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(Identity(h.cfg))

	v1.HandleFunc("/bootstrap", h.bootstrap).Methods(http.MethodGet)
	v1.HandleFunc("/init", h.bootstrap).Methods(http.MethodGet)
	v1.HandleFunc("/header", h.bootstrap).Methods(http.MethodGet)

	v1.HandleFunc("/day/{date}", h.getDay).Methods(http.MethodGet)
	v1.HandleFunc("/day/{date}", h.patchDay).Methods(http.MethodPatch)
	v1.HandleFunc("/entries", h.listEntries).Methods(http.MethodGet)

	v1.HandleFunc("/habits/custom/done/{date}", h.getCustomDone).Methods(http.MethodGet)
	v1.HandleFunc("/habits/custom/done/{date}", h.putCustomDone).Methods(http.MethodPut)
	v1.HandleFunc("/habits/custom/done", h.getCustomDoneRange).Methods(http.MethodGet)
	v1.HandleFunc("/habits/custom", h.listCustomHabits).Methods(http.MethodGet)
	v1.HandleFunc("/habits/custom", h.addCustomHabit).Methods(http.MethodPost)
	v1.HandleFunc("/habits/custom/{id}", h.renameCustomHabit).Methods(http.MethodPatch)
	v1.HandleFunc("/habits/custom/{id}", h.deleteCustomHabit).Methods(http.MethodDelete)

	v1.HandleFunc("/tasks/unscheduled", h.listUnscheduled).Methods(http.MethodGet)
	v1.HandleFunc("/tasks", h.listTasks).Methods(http.MethodGet)
	v1.HandleFunc("/tasks", h.createTask).Methods(http.MethodPost)
	v1.HandleFunc("/tasks/{id}/schedule", h.scheduleTask).Methods(http.MethodPatch)
	v1.HandleFunc("/tasks/{id}", h.patchTask).Methods(http.MethodPatch)
	v1.HandleFunc("/tasks/{id}", h.deleteTask).Methods(http.MethodDelete)

	v1.HandleFunc("/subtasks", h.addSubtask).Methods(http.MethodPost)
	v1.HandleFunc("/subtasks/{id}", h.patchSubtask).Methods(http.MethodPatch)
	v1.HandleFunc("/subtasks/{id}", h.deleteSubtask).Methods(http.MethodDelete)

	v1.HandleFunc("/calendar/week", h.calendarWeek).Methods(http.MethodGet)
	v1.HandleFunc("/calendar/ics", h.calendarICS).Methods(http.MethodGet)
	v1.HandleFunc("/calendar/sync/run", h.calendarSyncRun).Methods(http.MethodPost)
	v1.HandleFunc("/sync/run", h.syncRun).Methods(http.MethodPost)
	v1.HandleFunc("/sync/status", h.syncStatus).Methods(http.MethodGet)
	v1.HandleFunc("/oauth/google/connect", h.oauthConnect).Methods(http.MethodGet)

	v1.HandleFunc("/settings/meeting-days", h.getMeetingDays).Methods(http.MethodGet)
	v1.HandleFunc("/settings/meeting-days", h.putMeetingDays).Methods(http.MethodPut)
	v1.HandleFunc("/settings/family-worship-day", h.getFamilyWorshipDay).Methods(http.MethodGet)
	v1.HandleFunc("/settings/family-worship-day", h.putFamilyWorshipDay).Methods(http.MethodPut)

	v1.HandleFunc("/couple/streaks", h.coupleStreaks).Methods(http.MethodGet)
	v1.HandleFunc("/couple/moodboard", h.coupleMoodboard).Methods(http.MethodGet)

	return r
}
