package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lifedash/lifedash/internal/api/respond"
	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/services"
)

// taskView decorates a task with its subtasks and the computed priority hint
// for list responses.
type taskView struct {
	*model.Task
	Subtasks     []*model.Subtask `json:"subtasks"`
	PriorityHint string           `json:"priority_hint"`
}

func (h *Handler) taskViews(r *http.Request, user string, tasks []*model.Task) ([]taskView, error) {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	subs, err := h.tasks.Subtasks(r.Context(), user, ids)
	if err != nil {
		return nil, err
	}
	byTask := map[string][]*model.Subtask{}
	for _, sub := range subs {
		byTask[sub.TaskID] = append(byTask[sub.TaskID], sub)
	}

	loc, err := time.LoadLocation(h.cfg.DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)

	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		ts := byTask[t.ID]
		if ts == nil {
			ts = []*model.Subtask{}
		}
		out = append(out, taskView{
			Task:         t,
			Subtasks:     ts,
			PriorityHint: h.tasks.PriorityHint(t, ts, now),
		})
	}
	return out, nil
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if start == "" && end == "" {
		start = h.today(r)
		t, _ := time.Parse(model.DateLayout, start)
		end = t.AddDate(0, 0, 7).Format(model.DateLayout)
	}
	if !validDate(start) || !validDate(end) {
		respond.Detail(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD")
		return
	}
	if end < start {
		respond.Detail(w, http.StatusBadRequest, "end before start")
		return
	}

	tasks, err := h.tasks.ListRange(r.Context(), user, start, end)
	if err != nil {
		respond.Error(w, err)
		return
	}
	views, err := h.taskViews(r, user, tasks)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, views)
}

func (h *Handler) listUnscheduled(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	tasks, err := h.tasks.ListUnscheduled(r.Context(), user, r.URL.Query().Get("source"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	views, err := h.taskViews(r, user, tasks)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, views)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var in services.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := h.tasks.Create(r.Context(), user, in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, task)
}

func (h *Handler) patchTask(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id := mux.Vars(r)["id"]

	var in services.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := h.tasks.Update(r.Context(), user, id, in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

func (h *Handler) scheduleTask(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id := mux.Vars(r)["id"]

	var in struct {
		ScheduledDate string `json:"scheduled_date"`
		ScheduledTime string `json:"scheduled_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := h.tasks.Schedule(r.Context(), user, id, in.ScheduledDate, in.ScheduledTime)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if err := h.tasks.Delete(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addSubtask(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var in services.SubtaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sub, err := h.tasks.AddSubtask(r.Context(), user, in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, sub)
}

func (h *Handler) patchSubtask(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id := mux.Vars(r)["id"]

	var patch model.SubtaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sub, err := h.tasks.UpdateSubtask(r.Context(), user, id, patch)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, sub)
}

func (h *Handler) deleteSubtask(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if err := h.tasks.DeleteSubtask(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
