package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lifedash/lifedash/internal/api/respond"
	"github.com/lifedash/lifedash/internal/model"
)

// weekCell is one scheduled task placed on the week grid. Hour is null for
// all-day tasks.
type weekCell struct {
	Date        string `json:"date"`
	Hour        *int   `json:"hour"`
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	IsDone      bool   `json:"is_done"`
	PriorityTag string `json:"priority_tag"`
}

func (h *Handler) calendarWeek(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	start := r.URL.Query().Get("start")
	if start == "" {
		start = h.today(r)
	}
	if !validDate(start) {
		respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", start))
		return
	}
	startT, _ := time.Parse(model.DateLayout, start)
	end := startT.AddDate(0, 0, 6).Format(model.DateLayout)

	tasks, err := h.tasks.ListRange(r.Context(), user, start, end)
	if err != nil {
		respond.Error(w, err)
		return
	}

	cells := []weekCell{}
	for _, t := range tasks {
		if t.ScheduledDate == nil {
			continue
		}
		cell := weekCell{
			Date:        *t.ScheduledDate,
			TaskID:      t.ID,
			Title:       t.Title,
			IsDone:      t.IsDone,
			PriorityTag: t.PriorityTag,
		}
		if t.ScheduledTime != nil && len(*t.ScheduledTime) >= 2 {
			if hr, err := strconv.Atoi((*t.ScheduledTime)[:2]); err == nil {
				cell.Hour = &hr
			}
		}
		cells = append(cells, cell)
	}

	days := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, startT.AddDate(0, 0, i).Format(model.DateLayout))
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"start": start,
		"end":   end,
		"days":  days,
		"cells": cells,
	})
}

// calendarICS serves the read-only ICS fallback feed: one week of expanded
// occurrences starting at ?start= (default today).
func (h *Handler) calendarICS(w http.ResponseWriter, r *http.Request) {
	if h.ics == nil {
		respond.Detail(w, http.StatusNotFound, "no ICS feed configured")
		return
	}

	start := r.URL.Query().Get("start")
	if start == "" {
		start = h.today(r)
	}
	if !validDate(start) {
		respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", start))
		return
	}
	startT, _ := time.Parse(model.DateLayout, start)
	occ, err := h.ics.Occurrences(r.Context(), startT, startT.AddDate(0, 0, 7))
	if err != nil {
		h.log.Warn().Err(err).Msg("ics feed fetch failed")
		respond.Detail(w, http.StatusBadGateway, "ICS feed unavailable")
		return
	}
	respond.JSON(w, http.StatusOK, occ)
}

// calendarSyncRun pulls the caller's calendar and drains a small outbox batch
// so the UI sees both directions converge in one call.
func (h *Handler) calendarSyncRun(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	pullErr := h.engine.PullUser(r.Context(), user)
	processed, pushErr := h.engine.ProcessOutboxOnce(r.Context(), h.cfg.OutboxBatchSize)

	out := map[string]any{"processed": processed}
	if pullErr != nil {
		h.log.Warn().Err(pullErr).Str("user", user).Msg("manual pull failed")
		out["pull_error"] = pullErr.Error()
	}
	if pushErr != nil {
		h.log.Warn().Err(pushErr).Msg("manual outbox drain failed")
		out["push_error"] = pushErr.Error()
	}
	respond.JSON(w, http.StatusOK, out)
}

// syncRun drains the outbox without pulling.
func (h *Handler) syncRun(w http.ResponseWriter, r *http.Request) {
	processed, err := h.engine.ProcessOutboxOnce(r.Context(), h.cfg.OutboxBatchSize)
	if err != nil {
		h.log.Warn().Err(err).Msg("manual outbox drain failed")
	}
	respond.JSON(w, http.StatusOK, map[string]any{"processed": processed})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	connected := true
	if _, err := h.store.Tokens().Get(r.Context(), user); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			respond.Error(w, err)
			return
		}
		connected = false
	}

	cursors, err := h.store.Cursors().ListForUser(r.Context(), user)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if cursors == nil {
		cursors = []*model.SyncCursor{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"connected": connected,
		"cursors":   cursors,
	})
}

func (h *Handler) oauthConnect(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	respond.JSON(w, http.StatusOK, map[string]string{"auth_url": h.oauth.ConnectURL(user)})
}

// oauthCallback handles Google's redirect. The state parameter carries the
// user, which must still be on the allow-list.
func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	user := r.URL.Query().Get("state")
	if code == "" || user == "" {
		respond.Detail(w, http.StatusBadRequest, "missing code or state")
		return
	}
	if !h.cfg.IsAllowed(user) {
		respond.Detail(w, http.StatusForbidden, "user not allowed")
		return
	}

	if err := h.oauth.Exchange(r.Context(), user, code); err != nil {
		h.log.Error().Err(err).Str("user", user).Msg("oauth exchange failed")
		respond.Detail(w, http.StatusBadGateway, "token exchange failed")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "connected", "user": user})
}
