package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifedash/lifedash/internal/api"
	"github.com/lifedash/lifedash/internal/calendar"
	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/services"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/store/sqlite"
	syncengine "github.com/lifedash/lifedash/internal/sync"
	"github.com/lifedash/lifedash/internal/vault"
)

const (
	userA  = "ana@example.com"
	userB  = "bob@example.com"
	secret = "test-backend-secret"
)

// stubAPI satisfies the engine's calendar surface without any network.
type stubAPI struct{}

func (stubAPI) ListEvents(context.Context, string, string, string, string, string) (*calendar.EventList, error) {
	return &calendar.EventList{NextSyncToken: "tok"}, nil
}

func (stubAPI) CreateEvent(context.Context, string, string, *calendar.EventPayload) (*calendar.Event, error) {
	return &calendar.Event{ID: "evt-1"}, nil
}

func (stubAPI) UpdateEvent(context.Context, string, string, string, *calendar.EventPayload) (*calendar.Event, error) {
	return &calendar.Event{ID: "evt-1"}, nil
}

func (stubAPI) DeleteEvent(context.Context, string, string, string) error { return nil }

func (stubAPI) CalendarTimezone(context.Context, string, string) string { return "UTC" }

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	st, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		DatabaseURL:        "ignored.db",
		TokenEncryptionKey: "test-key",
		BackendSecret:      secret,
		AllowedEmails:      []string{userA, userB},
		GoogleClientID:     "cid",
		GoogleClientSecret: "csecret",
		GoogleRedirectURI:  "http://localhost/cb",
		DefaultTimezone:    "UTC",
		OutboxBatchSize:    20,
	}

	v, err := vault.New(cfg.TokenEncryptionKey)
	require.NoError(t, err)
	oauth := calendar.NewOAuth(st.Tokens(), v, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, "", "")

	log := zerolog.Nop()
	tasks := services.NewTaskService(st, cfg.CalendarFor, log)
	habits := services.NewHabitService(st)
	streaks := services.NewStreakService(st, habits)
	engine := syncengine.NewEngine(st, stubAPI{}, syncengine.Config{
		Users:           cfg.AllowedEmails,
		CalendarFor:     cfg.CalendarFor,
		DefaultTimezone: cfg.DefaultTimezone,
		BatchSize:       cfg.OutboxBatchSize,
	}, log)

	h := api.New(cfg, st, tasks, habits, streaks, engine, oauth, log)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, user string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-Backend-Token", secret)
		req.Header.Set("X-User-Email", user)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func decode(t *testing.T, raw []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), "body: %s", raw)
}

func TestIdentityMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, "/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/tasks", nil)
	require.NoError(t, err)
	req.Header.Set("X-Backend-Token", secret)
	req.Header.Set("X-User-Email", "mallory@example.com")
	resp2, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)

	// Health needs no credentials.
	resp3, _ := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
}

func TestDayPatchRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPatch, "/v1/day/2025-02-03", userA, map[string]any{
		"habits":        map[string]bool{"bible_reading": true},
		"sleep_hours":   7.5,
		"mood_category": "Joy",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

	var entry map[string]any
	decode(t, body, &entry)
	// Legacy mood labels normalize on write.
	assert.Equal(t, "Felicidade", entry["mood_category"])

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/day/2025-02-03", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body, &entry)
	assert.Equal(t, 7.5, entry["sleep_hours"])

	// Unknown fixed habit keys are rejected.
	resp, _ = doJSON(t, srv, http.MethodPatch, "/v1/day/2025-02-03", userA, map[string]any{
		"habits": map[string]bool{"not_a_habit": true},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A day never written reads as an empty entry.
	resp, body = doJSON(t, srv, http.MethodGet, "/v1/day/2030-01-01", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body, &entry)
	assert.Equal(t, "2030-01-01", entry["date"])
}

func TestEntriesRangeValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, "/v1/entries?start=2025-02-10&end=2025-02-01", userA, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodGet, "/v1/entries?start=2025-02-01&end=2025-02-10", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/tasks", userA, map[string]any{
		"title":          "Write thesis section",
		"scheduled_date": "2025-02-03",
		"scheduled_time": "09:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)
	var task map[string]any
	decode(t, body, &task)
	id := task["id"].(string)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/tasks?start=2025-02-03&end=2025-02-03", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	decode(t, body, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Write thesis section", list[0]["title"])
	assert.NotEmpty(t, list[0]["priority_hint"])
	assert.NotNil(t, list[0]["subtasks"])

	// Tasks are invisible to the partner.
	resp, body = doJSON(t, srv, http.MethodGet, "/v1/tasks?start=2025-02-03&end=2025-02-03", userB, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body, &list)
	assert.Empty(t, list)

	resp, body = doJSON(t, srv, http.MethodPatch, "/v1/tasks/"+id, userA, map[string]any{
		"is_done": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body, &task)
	assert.Equal(t, true, task["is_done"])

	resp, _ = doJSON(t, srv, http.MethodDelete, "/v1/tasks/"+id, userA, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodPatch, "/v1/tasks/"+id, userA, map[string]any{"is_done": false})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"not found"}`, string(body))
}

func TestScheduleEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/tasks", userA, map[string]any{
		"title": "Call the bank",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task map[string]any
	decode(t, body, &task)
	assert.Equal(t, "remembered", task["source"])
	id := task["id"].(string)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/tasks/unscheduled", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	decode(t, body, &list)
	require.Len(t, list, 1)

	resp, body = doJSON(t, srv, http.MethodPatch, "/v1/tasks/"+id+"/schedule", userA, map[string]any{
		"scheduled_date": "2025-03-01",
		"scheduled_time": "14:00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	decode(t, body, &task)
	assert.Equal(t, "manual", task["source"])
	assert.Equal(t, "2025-03-01", task["scheduled_date"])

	// Scheduling without a date is an input error.
	resp, _ = doJSON(t, srv, http.MethodPatch, "/v1/tasks/"+id+"/schedule", userA, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubtasksOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/tasks", userA, map[string]any{
		"title": "Groceries", "scheduled_date": "2025-02-03",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task map[string]any
	decode(t, body, &task)
	taskID := task["id"].(string)

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/subtasks", userA, map[string]any{
		"task_id": taskID, "title": "Buy milk",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)
	var sub map[string]any
	decode(t, body, &sub)

	resp, body = doJSON(t, srv, http.MethodPatch, "/v1/subtasks/"+sub["id"].(string), userA, map[string]any{
		"is_done": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The single done subtask marks the parent done.
	resp, body = doJSON(t, srv, http.MethodGet, "/v1/tasks?start=2025-02-03&end=2025-02-03", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	decode(t, body, &list)
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0]["is_done"])
}

func TestCustomHabitsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/habits/custom", userA, map[string]any{
		"name": "Meditation",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)
	var habit map[string]any
	decode(t, body, &habit)
	id := habit["id"].(string)

	resp, _ = doJSON(t, srv, http.MethodPost, "/v1/habits/custom", userA, map[string]any{
		"name": "meditation",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodPut, "/v1/habits/custom/done/2025-02-03", userA, map[string]any{
		"habit_id": id, "done": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done map[string]bool
	decode(t, body, &done)
	assert.True(t, done[id])

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/habits/custom/done?start=2025-02-01&end=2025-02-28", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byDate map[string]map[string]bool
	decode(t, body, &byDate)
	assert.True(t, byDate["2025-02-03"][id])

	resp, _ = doJSON(t, srv, http.MethodDelete, "/v1/habits/custom/"+id, userA, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Marking against a deleted habit is rejected.
	resp, _ = doJSON(t, srv, http.MethodPut, "/v1/habits/custom/done/2025-02-04", userA, map[string]any{
		"habit_id": id, "done": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodGet, "/v1/sync/status", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]any
	decode(t, body, &status)
	assert.Equal(t, false, status["connected"])

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/sync/run", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var run map[string]any
	decode(t, body, &run)
	assert.Equal(t, float64(0), run["processed"])

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/calendar/sync/run", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/oauth/google/connect", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conn map[string]string
	decode(t, body, &conn)
	assert.Contains(t, conn["auth_url"], "state="+"ana%40example.com")

	// Callback state must be allow-listed.
	resp, _ = doJSON(t, srv, http.MethodGet,
		"/v1/oauth/google/callback?code=abc&state=mallory@example.com", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCalendarWeek(t *testing.T) {
	srv, _ := newTestServer(t)

	for i, title := range []string{"Standup", "Dentist"} {
		resp, _ := doJSON(t, srv, http.MethodPost, "/v1/tasks", userA, map[string]any{
			"title":          title,
			"scheduled_date": fmt.Sprintf("2025-02-0%d", 3+i),
			"scheduled_time": "09:30",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, srv, http.MethodGet, "/v1/calendar/week?start=2025-02-03", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var week struct {
		Start string `json:"start"`
		End   string `json:"end"`
		Days  []string
		Cells []struct {
			Date string `json:"date"`
			Hour *int   `json:"hour"`
		} `json:"cells"`
	}
	decode(t, body, &week)
	assert.Equal(t, "2025-02-09", week.End)
	require.Len(t, week.Cells, 2)
	require.NotNil(t, week.Cells[0].Hour)
	assert.Equal(t, 9, *week.Cells[0].Hour)
}

func TestCoupleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPut, "/v1/settings/meeting-days", userA, map[string]any{
		"days": []int{1, 3},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

	resp, _ = doJSON(t, srv, http.MethodPut, "/v1/settings/meeting-days", userA, map[string]any{
		"days": []int{9},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/settings/family-worship-day", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fw map[string]int
	decode(t, body, &fw)
	assert.Equal(t, 6, fw["day"])

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/couple/streaks?date=2025-02-08", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var streaks map[string]any
	decode(t, body, &streaks)
	assert.Equal(t, userA, streaks["user_a"])
	assert.Equal(t, userB, streaks["user_b"])

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/couple/moodboard?range=month&month=2025-02", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var board struct {
		Dates []string `json:"dates"`
	}
	decode(t, body, &board)
	assert.Len(t, board.Dates, 28)

	resp, _ = doJSON(t, srv, http.MethodGet, "/v1/couple/moodboard?range=decade", userA, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestICSUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, "/v1/calendar/ics", userA, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBootstrap(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodGet, "/v1/bootstrap", userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	var out map[string]any
	decode(t, body, &out)
	assert.Equal(t, userA, out["user"])
	assert.NotNil(t, out["snapshot"])
	assert.NotNil(t, out["couple"])
}
