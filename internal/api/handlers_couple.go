package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lifedash/lifedash/internal/api/respond"
	"github.com/lifedash/lifedash/internal/model"
)

func (h *Handler) getMeetingDays(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	days, err := h.streaks.MeetingDays(r.Context(), user)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string][]int{"days": days})
}

func (h *Handler) putMeetingDays(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var in struct {
		Days []int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.streaks.SetMeetingDays(r.Context(), user, in.Days); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string][]int{"days": in.Days})
}

func (h *Handler) getFamilyWorshipDay(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	day, err := h.streaks.FamilyWorshipDay(r.Context(), user)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"day": day})
}

func (h *Handler) putFamilyWorshipDay(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var in struct {
		Day int `json:"day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.streaks.SetFamilyWorshipDay(r.Context(), user, in.Day); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"day": in.Day})
}

func (h *Handler) coupleStreaks(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	partner := h.cfg.PartnerOf(user)
	if partner == "" {
		respond.Detail(w, http.StatusBadRequest, "no partner configured")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.today(r)
	}
	if !validDate(date) {
		respond.Detail(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", date))
		return
	}

	out, err := h.streaks.SharedStreaks(r.Context(), user, partner, date)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

// moodboardWindow resolves ?range=month&month=YYYY-MM or ?range=year&year=YYYY
// to an inclusive date span. Default is the current month.
func (h *Handler) moodboardWindow(r *http.Request) (start, end string, err error) {
	q := r.URL.Query()
	switch q.Get("range") {
	case "year":
		y := q.Get("year")
		t, perr := time.Parse("2006", y)
		if perr != nil {
			return "", "", fmt.Errorf("invalid year %q", y)
		}
		return t.Format(model.DateLayout),
			t.AddDate(1, 0, -1).Format(model.DateLayout), nil
	case "", "month":
		m := q.Get("month")
		if m == "" {
			m = h.today(r)[:7]
		}
		t, perr := time.Parse("2006-01", m)
		if perr != nil {
			return "", "", fmt.Errorf("invalid month %q", m)
		}
		return t.Format(model.DateLayout),
			t.AddDate(0, 1, -1).Format(model.DateLayout), nil
	default:
		return "", "", fmt.Errorf("range must be month or year")
	}
}

func (h *Handler) coupleMoodboard(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	start, end, err := h.moodboardWindow(r)
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, err.Error())
		return
	}

	users := []string{user}
	if partner := h.cfg.PartnerOf(user); partner != "" {
		users = append(users, partner)
	}
	board, err := h.streaks.MoodboardRange(r.Context(), users, start, end)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, board)
}
