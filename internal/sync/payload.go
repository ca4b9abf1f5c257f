package sync

import (
	"fmt"
	"time"

	"github.com/lifedash/lifedash/internal/calendar"
	"github.com/lifedash/lifedash/internal/model"
)

const defaultEstimatedMinutes = 30

// BuildEventPayload maps a task onto a calendar event body. Timed tasks get
// a naive local dateTime plus an explicit timeZone; all-day tasks get
// date/date+1d. Unscheduled tasks produce no payload.
func BuildEventPayload(t *model.Task, tz string) (*calendar.EventPayload, error) {
	if t.ScheduledDate == nil {
		return nil, nil
	}

	if t.ScheduledTime == nil {
		day, err := time.Parse(model.DateLayout, *t.ScheduledDate)
		if err != nil {
			return nil, fmt.Errorf("build event payload: %w", err)
		}
		return &calendar.EventPayload{
			Summary: t.Title,
			Start:   &calendar.EventTime{Date: *t.ScheduledDate},
			End:     &calendar.EventTime{Date: day.AddDate(0, 0, 1).Format(model.DateLayout)},
		}, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(
		model.DateLayout+"T"+model.ClockLayout,
		*t.ScheduledDate+"T"+*t.ScheduledTime, loc)
	if err != nil {
		return nil, fmt.Errorf("build event payload: %w", err)
	}

	est := defaultEstimatedMinutes
	if t.EstimatedMinutes != nil && *t.EstimatedMinutes > 0 {
		est = *t.EstimatedMinutes
	}
	end := start.Add(time.Duration(est) * time.Minute)

	const naive = "2006-01-02T15:04:05"
	return &calendar.EventPayload{
		Summary: t.Title,
		Start:   &calendar.EventTime{DateTime: start.Format(naive), TimeZone: tz},
		End:     &calendar.EventTime{DateTime: end.Format(naive), TimeZone: tz},
	}, nil
}

// eventSchedule extracts (scheduled_date, scheduled_time) from an inbound
// event start.
func eventSchedule(start *calendar.EventTime) (date *string, clock *string) {
	if start == nil {
		return nil, nil
	}
	if start.Date != "" {
		d := start.Date
		return &d, nil
	}
	if start.DateTime == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, start.DateTime)
	if err != nil {
		return nil, nil
	}
	d := ts.Format(model.DateLayout)
	c := ts.Format(model.ClockLayout)
	return &d, &c
}
