package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifedash/lifedash/internal/calendar"
	"github.com/lifedash/lifedash/internal/model"
)

func s(v string) *string { return &v }
func i(v int) *int       { return &v }

func TestBuildEventPayloadTimed(t *testing.T) {
	task := &model.Task{
		Title:            "Dissertation block",
		ScheduledDate:    s("2025-02-03"),
		ScheduledTime:    s("09:00"),
		EstimatedMinutes: i(90),
	}
	p, err := BuildEventPayload(task, "America/Sao_Paulo")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Dissertation block", p.Summary)
	assert.Equal(t, "2025-02-03T09:00:00", p.Start.DateTime)
	assert.Equal(t, "America/Sao_Paulo", p.Start.TimeZone)
	assert.Equal(t, "2025-02-03T10:30:00", p.End.DateTime)
	assert.Empty(t, p.Start.Date)
}

func TestBuildEventPayloadDefaultEstimate(t *testing.T) {
	task := &model.Task{
		Title:         "Quick call",
		ScheduledDate: s("2025-02-03"),
		ScheduledTime: s("14:00"),
	}
	p, err := BuildEventPayload(task, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03T14:30:00", p.End.DateTime)
}

func TestBuildEventPayloadAllDay(t *testing.T) {
	task := &model.Task{
		Title:         "Defense day",
		ScheduledDate: s("2025-02-28"),
	}
	p, err := BuildEventPayload(task, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", p.Start.Date)
	assert.Equal(t, "2025-03-01", p.End.Date)
	assert.Empty(t, p.Start.DateTime)
}

func TestBuildEventPayloadUnscheduled(t *testing.T) {
	p, err := BuildEventPayload(&model.Task{Title: "Someday"}, "UTC")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestBuildEventPayloadUnknownTimezoneFallsBackToUTC(t *testing.T) {
	task := &model.Task{
		Title:         "X",
		ScheduledDate: s("2025-02-03"),
		ScheduledTime: s("09:00"),
	}
	p, err := BuildEventPayload(task, "Not/AZone")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03T09:00:00", p.Start.DateTime)
}

func TestEventScheduleParsing(t *testing.T) {
	d, c := eventSchedule(nil)
	assert.Nil(t, d)
	assert.Nil(t, c)

	d, c = eventSchedule(&calendar.EventTime{Date: "2025-02-05"})
	assert.Equal(t, "2025-02-05", *d)
	assert.Nil(t, c)

	d, c = eventSchedule(&calendar.EventTime{DateTime: "2025-02-05T14:30:00-03:00"})
	assert.Equal(t, "2025-02-05", *d)
	assert.Equal(t, "14:30", *c)
}

func TestBackoffBounds(t *testing.T) {
	for k := 1; k <= 20; k++ {
		d := backoff(k)
		lo := 1 << uint(minInt(k, 8))
		assert.GreaterOrEqual(t, d.Seconds(), float64(0))
		assert.LessOrEqual(t, d.Seconds(), 300.0, "attempt %d", k)
		if lo <= 300 {
			assert.Equal(t, float64(lo), d.Seconds(), "attempt %d", k)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
