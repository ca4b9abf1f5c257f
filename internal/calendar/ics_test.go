package calendar_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifedash/lifedash/internal/calendar"
)

func icsFixture(lines ...string) string {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR")
	return strings.Join(all, "\r\n") + "\r\n"
}

func TestExpandICSTimedEvent(t *testing.T) {
	data := icsFixture(
		"BEGIN:VEVENT",
		"UID:evt-1@example.com",
		"SUMMARY:Dentist",
		"DTSTART:20250203T140000Z",
		"DTEND:20250203T143000Z",
		"END:VEVENT",
	)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	occ, err := calendar.ExpandICS(data, start, end)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, "evt-1@example.com|2025-02-03T14:00:00Z", occ[0].Key)
	assert.Equal(t, "Dentist", occ[0].Title)
	assert.False(t, occ[0].AllDay)
	assert.Equal(t, 30*time.Minute, occ[0].End.Sub(occ[0].Start))
}

func TestExpandICSDefaultDurationAndAllDay(t *testing.T) {
	data := icsFixture(
		"BEGIN:VEVENT",
		"UID:no-end@example.com",
		"SUMMARY:Open block",
		"DTSTART:20250204T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:allday@example.com",
		"SUMMARY:Holiday",
		"DTSTART:20250205",
		"END:VEVENT",
	)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	occ, err := calendar.ExpandICS(data, start, end)
	require.NoError(t, err)
	require.Len(t, occ, 2)

	assert.Equal(t, time.Hour, occ[0].End.Sub(occ[0].Start))
	assert.False(t, occ[0].AllDay)

	assert.True(t, occ[1].AllDay)
	assert.Equal(t, 24*time.Hour, occ[1].End.Sub(occ[1].Start))
}

func TestExpandICSRecurring(t *testing.T) {
	data := icsFixture(
		"BEGIN:VEVENT",
		"UID:weekly@example.com",
		"SUMMARY:Standup",
		"DTSTART:20250203T090000Z",
		"DTEND:20250203T091500Z",
		"RRULE:FREQ=WEEKLY;COUNT=3",
		"END:VEVENT",
	)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	occ, err := calendar.ExpandICS(data, start, end)
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.Equal(t, "weekly@example.com|2025-02-03T09:00:00Z", occ[0].Key)
	assert.Equal(t, "weekly@example.com|2025-02-10T09:00:00Z", occ[1].Key)
	assert.Equal(t, "weekly@example.com|2025-02-17T09:00:00Z", occ[2].Key)

	// Keys are stable across fetches.
	again, err := calendar.ExpandICS(data, start, end)
	require.NoError(t, err)
	assert.Equal(t, occ, again)
}

func TestExpandICSWindowFilter(t *testing.T) {
	data := icsFixture(
		"BEGIN:VEVENT",
		"UID:outside@example.com",
		"SUMMARY:Too early",
		"DTSTART:20240101T090000Z",
		"END:VEVENT",
	)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	occ, err := calendar.ExpandICS(data, start, end)
	require.NoError(t, err)
	assert.Empty(t, occ)
}
