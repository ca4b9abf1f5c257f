package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/go-resty/resty/v2"
	"github.com/teambition/rrule-go"
)

// Occurrence is one expanded event instance from an ICS feed. Key is stable
// across fetches so occurrences can be deduplicated.
type Occurrence struct {
	Key    string
	Title  string
	Start  time.Time
	End    time.Time
	AllDay bool
}

const icsDefaultDuration = time.Hour

// ICSFeed is the read-only fallback used when Google OAuth is not connected.
type ICSFeed struct {
	http *resty.Client
	url  string
}

func NewICSFeed(url string) *ICSFeed {
	return &ICSFeed{http: resty.New().SetTimeout(20 * time.Second), url: url}
}

// Occurrences fetches the feed and expands events into instances inside
// [start, end). Recurring events are expanded through their RRULE.
func (f *ICSFeed) Occurrences(ctx context.Context, start, end time.Time) ([]Occurrence, error) {
	resp, err := f.http.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), resp.Body())
	}
	return ExpandICS(string(resp.Body()), start, end)
}

// ExpandICS parses ICS text and returns occurrences inside [start, end).
func ExpandICS(data string, start, end time.Time) ([]Occurrence, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var out []Occurrence
	for _, ev := range cal.Events() {
		title := ""
		if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil {
			title = p.Value
		}
		key := ev.Id()
		if key == "" {
			key = title
		}

		dtstart := ev.GetProperty(ical.ComponentPropertyDtStart)
		if dtstart == nil {
			continue
		}
		allDay := len(dtstart.Value) == 8

		var evStart time.Time
		if allDay {
			evStart, err = time.Parse("20060102", dtstart.Value)
		} else {
			evStart, err = ev.GetStartAt()
		}
		if err != nil {
			continue
		}

		duration := icsDefaultDuration
		if allDay {
			duration = 24 * time.Hour
		}
		if evEnd, endErr := ev.GetEndAt(); endErr == nil && evEnd.After(evStart) {
			duration = evEnd.Sub(evStart)
		}

		starts := []time.Time{evStart}
		if p := ev.GetProperty(ical.ComponentPropertyRrule); p != nil {
			rule, rerr := rrule.StrToRRule(p.Value)
			if rerr == nil {
				rule.DTStart(evStart)
				starts = rule.Between(start, end, true)
			}
		}

		for _, s := range starts {
			if s.Before(start) || !s.Before(end) {
				continue
			}
			out = append(out, Occurrence{
				Key:    fmt.Sprintf("%s|%s", key, s.Format(time.RFC3339)),
				Title:  title,
				Start:  s,
				End:    s.Add(duration),
				AllDay: allDay,
			})
		}
	}
	return out, nil
}
