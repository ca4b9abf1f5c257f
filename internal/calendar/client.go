// Package calendar wraps the Google Calendar v3 REST surface: incremental
// event listing, event CRUD, OAuth and an ICS read-only fallback.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// GoogleAPIBase is the production API root; tests point the client at an
// httptest server instead.
const GoogleAPIBase = "https://www.googleapis.com/calendar/v3"

// EventTime is one end of an event: dateTime+timeZone for timed events,
// date for all-day ones.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is the subset of the Google event resource the sync engine reads.
type Event struct {
	ID      string     `json:"id,omitempty"`
	Status  string     `json:"status,omitempty"`
	Summary string     `json:"summary,omitempty"`
	ICalUID string     `json:"iCalUID,omitempty"`
	Start   *EventTime `json:"start,omitempty"`
	End     *EventTime `json:"end,omitempty"`
}

// EventPayload is the body sent on create and patch.
type EventPayload struct {
	Summary string     `json:"summary"`
	Start   *EventTime `json:"start,omitempty"`
	End     *EventTime `json:"end,omitempty"`
}

// EventList is one page of a list call.
type EventList struct {
	Items         []Event `json:"items"`
	NextSyncToken string  `json:"nextSyncToken,omitempty"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Client is a stateless adapter over the REST API. Access tokens come from
// the provider before every call.
type Client struct {
	http      *resty.Client
	provider  *TokenProvider
	baseURL   string
	defaultTZ string
	log       zerolog.Logger
}

// NewClient builds a client. baseURL == "" targets the production API.
func NewClient(provider *TokenProvider, baseURL, defaultTZ string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = GoogleAPIBase
	}
	return &Client{
		http:      resty.New().SetTimeout(20 * time.Second),
		provider:  provider,
		baseURL:   baseURL,
		defaultTZ: defaultTZ,
		log:       log,
	}
}

// ListEvents fetches events. With a sync token the fetch is incremental and
// the time window is ignored; a 410 surfaces as KindTokenInvalid so the
// caller can clear the cursor and re-list the full window.
func (c *Client) ListEvents(ctx context.Context, user, calendarID, timeMin, timeMax, syncToken string) (*EventList, error) {
	tok, err := c.provider.AccessToken(ctx, user)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"maxResults":   "250",
		"singleEvents": "true",
	}
	if syncToken != "" {
		params["syncToken"] = syncToken
	} else {
		params["timeMin"] = timeMin
		params["timeMax"] = timeMax
		params["orderBy"] = "startTime"
	}

	var out EventList
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetQueryParams(params).
		SetResult(&out).
		Get(fmt.Sprintf("%s/calendars/%s/events", c.baseURL, calendarID))
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), resp.Body())
	}
	return &out, nil
}

// CreateEvent inserts an event and returns it with its assigned id.
func (c *Client) CreateEvent(ctx context.Context, user, calendarID string, payload *EventPayload) (*Event, error) {
	tok, err := c.provider.AccessToken(ctx, user)
	if err != nil {
		return nil, err
	}

	var out Event
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetBody(payload).
		SetResult(&out).
		Post(fmt.Sprintf("%s/calendars/%s/events", c.baseURL, calendarID))
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), resp.Body())
	}
	return &out, nil
}

// UpdateEvent patches an existing event.
func (c *Client) UpdateEvent(ctx context.Context, user, calendarID, eventID string, payload *EventPayload) (*Event, error) {
	tok, err := c.provider.AccessToken(ctx, user)
	if err != nil {
		return nil, err
	}

	var out Event
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetBody(payload).
		SetResult(&out).
		Patch(fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, calendarID, eventID))
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), resp.Body())
	}
	return &out, nil
}

// DeleteEvent removes an event. 404 and 410 count as success so deletes stay
// idempotent.
func (c *Client) DeleteEvent(ctx context.Context, user, calendarID, eventID string) error {
	tok, err := c.provider.AccessToken(ctx, user)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		Delete(fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, calendarID, eventID))
	if err != nil {
		return &Error{Kind: KindTransient, Message: err.Error()}
	}
	if resp.IsError() && resp.StatusCode() != 404 && resp.StatusCode() != 410 {
		return apiError(resp.StatusCode(), resp.Body())
	}
	return nil
}

// CalendarTimezone resolves the calendar's IANA timezone, falling back to
// the configured default on any failure.
func (c *Client) CalendarTimezone(ctx context.Context, user, calendarID string) string {
	tok, err := c.provider.AccessToken(ctx, user)
	if err != nil {
		c.log.Warn().Err(err).Str("user", user).Msg("timezone lookup failed, using default")
		return c.defaultTZ
	}

	var out struct {
		TimeZone string `json:"timeZone"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetResult(&out).
		Get(fmt.Sprintf("%s/calendars/%s", c.baseURL, calendarID))
	if err != nil || resp.IsError() || out.TimeZone == "" {
		c.log.Warn().Str("user", user).Str("calendar", calendarID).Msg("timezone lookup failed, using default")
		return c.defaultTZ
	}
	return out.TimeZone
}
