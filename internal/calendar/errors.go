package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a calendar API failure for the sync engine.
type Kind string

const (
	KindAuthFailed   Kind = "auth_failed"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindTokenInvalid Kind = "token_invalid"
	KindTransient    Kind = "transient"
	KindPermanent    Kind = "permanent"
)

// Error wraps an HTTP failure from the Google surface, preserving the body
// message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("calendar %s (status %d): %s", e.Kind, e.Status, e.Message)
}

// IsKind reports whether err is a calendar Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}

// Retryable reports whether the failure should go back through the outbox.
func Retryable(err error) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return true
	}
	return ce.Kind == KindTransient || ce.Kind == KindRateLimited
}

func kindFromStatus(status int) Kind {
	switch {
	case status == 401:
		return KindAuthFailed
	case status == 403:
		return KindAuthFailed
	case status == 404:
		return KindNotFound
	case status == 410:
		return KindTokenInvalid
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// apiError converts a non-2xx response into an Error. The Google error body
// is {"error": {"message": ...}}; anything else is passed through raw.
func apiError(status int, body []byte) *Error {
	msg := string(body)
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	return &Error{Kind: kindFromStatus(status), Status: status, Message: msg}
}
