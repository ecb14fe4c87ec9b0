package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnexpectedShape  = errors.New("unexpected response shape")
	ErrSessionExpired   = errors.New("session expired, please sign in again")
	ErrNotAuthenticated = errors.New("not signed in")
)

// Error is returned for every failed request. StatusCode is 0 when the
// request never produced a response.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is an *Error carrying the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}

func networkError(err error) *Error {
	return &Error{Message: fmt.Sprintf("network error: %v", err), Err: err}
}

// errorFromResponse builds an *Error from a non-2xx response body.
func errorFromResponse(status int, body []byte) *Error {
	if msg := errorMessage(body); msg != "" {
		return &Error{StatusCode: status, Message: msg}
	}
	return &Error{
		StatusCode: status,
		Message:    fmt.Sprintf("API request failed: %d %s", status, http.StatusText(status)),
	}
}

// errorMessage pulls "detail" or "message" out of an error body. FastAPI
// validation errors carry detail as a list of {msg} objects.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail != "" {
			return detail
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			var msgs []string
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return payload.Message
}
