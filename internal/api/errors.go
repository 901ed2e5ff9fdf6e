package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxErrorMessage = 200

// LoginRoute is where an unauthenticated caller should send the user.
const LoginRoute = "/login"

var (
	// ErrUnauthorized matches any *Error with status 401. By the time it is
	// returned the persisted token has already been cleared.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransport wraps failures where no HTTP response was received.
	ErrTransport = errors.New("transport failure")

	// ErrDecode wraps malformed response bodies.
	ErrDecode = errors.New("decode response")
)

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Body       []byte
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Redirect returns the route the caller should navigate to, if any.
func (e *Error) Redirect() string {
	if e.StatusCode == http.StatusUnauthorized {
		return LoginRoute
	}
	return ""
}

// Temporary reports whether retrying later could succeed (5xx).
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500
}

// IsUnauthorized reports whether err is (or wraps) a 401 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorMessage pulls a human readable message out of common error bodies:
// {"message": "..."}, {"error": "..."} or plain text.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
		return ""
	}
	return truncate(strings.TrimSpace(string(body)), maxErrorMessage)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
