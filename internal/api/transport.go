package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"expensetracker/internal/log"
	"expensetracker/internal/session"
)

// interceptTransport is the outbound interceptor: default headers, request
// ID and bearer token, applied to every request regardless of body or
// expected response type.
type interceptTransport struct {
	tokens    session.TokenStore
	userAgent string
	next      http.RoundTripper
}

func (t *interceptTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	token, err := t.tokens.Token(r.Context())
	if err != nil {
		return nil, fmt.Errorf("read auth token: %w", err)
	}

	// RoundTrippers must not modify the caller's request.
	out := r.Clone(r.Context())
	out.Header.Set("Content-Type", contentTypeJSON)
	if out.Header.Get("Accept") == "" {
		out.Header.Set("Accept", contentTypeJSON)
	}
	if t.userAgent != "" {
		out.Header.Set("User-Agent", t.userAgent)
	}
	if out.Header.Get(log.RequestIDHeader) == "" {
		out.Header.Set(log.RequestIDHeader, uuid.NewString())
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}

	return t.next.RoundTrip(out)
}
