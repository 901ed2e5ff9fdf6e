package log

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Transport wraps next so that every outbound request and its outcome are
// logged. Successful responses log at debug, 4xx at warn, 5xx and transport
// failures at error.
func Transport(logger *Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{logger: logger, next: next}
}

type loggingTransport struct {
	logger *Logger
	next   http.RoundTripper
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery)
	if id := r.Header.Get(RequestIDHeader); id != "" {
		fields.WithRequestID(id)
	}

	t.logger.DebugContext(r.Context(), "HTTP request started", fields.ToSlice()...)

	resp, err := t.next.RoundTrip(r)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		fields[FieldDuration] = durationMs
		fields.WithError(err)
		t.logger.ErrorContext(r.Context(), "HTTP request failed", fields.ToSlice()...)
		return nil, err
	}

	level := slog.LevelDebug
	switch {
	case resp.StatusCode >= 500:
		level = slog.LevelError
	case resp.StatusCode >= 400:
		level = slog.LevelWarn
	}
	fields.WithHTTPResponse(resp.StatusCode, durationMs, resp.StatusCode < 400)
	t.logger.Log(r.Context(), level, "HTTP request completed", fields.ToSlice()...)

	return resp, nil
}
