package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/session"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// fakeAPI records every request and answers with the configured status/body.
type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
	header   http.Header
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, respBody := f.status, f.body
	for k, v := range f.header {
		w.Header()[k] = v
	}
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeAPI) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request recorded")
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, fake *fakeAPI, token string) (*Client, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore(token)
	client, err := New(srv.URL+DefaultBasePath, store)
	require.NoError(t, err)
	return client, store
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("ftp://example.com/api/v1", nil)
	assert.Error(t, err)
	_, err = New("://nope", nil)
	assert.Error(t, err)
}

func TestBearerTokenAttachedWhenPresent(t *testing.T) {
	fake := &fakeAPI{body: `{"id":1,"title":"x","amount":1,"currencyCode":"USD","date":"2024-01-01","isReimbursable":false}`}
	client, _ := newTestClient(t, fake, "tok-123")

	_, err := client.GetExpense(context.Background(), 1)
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
	assert.Equal(t, "/api/v1/expenses/1", req.Path)
}

func TestNoAuthorizationHeaderWithoutToken(t *testing.T) {
	fake := &fakeAPI{body: `[]`}
	client, _ := newTestClient(t, fake, "")

	_, err := client.ListCategories(context.Background())
	require.NoError(t, err)

	_, present := fake.last(t).Header["Authorization"]
	assert.False(t, present, "Authorization header must be absent")
}

func TestBearerTokenOnBodyAndBlobRequests(t *testing.T) {
	fake := &fakeAPI{body: `{}`}
	client, _ := newTestClient(t, fake, "tok")
	ctx := context.Background()

	_, err := client.ScanReceipt(ctx, core.ReceiptImage{ImageBase64: "aGk=", ImageFormat: "png"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", fake.last(t).Header.Get("Authorization"))

	fake.body = "a,b\n1,2\n"
	_, err = client.ExportExpenses(ctx, core.ExportFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", fake.last(t).Header.Get("Authorization"))
	assert.Equal(t, "*/*", fake.last(t).Header.Get("Accept"))
}

func TestTokenReadOnEveryRequest(t *testing.T) {
	fake := &fakeAPI{body: `[]`}
	client, store := newTestClient(t, fake, "")
	ctx := context.Background()

	_, err := client.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, fake.last(t).Header.Get("Authorization"))

	require.NoError(t, store.SetToken(ctx, "fresh"))
	_, err = client.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", fake.last(t).Header.Get("Authorization"))
}

func TestUnauthorizedClearsTokenForAnyOperation(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(c *Client) error{
		"list expenses": func(c *Client) error { _, err := c.ListExpenses(ctx, core.ExpenseFilter{}); return err },
		"create expense": func(c *Client) error {
			_, err := c.CreateExpense(ctx, core.Expense{Title: "x"})
			return err
		},
		"delete expense": func(c *Client) error { return c.DeleteExpense(ctx, 9) },
		"scan receipt": func(c *Client) error {
			_, err := c.ScanReceipt(ctx, core.ReceiptImage{ImageBase64: "x", ImageFormat: "png"})
			return err
		},
		"statistics": func(c *Client) error { _, err := c.Statistics(ctx, core.DateRange{}); return err },
		"profile":    func(c *Client) error { _, err := c.Profile(ctx); return err },
		"currencies": func(c *Client) error { _, err := c.Currencies(ctx); return err },
		"export":     func(c *Client) error { _, err := c.ExportExpenses(ctx, core.ExportFilter{}); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			fake := &fakeAPI{status: http.StatusUnauthorized, body: `{"message":"token expired"}`}
			client, store := newTestClient(t, fake, "stale")

			err := op(client)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.True(t, IsUnauthorized(err))
			assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, LoginRoute, apiErr.Redirect())
			assert.Equal(t, "token expired", apiErr.Message)

			token, _ := store.Token(ctx)
			assert.Empty(t, token, "token must be cleared after 401")
		})
	}
}

func TestNonUnauthorizedFailuresLeaveTokenAlone(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			fake := &fakeAPI{status: status, body: `[]`}
			client, store := newTestClient(t, fake, "keep-me")

			_, err := client.ListCategories(context.Background())
			if status == http.StatusOK {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrUnauthorized)
				assert.Equal(t, status, StatusCode(err))
				assert.Empty(t, (&Error{StatusCode: status}).Redirect())
			}

			token, _ := store.Token(context.Background())
			assert.Equal(t, "keep-me", token)
		})
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	fake := &fakeAPI{status: http.StatusServiceUnavailable, body: "maintenance"}
	client, _ := newTestClient(t, fake, "")

	_, err := client.Currencies(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "maintenance", apiErr.Message)
	assert.Contains(t, err.Error(), "503")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(url+DefaultBasePath, session.NewMemoryStore("tok"))
	require.NoError(t, err)

	_, err = client.ListCategories(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, StatusCode(err))

	token, _ := client.Tokens().Token(context.Background())
	assert.Equal(t, "tok", token, "transport failures have no side effects")
}

func TestMalformedBody(t *testing.T) {
	fake := &fakeAPI{body: `{not json`}
	client, _ := newTestClient(t, fake, "")

	_, err := client.Profile(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNoRetries(t *testing.T) {
	fake := &fakeAPI{status: http.StatusInternalServerError}
	client, _ := newTestClient(t, fake, "")

	_, err := client.ListCategories(context.Background())
	require.Error(t, err)
	assert.Len(t, fake.requests, 1)
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestErrorMessageKeepsRunesWhole(t *testing.T) {
	// 199 ASCII bytes put the 200 byte cut inside the first "é".
	body := strings.Repeat("x", 199) + strings.Repeat("é", 10)

	msg := errorMessage([]byte(body))
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, strings.Repeat("x", 199), msg)

	assert.Equal(t, "short", errorMessage([]byte("  short \n")))
	assert.Equal(t, "bad amount", errorMessage([]byte(`{"message":"bad amount"}`)))
}
