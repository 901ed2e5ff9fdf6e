// Package google implements the sheets export sink on the Google Sheets API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/sheets"
)

var ErrMissingCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ sheets.RowAppender = (*Client)(nil)

// NewFromConfig creates a Sheets client authenticated with a service account.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.GoogleSpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.GoogleSheetName)
	if sheetName == "" {
		sheetName = "Expenses"
	}

	credentialsJSON, err := loadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		return nil, err
	}

	return New(ctx, credentialsJSON, spreadsheetID, sheetName, logger)
}

// New creates a Sheets client from service account key JSON. Extra options
// are applied after the authenticated HTTP client.
func New(ctx context.Context, credentialsJSON []byte, spreadsheetID, sheetName string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	httpClient, err := newAuthenticatedClient(ctx, credentialsJSON)
	if err != nil {
		return nil, err
	}

	opts = append([]goption.ClientOption{goption.WithHTTPClient(httpClient)}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "sheet", sheetName)
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

// newAuthenticatedClient signs requests with the service account's tokens.
// Token fetches and API calls share the pooled transport.
func newAuthenticatedClient(ctx context.Context, credentialsJSON []byte) (*http.Client, error) {
	conf, err := gauth.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	base := newHTTPClientWithPooling()
	client := conf.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = base.Timeout
	return client, nil
}

// loadCredentials prefers inline JSON over a file path.
func loadCredentials(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, ErrMissingCredentials
	}
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// AppendRows appends rows after the last row of the export sheet, creating
// the sheet first if it does not exist.
func (c *Client) AppendRows(ctx context.Context, rows [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx); err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheetRange(c.sheetName), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append rows to sheet %s: %w", c.sheetName, err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Export appended to sheet",
		log.FieldOperation, log.OpExport, "range", updated, "rows", len(rows))
	return updated, nil
}

func (c *Client) ensureSheet(ctx context.Context) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	if hasSheet(ss, c.sheetName) {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: c.sheetName},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create sheet %s: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Created export sheet", "sheet", c.sheetName)
	return nil
}

func hasSheet(ss *gsheet.Spreadsheet, title string) bool {
	if ss == nil {
		return false
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return true
		}
	}
	return false
}

// sheetRange quotes a sheet title for A1 notation.
func sheetRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}
