package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"expensetracker/internal/core"
)

// Export is a downloaded binary export.
type Export struct {
	ContentType string
	Filename    string
	Data        []byte
}

// ExportExpenses downloads the expense export as raw bytes.
func (c *Client) ExportExpenses(ctx context.Context, f core.ExportFilter) (*Export, error) {
	q := url.Values{}
	if f.StartDate != nil {
		q.Set("startDate", f.StartDate.String())
	}
	if f.EndDate != nil {
		q.Set("endDate", f.EndDate.String())
	}
	if f.CategoryID != nil {
		q.Set("categoryId", strconv.FormatInt(*f.CategoryID, 10))
	}

	resp, err := c.send(ctx, http.MethodGet, "/export/expenses", q, nil, "*/*")
	if err != nil {
		return nil, fmt.Errorf("export expenses: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("export expenses: %w: %w", ErrTransport, err)
	}

	return &Export{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
		Data:        data,
	}, nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
