package api

import (
	"context"
	"fmt"
	"net/http"

	"expensetracker/internal/core"
)

func (c *Client) Statistics(ctx context.Context, r core.DateRange) (*core.ExpenseStatistics, error) {
	var stats core.ExpenseStatistics
	if err := c.do(ctx, http.MethodGet, "/expenses/statistics", dateRangeQuery(r), nil, &stats); err != nil {
		return nil, fmt.Errorf("expense statistics: %w", err)
	}
	return &stats, nil
}

func (c *Client) SpendingByCategory(ctx context.Context, r core.DateRange) (*core.SpendingByCategory, error) {
	var s core.SpendingByCategory
	if err := c.do(ctx, http.MethodGet, "/expenses/analytics/spending-by-category", dateRangeQuery(r), nil, &s); err != nil {
		return nil, fmt.Errorf("spending by category: %w", err)
	}
	return &s, nil
}

func (c *Client) SpendingTrend(ctx context.Context, r core.DateRange) (*core.SpendingTrend, error) {
	var t core.SpendingTrend
	if err := c.do(ctx, http.MethodGet, "/expenses/analytics/spending-trend", dateRangeQuery(r), nil, &t); err != nil {
		return nil, fmt.Errorf("spending trend: %w", err)
	}
	return &t, nil
}
