package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"expensetracker/internal/core"
)

func expensePath(id int64) string {
	return "/expenses/" + strconv.FormatInt(id, 10)
}

// expenseQuery encodes only the filter fields that are set.
func expenseQuery(f core.ExpenseFilter) url.Values {
	q := url.Values{}
	if f.Page != nil {
		q.Set("page", strconv.Itoa(*f.Page))
	}
	if f.Size != nil {
		q.Set("size", strconv.Itoa(*f.Size))
	}
	if f.CategoryID != nil {
		q.Set("categoryId", strconv.FormatInt(*f.CategoryID, 10))
	}
	if f.StartDate != nil {
		q.Set("startDate", f.StartDate.String())
	}
	if f.EndDate != nil {
		q.Set("endDate", f.EndDate.String())
	}
	if f.Currency != nil {
		q.Set("currency", *f.Currency)
	}
	if f.MinAmount != nil {
		q.Set("minAmount", f.MinAmount.String())
	}
	if f.MaxAmount != nil {
		q.Set("maxAmount", f.MaxAmount.String())
	}
	if f.Tags != nil {
		q.Set("tags", *f.Tags)
	}
	return q
}

func dateRangeQuery(r core.DateRange) url.Values {
	q := url.Values{}
	if r.StartDate != nil {
		q.Set("startDate", r.StartDate.String())
	}
	if r.EndDate != nil {
		q.Set("endDate", r.EndDate.String())
	}
	return q
}

// ListExpenses returns one page of expenses matching f.
func (c *Client) ListExpenses(ctx context.Context, f core.ExpenseFilter) (*core.Page[core.Expense], error) {
	var page core.Page[core.Expense]
	if err := c.do(ctx, http.MethodGet, "/expenses", expenseQuery(f), nil, &page); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return &page, nil
}

func (c *Client) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	var e core.Expense
	if err := c.do(ctx, http.MethodGet, expensePath(id), nil, nil, &e); err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	return &e, nil
}

// CreateExpense posts e (its ID, if any, is dropped) and returns the stored expense.
func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (*core.Expense, error) {
	e.ID = nil
	var created core.Expense
	if err := c.do(ctx, http.MethodPost, "/expenses", nil, e, &created); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return &created, nil
}

func (c *Client) UpdateExpense(ctx context.Context, id int64, e core.Expense) (*core.Expense, error) {
	var updated core.Expense
	if err := c.do(ctx, http.MethodPut, expensePath(id), nil, e, &updated); err != nil {
		return nil, fmt.Errorf("update expense %d: %w", id, err)
	}
	return &updated, nil
}

func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, expensePath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// ScanReceipt submits an encoded receipt image for OCR extraction.
func (c *Client) ScanReceipt(ctx context.Context, img core.ReceiptImage) (*core.ReceiptData, error) {
	var data core.ReceiptData
	if err := c.do(ctx, http.MethodPost, "/expenses/scan-receipt", nil, img, &data); err != nil {
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	return &data, nil
}

// UploadReceipt attaches a receipt image to an existing expense. The server
// runs OCR on it and returns the updated expense.
func (c *Client) UploadReceipt(ctx context.Context, id int64, img core.ReceiptImage) (*core.Expense, error) {
	var e core.Expense
	if err := c.do(ctx, http.MethodPost, expensePath(id)+"/receipt", nil, img, &e); err != nil {
		return nil, fmt.Errorf("upload receipt for expense %d: %w", id, err)
	}
	return &e, nil
}

// ReimbursableExpenses lists expenses flagged reimbursable.
func (c *Client) ReimbursableExpenses(ctx context.Context) ([]core.Expense, error) {
	var payload struct {
		Expenses []core.Expense `json:"expenses"`
	}
	if err := c.do(ctx, http.MethodGet, "/expenses/reimbursable", nil, nil, &payload); err != nil {
		return nil, fmt.Errorf("list reimbursable expenses: %w", err)
	}
	return payload.Expenses, nil
}
