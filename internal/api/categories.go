package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"expensetracker/internal/core"
)

func categoryPath(id int64) string {
	return "/categories/" + strconv.FormatInt(id, 10)
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var cats []core.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &cats); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CreateCategory posts cat without its ID.
func (c *Client) CreateCategory(ctx context.Context, cat core.Category) (*core.Category, error) {
	cat.ID = 0
	var created core.Category
	if err := c.do(ctx, http.MethodPost, "/categories", nil, cat, &created); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &created, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, cat core.Category) (*core.Category, error) {
	var updated core.Category
	if err := c.do(ctx, http.MethodPut, categoryPath(id), nil, cat, &updated); err != nil {
		return nil, fmt.Errorf("update category %d: %w", id, err)
	}
	return &updated, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, categoryPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}
