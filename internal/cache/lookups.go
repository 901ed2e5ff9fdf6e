package cache

import (
	"context"
	"time"

	"expensetracker/internal/core"
)

const (
	keyCategories = "categories"
	keyCurrencies = "currencies"
)

// CatalogAPI is the part of the API client whose reads are cached.
type CatalogAPI interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (*core.Category, error)
	UpdateCategory(ctx context.Context, id int64, c core.Category) (*core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	Currencies(ctx context.Context) ([]string, error)
}

// Catalog caches the category and currency lists, which change rarely.
// Category mutations made through it invalidate the cached list.
type Catalog struct {
	api        CatalogAPI
	categories *LRUCache[[]core.Category]
	currencies *LRUCache[[]string]
	catLoader  *Loader[[]core.Category]
	curLoader  *Loader[[]string]
}

// NewCatalog wraps api. Both caches are registered with m when it is non-nil.
func NewCatalog(api CatalogAPI, ttl time.Duration, m *Manager) *Catalog {
	cats := NewLRUCache[[]core.Category](1, ttl)
	curs := NewLRUCache[[]string](1, ttl)
	if m != nil {
		m.Register(cats)
		m.Register(curs)
	}
	return &Catalog{
		api:        api,
		categories: cats,
		currencies: curs,
		catLoader:  NewLoader[[]core.Category](cats),
		curLoader:  NewLoader[[]string](curs),
	}
}

func (c *Catalog) Categories(ctx context.Context) ([]core.Category, error) {
	return c.catLoader.Get(ctx, keyCategories, c.api.ListCategories)
}

func (c *Catalog) Currencies(ctx context.Context) ([]string, error) {
	return c.curLoader.Get(ctx, keyCurrencies, c.api.Currencies)
}

// CategoryName resolves id against the cached list.
func (c *Catalog) CategoryName(ctx context.Context, id int64) (string, bool, error) {
	cats, err := c.Categories(ctx)
	if err != nil {
		return "", false, err
	}
	for _, cat := range cats {
		if cat.ID == id {
			return cat.Name, true, nil
		}
	}
	return "", false, nil
}

func (c *Catalog) CreateCategory(ctx context.Context, cat core.Category) (*core.Category, error) {
	created, err := c.api.CreateCategory(ctx, cat)
	if err == nil {
		c.catLoader.Invalidate(keyCategories)
	}
	return created, err
}

func (c *Catalog) UpdateCategory(ctx context.Context, id int64, cat core.Category) (*core.Category, error) {
	updated, err := c.api.UpdateCategory(ctx, id, cat)
	if err == nil {
		c.catLoader.Invalidate(keyCategories)
	}
	return updated, err
}

func (c *Catalog) DeleteCategory(ctx context.Context, id int64) error {
	err := c.api.DeleteCategory(ctx, id)
	if err == nil {
		c.catLoader.Invalidate(keyCategories)
	}
	return err
}

// Invalidate drops every cached list.
func (c *Catalog) Invalidate() {
	c.catLoader.Invalidate(keyCategories)
	c.curLoader.Invalidate(keyCurrencies)
}
