package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"expensetracker/internal/core"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache[T any](size int, ttl time.Duration) (*LRUCache[T], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestCache[string](10, time.Minute)
	c.Set("k", "v")
	c.Set("other", "v")

	clk.advance(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired too early")
	}

	clk.advance(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUDeletePrefix(t *testing.T) {
	c, _ := newTestCache[int](10, time.Minute)
	c.Set("expenses:1", 1)
	c.Set("expenses:2", 2)
	c.Set("categories", 3)

	if n := c.DeletePrefix("expenses:"); n != 2 {
		t.Fatalf("removed %d", n)
	}
	if _, ok := c.Get("categories"); !ok {
		t.Fatalf("unrelated key removed")
	}
}

func TestManagerCleanNow(t *testing.T) {
	c, clk := newTestCache[int](10, time.Second)
	c.Set("a", 1)
	m := NewManager(nil)
	m.Register(c)

	clk.advance(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("cleaned %d", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestLoaderDeduplicatesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache[string](10, time.Minute)
	l := NewLoader[string](c)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := l.Get(context.Background(), "k", fetch)
			if err != nil {
				t.Errorf("get: %v", err)
			}
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch called %d times", got)
	}
	for _, r := range results {
		if r != "value" {
			t.Fatalf("got %q", r)
		}
	}
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache[int](10, time.Minute)
	l := NewLoader[int](c)
	boom := errors.New("boom")

	_, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("got %d, %v", v, err)
	}

	l.Invalidate("k")
	if c.Size() != 0 {
		t.Fatalf("invalidate left %d entries", c.Size())
	}
}

type fakeCatalogAPI struct {
	listCalls int
	curCalls  int
	cats      []core.Category
}

func (f *fakeCatalogAPI) ListCategories(context.Context) ([]core.Category, error) {
	f.listCalls++
	return append([]core.Category(nil), f.cats...), nil
}

func (f *fakeCatalogAPI) CreateCategory(_ context.Context, c core.Category) (*core.Category, error) {
	c.ID = int64(len(f.cats) + 1)
	f.cats = append(f.cats, c)
	return &c, nil
}

func (f *fakeCatalogAPI) UpdateCategory(_ context.Context, id int64, c core.Category) (*core.Category, error) {
	return &c, nil
}

func (f *fakeCatalogAPI) DeleteCategory(context.Context, int64) error {
	return errors.New("409 category in use")
}

func (f *fakeCatalogAPI) Currencies(context.Context) ([]string, error) {
	f.curCalls++
	return []string{"USD", "EUR"}, nil
}

func TestCatalogCachesAndInvalidates(t *testing.T) {
	api := &fakeCatalogAPI{cats: []core.Category{{ID: 1, Name: "Food"}}}
	catalog := NewCatalog(api, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := catalog.Categories(ctx); err != nil {
			t.Fatalf("categories: %v", err)
		}
	}
	if api.listCalls != 1 {
		t.Fatalf("list called %d times", api.listCalls)
	}

	if _, err := catalog.CreateCategory(ctx, core.Category{Name: "Travel"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	name, ok, err := catalog.CategoryName(ctx, 2)
	if err != nil || !ok || name != "Travel" {
		t.Fatalf("CategoryName = %q, %v, %v", name, ok, err)
	}
	if api.listCalls != 2 {
		t.Fatalf("list called %d times after create", api.listCalls)
	}

	// A failed mutation keeps the cached list.
	if err := catalog.DeleteCategory(ctx, 1); err == nil {
		t.Fatalf("expected delete error")
	}
	if _, err := catalog.Categories(ctx); err != nil {
		t.Fatalf("categories: %v", err)
	}
	if api.listCalls != 2 {
		t.Fatalf("failed delete should not invalidate")
	}

	catalog.Currencies(ctx)
	catalog.Currencies(ctx)
	if api.curCalls != 1 {
		t.Fatalf("currencies called %d times", api.curCalls)
	}
	catalog.Invalidate()
	catalog.Currencies(ctx)
	if api.curCalls != 2 {
		t.Fatalf("currencies called %d times after invalidate", api.curCalls)
	}
}
