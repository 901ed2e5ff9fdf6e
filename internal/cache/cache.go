// Package cache is the client-side data-fetching layer: a TTL LRU cache,
// request de-duplication for concurrent lookups and explicit invalidation.
package cache

import (
	"sync"
	"time"

	"expensetracker/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix removes every key starting with prefix and returns the count.
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans registered caches.
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
	stopOnce    sync.Once
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

func (m *Manager) Register(cache Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

// CleanNow runs one cleanup pass and returns the number of entries removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "removed", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine. It is safe to call more than once and
// before StartCleanup.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
