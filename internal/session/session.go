// Package session holds the client-side authentication state: the bearer
// token the API client attaches to outbound requests.
package session

import (
	"context"
	"errors"
	"sync"
)

// TokenKey is the persisted-state key the bearer token is stored under.
const TokenKey = "authToken"

var ErrNoToken = errors.New("no auth token")

// TokenStore provides and persists the bearer token. An empty token with a
// nil error means unauthenticated.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// MemoryStore is a process-local TokenStore.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) ClearToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// Require returns the stored token or ErrNoToken when there is none.
func Require(ctx context.Context, store TokenStore) (string, error) {
	token, err := store.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
