package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"expensetracker/internal/log"
)

type StateStoreTestSuite struct {
	suite.Suite
	path   string
	logs   *bytes.Buffer
	logger *log.Logger
	store  *StateStore
}

func (s *StateStoreTestSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "state", "client.db")
	s.logs = new(bytes.Buffer)
	s.logger = log.New(log.Config{Output: s.logs, Level: slog.LevelDebug})
	store, err := NewStateStore(s.path, s.logger)
	require.NoError(s.T(), err, "failed to open state store")
	s.store = store
}

func (s *StateStoreTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StateStoreTestSuite) TestGetMissingKey() {
	_, err := s.store.Get(context.Background(), "missing")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *StateStoreTestSuite) TestSetOverwrites() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Set(ctx, "k", "one"))
	require.NoError(s.T(), s.store.Set(ctx, "k", "two"))

	v, err := s.store.Get(ctx, "k")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "two", v)
}

func (s *StateStoreTestSuite) TestTokenLifecycle() {
	ctx := context.Background()

	token, err := s.store.Token(ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), token, "fresh store is unauthenticated")

	require.NoError(s.T(), s.store.SetToken(ctx, "jwt-token"))
	token, err = s.store.Token(ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "jwt-token", token)

	require.NoError(s.T(), s.store.ClearToken(ctx))
	token, err = s.store.Token(ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), token)

	// Clearing twice is fine
	assert.NoError(s.T(), s.store.ClearToken(ctx))
}

func (s *StateStoreTestSuite) TestTokenSurvivesReopen() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.SetToken(ctx, "persisted"))
	require.NoError(s.T(), s.store.Close())

	reopened, err := NewStateStore(s.path, s.logger)
	require.NoError(s.T(), err)
	s.store = reopened

	token, err := s.store.Token(ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "persisted", token)
}

func (s *StateStoreTestSuite) TestFreshFileIsMigrated() {
	assert.Equal(s.T(), uint(1), s.store.SchemaVersion())
	assert.Contains(s.T(), s.logs.String(), "Client state schema migrated")
	assert.Contains(s.T(), s.logs.String(), "to_version=1")
}

func (s *StateStoreTestSuite) TestReopenSkipsAppliedMigrations() {
	require.NoError(s.T(), s.store.Close())
	s.logs.Reset()

	reopened, err := NewStateStore(s.path, s.logger)
	require.NoError(s.T(), err)
	s.store = reopened

	assert.Equal(s.T(), uint(1), s.store.SchemaVersion())
	assert.Contains(s.T(), s.logs.String(), "Client state schema up to date")
	assert.NotContains(s.T(), s.logs.String(), "Client state schema migrated")
}

func (s *StateStoreTestSuite) TestTokenChangesLoggedUnderStorage() {
	ctx := context.Background()
	s.logs.Reset()

	require.NoError(s.T(), s.store.SetToken(ctx, "jwt-token"))
	require.NoError(s.T(), s.store.ClearToken(ctx))

	out := s.logs.String()
	assert.Contains(s.T(), out, "Auth token stored")
	assert.Contains(s.T(), out, "Auth token cleared")
	assert.Contains(s.T(), out, "component=storage")
	assert.NotContains(s.T(), out, "jwt-token")
}

func TestNilLoggerIsAccepted(t *testing.T) {
	store, err := NewStateStore(filepath.Join(t.TempDir(), "client.db"), nil)
	require.NoError(t, err)
	defer store.Close()
	assert.NoError(t, store.SetToken(context.Background(), "t"))
}

func TestStateStoreSuite(t *testing.T) {
	suite.Run(t, new(StateStoreTestSuite))
}
