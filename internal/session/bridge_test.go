package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

type memoryStore struct {
	sessions map[string]*domain.Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string]*domain.Session{}}
}

func (m *memoryStore) Save(_ context.Context, session *domain.Session) error {
	m.sessions[session.SessionID] = session
	return nil
}

func (m *memoryStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *memoryStore) Delete(_ context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func TestEstablishAndCurrent(t *testing.T) {
	bridge := NewBridge(newMemoryStore(), time.Hour, zap.NewNop())

	session, err := bridge.Establish(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)
	require.True(t, session.ExpiresAt.After(session.CreatedAt))

	got, err := bridge.Current(context.Background(), session.SessionID)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, domain.ProviderGoogle, got.Provider)
}

func TestEstablishMintsFreshIDs(t *testing.T) {
	bridge := NewBridge(newMemoryStore(), time.Hour, zap.NewNop())

	first, err := bridge.Establish(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	second, err := bridge.Establish(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, second.SessionID)
}

func TestCurrentExpiredSession(t *testing.T) {
	store := newMemoryStore()
	bridge := NewBridge(store, time.Hour, zap.NewNop())

	session, err := bridge.Establish(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)

	bridge.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = bridge.Current(context.Background(), session.SessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	// Lazy expiry removes the record on first touch.
	require.Empty(t, store.sessions)
}

func TestCurrentUnknownSession(t *testing.T) {
	bridge := NewBridge(newMemoryStore(), time.Hour, zap.NewNop())

	_, err := bridge.Current(context.Background(), "nope")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = bridge.Current(context.Background(), "")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDestroy(t *testing.T) {
	bridge := NewBridge(newMemoryStore(), time.Hour, zap.NewNop())

	session, err := bridge.Establish(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)

	require.NoError(t, bridge.Destroy(context.Background(), session.SessionID))
	_, err = bridge.Current(context.Background(), session.SessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// Destroying again is a no-op.
	require.NoError(t, bridge.Destroy(context.Background(), session.SessionID))
	require.NoError(t, bridge.Destroy(context.Background(), ""))
}
