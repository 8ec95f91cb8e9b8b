package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
	"github.com/providerpath/providerpath-sso/internal/provider"
	"github.com/providerpath/providerpath-sso/internal/resolver"
	"github.com/providerpath/providerpath-sso/internal/session"
)

type fakeAdapter struct {
	name        string
	identity    *domain.ExternalIdentity
	exchangeErr error

	gotCode     string
	gotVerifier string
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) AuthCodeURL(state, codeChallenge string) string {
	return "https://provider.example.com/authorize?state=" + state + "&code_challenge=" + codeChallenge
}

func (a *fakeAdapter) Exchange(ctx context.Context, code, codeVerifier string) (*domain.ExternalIdentity, error) {
	a.gotCode = code
	a.gotVerifier = codeVerifier
	if a.exchangeErr != nil {
		return nil, a.exchangeErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.identity, nil
}

type memoryStateStore struct {
	states map[string]*domain.AuthState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: map[string]*domain.AuthState{}}
}

func (m *memoryStateStore) Save(_ context.Context, state *domain.AuthState, _ time.Duration) error {
	m.states[state.State] = state
	return nil
}

func (m *memoryStateStore) Consume(_ context.Context, state string) (*domain.AuthState, error) {
	s, ok := m.states[state]
	if !ok {
		return nil, domain.ErrStateMismatch
	}
	delete(m.states, state)
	return s, nil
}

type flowFixture struct {
	flow     *Flow
	adapter  *fakeAdapter
	states   *memoryStateStore
	sessions *memorySessionStore
	users    *memoryUserRepo
}

type memorySessionStore struct {
	sessions map[string]*domain.Session
}

func (m *memorySessionStore) Save(_ context.Context, s *domain.Session) error {
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memorySessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (m *memorySessionStore) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type memoryUserRepo struct {
	users      map[string]*domain.User
	identities map[string]string
}

func (m *memoryUserRepo) GetByIdentity(_ context.Context, p, ext string) (*domain.User, error) {
	id, ok := m.identities[p+"/"+ext]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUserRepo) Create(_ context.Context, u *domain.User, i *domain.ExternalIdentity) error {
	m.users[u.ID] = u
	m.identities[i.Provider+"/"+i.ExternalID] = u.ID
	return nil
}

func (m *memoryUserRepo) LinkIdentity(_ context.Context, userID string, i *domain.ExternalIdentity) error {
	m.identities[i.Provider+"/"+i.ExternalID] = userID
	return nil
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	adapter := &fakeAdapter{
		name: domain.ProviderGoogle,
		identity: &domain.ExternalIdentity{
			Provider:      domain.ProviderGoogle,
			ExternalID:    "google-123",
			Email:         "casey@example.com",
			EmailVerified: true,
			DisplayName:   "Casey",
		},
	}
	providers := provider.NewRegistry(adapter)
	states := newMemoryStateStore()
	users := &memoryUserRepo{users: map[string]*domain.User{}, identities: map[string]string{}}
	sessions := &memorySessionStore{sessions: map[string]*domain.Session{}}
	bridge := session.NewBridge(sessions, time.Hour, zap.NewNop())

	flow := NewFlow(
		providers,
		states,
		resolver.New(users, zap.NewNop()),
		bridge,
		FlowConfig{
			StateTTL:             10 * time.Minute,
			ProviderTimeout:      5 * time.Second,
			DefaultRedirect:      "/dashboard",
			AllowedRedirectHosts: []string{"app.example.com"},
		},
		zap.NewNop(),
	)

	return &flowFixture{flow: flow, adapter: adapter, states: states, sessions: sessions, users: users}
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestInitiateStoresStateAndBuildsURL(t *testing.T) {
	fx := newFlowFixture(t)

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "")
	require.NoError(t, err)

	state := stateFromAuthURL(t, authURL)
	require.NotEmpty(t, state)

	stored, ok := fx.states.states[state]
	require.True(t, ok)
	require.Equal(t, domain.ProviderGoogle, stored.Provider)
	require.Equal(t, "/dashboard", stored.RedirectTarget)
	require.NotEmpty(t, stored.CodeVerifier)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	require.NotEmpty(t, u.Query().Get("code_challenge"))
}

func TestInitiateUnknownProvider(t *testing.T) {
	fx := newFlowFixture(t)

	_, err := fx.flow.Initiate(context.Background(), "myspace", "")
	require.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestInitiateDisabledProvider(t *testing.T) {
	fx := newFlowFixture(t)

	// Facebook is a recognized name but no adapter is configured.
	_, err := fx.flow.Initiate(context.Background(), domain.ProviderFacebook, "")
	require.ErrorIs(t, err, domain.ErrProviderDisabled)
}

func TestInitiateRedirectAllowList(t *testing.T) {
	fx := newFlowFixture(t)

	_, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "https://evil.example.net/phish")
	require.ErrorIs(t, err, domain.ErrRedirectNotAllowed)

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "https://app.example.com/welcome")
	require.NoError(t, err)
	stored := fx.states.states[stateFromAuthURL(t, authURL)]
	require.Equal(t, "https://app.example.com/welcome", stored.RedirectTarget)

	// Relative paths pass without an allow-list entry.
	authURL, err = fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "/settings")
	require.NoError(t, err)
	stored = fx.states.states[stateFromAuthURL(t, authURL)]
	require.Equal(t, "/settings", stored.RedirectTarget)
}

func TestCallbackHappyPath(t *testing.T) {
	fx := newFlowFixture(t)

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "/welcome")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	result, err := fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, CallbackInput{
		Code:  "auth-code",
		State: state,
	})
	require.NoError(t, err)
	require.Equal(t, "/welcome", result.RedirectTarget)
	require.Equal(t, "casey@example.com", result.User.Email)
	require.NotEmpty(t, result.Session.SessionID)
	require.Equal(t, result.User.ID, result.Session.UserID)

	// PKCE verifier from the stored state reached the exchange.
	require.Equal(t, "auth-code", fx.adapter.gotCode)
	require.NotEmpty(t, fx.adapter.gotVerifier)
}

func TestCallbackStateMismatch(t *testing.T) {
	fx := newFlowFixture(t)

	_, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "")
	require.NoError(t, err)

	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, CallbackInput{
		Code:  "auth-code",
		State: "forged-state",
	})
	require.ErrorIs(t, err, domain.ErrStateMismatch)
	require.Empty(t, fx.sessions.sessions)

	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, CallbackInput{Code: "auth-code"})
	require.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestCallbackStateSingleUse(t *testing.T) {
	fx := newFlowFixture(t)

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	input := CallbackInput{Code: "auth-code", State: state}
	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, input)
	require.NoError(t, err)

	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, input)
	require.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestCallbackWrongProviderForState(t *testing.T) {
	fx := newFlowFixture(t)

	microsoft := &fakeAdapter{name: domain.ProviderMicrosoft, identity: &domain.ExternalIdentity{
		Provider:   domain.ProviderMicrosoft,
		ExternalID: "ms-1",
	}}
	fx.flow.providers = provider.NewRegistry(fx.adapter, microsoft)

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderMicrosoft, CallbackInput{
		Code:  "auth-code",
		State: state,
	})
	require.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestCallbackProviderRejected(t *testing.T) {
	fx := newFlowFixture(t)

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, CallbackInput{
		State:     state,
		ErrorCode: "access_denied",
	})
	require.ErrorIs(t, err, domain.ErrProviderRejected)
	require.Empty(t, fx.sessions.sessions)

	// The state was still consumed.
	require.Empty(t, fx.states.states)
}

func TestCallbackProviderUnreachable(t *testing.T) {
	fx := newFlowFixture(t)
	fx.adapter.exchangeErr = context.DeadlineExceeded

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, CallbackInput{
		Code:  "auth-code",
		State: state,
	})
	require.ErrorIs(t, err, domain.ErrProviderUnreachable)
	require.Empty(t, fx.sessions.sessions)
}

func TestCallbackResolverFailureEstablishesNoSession(t *testing.T) {
	fx := newFlowFixture(t)
	fx.adapter.identity = &domain.ExternalIdentity{
		Provider:   domain.ProviderGoogle,
		ExternalID: "google-123",
	}

	authURL, err := fx.flow.Initiate(context.Background(), domain.ProviderGoogle, "")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = fx.flow.HandleCallback(context.Background(), domain.ProviderGoogle, CallbackInput{
		Code:  "auth-code",
		State: state,
	})
	require.ErrorIs(t, err, domain.ErrMissingEmail)
	require.Empty(t, fx.sessions.sessions)
}
