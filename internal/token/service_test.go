package token

import (
	"context"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
	"github.com/providerpath/providerpath-sso/internal/registry"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type memoryTokenRepo struct {
	tokens map[string]*domain.Token
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: map[string]*domain.Token{}}
}

func (m *memoryTokenRepo) Create(_ context.Context, token *domain.Token) error {
	cp := *token
	m.tokens[token.TokenID] = &cp
	return nil
}

func (m *memoryTokenRepo) GetByID(_ context.Context, tokenID string) (*domain.Token, error) {
	t, ok := m.tokens[tokenID]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryTokenRepo) MarkRevoked(_ context.Context, tokenID string) error {
	t, ok := m.tokens[tokenID]
	if !ok {
		return domain.ErrTokenNotFound
	}
	t.Revoked = true
	return nil
}

func (m *memoryTokenRepo) ListBySubject(_ context.Context, userID string) ([]*domain.Token, error) {
	var out []*domain.Token
	for _, t := range m.tokens {
		if t.SubjectUserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(
		domain.ServiceDescriptor{
			ID:            "bookings",
			Name:          "Bookings",
			Domain:        "bookings.example.com",
			CallbackURL:   "https://bookings.example.com/callback",
			AllowedScopes: []string{"profile", "bookings:read", "bookings:write"},
			Enabled:       true,
		},
		domain.ServiceDescriptor{
			ID:                   "payments",
			Name:                 "Payments",
			Domain:               "payments.example.com",
			CallbackURL:          "https://payments.example.com/callback",
			AllowedScopes:        []string{"profile", "payments:read"},
			RequireVerifiedEmail: true,
			Enabled:              true,
		},
		domain.ServiceDescriptor{
			ID:            "legacy",
			Name:          "Legacy Portal",
			Domain:        "legacy.example.com",
			CallbackURL:   "https://legacy.example.com/callback",
			AllowedScopes: []string{"profile"},
			Enabled:       false,
		},
	)
	require.NoError(t, err)
	return reg
}

func newTestService(t *testing.T) (*Service, *memoryTokenRepo) {
	t.Helper()
	repo := newMemoryTokenRepo()
	svc, err := NewService(testRegistry(t), repo, testSigningKey, "https://sso.example.com", time.Hour, zap.NewNop())
	require.NoError(t, err)
	return svc, repo
}

func testUser() *domain.User {
	return &domain.User{
		ID:                 "user-1",
		Email:              "casey@example.com",
		VerificationStatus: domain.VerificationUnverified,
	}
}

func TestIssueSignsVerifiableToken(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.Issue(context.Background(), "bookings", testUser(), []string{"profile", "bookings:read"})
	require.NoError(t, err)
	require.NotEmpty(t, token.TokenID)
	require.Equal(t, "bookings", token.ServiceID)
	require.False(t, token.Revoked)

	parsed, err := josejwt.ParseSigned(token.Signed, []jose.SignatureAlgorithm{jose.HS256})
	require.NoError(t, err)

	var claims Claims
	require.NoError(t, parsed.Claims(testSigningKey, &claims))
	require.Equal(t, token.TokenID, claims.ID)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, josejwt.Audience{"bookings"}, claims.Audience)
	require.Equal(t, "https://sso.example.com", claims.Issuer)
	require.Equal(t, []string{"profile", "bookings:read"}, claims.Scopes)
}

func TestIssueUnknownService(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), "nope", testUser(), []string{"profile"})
	require.ErrorIs(t, err, domain.ErrServiceNotFound)
}

func TestIssueDisabledService(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), "legacy", testUser(), []string{"profile"})
	require.ErrorIs(t, err, domain.ErrServiceDisabled)
}

func TestIssueScopeNotAllowed(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Issue(context.Background(), "bookings", testUser(), []string{"profile", "admin:write"})
	require.ErrorIs(t, err, domain.ErrScopeNotAllowed)
	// No partial issuance.
	require.Empty(t, repo.tokens)
}

func TestIssueRequiresVerifiedEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), "payments", testUser(), []string{"profile"})
	require.ErrorIs(t, err, domain.ErrUnverifiedEmail)

	verified := testUser()
	verified.VerificationStatus = domain.VerificationVerified
	_, err = svc.Issue(context.Background(), "payments", verified, []string{"profile"})
	require.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	svc, repo := newTestService(t)

	token, err := svc.Issue(context.Background(), "bookings", testUser(), []string{"profile"})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), token.TokenID, "bookings"))
	require.True(t, repo.tokens[token.TokenID].Revoked)

	// Idempotent.
	require.NoError(t, svc.Revoke(context.Background(), token.TokenID, "bookings"))
}

func TestRevokeServiceMismatch(t *testing.T) {
	svc, repo := newTestService(t)

	token, err := svc.Issue(context.Background(), "bookings", testUser(), []string{"profile"})
	require.NoError(t, err)

	err = svc.Revoke(context.Background(), token.TokenID, "payments")
	require.ErrorIs(t, err, domain.ErrServiceMismatch)
	require.False(t, repo.tokens[token.TokenID].Revoked)
}

func TestRevokeUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Revoke(context.Background(), "missing", "bookings")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestIntrospect(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.Issue(context.Background(), "bookings", testUser(), []string{"profile"})
	require.NoError(t, err)

	got, err := svc.Introspect(context.Background(), token.Signed)
	require.NoError(t, err)
	require.Equal(t, token.TokenID, got.TokenID)
	require.True(t, svc.Active(got))

	require.NoError(t, svc.Revoke(context.Background(), token.TokenID, "bookings"))
	got, err = svc.Introspect(context.Background(), token.Signed)
	require.NoError(t, err)
	require.False(t, svc.Active(got))
}

func TestIntrospectRejectsTamperedToken(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.Issue(context.Background(), "bookings", testUser(), []string{"profile"})
	require.NoError(t, err)

	_, err = svc.Introspect(context.Background(), token.Signed+"x")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestListBySubject(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), "bookings", testUser(), []string{"profile"})
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), "bookings", testUser(), []string{"bookings:read"})
	require.NoError(t, err)

	tokens, err := svc.ListBySubject(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	tokens, err = svc.ListBySubject(context.Background(), "someone-else")
	require.NoError(t, err)
	require.Empty(t, tokens)
}
