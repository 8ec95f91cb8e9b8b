package token

import (
	"context"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
	"github.com/providerpath/providerpath-sso/internal/registry"
	"github.com/providerpath/providerpath-sso/internal/repository"
)

// Claims is the JWT payload minted for downstream services.
type Claims struct {
	josejwt.Claims
	Scopes []string `json:"scope,omitempty"`
}

// Service issues, introspects and revokes service-scoped tokens.
type Service struct {
	registry *registry.Registry
	tokens   repository.TokenRepository
	signer   jose.Signer
	key      []byte
	issuer   string
	ttl      time.Duration
	logger   *zap.Logger

	now func() time.Time
}

func NewService(reg *registry.Registry, tokens repository.TokenRepository, signingKey []byte, issuer string, ttl time.Duration, logger *zap.Logger) (*Service, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	return &Service{
		registry: reg,
		tokens:   tokens,
		signer:   signer,
		key:      signingKey,
		issuer:   issuer,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Issue mints a signed token binding the user to the target service with
// the requested scopes. Every requested scope must be in the service's
// allow-list; a service that requires a verified email refuses issuance
// for users still pending verification.
func (s *Service) Issue(ctx context.Context, serviceID string, user *domain.User, scopes []string) (*domain.Token, error) {
	svc, err := s.registry.Get(serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Enabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceDisabled, serviceID)
	}
	for _, scope := range scopes {
		if !svc.AllowsScope(scope) {
			return nil, fmt.Errorf("%w: %s", domain.ErrScopeNotAllowed, scope)
		}
	}
	if svc.RequireVerifiedEmail && user.VerificationStatus != domain.VerificationVerified {
		return nil, fmt.Errorf("%w: service %s requires a verified email", domain.ErrUnverifiedEmail, serviceID)
	}

	now := s.now().UTC()
	tokenID := uuid.NewString()

	claims := Claims{
		Claims: josejwt.Claims{
			ID:       tokenID,
			Issuer:   s.issuer,
			Subject:  user.ID,
			Audience: josejwt.Audience{svc.ID},
			IssuedAt: josejwt.NewNumericDate(now),
			Expiry:   josejwt.NewNumericDate(now.Add(s.ttl)),
		},
		Scopes: scopes,
	}

	signed, err := josejwt.Signed(s.signer).Claims(claims).Serialize()
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	token := &domain.Token{
		TokenID:       tokenID,
		ServiceID:     svc.ID,
		SubjectUserID: user.ID,
		Scopes:        scopes,
		Signed:        signed,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	s.logger.Info("token issued",
		zap.String("token_id", tokenID),
		zap.String("service_id", svc.ID),
		zap.String("user_id", user.ID),
	)
	return token, nil
}

// Revoke marks a token revoked. The requesting service must be the one
// the token was issued for; mismatches fail without touching the row.
// Revoking an already revoked token succeeds.
func (s *Service) Revoke(ctx context.Context, tokenID, serviceID string) error {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.ServiceID != serviceID {
		return fmt.Errorf("%w: token belongs to %s", domain.ErrServiceMismatch, token.ServiceID)
	}
	if token.Revoked {
		return nil
	}
	if err := s.tokens.MarkRevoked(ctx, tokenID); err != nil {
		return err
	}

	s.logger.Info("token revoked",
		zap.String("token_id", tokenID),
		zap.String("service_id", serviceID),
	)
	return nil
}

// Introspect verifies the signature of a compact token and reports its
// current state against the stored row.
func (s *Service) Introspect(ctx context.Context, signed string) (*domain.Token, error) {
	parsed, err := josejwt.ParseSigned(signed, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token", domain.ErrTokenNotFound)
	}

	var claims Claims
	if err := parsed.Claims(s.key, &claims); err != nil {
		return nil, fmt.Errorf("%w: bad signature", domain.ErrTokenNotFound)
	}

	token, err := s.tokens.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ListBySubject returns the issuance history for a user, newest first.
func (s *Service) ListBySubject(ctx context.Context, userID string) ([]*domain.Token, error) {
	tokens, err := s.tokens.ListBySubject(ctx, userID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Active reports whether a token row is currently usable.
func (s *Service) Active(token *domain.Token) bool {
	return !token.Revoked && s.now().Before(token.ExpiresAt)
}
