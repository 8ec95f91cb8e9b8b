package repository

import (
	"context"
	"time"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

// UserRepository persists canonical users and their linked external
// identities.
type UserRepository interface {
	// GetByIdentity looks a user up by a (provider, externalID) link.
	// Returns domain.ErrUserNotFound when no link exists.
	GetByIdentity(ctx context.Context, provider, externalID string) (*domain.User, error)

	// GetByEmail looks a user up by email, case-insensitively.
	// Returns domain.ErrUserNotFound when no user has the address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByID returns the user with the given id or domain.ErrUserNotFound.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// Create inserts the user together with its first identity link in
	// one transaction. Returns domain.ErrDuplicateUser when another
	// row already holds the email or the identity link.
	Create(ctx context.Context, user *domain.User, identity *domain.ExternalIdentity) error

	// LinkIdentity attaches an identity to an existing user. Linking
	// the same (provider, externalID) twice is a no-op.
	LinkIdentity(ctx context.Context, userID string, identity *domain.ExternalIdentity) error
}

// TokenRepository persists issued tokens. Rows are never deleted;
// revocation flips a flag so the audit trail survives.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error

	// GetByID returns the token row or domain.ErrTokenNotFound.
	GetByID(ctx context.Context, tokenID string) (*domain.Token, error)

	// MarkRevoked sets the revoked flag. Revoking an already revoked
	// token succeeds.
	MarkRevoked(ctx context.Context, tokenID string) error

	ListBySubject(ctx context.Context, userID string) ([]*domain.Token, error)
}

// StateStore holds short-lived authorization state between the initiate
// and callback legs of the OAuth flow.
type StateStore interface {
	Save(ctx context.Context, state *domain.AuthState, ttl time.Duration) error

	// Consume returns the stored state and removes it atomically so a
	// state value can only ever be redeemed once. Returns
	// domain.ErrStateMismatch when the state is unknown or expired.
	Consume(ctx context.Context, state string) (*domain.AuthState, error)
}
