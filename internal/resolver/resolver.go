package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
	"github.com/providerpath/providerpath-sso/internal/repository"
)

// Resolver maps an external identity returned by a provider onto exactly
// one canonical user, creating or linking as needed.
type Resolver struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *Resolver {
	return &Resolver{users: users, logger: logger}
}

// Resolve finds or creates the canonical user for the identity.
//
// Lookup order: existing (provider, externalID) link first, then a
// case-insensitive email match, then a fresh user. Email matches only
// auto-link when the provider vouches for the address; an unverified
// email fails with domain.ErrUnverifiedEmail rather than silently
// merging accounts. An identity without an email and without an
// existing link fails with domain.ErrMissingEmail.
func (r *Resolver) Resolve(ctx context.Context, identity *domain.ExternalIdentity) (*domain.User, error) {
	if identity.ExternalID == "" {
		return nil, domain.ErrProfileIncomplete
	}

	user, err := r.users.GetByIdentity(ctx, identity.Provider, identity.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup by identity: %w", err)
	}

	if identity.Email == "" {
		return nil, domain.ErrMissingEmail
	}

	user, err = r.users.GetByEmail(ctx, identity.Email)
	if err == nil {
		if !identity.EmailVerified {
			return nil, domain.ErrUnverifiedEmail
		}
		if err := r.users.LinkIdentity(ctx, user.ID, identity); err != nil {
			return nil, fmt.Errorf("link identity: %w", err)
		}
		r.logger.Info("linked identity to existing user",
			zap.String("user_id", user.ID),
			zap.String("provider", identity.Provider),
		)
		if !user.HasProvider(identity.Provider) {
			user.LinkedProviders = append(user.LinkedProviders, identity.Provider)
		}
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}

	user, err = r.create(ctx, identity)
	if errors.Is(err, domain.ErrDuplicateUser) {
		// Another request created the same user between our lookup and
		// insert. The unique constraint guarantees a single winner, so
		// one re-fetch settles it.
		r.logger.Info("lost user creation race, refetching",
			zap.String("provider", identity.Provider),
			zap.String("external_id", identity.ExternalID),
		)
		return r.refetch(ctx, identity)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("created user",
		zap.String("user_id", user.ID),
		zap.String("provider", identity.Provider),
	)
	return user, nil
}

func (r *Resolver) create(ctx context.Context, identity *domain.ExternalIdentity) (*domain.User, error) {
	now := time.Now().UTC()
	user := &domain.User{
		ID:                 uuid.NewString(),
		Email:              identity.Email,
		Name:               identity.DisplayName,
		AvatarURL:          identity.AvatarURL,
		LinkedProviders:    []string{identity.Provider},
		Roles:              []string{"participant"},
		VerificationStatus: domain.VerificationUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.users.Create(ctx, user, identity); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Resolver) refetch(ctx context.Context, identity *domain.ExternalIdentity) (*domain.User, error) {
	user, err := r.users.GetByIdentity(ctx, identity.Provider, identity.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("refetch by identity: %w", err)
	}

	// The conflicting row held the email, not the identity link. Attach
	// our link to that user if the address is vouched for.
	user, err = r.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("refetch by email: %w", err)
	}
	if !identity.EmailVerified {
		return nil, domain.ErrUnverifiedEmail
	}
	if err := r.users.LinkIdentity(ctx, user.ID, identity); err != nil {
		return nil, fmt.Errorf("link identity after race: %w", err)
	}
	if !user.HasProvider(identity.Provider) {
		user.LinkedProviders = append(user.LinkedProviders, identity.Provider)
	}
	return user, nil
}
