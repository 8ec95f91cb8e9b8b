package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

// Bridge manages the platform-side session established after a
// successful provider login.
type Bridge struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger

	now func() time.Time
}

func NewBridge(store Store, ttl time.Duration, logger *zap.Logger) *Bridge {
	return &Bridge{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Establish creates a fresh session for the user. A new random id is
// minted on every login so session fixation cannot survive a reauth.
func (b *Bridge) Establish(ctx context.Context, userID, provider string) (*domain.Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	now := b.now().UTC()
	session := &domain.Session{
		SessionID: id,
		UserID:    userID,
		Provider:  provider,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}
	if err := b.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	b.logger.Info("session established",
		zap.String("user_id", userID),
		zap.String("provider", provider),
	)
	return session, nil
}

// Current returns the live session for the id. An expired record counts
// as absent and is removed on the way out.
func (b *Bridge) Current(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := b.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Expired(b.now()) {
		if err := b.store.Delete(ctx, sessionID); err != nil {
			b.logger.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Destroy removes the session. Destroying an unknown id is not an error.
func (b *Bridge) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := b.store.Delete(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	return err
}
