package session

import (
	"context"
	"errors"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

// ErrSessionNotFound is returned when a session id is unknown or has
// already expired or been destroyed.
var ErrSessionNotFound = errors.New("session not found")

// Store persists session records keyed by session id.
type Store interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}
