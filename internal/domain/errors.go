package domain

import "errors"

// Login flow errors.
var (
	ErrUnknownProvider     = errors.New("unknown identity provider")
	ErrProviderDisabled    = errors.New("identity provider not configured")
	ErrStateMismatch       = errors.New("state parameter missing or mismatched")
	ErrProviderRejected    = errors.New("identity provider rejected the login")
	ErrProviderUnreachable = errors.New("identity provider unreachable")
	ErrProfileIncomplete   = errors.New("provider profile missing identifier")
	ErrMissingEmail        = errors.New("provider profile missing email")
	ErrUnverifiedEmail     = errors.New("provider email not verified")
	ErrRedirectNotAllowed  = errors.New("redirect target not allowed")
)

// Identity and persistence errors.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists for email")
)

// Service registry and token errors.
var (
	ErrServiceNotFound = errors.New("service not registered")
	ErrServiceDisabled = errors.New("service disabled")
	ErrScopeNotAllowed = errors.New("scope not allowed for service")
	ErrTokenNotFound   = errors.New("token not found")
	ErrServiceMismatch = errors.New("token issued for a different service")
)
