package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

// errorCode maps a sentinel error to its HTTP status and wire code.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound, "unknown_provider"
	case errors.Is(err, domain.ErrProviderDisabled):
		return http.StatusForbidden, "provider_disabled"
	case errors.Is(err, domain.ErrStateMismatch):
		return http.StatusBadRequest, "state_mismatch"
	case errors.Is(err, domain.ErrProviderRejected):
		return http.StatusUnauthorized, "provider_rejected"
	case errors.Is(err, domain.ErrProviderUnreachable):
		return http.StatusBadGateway, "provider_unreachable"
	case errors.Is(err, domain.ErrProfileIncomplete):
		return http.StatusBadRequest, "profile_incomplete"
	case errors.Is(err, domain.ErrMissingEmail):
		return http.StatusBadRequest, "missing_email"
	case errors.Is(err, domain.ErrUnverifiedEmail):
		return http.StatusForbidden, "unverified_email"
	case errors.Is(err, domain.ErrRedirectNotAllowed):
		return http.StatusBadRequest, "redirect_not_allowed"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, domain.ErrServiceNotFound):
		return http.StatusNotFound, "service_not_found"
	case errors.Is(err, domain.ErrServiceDisabled):
		return http.StatusForbidden, "service_disabled"
	case errors.Is(err, domain.ErrScopeNotAllowed):
		return http.StatusForbidden, "scope_not_allowed"
	case errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusNotFound, "token_not_found"
	case errors.Is(err, domain.ErrServiceMismatch):
		return http.StatusForbidden, "service_mismatch"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondError(c *gin.Context, err error) {
	status, code := errorCode(err)
	c.JSON(status, gin.H{"error": code})
}
