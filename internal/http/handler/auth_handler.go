package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/domain"
	"github.com/providerpath/providerpath-sso/internal/http/middleware"
	"github.com/providerpath/providerpath-sso/internal/repository"
	"github.com/providerpath/providerpath-sso/internal/service"
	"github.com/providerpath/providerpath-sso/internal/session"
)

// AuthHandler serves the login flow endpoints.
type AuthHandler struct {
	flow          *service.Flow
	sessions      *session.Bridge
	users         repository.UserRepository
	errorRedirect string
	sessionTTL    time.Duration
	logger        *zap.Logger
}

func NewAuthHandler(flow *service.Flow, sessions *session.Bridge, users repository.UserRepository, errorRedirect string, sessionTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		flow:          flow,
		sessions:      sessions,
		users:         users,
		errorRedirect: errorRedirect,
		sessionTTL:    sessionTTL,
		logger:        logger,
	}
}

// Initiate handles GET /auth/:provider.
func (h *AuthHandler) Initiate(c *gin.Context) {
	providerName := c.Param("provider")
	redirectTarget := c.Query("redirect")

	authURL, err := h.flow.Initiate(c.Request.Context(), providerName, redirectTarget)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback handles GET /auth/:provider/callback. Failures redirect to the
// configured error page so the browser never lands on a bare JSON body
// mid-login.
func (h *AuthHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")
	input := service.CallbackInput{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		ErrorCode:        c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}

	result, err := h.flow.HandleCallback(c.Request.Context(), providerName, input)
	if err != nil {
		_, code := errorCode(err)
		h.logger.Warn("login callback failed",
			zap.String("provider", providerName),
			zap.String("code", code),
			zap.Error(err),
		)
		c.Redirect(http.StatusFound, h.errorRedirect+"?error="+url.QueryEscape(code))
		return
	}

	session.SetCookie(c.Writer, result.Session.SessionID, int(h.sessionTTL.Seconds()))
	c.Redirect(http.StatusFound, result.RedirectTarget)
}

// SSOInitiate handles GET /auth/sso/oauth2?callback=<url>, the entry
// point for services using the generic URL-configured provider.
func (h *AuthHandler) SSOInitiate(c *gin.Context) {
	callback := c.Query("callback")

	authURL, err := h.flow.Initiate(c.Request.Context(), domain.ProviderOAuth2, callback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// SSOCallback handles GET /auth/sso/oauth2/callback.
func (h *AuthHandler) SSOCallback(c *gin.Context) {
	c.Params = append(c.Params, gin.Param{Key: "provider", Value: domain.ProviderOAuth2})
	h.Callback(c)
}

// Me handles GET /auth/me behind the session middleware.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserKey)

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                  user.ID,
		"email":               user.Email,
		"name":                user.Name,
		"avatar_url":          user.AvatarURL,
		"linked_providers":    user.LinkedProviders,
		"roles":               user.Roles,
		"verification_status": user.VerificationStatus,
	})
}

// Logout handles POST /auth/logout. Always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, _ := c.Cookie(session.CookieName)
	if err := h.sessions.Destroy(c.Request.Context(), sessionID); err != nil {
		h.logger.Warn("logout failed to destroy session", zap.Error(err))
	}
	session.ClearCookie(c.Writer)
	c.Status(http.StatusNoContent)
}
