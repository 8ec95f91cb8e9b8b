package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/http/middleware"
	"github.com/providerpath/providerpath-sso/internal/registry"
	"github.com/providerpath/providerpath-sso/internal/repository"
	"github.com/providerpath/providerpath-sso/internal/token"
)

// TokenHandler serves token issuance, revocation and the service catalog.
type TokenHandler struct {
	tokens   *token.Service
	users    repository.UserRepository
	registry *registry.Registry
	logger   *zap.Logger
}

func NewTokenHandler(tokens *token.Service, users repository.UserRepository, reg *registry.Registry, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		tokens:   tokens,
		users:    users,
		registry: reg,
		logger:   logger,
	}
}

type issueRequest struct {
	ServiceID string   `json:"service_id" binding:"required"`
	Scopes    []string `json:"scopes" binding:"required"`
}

// Issue handles POST /tokens/issue behind the session middleware.
func (h *TokenHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), c.GetString(middleware.ContextUserKey))
	if err != nil {
		respondError(c, err)
		return
	}

	issued, err := h.tokens.Issue(c.Request.Context(), req.ServiceID, user, req.Scopes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token_id":   issued.TokenID,
		"token":      issued.Signed,
		"service_id": issued.ServiceID,
		"scopes":     issued.Scopes,
		"issued_at":  issued.IssuedAt,
		"expires_at": issued.ExpiresAt,
	})
}

type revokeRequest struct {
	TokenID   string `json:"token_id" binding:"required"`
	ServiceID string `json:"service_id" binding:"required"`
}

// Revoke handles POST /tokens/revoke.
func (h *TokenHandler) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), req.TokenID, req.ServiceID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "token revoked",
	})
}

// List handles GET /tokens behind the session middleware.
func (h *TokenHandler) List(c *gin.Context) {
	tokens, err := h.tokens.ListBySubject(c.Request.Context(), c.GetString(middleware.ContextUserKey))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, gin.H{
			"token_id":   t.TokenID,
			"service_id": t.ServiceID,
			"scopes":     t.Scopes,
			"issued_at":  t.IssuedAt,
			"expires_at": t.ExpiresAt,
			"revoked":    t.Revoked,
			"active":     h.tokens.Active(t),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out, "count": len(out)})
}

// Services handles GET /services. Only enabled services are advertised.
func (h *TokenHandler) Services(c *gin.Context) {
	services := h.registry.Enabled()

	out := make([]gin.H, 0, len(services))
	for _, s := range services {
		out = append(out, gin.H{
			"id":             s.ID,
			"name":           s.Name,
			"domain":         s.Domain,
			"allowed_scopes": s.AllowedScopes,
		})
	}
	c.JSON(http.StatusOK, gin.H{"services": out, "count": len(out)})
}
