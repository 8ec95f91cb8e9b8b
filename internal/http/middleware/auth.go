package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/providerpath/providerpath-sso/internal/session"
)

// ContextUserKey is where the session middleware stores the user id.
const ContextUserKey = "userID"

// ContextSessionKey is where the session middleware stores the session.
const ContextSessionKey = "session"

// AuthMiddleware gates endpoints behind a live session cookie.
type AuthMiddleware struct {
	sessions *session.Bridge
}

func NewAuthMiddleware(sessions *session.Bridge) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

func (m *AuthMiddleware) RequireSession(c *gin.Context) {
	sessionID, err := c.Cookie(session.CookieName)
	if err != nil || sessionID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	sess, err := m.sessions.Current(c.Request.Context(), sessionID)
	if err != nil {
		session.ClearCookie(c.Writer)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	c.Set(ContextUserKey, sess.UserID)
	c.Set(ContextSessionKey, sess)
	c.Next()
}
