package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/config"
	"github.com/providerpath/providerpath-sso/internal/http/handler"
	"github.com/providerpath/providerpath-sso/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, logger *zap.Logger, authHandler *handler.AuthHandler, tokenHandler *handler.TokenHandler, authMiddleware *middleware.AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/sso/oauth2", authHandler.SSOInitiate)
		authGroup.GET("/sso/oauth2/callback", authHandler.SSOCallback)

		authGroup.GET("/me", authMiddleware.RequireSession, authHandler.Me)
		authGroup.POST("/logout", authHandler.Logout)

		authGroup.GET("/:provider", authHandler.Initiate)
		authGroup.GET("/:provider/callback", authHandler.Callback)
	}

	tokens := r.Group("/tokens")
	{
		tokens.POST("/issue", authMiddleware.RequireSession, tokenHandler.Issue)
		tokens.POST("/revoke", tokenHandler.Revoke)
		tokens.GET("", authMiddleware.RequireSession, tokenHandler.List)
	}

	r.GET("/services", tokenHandler.Services)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
