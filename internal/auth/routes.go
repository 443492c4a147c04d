package auth

import (
	"github.com/gin-gonic/gin"

	"crossing-closures/closure-portal/internal/middleware"
)

// RegisterRoutes registers the login view, the session endpoints and /api/me.
// Login attempts go through limiter when one is given.
func RegisterRoutes(r gin.IRouter, protected *gin.RouterGroup, handler *Handler, limiter *middleware.RateLimiter) {
	r.GET(middleware.LoginPath, handler.LoginPage)

	authGroup := r.Group("/auth")
	{
		login := []gin.HandlerFunc{handler.Login}
		if limiter != nil {
			login = append([]gin.HandlerFunc{limiter.Handler()}, login...)
		}
		authGroup.POST("/login", login...)
		authGroup.POST("/logout", handler.Logout)
		authGroup.POST("/session/restore", handler.Restore)
		authGroup.GET("/session", handler.Session)
	}

	protected.GET("/me", handler.Me)
}
