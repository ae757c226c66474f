package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookshelf-auth/internal/handler"
	"github.com/iliyamo/bookshelf-auth/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health(checks))
}

// RegisterAuth registers the /auth routes. Registration, login and the
// password reset pair are public; session accepts an optional bearer
// token; everything else requires a valid one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens middleware.TokenVerifier) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.GET("/session", a.Session, middleware.OptionalBearer())

	jwt := middleware.JWTAuth(tokens)
	g.POST("/logout", a.Logout, jwt)
	g.GET("/me", a.Me, jwt)
	g.POST("/refresh", a.Refresh, jwt)
	g.POST("/update-password", a.UpdatePassword, jwt)
	g.POST("/update/:uuid", a.UpdateProfile, jwt)
	g.GET("/permission", a.Permission, jwt)
}

// RegisterBooks registers the public catalog, behind the response cache
// when one is given.
func RegisterBooks(e *echo.Echo, b *handler.BookHandler, mw ...echo.MiddlewareFunc) {
	e.GET("/books", b.List, mw...)
}
