package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookshelf-auth/internal/middleware"
	"github.com/iliyamo/bookshelf-auth/internal/permission"
	"github.com/iliyamo/bookshelf-auth/internal/service"
	"github.com/iliyamo/bookshelf-auth/internal/token"
)

// Authenticator is implemented by service.AuthService.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, clientKey string, in service.LoginInput) (service.AuthResult, error)
	Logout(ctx context.Context, raw string) error
	Refresh(ctx context.Context, raw string) (token.Token, error)
	Me(ctx context.Context, userID uint64) (service.UserView, error)
	UpdatePassword(ctx context.Context, userID uint64, in service.UpdatePasswordInput) error
	UpdateProfile(ctx context.Context, actorID uint64, publicID string, in service.UpdateProfileInput) (service.UserView, error)
	Session(ctx context.Context, raw string) bool
	Permission(ctx context.Context, userID uint64) (permission.Set, error)
	ForgotPassword(ctx context.Context, in service.ForgotPasswordInput) error
	ResetPassword(ctx context.Context, in service.ResetPasswordInput) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth    Authenticator
	Timeout time.Duration
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{Auth: auth, Timeout: 5 * time.Second}
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Register: create user and return a token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Auth.Register(ctx, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User successfully registered", res)
}

// Login is throttled per client IP.
func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, c.RealIP(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Login successful", res)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, middleware.RawToken(c)); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User logged out successfully", nil)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	tok, err := h.Auth.Refresh(ctx, middleware.RawToken(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Token refreshed", tok)
}

func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.Auth.Me(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User profile fetched", v)
}

func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	var in service.UpdatePasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.UpdatePassword(ctx, middleware.UserID(c), in); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password updated successfully", nil)
}

// UpdateProfile: POST /auth/update/:uuid.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var in service.UpdateProfileInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.Auth.UpdateProfile(ctx, middleware.UserID(c), c.Param("uuid"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile updated successfully", v)
}

// Session never fails; it reports whether the bearer token is usable.
func (h *AuthHandler) Session(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	ok := h.Auth.Session(ctx, middleware.RawToken(c))
	return respond(c, http.StatusOK, "Session status", echo.Map{"authenticated": ok})
}

func (h *AuthHandler) Permission(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	set, err := h.Auth.Permission(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Permissions fetched", set)
}

// ForgotPassword answers the same way whether or not the email exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var in service.ForgotPasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.ForgotPassword(ctx, in); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "If the email is registered, a password reset link has been sent.", nil)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var in service.ResetPasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, in); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password has been reset", nil)
}
