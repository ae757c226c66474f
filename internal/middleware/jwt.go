package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookshelf-auth/internal/apperr"
)

// TokenVerifier is implemented by token.Service.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (uint64, error)
}

var errUnauthenticated = apperr.New(apperr.KindUnauthorized, "Unauthenticated.")

// JWTAuth rejects requests without a valid, unrevoked bearer token. On
// success the user id and the raw token are stored in the context for
// UserID and RawToken.
func JWTAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return errUnauthenticated
			}
			uid, err := v.Verify(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			c.Set(ctxUserID, uid)
			c.Set(ctxToken, raw)
			return next(c)
		}
	}
}

// OptionalBearer records the bearer token when one is sent but never
// rejects the request; verification is left to the handler.
func OptionalBearer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearerToken(c); ok {
				c.Set(ctxToken, raw)
			}
			return next(c)
		}
	}
}
