package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth and OptionalBearer.
const (
	ctxUserID = "user_id"
	ctxToken  = "token"
)

// UserID returns the authenticated user id, or 0 outside JWTAuth.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(ctxUserID).(uint64)
	return id
}

// RawToken returns the bearer token of the request as seen by JWTAuth or
// OptionalBearer.
func RawToken(c echo.Context) string {
	raw, _ := c.Get(ctxToken).(string)
	return raw
}

// identity names the caller for cache keys and logs: the user id when
// authenticated, otherwise "guest".
func identity(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}

func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(auth[len(prefix):])
	return raw, raw != ""
}
