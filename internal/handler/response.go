package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bookshelf-auth/internal/apperr"
)

// successBody is the envelope of every 2xx response.
type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// errorBody is the envelope of every failed response.
type errorBody struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Errors  apperr.Fields `json:"errors,omitempty"`
}

func respond(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, successBody{Success: true, Message: msg, Data: data})
}

// bind decodes the request body into dst. A malformed body is reported
// like any other validation failure.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation(apperr.Fields{"body": {"The request body is invalid."}})
	}
	return nil
}

// ErrorHandler renders errors returned by handlers and middleware in the
// failure envelope. Unexpected errors are logged; their cause is only
// exposed outside production.
func ErrorHandler(log logrus.FieldLogger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := errorResponse(err, production)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
			}).Error("request failed")
		}
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.RetryAfter > 0 {
			secs := int(math.Ceil(ae.RetryAfter.Seconds()))
			c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(secs))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.WithError(err).Warn("write error response")
		}
	}
}

func errorResponse(err error, production bool) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorBody{Message: fmt.Sprint(he.Message)}
	}
	ae := apperr.From(err)
	msg := ae.Message
	if ae.Kind == apperr.KindUnexpected && !production && ae.Err != nil {
		msg += ": " + ae.Err.Error()
	}
	return ae.Kind.Status(), errorBody{Message: msg, Errors: ae.Fields}
}
