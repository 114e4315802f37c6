package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/auth"
)

// Logger writes one line per request. Failed requests are logged with the
// status the error handler will send.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			profileID, _ := c.Get("profile_id").(string)

			status := c.Response().Status
			if err != nil {
				status = apperr.HTTPStatus(err)
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			var evt *zerolog.Event
			switch {
			case err == nil:
				evt = logger.Info()
			case status >= http.StatusInternalServerError:
				evt = logger.Error().Err(err)
			default:
				evt = logger.Warn().Err(err)
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Str("account_id", auth.AccountIDFromContext(c.Request().Context())).
				Str("profile_id", profileID).
				Msg("request")

			return err
		}
	}
}
