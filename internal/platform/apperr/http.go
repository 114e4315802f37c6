package apperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsForbidden(err):
		return http.StatusForbidden
	case IsValidation(err):
		return http.StatusUnprocessableEntity
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON body written for every failed request.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPErrorHandler replaces echo's default handler so that classified errors
// returned by services reach the client with their status and code intact.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		rid, _ := c.Get("request_id").(string)

		status := HTTPStatus(err)
		body := ErrorBody{Code: Code(err), Message: err.Error(), RequestID: rid}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("request_id", rid).Int("status", status).Msg("request failed")
			if status == http.StatusInternalServerError {
				body.Message = "internal server error"
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
