package idempotency

import (
	"bytes"
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/auth"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotency-Replayed"
	maxKeyLength   = 255
)

// Middleware applies to POST requests carrying an Idempotency-Key header. Keys
// are scoped to the authenticated account and claimed before the handler runs,
// so a concurrent duplicate gets 409 instead of running twice. Only 2xx
// responses are stored; any other outcome releases the claim and the request
// can be retried with the same key. When the store is unreachable the request
// runs without replay protection.
func Middleware(store Store, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodPost {
				return next(c)
			}
			key := req.Header.Get(HeaderKey)
			if key == "" {
				return next(c)
			}
			if len(key) > maxKeyLength {
				return apperr.Validation("%s header exceeds %d characters", HeaderKey, maxKeyLength)
			}

			scoped := auth.AccountIDFromContext(req.Context()) + ":" + key
			path := req.URL.Path

			reserved, err := store.Reserve(req.Context(), scoped)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("idempotency store unavailable")
				return next(c)
			}
			if !reserved {
				cached, found, err := store.Get(req.Context(), scoped)
				if err != nil {
					return apperr.Unavailable(err, "reading idempotent response")
				}
				if !found || cached.Pending {
					return apperr.Conflict("a request with this %s is still in progress", HeaderKey)
				}
				if cached.Method != req.Method || cached.Path != path {
					return apperr.Validation("%s was already used for a different request", HeaderKey)
				}
				return replay(c, cached)
			}

			stored := false
			defer func() {
				if stored {
					return
				}
				if err := store.Release(context.WithoutCancel(req.Context()), scoped); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("releasing idempotency key")
				}
			}()

			origWriter := c.Response().Writer
			rec := &recorder{
				ResponseWriter: origWriter,
				body:           &bytes.Buffer{},
				headers:        make(http.Header),
				statusCode:     http.StatusOK,
			}
			c.Response().Writer = rec
			handlerErr := next(c)
			c.Response().Writer = origWriter

			if handlerErr != nil {
				return handlerErr
			}

			if rec.statusCode >= 200 && rec.statusCode < 300 {
				entry := &Entry{
					Method:     req.Method,
					Path:       path,
					StatusCode: rec.statusCode,
					Headers:    rec.headers.Clone(),
					Body:       rec.body.Bytes(),
				}
				if err := store.Set(context.WithoutCancel(req.Context()), scoped, entry); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("storing idempotent response")
				} else {
					stored = true
				}
			}

			for k, vals := range rec.headers {
				for _, v := range vals {
					origWriter.Header().Add(k, v)
				}
			}
			origWriter.WriteHeader(rec.statusCode)
			_, err = origWriter.Write(rec.body.Bytes())
			return err
		}
	}
}

func replay(c echo.Context, e *Entry) error {
	resp := c.Response()
	for k, vals := range e.Headers {
		for _, v := range vals {
			resp.Header().Add(k, v)
		}
	}
	resp.Header().Set(HeaderReplayed, "true")
	resp.WriteHeader(e.StatusCode)
	_, err := resp.Write(e.Body)
	return err
}

type recorder struct {
	http.ResponseWriter
	body       *bytes.Buffer
	headers    http.Header
	statusCode int
	wroteHead  bool
}

func (r *recorder) Header() http.Header {
	return r.headers
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHead {
		return
	}
	r.statusCode = code
	r.wroteHead = true
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHead {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}
