package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// RequestTimeout sets a context deadline on each request. When the deadline
// passes before the handler returns, the client gets a 504 and the handler's
// context is cancelled so in-flight queries abort.
//
// The handler writes into a buffer that reaches the client only if it
// finishes in time. The middleware never returns before the handler does, so
// the echo context is not handed back to the pool while still in use.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))
			rid, _ := c.Get("request_id").(string)

			res := c.Response()
			orig := res.Writer
			buf := newBufferedWriter()
			res.Writer = buf

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				res.Writer = orig
				buf.flushTo(orig)
				return err
			case <-ctx.Done():
				var n int
				if ctx.Err() == context.DeadlineExceeded {
					n = writeGatewayTimeout(orig, rid)
				}
				<-done
				res.Writer = orig
				if n == 0 {
					return ctx.Err()
				}
				res.Status = http.StatusGatewayTimeout
				res.Size = int64(n)
				res.Committed = true
				return nil
			}
		}
	}
}

func writeGatewayTimeout(w http.ResponseWriter, rid string) int {
	body, _ := json.Marshal(apperr.ErrorBody{
		Code:      "timeout",
		Message:   "request processing exceeded the allowed time limit",
		RequestID: rid,
	})
	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	w.WriteHeader(http.StatusGatewayTimeout)
	n, _ := w.Write(body)
	if n == 0 {
		n = len(body)
	}
	return n
}

// bufferedWriter holds a handler's response until it is known to be wanted.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *bufferedWriter) flushTo(dst http.ResponseWriter) {
	h := dst.Header()
	for k, v := range w.header {
		h[k] = v
	}
	if w.status == 0 {
		return
	}
	dst.WriteHeader(w.status)
	_, _ = dst.Write(w.body.Bytes())
}
