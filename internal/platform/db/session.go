package db

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/auth"
)

// Session identifies who a pooled connection acts for. Row-level security
// policies read these values through current_setting('app.account_id') and
// current_setting('app.service').
type Session struct {
	AccountID string
	Service   string
}

// Service names for sessions that act without an account. ServiceDeviceSync
// writes device levels; ServiceOperator runs administrative CLI commands.
const (
	ServiceDeviceSync = "device_sync"
	ServiceOperator   = "operator"
)

// SessionConn is a tagged connection bound to a context.
type SessionConn interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// acquireFunc returns a connection already tagged for the session and the
// function that untags and returns it.
type acquireFunc func(ctx context.Context) (SessionConn, func(), error)

// binding is what WithSession stores in the context. The connection can be
// swapped by Reacquire after the original one is lost.
type binding struct {
	mu      sync.Mutex
	acquire acquireFunc
	conn    SessionConn
	release func()
}

func (b *binding) current() SessionConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *binding) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.release != nil {
		b.release()
		b.release = nil
	}
}

// WithSession acquires a connection, tags it with s, binds it to the context
// passed to fn and clears the tags before the connection returns to the pool.
func WithSession(ctx context.Context, pool *pgxpool.Pool, s Session, fn func(ctx context.Context) error) error {
	return withBinding(ctx, poolAcquirer(pool, s), fn)
}

func withBinding(ctx context.Context, acquire acquireFunc, fn func(ctx context.Context) error) error {
	conn, release, err := acquire(ctx)
	if err != nil {
		return err
	}
	b := &binding{acquire: acquire, conn: conn, release: release}
	defer b.close()
	return fn(context.WithValue(ctx, connKey, b))
}

func poolAcquirer(pool *pgxpool.Pool, s Session) acquireFunc {
	return func(ctx context.Context) (SessionConn, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, apperr.Unavailable(err, "acquire connection")
		}
		if _, err := conn.Exec(ctx,
			`SELECT set_config('app.account_id', $1, false), set_config('app.service', $2, false)`,
			s.AccountID, s.Service); err != nil {
			_ = conn.Conn().Close(ctx)
			conn.Release()
			return nil, nil, MapError(err, "set session")
		}
		return conn, func() { release(conn) }, nil
	}
}

func release(conn *pgxpool.Conn) {
	ctx := context.Background()
	if _, err := conn.Exec(ctx,
		`SELECT set_config('app.account_id', '', false), set_config('app.service', '', false)`); err != nil {
		// A connection that still carries another caller's identity must not be reused.
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}

// Reacquire replaces the session connection bound to ctx with a freshly
// acquired and tagged one. Read retries call it between attempts so a lost
// connection is not reused. It does nothing outside a session or inside a
// transaction, where the work cannot move to another connection.
func Reacquire(ctx context.Context) error {
	b, _ := ctx.Value(connKey).(*binding)
	if b == nil || TxFromContext(ctx) != nil {
		return nil
	}
	conn, rel, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	oldRelease := b.release
	b.conn, b.release = conn, rel
	b.mu.Unlock()
	if oldRelease != nil {
		oldRelease()
	}
	return nil
}

// SessionMiddleware binds a session connection to every authenticated request.
// Requests without an account pass through and use the pool directly.
func SessionMiddleware(pool *pgxpool.Pool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID := auth.AccountIDFromContext(c.Request().Context())
			if accountID == "" {
				return next(c)
			}

			return WithSession(c.Request().Context(), pool, Session{AccountID: accountID}, func(ctx context.Context) error {
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			})
		}
	}
}
