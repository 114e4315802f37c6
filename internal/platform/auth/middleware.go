// Package auth authenticates requests and places the caller's account id on
// the request context. It never resolves profiles or roles: the account id is
// the only identity the rest of the service receives from the auth provider.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// AccountHeader carries the account id when header authentication is enabled
// in development.
const AccountHeader = "X-Account-ID"

// Claims are the token claims the service reads. Subject is the account id.
type Claims struct {
	jwt.RegisteredClaims
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation instead of JWKS.
	SigningKey []byte
	Skipper    func(echo.Context) bool
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	skipper := cfg.Skipper
	if skipper == nil {
		skipper = AuthSkipper
	}

	var keyFunc jwt.Keyfunc
	if len(cfg.SigningKey) > 0 {
		keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	} else {
		jwksURL := cfg.JWKSURL
		if jwksURL == "" && cfg.Issuer != "" {
			jwksURL = strings.TrimRight(cfg.Issuer, "/") + "/.well-known/jwks.json"
		}
		keyFunc = NewJWKSCache(jwksURL, defaultJWKSCacheTTL).KeyFunc
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}

			c.SetRequest(c.Request().WithContext(WithAccountID(c.Request().Context(), claims.Subject)))
			return next(c)
		}
	}
}

// HeaderAuthMiddleware trusts the X-Account-ID header. Development only.
func HeaderAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}
			accountID := strings.TrimSpace(c.Request().Header.Get(AccountHeader))
			if accountID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing "+AccountHeader+" header")
			}
			c.SetRequest(c.Request().WithContext(WithAccountID(c.Request().Context(), accountID)))
			return next(c)
		}
	}
}

// WithAccountID returns a context carrying the authenticated account id.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

func AccountIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey).(string)
	return id
}
