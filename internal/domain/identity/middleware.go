package identity

import (
	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/auth"
)

// ResolveViewer loads the profile for the authenticated account and stores
// it as the request's access.Viewer. Accounts without a profile pass through
// so they can reach onboarding; handlers that need a viewer reject them.
func ResolveViewer(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID := auth.AccountIDFromContext(c.Request().Context())
			if accountID == "" {
				return next(c)
			}
			p, err := svc.GetProfileForAccount(c.Request().Context(), accountID)
			switch {
			case err == nil:
				access.SetViewer(c, p.Viewer())
			case apperr.IsNotFound(err):
			default:
				return err
			}
			return next(c)
		}
	}
}
