package access

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

const viewerKey = "viewer"

// SetViewer stores the resolved viewer on the request.
func SetViewer(c echo.Context, v Viewer) {
	c.Set(viewerKey, v)
	c.Set("profile_id", v.ProfileID.String())
}

// ViewerFrom returns the viewer stored by SetViewer. A missing viewer means
// the account has not created its profile yet.
func ViewerFrom(c echo.Context) (Viewer, error) {
	v, ok := c.Get(viewerKey).(Viewer)
	if !ok {
		return Viewer{}, apperr.Forbidden("create a profile before using this endpoint")
	}
	return v, nil
}

// RequireRole returns middleware that allows only the listed roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v, err := ViewerFrom(c)
			if err != nil {
				return err
			}
			if !allowed[v.Role] {
				return echo.NewHTTPError(http.StatusForbidden, "role "+string(v.Role)+" may not use this endpoint")
			}
			return next(c)
		}
	}
}

// PatientIDParam parses the :patient_id path parameter.
func PatientIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid patient id")
	}
	return id, nil
}
