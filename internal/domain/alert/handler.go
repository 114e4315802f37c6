package alert

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := access.RequireRole(access.RolePatient)
	api.POST("/alerts", h.Raise, patient)
	api.POST("/alerts/cancel", h.CancelActive, patient)
	api.GET("/alerts/unresolved", h.ListUnresolved)
	api.POST("/alerts/:id/resolve", h.Resolve)
}

func (h *Handler) Raise(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	var req RaiseRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Raise(c.Request().Context(), v, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Resolve(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid alert id")
	}
	a, err := h.svc.Resolve(c.Request().Context(), v, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelActive(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	list, err := h.svc.CancelActive(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListUnresolved(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ListUnresolvedVisibleTo(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
