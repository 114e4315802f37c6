package device

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
	owner := access.RequireRole(access.RolePatient)
	api.POST("/devices", h.RegisterDevice, owner)
	api.POST("/devices/:id/sync", h.SyncDevice, owner)
	api.GET("/patients/:patient_id/devices", h.ListDevices)
}

func (h *Handler) RegisterDevice(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	d, err := h.svc.RegisterDevice(c.Request().Context(), v, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDevices(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	patientID, err := access.PatientIDParam(c)
	if err != nil {
		return err
	}
	devices, err := h.svc.ListDevicesForPatient(c.Request().Context(), v, patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, devices)
}

func (h *Handler) SyncDevice(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid device id")
	}
	var r SyncReading
	if err := c.Bind(&r); err != nil {
		return apperr.Validation("invalid request body")
	}
	d, err := h.svc.SyncFromOwner(c.Request().Context(), v, id, r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
