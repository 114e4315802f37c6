package dosage

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/doses", h.RecordDose, access.RequireRole(access.RolePatient))
	api.GET("/patients/:patient_id/doses", h.ListDoses)
	api.GET("/patients/:patient_id/adherence", h.GetAdherence)
	api.GET("/patients/:patient_id/summary", h.GetSummary)
}

func (h *Handler) RecordDose(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	rec, err := h.svc.RecordDose(c.Request().Context(), v, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListDoses(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	patientID, err := access.PatientIDParam(c)
	if err != nil {
		return err
	}
	var since *time.Time
	if raw := c.QueryParam("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperr.Validation("since must be an RFC 3339 timestamp")
		}
		since = &t
	}
	page, err := h.svc.ListRecentDoses(c.Request().Context(), v, patientID, pagination.FromContext(c, pagination.DefaultLimit), since)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) GetAdherence(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	patientID, err := access.PatientIDParam(c)
	if err != nil {
		return err
	}
	window := DefaultWindowDays
	if raw := c.QueryParam("window_days"); raw != "" {
		if window, err = strconv.Atoi(raw); err != nil {
			return apperr.Validation("window_days must be an integer")
		}
	}
	adh, err := h.svc.ComputeAdherence(c.Request().Context(), v, patientID, window)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adh)
}

func (h *Handler) GetSummary(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	patientID, err := access.PatientIDParam(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), v, patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}
