package note

import (
	"net/http"

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
	api.POST("/patients/:patient_id/notes", h.AddNote, access.RequireRole(access.RoleCaregiver))
	api.GET("/patients/:patient_id/notes", h.ListNotes)
	api.GET("/notes/recent", h.RecentNotes, access.RequireRole(access.RoleMedicalTeam, access.RoleCaregiver))
}

func (h *Handler) AddNote(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	patientID, err := access.PatientIDParam(c)
	if err != nil {
		return err
	}
	var req AddRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	n, err := h.svc.AddNote(c.Request().Context(), v, patientID, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	patientID, err := access.PatientIDParam(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListNotesForPatient(c.Request().Context(), v, patientID, pagination.FromContext(c, pagination.DefaultLimit))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) RecentNotes(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c, pagination.DefaultLimit)
	list, err := h.svc.RecentNotesVisibleTo(c.Request().Context(), v, p.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
