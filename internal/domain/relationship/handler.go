package relationship

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
	links := api.Group("/links", access.RequireRole(access.RolePatient, access.RoleCaregiver))
	links.POST("", h.CreateLink)
	links.GET("", h.ListLinks)
	links.PUT("/:id/approval", h.SetApproval)

	api.GET("/assignments", h.ListAssignments, access.RequireRole(access.RoleMedicalTeam))
}

func (h *Handler) CreateLink(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	l, err := h.svc.CreateLink(c.Request().Context(), v, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListLinks(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	links, err := h.svc.ListLinks(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, links)
}

func (h *Handler) SetApproval(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid link id")
	}
	var req ApprovalRequest
	if err := c.Bind(&req); err != nil || req.Approved == nil {
		return apperr.Validation("approved is required")
	}
	l, err := h.svc.SetApproval(c.Request().Context(), v, id, *req.Approved)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ListAssignments(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ListAssignmentsForMedicalTeam(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
