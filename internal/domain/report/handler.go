package report

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/domain/access"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", access.RequireRole(access.RoleMedicalTeam))
	g.GET("/patients", h.GetPatients)
	g.GET("/patients.xlsx", h.ExportPatients)
}

func (h *Handler) GetPatients(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Build(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ExportPatients(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Build(c.Request().Context(), v)
	if err != nil {
		return err
	}
	data, err := WriteXLSX(r)
	if err != nil {
		return err
	}
	filename := "patients-" + r.GeneratedAt.Format("20060102") + ".xlsx"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, xlsxMIME, data)
}
