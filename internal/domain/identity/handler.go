package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/profiles", h.CreateProfile)
	api.GET("/profiles/me", h.GetMyProfile)
	api.PATCH("/profiles/me", h.UpdateMyProfile)
	api.PUT("/profiles/me/id-proof", h.UploadIDProof)
}

func (h *Handler) CreateProfile(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.svc.CreateProfile(c.Request().Context(), auth.AccountIDFromContext(c.Request().Context()), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetMyProfile(c echo.Context) error {
	p, err := h.svc.GetProfileForAccount(c.Request().Context(), auth.AccountIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateMyProfile(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), v.AccountID, v.ProfileID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// UploadIDProof accepts a multipart form with a single "file" part.
func (h *Handler) UploadIDProof(c echo.Context) error {
	v, err := access.ViewerFrom(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation("multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Validation("reading upload: %v", err)
	}
	defer f.Close()

	p, err := h.svc.UploadIDProof(c.Request().Context(), v.AccountID, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
