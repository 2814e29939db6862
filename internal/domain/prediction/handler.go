package prediction

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/policy"
	"github.com/clinicore/clinicore/pkg/pagination"
)

// Handler exposes the prediction endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers prediction endpoints on an authenticated group.
//
//	POST /predictions
//	GET  /predictions/unreviewed
//	GET  /predictions/:id
//	PUT  /predictions/:id/review
//	GET  /clients/:id/predictions
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/predictions", h.Create, auth.RequireRole(policy.RoleDoctor))
	g.GET("/predictions/unreviewed", h.ListUnreviewed, auth.RequireRole(policy.RoleDoctor))
	g.GET("/predictions/:id", h.Get)
	g.PUT("/predictions/:id/review", h.Review, auth.RequireRole(policy.RoleDoctor))
	g.GET("/clients/:id/predictions", h.ListByClient)
}

func respondErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrAlreadyReviewed):
		return httpx.Fail(c, http.StatusConflict, ErrAlreadyReviewed.Error())
	case errors.Is(err, ErrNotDoctor):
		return httpx.Fail(c, http.StatusForbidden, ErrNotDoctor.Error())
	default:
		return httpx.Error(c, err, ErrNotFound)
	}
}

type createRequest struct {
	ClientID uuid.UUID      `json:"client_id"`
	Model    string         `json:"model"`
	Input    map[string]any `json:"input"`
	Output   map[string]any `json:"output"`
}

func (h *Handler) Create(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.ClientID == uuid.Nil || req.Model == "" {
		return httpx.Fail(c, http.StatusBadRequest, "client_id and model are required")
	}

	pred := &Prediction{
		ClientID: req.ClientID,
		Model:    req.Model,
		Input:    req.Input,
		Output:   req.Output,
	}
	if err := h.svc.Create(c.Request().Context(), p, pred); err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusCreated, "prediction stored", pred)
}

func (h *Handler) Get(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid prediction id")
	}
	pred, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pred)
}

type reviewRequest struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) Review(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid prediction id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Feedback == "" {
		return httpx.Fail(c, http.StatusBadRequest, "feedback is required")
	}

	pred, err := h.svc.Review(c.Request().Context(), p, id, req.Feedback)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "prediction reviewed", pred)
}

func (h *Handler) ListByClient(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid client id")
	}
	pg := pagination.FromContext(c)
	preds, total, err := h.svc.ListByClient(c.Request().Context(), p, clientID, pg.Limit, pg.Offset)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(preds, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListUnreviewed(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)
	preds, total, err := h.svc.ListUnreviewed(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(preds, total, pg.Limit, pg.Offset))
}
