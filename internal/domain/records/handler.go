package records

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/policy"
	"github.com/clinicore/clinicore/pkg/pagination"
)

// Handler exposes the clinical record endpoints. The :kind route parameter
// selects one of the nine record kinds.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers record endpoints on an authenticated group.
//
//	POST   /records/:kind
//	GET    /records/:kind/:id
//	PUT    /records/:kind/:id
//	DELETE /records/:kind/:id
//	GET    /clients/:id/records/:kind
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/records/:kind", h.Create)
	g.GET("/records/:kind/:id", h.Get)
	g.PUT("/records/:kind/:id", h.Update)
	g.DELETE("/records/:kind/:id", h.Delete)
	g.GET("/clients/:id/records/:kind", h.ListByClient)
}

func kindParam(c echo.Context) (policy.ResourceKind, error) {
	kind, err := policy.ParseKind(c.Param("kind"))
	if err != nil || !IsRecordKind(kind) {
		return "", ErrUnknownKind
	}
	return kind, nil
}

func respondErr(c echo.Context, err error) error {
	if errors.Is(err, ErrUnknownKind) {
		return httpx.Fail(c, http.StatusBadRequest, ErrUnknownKind.Error())
	}
	return httpx.Error(c, err, ErrNotFound)
}

type createRequest struct {
	ClientID   uuid.UUID      `json:"client_id"`
	Title      string         `json:"title"`
	Notes      *string        `json:"notes"`
	Attributes map[string]any `json:"attributes"`
	RecordedAt *time.Time     `json:"recorded_at"`
}

func (h *Handler) Create(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	kind, err := kindParam(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" {
		return httpx.Fail(c, http.StatusBadRequest, "title is required")
	}
	clientID := req.ClientID
	if p.Role == policy.RoleClient {
		// Clients always file under their own chart.
		clientID = p.ID
	}
	if clientID == uuid.Nil {
		return httpx.Fail(c, http.StatusBadRequest, "client_id is required")
	}

	r := &ClinicalRecord{
		Kind:       kind,
		ClientID:   clientID,
		Title:      req.Title,
		Notes:      req.Notes,
		Attributes: req.Attributes,
	}
	if req.RecordedAt != nil {
		r.RecordedAt = *req.RecordedAt
	}
	if err := h.svc.Create(c.Request().Context(), p, r); err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusCreated, string(kind)+" created", r)
}

func (h *Handler) Get(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	kind, err := kindParam(c)
	if err != nil {
		return respondErr(c, err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid record id")
	}
	r, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return respondErr(c, err)
	}
	if r.Kind != kind {
		return httpx.Fail(c, http.StatusNotFound, ErrNotFound.Error())
	}
	return httpx.OK(c, http.StatusOK, "", r)
}

type updateRequest struct {
	Title      *string        `json:"title"`
	Notes      *string        `json:"notes"`
	Attributes map[string]any `json:"attributes"`
	RecordedAt *time.Time     `json:"recorded_at"`
}

func (h *Handler) Update(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	if _, err := kindParam(c); err != nil {
		return respondErr(c, err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid record id")
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}

	r, err := h.svc.Update(c.Request().Context(), p, id, UpdateFields{
		Title:      req.Title,
		Notes:      req.Notes,
		Attributes: req.Attributes,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "record updated", r)
}

func (h *Handler) Delete(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	if _, err := kindParam(c); err != nil {
		return respondErr(c, err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid record id")
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "record deleted", nil)
}

func (h *Handler) ListByClient(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	kind, err := kindParam(c)
	if err != nil {
		return respondErr(c, err)
	}
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid client id")
	}
	pg := pagination.FromContext(c)
	rows, total, err := h.svc.ListByClient(c.Request().Context(), p, clientID, kind, pg.Limit, pg.Offset)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(rows, total, pg.Limit, pg.Offset))
}
