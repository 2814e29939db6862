package messaging

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/pkg/pagination"
)

// Handler exposes the messaging endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers messaging endpoints on an authenticated group.
//
//	POST /messages
//	GET  /messages/inbox
//	GET  /messages/with/:username
//	GET  /messages/:id
//	PUT  /messages/:id/read
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/messages", h.Send)
	g.GET("/messages/inbox", h.Inbox)
	g.GET("/messages/with/:username", h.Conversation)
	g.GET("/messages/:id", h.Get)
	g.PUT("/messages/:id/read", h.MarkRead)
}

type sendRequest struct {
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
}

func (h *Handler) Send(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Receiver == "" || req.Content == "" {
		return httpx.Fail(c, http.StatusBadRequest, "receiver and content are required")
	}

	m, err := h.svc.Send(c.Request().Context(), p, req.Receiver, req.Content)
	if err != nil {
		if errors.Is(err, ErrUnknownReceiver) {
			return httpx.Fail(c, http.StatusNotFound, ErrUnknownReceiver.Error())
		}
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusCreated, "message sent", m)
}

func (h *Handler) Get(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid message id")
	}
	m, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "", m)
}

func (h *Handler) Conversation(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	other := c.Param("username")
	pg := pagination.FromContext(c)
	msgs, total, err := h.svc.Conversation(c.Request().Context(), p, other, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(msgs, total, pg.Limit, pg.Offset))
}

func (h *Handler) Inbox(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)
	msgs, total, err := h.svc.Inbox(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(msgs, total, pg.Limit, pg.Offset))
}

func (h *Handler) MarkRead(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid message id")
	}
	m, err := h.svc.MarkRead(c.Request().Context(), p, id)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "message read", m)
}
