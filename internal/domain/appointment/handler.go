package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/platform/lock"
	"github.com/clinicore/clinicore/pkg/pagination"
)

// Handler exposes the scheduling endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers scheduling endpoints on an authenticated group.
//
//	POST   /appointments                 GET    /appointments/:id
//	PUT    /appointments/:id             DELETE /appointments/:id
//	PUT    /appointments/:id/status
//	GET    /appointments/:id/history
//	GET    /appointments/upcoming
//	GET    /clients/:id/appointments     GET    /doctors/:id/appointments
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments", h.Create)
	g.GET("/appointments/upcoming", h.Upcoming)
	g.GET("/appointments/:id", h.Get)
	g.PUT("/appointments/:id", h.Update)
	g.DELETE("/appointments/:id", h.Delete)
	g.PUT("/appointments/:id/status", h.ChangeStatus)
	g.GET("/appointments/:id/history", h.History)
	g.GET("/clients/:id/appointments", h.ListForClient)
	g.GET("/doctors/:id/appointments", h.ListForDoctor)
}

// respondErr maps scheduling errors onto the envelope.
func respondErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrConflict):
		return httpx.Fail(c, http.StatusConflict, ErrConflict.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		return httpx.Fail(c, http.StatusConflict, "the doctor's schedule is being updated, please retry")
	case errors.Is(err, ErrInvalidTime), errors.Is(err, ErrTimeOutsideDate), errors.Is(err, ErrTerminalStatus):
		return httpx.Fail(c, http.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, ErrUnknownParticipant):
		return httpx.Fail(c, http.StatusNotFound, ErrUnknownParticipant.Error())
	default:
		return httpx.Error(c, err, ErrNotFound)
	}
}

type createRequest struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Date        time.Time `json:"date"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Location    *string   `json:"location"`
	Notes       *string   `json:"notes"`
	ClientID    uuid.UUID `json:"client_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
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
	if req.Title == "" || req.ClientID == uuid.Nil || req.DoctorID == uuid.Nil {
		return httpx.Fail(c, http.StatusBadRequest, "title, client_id and doctor_id are required")
	}

	a := &Appointment{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		Notes:       req.Notes,
		ClientID:    req.ClientID,
		DoctorID:    req.DoctorID,
	}
	if err := h.svc.Create(c.Request().Context(), p, a); err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusCreated, "appointment created", a)
}

func (h *Handler) Get(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid appointment id")
	}
	a, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", a)
}

type updateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Location    *string    `json:"location"`
	Notes       *string    `json:"notes"`
	DoctorID    *uuid.UUID `json:"doctor_id"`
	ClientID    *uuid.UUID `json:"client_id"`
	Status      *string    `json:"status"`
}

func (h *Handler) Update(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid appointment id")
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}

	var status *Status
	if req.Status != nil {
		st, ok := ParseStatus(*req.Status)
		if !ok {
			return httpx.Fail(c, http.StatusBadRequest, "unknown status: "+*req.Status)
		}
		status = &st
	}

	a, err := h.svc.Update(c.Request().Context(), p, id, UpdateFields{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		Notes:       req.Notes,
		DoctorID:    req.DoctorID,
		ClientID:    req.ClientID,
		Status:      status,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "appointment updated", a)
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid appointment id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	status, ok := ParseStatus(req.Status)
	if !ok {
		return httpx.Fail(c, http.StatusBadRequest, "unknown status: "+req.Status)
	}

	var a *Appointment
	switch status {
	case StatusCancelled:
		a, err = h.svc.Cancel(c.Request().Context(), p, id, req.Reason)
	case StatusCompleted:
		a, err = h.svc.Complete(c.Request().Context(), p, id, req.Reason)
	default:
		return httpx.Fail(c, http.StatusBadRequest, "appointments cannot return to Scheduled")
	}
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "status updated", a)
}

func (h *Handler) Delete(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid appointment id")
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "appointment deleted", nil)
}

func (h *Handler) History(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid appointment id")
	}
	rows, err := h.svc.History(c.Request().Context(), p, id)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", rows)
}

func (h *Handler) ListForClient(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid client id")
	}
	pg := pagination.FromContext(c)
	appts, total, err := h.svc.ListForClient(c.Request().Context(), p, id, pg.Limit, pg.Offset)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListForDoctor(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid doctor id")
	}
	pg := pagination.FromContext(c)
	appts, total, err := h.svc.ListForDoctor(c.Request().Context(), p, id, pg.Limit, pg.Offset)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) Upcoming(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)
	appts, total, err := h.svc.Upcoming(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return respondErr(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}
