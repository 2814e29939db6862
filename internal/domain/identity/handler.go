package identity

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

// Handler exposes authentication and account-management endpoints.
type Handler struct {
	svc    *Service
	issuer *auth.Issuer
}

func NewHandler(svc *Service, issuer *auth.Issuer) *Handler {
	return &Handler{svc: svc, issuer: issuer}
}

// RegisterPublic registers the unauthenticated login endpoint.
//
//	POST /auth/login
func (h *Handler) RegisterPublic(g *echo.Group) {
	g.POST("/auth/login", h.Login)
}

// RegisterRoutes registers account management on an authenticated group.
// Everything except the roster listing is admin-only.
//
//	POST   /doctors            PUT    /doctors/:id       DELETE /doctors/:id
//	GET    /doctors            GET    /doctors/:id
//	POST   /clients            PUT    /clients/:id       DELETE /clients/:id
//	GET    /clients            GET    /clients/:id
//	PUT    /clients/:id/doctor
//	GET    /doctors/:id/clients
func (h *Handler) RegisterRoutes(g *echo.Group) {
	admin := auth.RequireRole(policy.RoleAdmin)

	g.POST("/doctors", h.CreateDoctor, admin)
	g.GET("/doctors", h.ListDoctors, admin)
	g.GET("/doctors/:id", h.GetDoctor, admin)
	g.PUT("/doctors/:id", h.UpdateDoctor, admin)
	g.DELETE("/doctors/:id", h.DeleteDoctor, admin)

	g.POST("/clients", h.CreateClient, admin)
	g.GET("/clients", h.ListClients, admin)
	g.GET("/clients/:id", h.GetClient, admin)
	g.PUT("/clients/:id", h.UpdateClient, admin)
	g.DELETE("/clients/:id", h.DeleteClient, admin)
	g.PUT("/clients/:id/doctor", h.AssignDoctor, admin)

	g.GET("/doctors/:id/clients", h.Roster, auth.RequireRole(policy.RoleDoctor))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	Principal policy.Principal `json:"principal"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return httpx.Fail(c, http.StatusBadRequest, "username and password are required")
	}

	p, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return httpx.Fail(c, http.StatusUnauthorized, "invalid username or password")
		}
		return httpx.Error(c, err)
	}

	token, err := h.issuer.Issue(p)
	if err != nil {
		return httpx.Error(c, err)
	}
	return httpx.OK(c, http.StatusOK, "login successful", loginResponse{Token: token, Principal: p})
}

type doctorRequest struct {
	Username       string  `json:"username"`
	Password       string  `json:"password"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Email          *string `json:"email"`
	Specialization *string `json:"specialization"`
	LicenseNumber  *string `json:"license_number"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req doctorRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" {
		return httpx.Fail(c, http.StatusBadRequest, "username is required")
	}

	d := &Doctor{
		Username:       req.Username,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), d, req.Password); err != nil {
		return httpx.Error(c, err)
	}
	return httpx.OK(c, http.StatusCreated, "doctor created", d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid doctor id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "", d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid doctor id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}

	var req doctorRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.FirstName != nil {
		d.FirstName = req.FirstName
	}
	if req.LastName != nil {
		d.LastName = req.LastName
	}
	if req.Email != nil {
		d.Email = req.Email
	}
	if req.Specialization != nil {
		d.Specialization = req.Specialization
	}
	if req.LicenseNumber != nil {
		d.LicenseNumber = req.LicenseNumber
	}
	if err := h.svc.UpdateDoctor(c.Request().Context(), d); err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "doctor updated", d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid doctor id")
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "doctor deleted", nil)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	p := pagination.FromContext(c)
	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(doctors, total, p.Limit, p.Offset))
}

type clientRequest struct {
	Username         string     `json:"username"`
	Password         string     `json:"password"`
	FirstName        *string    `json:"first_name"`
	LastName         *string    `json:"last_name"`
	Email            *string    `json:"email"`
	DateOfBirth      *time.Time `json:"date_of_birth"`
	AssignedDoctorID *uuid.UUID `json:"assigned_doctor_id"`
}

func (h *Handler) CreateClient(c echo.Context) error {
	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" {
		return httpx.Fail(c, http.StatusBadRequest, "username is required")
	}

	client := &Client{
		Username:         req.Username,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		DateOfBirth:      req.DateOfBirth,
		AssignedDoctorID: req.AssignedDoctorID,
	}
	if err := h.svc.CreateClient(c.Request().Context(), client, req.Password); err != nil {
		return httpx.Error(c, err)
	}
	return httpx.OK(c, http.StatusCreated, "client created", client)
}

func (h *Handler) GetClient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid client id")
	}
	client, err := h.svc.GetClient(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "", client)
}

func (h *Handler) UpdateClient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid client id")
	}
	client, err := h.svc.GetClient(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}

	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.FirstName != nil {
		client.FirstName = req.FirstName
	}
	if req.LastName != nil {
		client.LastName = req.LastName
	}
	if req.Email != nil {
		client.Email = req.Email
	}
	if req.DateOfBirth != nil {
		client.DateOfBirth = req.DateOfBirth
	}
	if err := h.svc.UpdateClient(c.Request().Context(), client); err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "client updated", client)
}

func (h *Handler) DeleteClient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid client id")
	}
	if err := h.svc.DeleteClient(c.Request().Context(), id); err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "client deleted", nil)
}

func (h *Handler) ListClients(c echo.Context) error {
	p := pagination.FromContext(c)
	clients, total, err := h.svc.ListClients(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(clients, total, p.Limit, p.Offset))
}

type assignRequest struct {
	DoctorID *uuid.UUID `json:"doctor_id"`
}

// AssignDoctor handles PUT /clients/:id/doctor. A null doctor_id unassigns.
func (h *Handler) AssignDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid client id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	client, err := h.svc.AssignDoctor(c.Request().Context(), id, req.DoctorID)
	if err != nil {
		return httpx.Error(c, err, ErrNotFound)
	}
	return httpx.OK(c, http.StatusOK, "assignment updated", client)
}

// Roster handles GET /doctors/:id/clients. Doctors may only list their own
// roster; admins may list any.
func (h *Handler) Roster(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid doctor id")
	}
	principal, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	if principal.Role == policy.RoleDoctor && principal.ID != id {
		return httpx.Fail(c, http.StatusForbidden, "access denied", "not your client roster")
	}

	p := pagination.FromContext(c)
	clients, total, err := h.svc.Roster(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	return httpx.OK(c, http.StatusOK, "", pagination.NewResponse(clients, total, p.Limit, p.Offset))
}
