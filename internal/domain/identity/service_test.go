package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/policy"
)

type memAdminRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Admin
}

func newMemAdminRepo() *memAdminRepo {
	return &memAdminRepo{rows: make(map[uuid.UUID]*Admin)}
}

func (r *memAdminRepo) Create(_ context.Context, a *Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.rows[a.ID] = a
	return nil
}

func (r *memAdminRepo) GetByID(_ context.Context, id uuid.UUID) (*Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (r *memAdminRepo) GetByUsername(_ context.Context, username string) (*Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

type memDoctorRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Doctor
}

func newMemDoctorRepo() *memDoctorRepo {
	return &memDoctorRepo{rows: make(map[uuid.UUID]*Doctor)}
}

func (r *memDoctorRepo) Create(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.rows[d.ID] = d
	return nil
}

func (r *memDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (r *memDoctorRepo) GetByUsername(_ context.Context, username string) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.rows {
		if d.Username == username {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memDoctorRepo) Update(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[d.ID]; !ok {
		return ErrNotFound
	}
	r.rows[d.ID] = d
	return nil
}

func (r *memDoctorRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memDoctorRepo) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*Doctor, 0, len(r.rows))
	for _, d := range r.rows {
		all = append(all, d)
	}
	return page(all, limit, offset), len(all), nil
}

type memClientRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Client
}

func newMemClientRepo() *memClientRepo {
	return &memClientRepo{rows: make(map[uuid.UUID]*Client)}
}

func (r *memClientRepo) Create(_ context.Context, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.rows[c.ID] = c
	return nil
}

func (r *memClientRepo) GetByID(_ context.Context, id uuid.UUID) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (r *memClientRepo) GetByUsername(_ context.Context, username string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.Username == username {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memClientRepo) Update(_ context.Context, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID]; !ok {
		return ErrNotFound
	}
	r.rows[c.ID] = c
	return nil
}

func (r *memClientRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memClientRepo) List(_ context.Context, limit, offset int) ([]*Client, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*Client, 0, len(r.rows))
	for _, c := range r.rows {
		all = append(all, c)
	}
	return page(all, limit, offset), len(all), nil
}

func (r *memClientRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Client, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Client
	for _, c := range r.rows {
		if c.AssignedDoctorID != nil && *c.AssignedDoctorID == doctorID {
			matched = append(matched, c)
		}
	}
	return page(matched, limit, offset), len(matched), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newMemAdminRepo(), newMemDoctorRepo(), newMemClientRepo())
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.CreateAdmin(ctx, &Admin{Username: "root"}, "sup3rsecret"))
	require.NoError(t, svc.CreateDoctor(ctx, &Doctor{Username: "drhouse"}, "vicodin123"))
	require.NoError(t, svc.CreateClient(ctx, &Client{Username: "pat"}, "patientpw1"))

	p, err := svc.Authenticate(ctx, "drhouse", "vicodin123")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleDoctor, p.Role)
	assert.Equal(t, "drhouse", p.Username)

	p, err = svc.Authenticate(ctx, "root", "sup3rsecret")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleAdmin, p.Role)

	p, err = svc.Authenticate(ctx, "pat", "patientpw1")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleClient, p.Role)

	_, err = svc.Authenticate(ctx, "drhouse", "wrongpass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "whatever12")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateRejectsShortPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.CreateDoctor(ctx, &Doctor{Username: "drshort"}, "short")
	assert.Error(t, err)
}

func TestCreateClientValidatesAssignedDoctor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	ghost := uuid.New()
	err := svc.CreateClient(ctx, &Client{Username: "pat", AssignedDoctorID: &ghost}, "patientpw1")
	assert.ErrorContains(t, err, "assigned doctor not found")
}

func TestAssignDoctor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	doc := &Doctor{Username: "drgrey"}
	require.NoError(t, svc.CreateDoctor(ctx, doc, "anatomy1234"))
	client := &Client{Username: "pat"}
	require.NoError(t, svc.CreateClient(ctx, client, "patientpw1"))

	updated, err := svc.AssignDoctor(ctx, client.ID, &doc.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedDoctorID)
	assert.Equal(t, doc.ID, *updated.AssignedDoctorID)

	assigned, err := svc.IsAssigned(ctx, doc.ID, client.ID)
	require.NoError(t, err)
	assert.True(t, assigned)

	updated, err = svc.AssignDoctor(ctx, client.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedDoctorID)

	assigned, err = svc.IsAssigned(ctx, doc.ID, client.ID)
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestAssignDoctorUnknownDoctor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client := &Client{Username: "pat"}
	require.NoError(t, svc.CreateClient(ctx, client, "patientpw1"))

	ghost := uuid.New()
	_, err := svc.AssignDoctor(ctx, client.ID, &ghost)
	assert.ErrorContains(t, err, "doctor not found")
}

func TestDirectoryExistence(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	doc := &Doctor{Username: "drgrey"}
	require.NoError(t, svc.CreateDoctor(ctx, doc, "anatomy1234"))

	ok, err := svc.DoctorExists(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DoctorExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ClientExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.DeleteDoctor(ctx, doc.ID))
	ok, err = svc.DoctorExists(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	doc := &Doctor{Username: "drgrey"}
	require.NoError(t, svc.CreateDoctor(ctx, doc, "anatomy1234"))
	for _, name := range []string{"pat1", "pat2"} {
		c := &Client{Username: name, AssignedDoctorID: &doc.ID}
		require.NoError(t, svc.CreateClient(ctx, c, "patientpw1"))
	}
	c := &Client{Username: "other"}
	require.NoError(t, svc.CreateClient(ctx, c, "patientpw1"))

	roster, total, err := svc.Roster(ctx, doc.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, roster, 2)
}
