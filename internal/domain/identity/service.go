package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinicore/internal/policy"
)

// ErrInvalidCredentials is returned when username/password verification
// fails. The same error covers unknown usernames and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Service owns user accounts and doctor-client assignments, and implements
// policy.Directory for the access engine.
type Service struct {
	admins  AdminRepository
	doctors DoctorRepository
	clients ClientRepository
}

func NewService(admins AdminRepository, doctors DoctorRepository, clients ClientRepository) *Service {
	return &Service{admins: admins, doctors: doctors, clients: clients}
}

// -- Authentication --

// Authenticate verifies a username/password pair across the three user
// populations and returns the matching principal. Admin wins on username
// collision, then doctor, then client, mirroring role precedence.
func (s *Service) Authenticate(ctx context.Context, username, password string) (policy.Principal, error) {
	if a, err := s.admins.GetByUsername(ctx, username); err == nil {
		return verify(a.Principal(), a.PasswordHash, password)
	} else if !errors.Is(err, ErrNotFound) {
		return policy.Principal{}, err
	}

	if d, err := s.doctors.GetByUsername(ctx, username); err == nil {
		return verify(d.Principal(), d.PasswordHash, password)
	} else if !errors.Is(err, ErrNotFound) {
		return policy.Principal{}, err
	}

	if c, err := s.clients.GetByUsername(ctx, username); err == nil {
		return verify(c.Principal(), c.PasswordHash, password)
	} else if !errors.Is(err, ErrNotFound) {
		return policy.Principal{}, err
	}

	return policy.Principal{}, ErrInvalidCredentials
}

func verify(p policy.Principal, hash, password string) (policy.Principal, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return policy.Principal{}, ErrInvalidCredentials
	}
	return p, nil
}

// HashPassword produces the bcrypt hash stored on user rows.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ResolveUsername reports the role of an existing username. Used by the
// messaging service to address receivers.
func (s *Service) ResolveUsername(ctx context.Context, username string) (policy.Role, bool, error) {
	if _, err := s.admins.GetByUsername(ctx, username); err == nil {
		return policy.RoleAdmin, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", false, err
	}
	if _, err := s.doctors.GetByUsername(ctx, username); err == nil {
		return policy.RoleDoctor, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", false, err
	}
	if _, err := s.clients.GetByUsername(ctx, username); err == nil {
		return policy.RoleClient, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", false, err
	}
	return "", false, nil
}

// -- Account management --

func (s *Service) CreateAdmin(ctx context.Context, a *Admin, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return s.admins.Create(ctx, a)
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	d.PasswordHash = hash
	return s.doctors.Create(ctx, d)
}

func (s *Service) CreateClient(ctx context.Context, c *Client, password string) error {
	if c.AssignedDoctorID != nil {
		if _, err := s.doctors.GetByID(ctx, *c.AssignedDoctorID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("assigned doctor not found")
			}
			return err
		}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	return s.clients.Create(ctx, c)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.clients.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	return s.doctors.Update(ctx, d)
}

func (s *Service) UpdateClient(ctx context.Context, c *Client) error {
	return s.clients.Update(ctx, c)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) DeleteClient(ctx context.Context, id uuid.UUID) error {
	return s.clients.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) ListClients(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	return s.clients.List(ctx, limit, offset)
}

// -- Assignment --

// AssignDoctor sets or clears a client's assigned doctor. Passing nil
// unassigns.
func (s *Service) AssignDoctor(ctx context.Context, clientID uuid.UUID, doctorID *uuid.UUID) (*Client, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if doctorID != nil {
		if _, err := s.doctors.GetByID(ctx, *doctorID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("doctor not found")
			}
			return nil, err
		}
	}
	client.AssignedDoctorID = doctorID
	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// Roster lists the clients currently assigned to a doctor.
func (s *Service) Roster(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Client, int, error) {
	return s.clients.ListByDoctor(ctx, doctorID, limit, offset)
}

// -- policy.Directory --

func (s *Service) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.doctors.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ClientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.clients.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) IsAssigned(ctx context.Context, doctorID, clientID uuid.UUID) (bool, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return client.AssignedDoctorID != nil && *client.AssignedDoctorID == doctorID, nil
}
