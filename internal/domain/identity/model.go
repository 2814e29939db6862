// Package identity manages the three user populations (admins, doctors,
// clients), the doctor-client assignment relation, and credential
// verification. It also backs the policy engine's Directory.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

// Admin is a superuser account.
type Admin struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    *string    `db:"first_name" json:"first_name,omitempty"`
	LastName     *string    `db:"last_name" json:"last_name,omitempty"`
	Email        *string    `db:"email" json:"email,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Doctor is a clinician account.
type Doctor struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FirstName      *string    `db:"first_name" json:"first_name,omitempty"`
	LastName       *string    `db:"last_name" json:"last_name,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Specialization *string    `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber  *string    `db:"license_number" json:"license_number,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Client is a patient account. A client is assigned to at most one doctor at
// a time; the assignment is one of the two access paths the policy engine
// recognizes for doctors.
type Client struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Username         string     `db:"username" json:"username"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	FirstName        *string    `db:"first_name" json:"first_name,omitempty"`
	LastName         *string    `db:"last_name" json:"last_name,omitempty"`
	Email            *string    `db:"email" json:"email,omitempty"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	AssignedDoctorID *uuid.UUID `db:"assigned_doctor_id" json:"assigned_doctor_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Principal returns the policy principal for an admin.
func (a *Admin) Principal() policy.Principal {
	return policy.Principal{ID: a.ID, Role: policy.RoleAdmin, Username: a.Username}
}

// Principal returns the policy principal for a doctor.
func (d *Doctor) Principal() policy.Principal {
	return policy.Principal{ID: d.ID, Role: policy.RoleDoctor, Username: d.Username}
}

// Principal returns the policy principal for a client.
func (c *Client) Principal() policy.Principal {
	return policy.Principal{ID: c.ID, Role: policy.RoleClient, Username: c.Username}
}
