// Package policy implements the access-control decision layer for clinical
// records. Every read or mutation in the system is authorized here, against a
// single declarative role table, instead of per-handler role checks.
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies the class of an authenticated principal.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleDoctor Role = "Doctor"
	RoleClient Role = "Client"
)

// Action is the operation a principal wants to perform on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// ResourceKind enumerates the clinical entity categories the engine knows
// how to authorize.
type ResourceKind string

const (
	KindDiagnosis           ResourceKind = "Diagnosis"
	KindSymptom             ResourceKind = "Symptom"
	KindTreatment           ResourceKind = "Treatment"
	KindPrescription        ResourceKind = "Prescription"
	KindLabResult           ResourceKind = "LabResult"
	KindAllergy             ResourceKind = "Allergy"
	KindClinicalObservation ResourceKind = "ClinicalObservation"
	KindProgress            ResourceKind = "Progress"
	KindRecommendation      ResourceKind = "Recommendation"
	KindAppointment         ResourceKind = "Appointment"
	KindMessage             ResourceKind = "Message"
	KindMLPrediction        ResourceKind = "MLPrediction"
)

// ParseKind converts a route parameter into a ResourceKind.
func ParseKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case KindDiagnosis, KindSymptom, KindTreatment, KindPrescription,
		KindLabResult, KindAllergy, KindClinicalObservation, KindProgress,
		KindRecommendation, KindAppointment, KindMessage, KindMLPrediction:
		return ResourceKind(s), nil
	}
	return "", fmt.Errorf("unknown resource kind: %q", s)
}

// Principal is the authenticated caller for the current request. It is
// produced by the auth middleware after token verification and is immutable
// for the request's lifetime.
type Principal struct {
	ID       uuid.UUID `json:"id"`
	Role     Role      `json:"role"`
	Username string    `json:"username"`
}

// Descriptor is the ownership view of a record the engine decides on. It is
// derived from the underlying record on demand and never persisted.
type Descriptor struct {
	Kind          ResourceKind
	RecordID      uuid.UUID
	OwnerClientID uuid.UUID
	// DoctorID is the record's author or attending doctor; nil for
	// admin-authored kinds and for unreviewed predictions.
	DoctorID *uuid.UUID
	// Participants holds the sender/receiver usernames for messages, which
	// are keyed on pair membership rather than client ownership.
	Participants []string
}

// Resource is implemented by every record type that the engine can
// authorize. Describe resolves ownership before any response shaping, so a
// denial short-circuits without touching the rest of the record.
type Resource interface {
	Describe() Descriptor
}

// Decision is the result of a policy evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	// ConcealNotFound marks kinds whose ownership denials should surface as
	// not-found instead of forbidden.
	ConcealNotFound bool `json:"-"`
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// DeniedError carries a deny decision across service boundaries so handlers
// can translate it to a status code.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	return "access denied: " + e.Decision.Reason
}

// Denied wraps a deny decision as an error. Calling it with an allow decision
// is a programming error and panics.
func Denied(d Decision) error {
	if d.Allowed {
		panic("policy: Denied called with an allow decision")
	}
	return &DeniedError{Decision: d}
}

// KindPolicy is the per-kind row of the role table. Admin access is implicit
// and not represented here.
type KindPolicy struct {
	// AuthorScoped restricts doctor writes to the record's authoring doctor.
	AuthorScoped bool
	// DoctorWrite grants doctors role-wide write access for kinds that have
	// no author concept, such as appointments.
	DoctorWrite bool
	// ClientWrite allows clients to create and modify their own records.
	ClientWrite bool
	// ConcealOnDeny reports ownership denials for this kind as not-found.
	ConcealOnDeny bool
}

// DefaultTable returns the role table for the twelve resource kinds:
// admin everything, doctor author-write plus assigned-read, client self-read
// plus self-write for symptoms, allergies and messages. Allergies carry no
// author requirement, so any doctor may write them; lab results stay
// admin-authored.
func DefaultTable() map[ResourceKind]KindPolicy {
	return map[ResourceKind]KindPolicy{
		KindDiagnosis:           {AuthorScoped: true},
		KindSymptom:             {AuthorScoped: true, ClientWrite: true},
		KindTreatment:           {AuthorScoped: true},
		KindPrescription:        {AuthorScoped: true},
		KindLabResult:           {}, // admin-authored
		KindAllergy:             {DoctorWrite: true, ClientWrite: true},
		KindClinicalObservation: {AuthorScoped: true},
		KindProgress:            {AuthorScoped: true},
		KindRecommendation:      {AuthorScoped: true},
		KindAppointment:         {DoctorWrite: true},
		KindMessage:             {ClientWrite: true},
		KindMLPrediction:        {DoctorWrite: true},
	}
}

// Directory resolves principals and doctor-client assignments. It is the only
// persistence the engine consults; record lookup happens before Authorize and
// record mutation after an allow.
type Directory interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
	ClientExists(ctx context.Context, id uuid.UUID) (bool, error)
	// IsAssigned reports whether the client is currently assigned to the
	// doctor.
	IsAssigned(ctx context.Context, doctorID, clientID uuid.UUID) (bool, error)
}

// Engine evaluates access-control policy for clinical resources. Decisions
// are deterministic for a fixed directory state.
type Engine struct {
	table map[ResourceKind]KindPolicy
	dir   Directory
}

// NewEngine creates an engine with the default role table.
func NewEngine(dir Directory) *Engine {
	return NewEngineWithTable(dir, DefaultTable())
}

// NewEngineWithTable creates an engine with a custom role table.
func NewEngineWithTable(dir Directory, table map[ResourceKind]KindPolicy) *Engine {
	return &Engine{table: table, dir: dir}
}

// Authorize decides whether the principal may perform action on the resource
// described by d. A denial is a value, not an error; errors are reserved for
// directory failures.
func (e *Engine) Authorize(ctx context.Context, p Principal, action Action, d Descriptor) (Decision, error) {
	if p.Role == RoleAdmin {
		return allow("admin role"), nil
	}

	kp, ok := e.table[d.Kind]
	if !ok {
		return deny("no policy for " + string(d.Kind)), nil
	}

	switch p.Role {
	case RoleDoctor:
		exists, err := e.dir.DoctorExists(ctx, p.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("resolve doctor principal: %w", err)
		}
		if !exists {
			return deny("principal not found"), nil
		}
		return e.authorizeDoctor(ctx, p, action, d, kp)

	case RoleClient:
		exists, err := e.dir.ClientExists(ctx, p.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("resolve client principal: %w", err)
		}
		if !exists {
			return deny("principal not found"), nil
		}
		return e.authorizeClient(p, action, d, kp), nil
	}

	return deny("forbidden"), nil
}

func (e *Engine) authorizeDoctor(ctx context.Context, p Principal, action Action, d Descriptor, kp KindPolicy) (Decision, error) {
	if d.Kind == KindMessage {
		return participantDecision(p, d), nil
	}

	switch action {
	case ActionRead:
		if d.DoctorID != nil && *d.DoctorID == p.ID {
			return allow("record author"), nil
		}
		assigned, err := e.dir.IsAssigned(ctx, p.ID, d.OwnerClientID)
		if err != nil {
			return Decision{}, fmt.Errorf("resolve assignment: %w", err)
		}
		if assigned {
			return allow("assigned doctor"), nil
		}
		return e.conceal(deny("client not assigned to doctor"), kp), nil

	case ActionWrite, ActionDelete:
		if kp.AuthorScoped {
			if d.DoctorID != nil && *d.DoctorID == p.ID {
				return allow("record author"), nil
			}
			// Assignment alone never grants write on author-scoped kinds.
			return e.conceal(deny("not the authoring doctor"), kp), nil
		}
		if kp.DoctorWrite {
			return allow("doctor role"), nil
		}
		return deny(string(d.Kind) + " records are admin-authored"), nil
	}

	return deny("forbidden"), nil
}

func (e *Engine) authorizeClient(p Principal, action Action, d Descriptor, kp KindPolicy) Decision {
	if d.Kind == KindMessage {
		return participantDecision(p, d)
	}

	if d.OwnerClientID != p.ID {
		return e.conceal(deny("not the record owner"), kp)
	}

	switch action {
	case ActionRead:
		return allow("record owner")
	case ActionWrite, ActionDelete:
		if kp.ClientWrite {
			return allow("record owner")
		}
		return deny(string(d.Kind) + " records are doctor-authored")
	}

	return deny("forbidden")
}

func participantDecision(p Principal, d Descriptor) Decision {
	for _, username := range d.Participants {
		if username == p.Username {
			return allow("conversation participant")
		}
	}
	return deny("not a conversation participant")
}

func (e *Engine) conceal(d Decision, kp KindPolicy) Decision {
	d.ConcealNotFound = kp.ConcealOnDeny
	return d
}
