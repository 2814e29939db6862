// Package records stores the nine owned clinical record kinds (diagnoses,
// symptoms, treatments, prescriptions, lab results, allergies, observations,
// progress notes, recommendations) behind one kind-tagged model and a single
// policy-guarded service.
package records

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

// ClinicalRecord is one entry in a client's chart. Kind-specific attributes
// (dosage, severity, lab values) live in Attributes.
type ClinicalRecord struct {
	ID       uuid.UUID           `db:"id" json:"id"`
	Kind     policy.ResourceKind `db:"kind" json:"kind"`
	ClientID uuid.UUID           `db:"client_id" json:"client_id"`
	// DoctorID is the authoring doctor. It is nil for admin-authored kinds
	// and for records clients add themselves.
	DoctorID   *uuid.UUID     `db:"doctor_id" json:"doctor_id,omitempty"`
	Title      string         `db:"title" json:"title"`
	Notes      *string        `db:"notes" json:"notes,omitempty"`
	Attributes map[string]any `db:"attributes" json:"attributes,omitempty"`
	RecordedAt time.Time      `db:"recorded_at" json:"recorded_at"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// Describe implements policy.Resource.
func (r *ClinicalRecord) Describe() policy.Descriptor {
	return policy.Descriptor{
		Kind:          r.Kind,
		RecordID:      r.ID,
		OwnerClientID: r.ClientID,
		DoctorID:      r.DoctorID,
	}
}

// Kinds lists the record kinds this package stores. Appointments, messages
// and predictions have their own packages.
func Kinds() []policy.ResourceKind {
	return []policy.ResourceKind{
		policy.KindDiagnosis,
		policy.KindSymptom,
		policy.KindTreatment,
		policy.KindPrescription,
		policy.KindLabResult,
		policy.KindAllergy,
		policy.KindClinicalObservation,
		policy.KindProgress,
		policy.KindRecommendation,
	}
}

// IsRecordKind reports whether kind is stored by this package.
func IsRecordKind(kind policy.ResourceKind) bool {
	for _, k := range Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
