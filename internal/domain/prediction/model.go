// Package prediction stores externally produced ML predictions and the
// doctor review workflow over them. No inference happens here; payloads are
// opaque.
package prediction

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

// Review is the reviewed state of a prediction. Its three fields are always
// set together; a prediction is either unreviewed (nil Review) or carries a
// complete one.
type Review struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Feedback string    `json:"feedback"`
	At       time.Time `json:"at"`
}

// Prediction is one stored model output for a client.
type Prediction struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	ClientID  uuid.UUID      `db:"client_id" json:"client_id"`
	Model     string         `db:"model" json:"model"`
	Input     map[string]any `db:"input" json:"input,omitempty"`
	Output    map[string]any `db:"output" json:"output,omitempty"`
	Review    *Review        `db:"-" json:"review,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Reviewed reports whether a doctor has signed off on the prediction.
func (p *Prediction) Reviewed() bool { return p.Review != nil }

// Describe implements policy.Resource. The reviewing doctor becomes the
// record's doctor once set.
func (p *Prediction) Describe() policy.Descriptor {
	d := policy.Descriptor{
		Kind:          policy.KindMLPrediction,
		RecordID:      p.ID,
		OwnerClientID: p.ClientID,
	}
	if p.Review != nil {
		doctorID := p.Review.DoctorID
		d.DoctorID = &doctorID
	}
	return d
}
