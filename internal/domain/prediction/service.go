package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

var (
	// ErrAlreadyReviewed is returned when a second review is attempted.
	ErrAlreadyReviewed = errors.New("prediction already reviewed")
	// ErrNotDoctor is returned when a non-doctor attempts a review.
	ErrNotDoctor = errors.New("only doctors review predictions")
)

// Service guards prediction storage and the review transition.
type Service struct {
	repo   Repository
	engine *policy.Engine
	dir    policy.Directory
}

func NewService(repo Repository, engine *policy.Engine, dir policy.Directory) *Service {
	return &Service{repo: repo, engine: engine, dir: dir}
}

func (s *Service) authorize(ctx context.Context, p policy.Principal, action policy.Action, d policy.Descriptor) error {
	dec, err := s.engine.Authorize(ctx, p, action, d)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return policy.Denied(dec)
	}
	return nil
}

// Create stores a model output for a client. Predictions arrive from an
// external pipeline through admin or doctor principals.
func (s *Service) Create(ctx context.Context, p policy.Principal, pred *Prediction) error {
	if ok, err := s.dir.ClientExists(ctx, pred.ClientID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("client %s: %w", pred.ClientID, ErrNotFound)
	}
	pred.Review = nil
	if err := s.authorize(ctx, p, policy.ActionWrite, pred.Describe()); err != nil {
		return err
	}
	return s.repo.Create(ctx, pred)
}

// Get returns one prediction after a read authorization.
func (s *Service) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*Prediction, error) {
	pred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionRead, pred.Describe()); err != nil {
		return nil, err
	}
	return pred, nil
}

// Review transitions a prediction from unreviewed to reviewed. The reviewing
// doctor must be able to read the client's chart; the doctor id, feedback and
// timestamp are written as one unit and never again.
func (s *Service) Review(ctx context.Context, p policy.Principal, id uuid.UUID, feedback string) (*Prediction, error) {
	if p.Role != policy.RoleDoctor {
		return nil, ErrNotDoctor
	}
	pred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pred.Reviewed() {
		return nil, ErrAlreadyReviewed
	}
	if err := s.authorize(ctx, p, policy.ActionRead, pred.Describe()); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionWrite, pred.Describe()); err != nil {
		return nil, err
	}

	rev := &Review{DoctorID: p.ID, Feedback: feedback, At: time.Now().UTC()}
	if err := s.repo.SetReview(ctx, id, rev); err != nil {
		// The guarded UPDATE found no unreviewed row: a concurrent review won.
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}
	pred.Review = rev
	return pred, nil
}

// ListByClient returns a client's predictions, newest first.
func (s *Service) ListByClient(ctx context.Context, p policy.Principal, clientID uuid.UUID, limit, offset int) ([]*Prediction, int, error) {
	d := policy.Descriptor{Kind: policy.KindMLPrediction, OwnerClientID: clientID}
	if err := s.authorize(ctx, p, policy.ActionRead, d); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByClient(ctx, clientID, limit, offset)
}

// ListUnreviewed returns the review queue. Doctors and admins only.
func (s *Service) ListUnreviewed(ctx context.Context, p policy.Principal, limit, offset int) ([]*Prediction, int, error) {
	if p.Role == policy.RoleClient {
		return nil, 0, policy.Denied(policy.Decision{Reason: "review queue is staff-only"})
	}
	return s.repo.ListUnreviewed(ctx, limit, offset)
}
