package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

// ErrUnknownReceiver is returned when the addressed username does not exist.
var ErrUnknownReceiver = errors.New("receiver not found")

// ParticipantResolver maps a username to its role. The identity service
// implements it.
type ParticipantResolver interface {
	ResolveUsername(ctx context.Context, username string) (policy.Role, bool, error)
}

// Service sends and lists messages under pair-membership policy.
type Service struct {
	repo     Repository
	engine   *policy.Engine
	resolver ParticipantResolver
}

func NewService(repo Repository, engine *policy.Engine, resolver ParticipantResolver) *Service {
	return &Service{repo: repo, engine: engine, resolver: resolver}
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

// Send delivers a message from the principal to the named receiver.
func (s *Service) Send(ctx context.Context, p policy.Principal, receiver, content string) (*Message, error) {
	role, ok, err := s.resolver.ResolveUsername(ctx, receiver)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", receiver, ErrUnknownReceiver)
	}

	m := &Message{
		ID:               uuid.New(),
		SenderUsername:   p.Username,
		SenderRole:       p.Role,
		ReceiverUsername: receiver,
		ReceiverRole:     role,
		Content:          content,
		SentAt:           time.Now().UTC(),
	}
	if err := s.authorize(ctx, p, policy.ActionWrite, m.Describe()); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns one message after a participant check.
func (s *Service) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionRead, m.Describe()); err != nil {
		return nil, err
	}
	return m, nil
}

// Conversation lists messages between the principal and the other username.
// Non-admins can only read conversations they are part of, which holds by
// construction here.
func (s *Service) Conversation(ctx context.Context, p policy.Principal, other string, limit, offset int) ([]*Message, int, error) {
	d := policy.Descriptor{Kind: policy.KindMessage, Participants: []string{p.Username, other}}
	if err := s.authorize(ctx, p, policy.ActionRead, d); err != nil {
		return nil, 0, err
	}
	return s.repo.Conversation(ctx, p.Username, other, limit, offset)
}

// Inbox lists messages addressed to the principal, newest first.
func (s *Service) Inbox(ctx context.Context, p policy.Principal, limit, offset int) ([]*Message, int, error) {
	return s.repo.Inbox(ctx, p.Username, limit, offset)
}

// MarkRead stamps a message read. Only the receiver may do so; a message
// already read keeps its original timestamp.
func (s *Service) MarkRead(ctx context.Context, p policy.Principal, id uuid.UUID) (*Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionWrite, m.Describe()); err != nil {
		return nil, err
	}
	if p.Role != policy.RoleAdmin && m.ReceiverUsername != p.Username {
		return nil, policy.Denied(policy.Decision{Reason: "only the receiver can mark a message read"})
	}
	if err := s.repo.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
