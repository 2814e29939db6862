package messaging

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/policy"
)

type fakeDirectory struct{}

func (fakeDirectory) DoctorExists(_ context.Context, _ uuid.UUID) (bool, error) { return true, nil }
func (fakeDirectory) ClientExists(_ context.Context, _ uuid.UUID) (bool, error) { return true, nil }
func (fakeDirectory) IsAssigned(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

type fakeResolver map[string]policy.Role

func (r fakeResolver) ResolveUsername(_ context.Context, username string) (policy.Role, bool, error) {
	role, ok := r[username]
	return role, ok, nil
}

func newTestService() *Service {
	resolver := fakeResolver{
		"drhouse": policy.RoleDoctor,
		"pat":     policy.RoleClient,
		"sam":     policy.RoleClient,
	}
	return NewService(NewMemRepo(), policy.NewEngine(fakeDirectory{}), resolver)
}

func principal(role policy.Role, username string) policy.Principal {
	return policy.Principal{ID: uuid.New(), Role: role, Username: username}
}

func TestSendAndConversation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	doctor := principal(policy.RoleDoctor, "drhouse")
	client := principal(policy.RoleClient, "pat")

	m1, err := svc.Send(ctx, doctor, "pat", "how are the new meds?")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleClient, m1.ReceiverRole)

	_, err = svc.Send(ctx, client, "drhouse", "much better, thanks")
	require.NoError(t, err)

	msgs, total, err := svc.Conversation(ctx, client, "drhouse", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, msgs, 2)
	assert.Equal(t, "how are the new meds?", msgs[0].Content)
}

func TestSendUnknownReceiver(t *testing.T) {
	svc := newTestService()
	_, err := svc.Send(context.Background(), principal(policy.RoleClient, "pat"), "nobody", "hello?")
	assert.ErrorIs(t, err, ErrUnknownReceiver)
}

func TestNonParticipantCannotReadMessage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	doctor := principal(policy.RoleDoctor, "drhouse")
	stranger := principal(policy.RoleClient, "sam")

	m, err := svc.Send(ctx, doctor, "pat", "confidential")
	require.NoError(t, err)

	var denied *policy.DeniedError
	_, err = svc.Get(ctx, stranger, m.ID)
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "not a conversation participant", denied.Decision.Reason)

	// Admins can read any conversation.
	_, err = svc.Get(ctx, principal(policy.RoleAdmin, "root"), m.ID)
	assert.NoError(t, err)
}

func TestInboxListsOnlyReceived(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	doctor := principal(policy.RoleDoctor, "drhouse")
	client := principal(policy.RoleClient, "pat")

	_, err := svc.Send(ctx, doctor, "pat", "first")
	require.NoError(t, err)
	_, err = svc.Send(ctx, client, "drhouse", "reply")
	require.NoError(t, err)

	msgs, total, err := svc.Inbox(ctx, client, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Content)
}

func TestMarkReadOnlyByReceiver(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	doctor := principal(policy.RoleDoctor, "drhouse")
	client := principal(policy.RoleClient, "pat")

	m, err := svc.Send(ctx, doctor, "pat", "ping")
	require.NoError(t, err)
	require.Nil(t, m.ReadAt)

	var denied *policy.DeniedError
	_, err = svc.MarkRead(ctx, doctor, m.ID)
	require.ErrorAs(t, err, &denied)

	read, err := svc.MarkRead(ctx, client, m.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	// Marking again keeps the first timestamp.
	again, err := svc.MarkRead(ctx, client, m.ID)
	require.NoError(t, err)
	assert.Equal(t, *read.ReadAt, *again.ReadAt)
}
