package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
	"campuscare/internal/realtime"
)

type mockMessageRepo struct {
	created      []*models.Message
	markAffected []models.Message
}

func (m *mockMessageRepo) Create(_ context.Context, msg *models.Message) error {
	msg.ID = "msg-1"
	m.created = append(m.created, msg)
	return nil
}

func (m *mockMessageRepo) GetByID(context.Context, string) (*models.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMessageRepo) Conversation(context.Context, string, string, int, int) ([]models.Message, int64, error) {
	return nil, 0, nil
}

func (m *mockMessageRepo) RecentConversations(context.Context, string) ([]dto.ConversationSummary, error) {
	return nil, nil
}

func (m *mockMessageRepo) CountUnread(context.Context, string) (int64, error) { return 0, nil }

func (m *mockMessageRepo) Update(context.Context, string, string, string) (*models.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMessageRepo) Delete(context.Context, string, string) error { return nil }

func (m *mockMessageRepo) MarkManyAsRead(context.Context, string, []string) ([]models.Message, error) {
	return m.markAffected, nil
}

type mockUserRepo struct {
	users   map[string]*models.User
	byEmail map[string]*models.User
}

func (m *mockUserRepo) Create(context.Context, *models.User) error { return nil }

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByRole(context.Context, string) ([]models.User, error) {
	return nil, nil
}

func TestMessageService_SendPushesToBothParticipants(t *testing.T) {
	repo := &mockMessageRepo{}
	users := &mockUserRepo{users: map[string]*models.User{"counselor-1": {ID: "counselor-1"}}}
	pusher := &mockPusher{}
	svc := NewMessageService(repo, users, nil, pusher, nil)

	sent, err := svc.Send(context.Background(), "student-1", dto.SendMessageRequest{
		ReceiverID: "counselor-1",
		Content:    "I'd like to talk",
	})
	require.NoError(t, err)
	assert.Equal(t, "student-1", sent.SenderID)

	require.Len(t, pusher.pushes, 2)
	assert.Equal(t, "counselor-1", pusher.pushes[0].userID)
	assert.Equal(t, "student-1", pusher.pushes[1].userID, "sender's other devices must stay in sync")
	for _, p := range pusher.pushes {
		assert.Equal(t, realtime.EventNewMessage, p.event)
	}
}

func TestMessageService_SendToUnknownReceiverFails(t *testing.T) {
	repo := &mockMessageRepo{}
	users := &mockUserRepo{}
	pusher := &mockPusher{}
	svc := NewMessageService(repo, users, nil, pusher, nil)

	_, err := svc.Send(context.Background(), "student-1", dto.SendMessageRequest{
		ReceiverID: "ghost", Content: "hello?",
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, repo.created)
	assert.Empty(t, pusher.pushes)
}

func TestMessageService_MarkManySendsReceiptsPerAffectedMessage(t *testing.T) {
	repo := &mockMessageRepo{markAffected: []models.Message{
		{ID: "m1", SenderID: "counselor-1", ReceiverID: "student-1", Read: true},
		{ID: "m2", SenderID: "counselor-2", ReceiverID: "student-1", Read: true},
	}}
	pusher := &mockPusher{}
	svc := NewMessageService(repo, &mockUserRepo{}, nil, pusher, nil)

	require.NoError(t, svc.MarkManyAsRead(context.Background(), "student-1", []string{"m1", "m2", "m3"}))

	// One receipt to each sender plus one to the reader, per message.
	require.Len(t, pusher.pushes, 4)
	senders := map[string]bool{}
	for _, p := range pusher.pushes {
		assert.Equal(t, realtime.EventMessageRead, p.event)
		ev, ok := p.data.(realtime.MessageReadEvent)
		require.True(t, ok)
		assert.Equal(t, "student-1", ev.ReaderID)
		senders[p.userID] = true
	}
	assert.True(t, senders["counselor-1"])
	assert.True(t, senders["counselor-2"])
	assert.True(t, senders["student-1"])
}

func TestMessageService_MarkManyNothingAffectedIsQuiet(t *testing.T) {
	repo := &mockMessageRepo{}
	pusher := &mockPusher{}
	svc := NewMessageService(repo, &mockUserRepo{}, nil, pusher, nil)

	require.NoError(t, svc.MarkManyAsRead(context.Background(), "student-1", []string{"already-read"}))
	assert.Empty(t, pusher.pushes)
}
