package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
	"campuscare/internal/realtime"
)

type mockNotificationRepo struct {
	created      []*models.Notification
	createErr    error
	unreadCount  int64
	markUnread   bool
	markErr      error
	manyAffected int64
	deleted      *models.Notification
	deleteErr    error
}

func (m *mockNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(context.Context, string, int, int) ([]models.Notification, int64, error) {
	return nil, 0, nil
}

func (m *mockNotificationRepo) CountUnread(context.Context, string) (int64, error) {
	return m.unreadCount, nil
}

func (m *mockNotificationRepo) Stats(context.Context, string) (*dto.NotificationStats, error) {
	return &dto.NotificationStats{}, nil
}

func (m *mockNotificationRepo) MarkAsRead(context.Context, string, string) (bool, error) {
	return m.markUnread, m.markErr
}

func (m *mockNotificationRepo) MarkManyAsRead(context.Context, string, []string) (int64, error) {
	return m.manyAffected, m.markErr
}

func (m *mockNotificationRepo) Delete(context.Context, string, string) (*models.Notification, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	return m.deleted, nil
}

type recordedPush struct {
	userID string
	event  string
	data   any
}

type mockPusher struct {
	pushes []recordedPush
}

func (m *mockPusher) PushToUser(userID, event string, data any) {
	m.pushes = append(m.pushes, recordedPush{userID: userID, event: event, data: data})
}

func TestNotificationService_CreatePushesToRecipient(t *testing.T) {
	repo := &mockNotificationRepo{}
	pusher := &mockPusher{}
	svc := NewNotificationService(repo, nil, pusher, nil)

	created, err := svc.Create(context.Background(), dto.CreateNotificationRequest{
		UserID:   "student-1",
		Title:    "Screening submitted",
		Message:  "Your responses were received",
		Severity: models.SeverityHigh,
		Type:     "ASSESSMENT_SUBMITTED",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusUnread, created.Status)
	assert.Equal(t, models.SeverityHigh, created.Severity)

	require.Len(t, pusher.pushes, 1)
	assert.Equal(t, "student-1", pusher.pushes[0].userID)
	assert.Equal(t, realtime.EventNewNotification, pusher.pushes[0].event)
	assert.Equal(t, created, pusher.pushes[0].data)
}

func TestNotificationService_CreateDefaultsUnknownSeverity(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, nil, nil, nil)

	created, err := svc.Create(context.Background(), dto.CreateNotificationRequest{
		UserID:   "student-1",
		Title:    "t",
		Message:  "m",
		Severity: "catastrophic",
		Type:     "SYSTEM",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityLow, created.Severity)
}

func TestNotificationService_CreateRepoFailureSkipsPush(t *testing.T) {
	repo := &mockNotificationRepo{createErr: errors.New("db down")}
	pusher := &mockPusher{}
	svc := NewNotificationService(repo, nil, pusher, nil)

	_, err := svc.Create(context.Background(), dto.CreateNotificationRequest{
		UserID: "student-1", Title: "t", Message: "m", Type: "SYSTEM",
	})
	assert.Error(t, err)
	assert.Empty(t, pusher.pushes)
}

func TestNotificationService_UnreadCountReseedsOnCacheMiss(t *testing.T) {
	repo := &mockNotificationRepo{unreadCount: 7}
	svc := NewNotificationService(repo, nil, nil, nil)

	count, err := svc.UnreadCount(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestNotificationService_DeleteReturnsRepoError(t *testing.T) {
	repo := &mockNotificationRepo{deleteErr: gorm.ErrRecordNotFound}
	svc := NewNotificationService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "student-1", "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
