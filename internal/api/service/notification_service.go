package service

import (
	"context"
	"log/slog"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
	"campuscare/internal/api/repository"
	"campuscare/internal/realtime"
)

// Cache kinds for the unread counters.
const (
	unreadKindNotifications = "notifications"
	unreadKindMessages      = "messages"
)

// Pusher delivers realtime events to a user's connected clients.
type Pusher interface {
	PushToUser(userID, event string, data any)
}

type NotificationService interface {
	Create(ctx context.Context, req dto.CreateNotificationRequest) (*models.Notification, error)
	List(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context, userID string) (*dto.NotificationStats, error)
	MarkAsRead(ctx context.Context, userID, id string) error
	MarkManyAsRead(ctx context.Context, userID string, ids []string) error
	Delete(ctx context.Context, userID, id string) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	cache  *repository.UnreadCache
	pusher Pusher
	log    *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, cache *repository.UnreadCache, pusher Pusher, logger *slog.Logger) NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &notificationService{repo: repo, cache: cache, pusher: pusher, log: logger}
}

// Create stores the notification and pushes it to the recipient's
// connected clients.
func (s *notificationService) Create(ctx context.Context, req dto.CreateNotificationRequest) (*models.Notification, error) {
	severity := req.Severity
	switch severity {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
	default:
		severity = models.SeverityLow
	}

	notification := &models.Notification{
		UserID:   req.UserID,
		Title:    req.Title,
		Message:  req.Message,
		Severity: severity,
		Type:     req.Type,
		Status:   models.StatusUnread,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	s.cache.Incr(ctx, unreadKindNotifications, req.UserID)
	if s.pusher != nil {
		s.pusher.PushToUser(req.UserID, realtime.EventNewNotification, notification)
	}
	return notification, nil
}

func (s *notificationService) List(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error) {
	return s.repo.ListByUser(ctx, userID, page, limit)
}

// UnreadCount serves from the Redis counter when possible and reseeds it
// from the database on a miss.
func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if count, ok := s.cache.Get(ctx, unreadKindNotifications, userID); ok {
		return count, nil
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, unreadKindNotifications, userID, count)
	return count, nil
}

func (s *notificationService) Stats(ctx context.Context, userID string) (*dto.NotificationStats, error) {
	return s.repo.Stats(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	wasUnread, err := s.repo.MarkAsRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if wasUnread {
		s.cache.DecrBy(ctx, unreadKindNotifications, userID, 1)
	}
	return nil
}

func (s *notificationService) MarkManyAsRead(ctx context.Context, userID string, ids []string) error {
	affected, err := s.repo.MarkManyAsRead(ctx, userID, ids)
	if err != nil {
		return err
	}
	s.cache.DecrBy(ctx, unreadKindNotifications, userID, affected)
	return nil
}

func (s *notificationService) Delete(ctx context.Context, userID, id string) error {
	removed, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if removed.Unread() {
		s.cache.DecrBy(ctx, unreadKindNotifications, userID, 1)
	}
	return nil
}
