package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context, userID string) (*dto.NotificationStats, error)
	MarkAsRead(ctx context.Context, userID, id string) (bool, error)
	MarkManyAsRead(ctx context.Context, userID string, ids []string) (int64, error)
	Delete(ctx context.Context, userID, id string) (*models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.StatusUnread).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) Stats(ctx context.Context, userID string) (*dto.NotificationStats, error) {
	stats := &dto.NotificationStats{
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, err
	}
	stats.Total = int(total)

	type bucket struct {
		Key   string
		Count int
	}

	var bySeverity []bucket
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("severity AS key, COUNT(*) AS count").
		Where("user_id = ? AND status = ?", userID, models.StatusUnread).
		Group("severity").
		Scan(&bySeverity).Error; err != nil {
		return nil, err
	}
	for _, b := range bySeverity {
		stats.BySeverity[b.Key] = b.Count
		stats.Unread += b.Count
	}

	var byType []bucket
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("type AS key, COUNT(*) AS count").
		Where("user_id = ? AND status = ?", userID, models.StatusUnread).
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, b := range byType {
		stats.ByType[b.Key] = b.Count
	}

	return stats, nil
}

// MarkAsRead flips an unread notification to read and reports whether a
// row actually changed; marking an already-read notification is a no-op.
func (r *notificationRepository) MarkAsRead(ctx context.Context, userID, id string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.StatusUnread).
		Updates(map[string]any{"status": models.StatusRead, "read_at": now})
	return res.RowsAffected > 0, res.Error
}

func (r *notificationRepository) MarkManyAsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ? AND user_id = ? AND status = ?", ids, userID, models.StatusUnread).
		Updates(map[string]any{"status": models.StatusRead, "read_at": now})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id string) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&notification).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&notification).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}
