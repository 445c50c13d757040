package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Conversation(ctx context.Context, userID, peerID string, page, limit int) ([]models.Message, int64, error)
	RecentConversations(ctx context.Context, userID string) ([]dto.ConversationSummary, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	Update(ctx context.Context, userID, id, content string) (*models.Message, error)
	Delete(ctx context.Context, userID, id string) error
	MarkManyAsRead(ctx context.Context, userID string, ids []string) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) Conversation(ctx context.Context, userID, peerID string, page, limit int) ([]models.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 30
	}

	between := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, peerID, peerID, userID)

	var total int64
	if err := between.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.Message
	err := between.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	return messages, total, err
}

// RecentConversations returns the latest message per peer plus the count
// of that peer's messages the user has not read, newest conversation
// first.
func (r *messageRepository) RecentConversations(ctx context.Context, userID string) ([]dto.ConversationSummary, error) {
	var rows []dto.ConversationSummary
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.id          AS user_id,
		       u.name        AS name,
		       u.role        AS role,
		       m.content     AS last_message,
		       m.created_at  AS last_at,
		       (SELECT COUNT(*) FROM messages x
		         WHERE x.sender_id = u.id AND x.receiver_id = ? AND x.read = false) AS unread_count
		FROM (
			SELECT DISTINCT ON (peer) *
			FROM (
				SELECT *, CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer
				FROM messages
				WHERE sender_id = ? OR receiver_id = ?
			) AS keyed
			ORDER BY peer, created_at DESC
		) AS m
		JOIN users u ON u.id = m.peer
		ORDER BY m.created_at DESC`,
		userID, userID, userID, userID).
		Scan(&rows).Error
	return rows, err
}

func (r *messageRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND read = false", userID).
		Count(&count).Error
	return count, err
}

// Update edits the content of a message the user sent.
func (r *messageRepository) Update(ctx context.Context, userID, id, content string) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, userID).
		First(&message).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	message.Content = content
	message.EditedAt = &now
	if err := r.db.WithContext(ctx).Save(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, userID).
		Delete(&models.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkManyAsRead marks unread messages addressed to the user and returns
// the affected rows so the caller can notify their senders.
func (r *messageRepository) MarkManyAsRead(ctx context.Context, userID string, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var affected []models.Message
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND receiver_id = ? AND read = false", ids, userID).
		Find(&affected).Error; err != nil {
		return nil, err
	}
	if len(affected) == 0 {
		return nil, nil
	}
	markedIDs := make([]string, len(affected))
	for i, m := range affected {
		markedIDs[i] = m.ID
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id IN ?", markedIDs).
		Update("read", true).Error; err != nil {
		return nil, err
	}
	for i := range affected {
		affected[i].Read = true
	}
	return affected, nil
}
