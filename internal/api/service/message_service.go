package service

import (
	"context"
	"log/slog"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
	"campuscare/internal/api/repository"
	"campuscare/internal/realtime"
)

type MessageService interface {
	Send(ctx context.Context, senderID string, req dto.SendMessageRequest) (*models.Message, error)
	Conversation(ctx context.Context, userID, peerID string, page, limit int) ([]models.Message, int64, error)
	RecentConversations(ctx context.Context, userID string) ([]dto.ConversationSummary, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	Update(ctx context.Context, userID, id, content string) (*models.Message, error)
	Delete(ctx context.Context, userID, id string) error
	MarkManyAsRead(ctx context.Context, userID string, ids []string) error
}

type messageService struct {
	repo   repository.MessageRepository
	users  repository.UserRepository
	cache  *repository.UnreadCache
	pusher Pusher
	log    *slog.Logger
}

func NewMessageService(repo repository.MessageRepository, users repository.UserRepository, cache *repository.UnreadCache, pusher Pusher, logger *slog.Logger) MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &messageService{repo: repo, users: users, cache: cache, pusher: pusher, log: logger}
}

// Send stores the message and pushes it to both participants: the
// receiver's clients get the new message and the sender's other devices
// stay in sync.
func (s *messageService) Send(ctx context.Context, senderID string, req dto.SendMessageRequest) (*models.Message, error) {
	if _, err := s.users.GetByID(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	message := &models.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, err
	}

	s.cache.Incr(ctx, unreadKindMessages, req.ReceiverID)
	if s.pusher != nil {
		s.pusher.PushToUser(req.ReceiverID, realtime.EventNewMessage, message)
		s.pusher.PushToUser(senderID, realtime.EventNewMessage, message)
	}
	return message, nil
}

func (s *messageService) Conversation(ctx context.Context, userID, peerID string, page, limit int) ([]models.Message, int64, error) {
	return s.repo.Conversation(ctx, userID, peerID, page, limit)
}

func (s *messageService) RecentConversations(ctx context.Context, userID string) ([]dto.ConversationSummary, error) {
	return s.repo.RecentConversations(ctx, userID)
}

func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if count, ok := s.cache.Get(ctx, unreadKindMessages, userID); ok {
		return count, nil
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, unreadKindMessages, userID, count)
	return count, nil
}

func (s *messageService) Update(ctx context.Context, userID, id, content string) (*models.Message, error) {
	return s.repo.Update(ctx, userID, id, content)
}

func (s *messageService) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// MarkManyAsRead marks the listed messages read in one batch and sends
// read receipts: the sender of each affected message learns it was read,
// and the reader's other devices drop their badge.
func (s *messageService) MarkManyAsRead(ctx context.Context, userID string, ids []string) error {
	affected, err := s.repo.MarkManyAsRead(ctx, userID, ids)
	if err != nil {
		return err
	}
	if len(affected) == 0 {
		return nil
	}
	s.cache.DecrBy(ctx, unreadKindMessages, userID, int64(len(affected)))
	if s.pusher != nil {
		for _, m := range affected {
			ev := realtime.MessageReadEvent{MessageID: m.ID, ReaderID: userID}
			s.pusher.PushToUser(m.SenderID, realtime.EventMessageRead, ev)
			s.pusher.PushToUser(userID, realtime.EventMessageRead, ev)
		}
	}
	return nil
}
