package dto

import "time"

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ConversationSummary is one row of the recent-conversations list:
// the peer, the latest message preview, and how many of their messages
// the requesting user has not read.
type ConversationSummary struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	LastMessage string    `json:"last_message"`
	LastAt      time.Time `json:"last_at"`
	UnreadCount int       `json:"unread_count"`
}
