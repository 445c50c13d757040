package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   string     `gorm:"type:uuid;not null;index:idx_messages_sender" json:"sender_id"`
	ReceiverID string     `gorm:"type:uuid;not null;index:idx_messages_receiver" json:"receiver_id"`
	Content    string     `gorm:"not null" json:"content"`
	Read       bool       `gorm:"default:false;index" json:"read"`
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`

	// Associations
	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// PeerOf returns the conversation key for userID: whichever of
// sender/receiver is not userID. A message belongs to exactly one
// conversation.
func (m *Message) PeerOf(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
