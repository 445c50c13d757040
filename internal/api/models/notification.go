package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification severity levels used for the stats buckets
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Notification read status
const (
	StatusUnread = "unread"
	StatusRead   = "read"
)

type Notification struct {
	ID        string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string     `gorm:"not null" json:"title"`
	Message   string     `gorm:"not null" json:"message"`
	Severity  string     `gorm:"not null;default:low" json:"severity"`
	Type      string     `gorm:"not null;index" json:"type"` // ASSESSMENT_SUBMITTED, APPOINTMENT, CONSENT, SYSTEM
	Status    string     `gorm:"not null;default:unread;index" json:"status"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// Unread reports whether the notification has not been read yet.
func (n *Notification) Unread() bool {
	return n.Status != StatusRead
}
