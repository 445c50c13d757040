package dto

type CreateNotificationRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Message  string `json:"message" binding:"required"`
	Severity string `json:"severity"`
	Type     string `json:"type" binding:"required"`
}

type MarkManyReadRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// NotificationStats mirrors the stats wire shape: total counts every
// notification for the user, the rest count unread ones.
type NotificationStats struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	BySeverity map[string]int `json:"bySeverity"`
	ByType     map[string]int `json:"byType"`
}
