package realtime

// Server push event names. The hub emits these over the websocket and the
// client-side sync stores subscribe to them by name.
const (
	EventNewNotification = "new_notification"
	EventNewMessage      = "new_message"
	EventMessageRead     = "message_read"
)

// Envelope is the wire shape of every pushed event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// MessageReadEvent tells clients that readerID has read a message. The
// receiving store adjusts its unread count only when the reader is the
// local user, so the same event is safe to fan out to both participants.
type MessageReadEvent struct {
	MessageID string `json:"message_id"`
	ReaderID  string `json:"reader_id"`
}
