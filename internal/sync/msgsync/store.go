// Package msgsync is the conversation-grouped counterpart of notifysync:
// it tracks the open conversation's messages, the recent-conversations
// summary list, and the unread counter, merging REST results, socket
// pushes, local sends, and sibling-instance broadcasts.
package msgsync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuscare/internal/api/models"
	"campuscare/internal/realtime"
	"campuscare/internal/sync/bus"
	"campuscare/internal/sync/socket"
)

const (
	defaultPageSize            = 30
	defaultConversationRefresh = 500 * time.Millisecond
)

// ConversationPage is the wire shape of one page of a conversation,
// ordered by recency descending.
type ConversationPage struct {
	Messages   []models.Message `json:"messages"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
	Total      int              `json:"total"`
}

// ConversationSummary is one row of the recent-conversations list. The
// ordering and preview logic is authoritative server-side, which is why
// the list is refetched rather than recomputed locally.
type ConversationSummary struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	LastMessage string    `json:"last_message"`
	LastAt      time.Time `json:"last_at"`
	UnreadCount int       `json:"unread_count"`
}

// ReadEvent is broadcast between instances when messages were marked
// read. Receivers adjust their unread counter only when ReaderID is the
// local user.
type ReadEvent struct {
	IDs      []string
	ReaderID string
}

// API is the message REST surface the store drives.
type API interface {
	Conversation(ctx context.Context, peerID string, page, limit int) (*ConversationPage, error)
	RecentConversations(ctx context.Context) ([]ConversationSummary, error)
	UnreadCount(ctx context.Context) (int, error)
	Send(ctx context.Context, receiverID, content string) (*models.Message, error)
	Update(ctx context.Context, id, content string) (*models.Message, error)
	Delete(ctx context.Context, id string) error
	MarkManyRead(ctx context.Context, ids []string) error
}

type Pagination struct {
	Page       int
	TotalPages int
	Total      int
	HasNext    bool
}

type State struct {
	CurrentPeer     string
	Messages        []models.Message
	Conversations   []ConversationSummary
	UnreadCount     int
	Pagination      Pagination
	Loading         bool
	Err             error
	SocketConnected bool
}

type Options struct {
	Bus      *bus.Bus
	Socket   *socket.Manager
	Logger   *slog.Logger
	PageSize int
	// ConversationRefreshDelay is how long after a send/receive the
	// conversations summary list is refetched. Several triggers inside
	// the window coalesce into one fetch.
	ConversationRefreshDelay time.Duration
}

type Store struct {
	api          API
	bus          *bus.Bus
	sock         *socket.Manager
	log          *slog.Logger
	selfID       string
	instanceID   string
	pageSize     int
	refreshDelay time.Duration

	mu            sync.Mutex
	currentPeer   string
	messages      []models.Message
	seen          map[string]bool
	unread        int
	conversations []ConversationSummary
	pagination    Pagination
	loading       bool
	lastErr       error
	connected     bool
	sockWired     bool
	refreshTimer  *time.Timer

	reg  *socket.Registration
	offs []func()
}

// NewStore builds a store for the given authenticated user. selfID
// determines conversation grouping: a message's conversation key is
// whichever participant is not selfID.
func NewStore(a API, selfID string, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.ConversationRefreshDelay <= 0 {
		opts.ConversationRefreshDelay = defaultConversationRefresh
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{
		api:          a,
		bus:          opts.Bus,
		sock:         opts.Socket,
		log:          opts.Logger,
		selfID:       selfID,
		instanceID:   uuid.NewString(),
		pageSize:     opts.PageSize,
		refreshDelay: opts.ConversationRefreshDelay,
		seen:         make(map[string]bool),
	}
	s.subscribe()
	return s
}

func (s *Store) InstanceID() string { return s.instanceID }

// Start attaches to the shared socket and seeds the unread counter and
// conversations list.
func (s *Store) Start(ctx context.Context) error {
	s.ConnectSocket()
	if err := s.FetchUnreadCount(ctx); err != nil {
		return err
	}
	return s.RefreshConversations(ctx)
}

func (s *Store) Close() {
	s.mu.Lock()
	offs := s.offs
	s.offs = nil
	reg := s.reg
	s.reg = nil
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	s.mu.Unlock()
	for _, off := range offs {
		off()
	}
	if reg != nil {
		reg.Remove()
	}
}

// ConnectSocket attaches to the shared connection once per store.
func (s *Store) ConnectSocket() {
	s.mu.Lock()
	if s.sock == nil || s.sockWired {
		s.mu.Unlock()
		return
	}
	s.sockWired = true
	s.mu.Unlock()

	offNew := s.sock.On(realtime.EventNewMessage, func(data json.RawMessage) {
		var m models.Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.log.Warn("bad_message_payload", "error", err.Error())
			return
		}
		s.handleNew(m, true)
	})
	offRead := s.sock.On(realtime.EventMessageRead, func(data json.RawMessage) {
		var ev realtime.MessageReadEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Warn("bad_message_read_payload", "error", err.Error())
			return
		}
		s.mu.Lock()
		s.applyRead([]string{ev.MessageID}, ev.ReaderID)
		s.mu.Unlock()
	})

	reg := s.sock.Connect(socket.Callbacks{
		OnConnect: func() { s.setConnected(true, nil) },
		OnDisconnect: func(err error) {
			s.setConnected(false, nil)
			if err != nil {
				s.log.Warn("socket_disconnected", "error", err.Error())
			}
		},
		OnError: func(err error) { s.setConnected(false, err) },
	})

	s.mu.Lock()
	s.offs = append(s.offs, offNew, offRead)
	s.reg = reg
	s.mu.Unlock()
}

func (s *Store) setConnected(up bool, err error) {
	s.mu.Lock()
	s.connected = up
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

func (s *Store) subscribe() {
	if s.bus == nil {
		return
	}
	s.offs = append(s.offs,
		s.bus.Subscribe(bus.MessageNew, func(ev bus.Event) {
			if ev.SourceID == s.instanceID {
				return
			}
			if m, ok := ev.Payload.(models.Message); ok {
				s.handleNew(m, false)
			}
		}),
		s.bus.Subscribe(bus.MessageRead, func(ev bus.Event) {
			if ev.SourceID == s.instanceID {
				return
			}
			if re, ok := ev.Payload.(ReadEvent); ok {
				s.mu.Lock()
				s.applyRead(re.IDs, re.ReaderID)
				s.mu.Unlock()
			}
		}),
	)
}

// OpenConversation loads the first page of the conversation with peerID
// and marks the unread incoming messages read in a single batch call.
// Batch failures are logged, not returned: read marking is best-effort
// on top of a successfully loaded conversation.
func (s *Store) OpenConversation(ctx context.Context, peerID string) error {
	s.mu.Lock()
	s.currentPeer = peerID
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()

	page, err := s.api.Conversation(ctx, peerID, 1, s.pageSize)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	if s.currentPeer != peerID {
		// The user already switched away; drop the stale page.
		s.mu.Unlock()
		return nil
	}
	s.messages = make([]models.Message, len(page.Messages))
	copy(s.messages, page.Messages)
	s.seen = make(map[string]bool, len(page.Messages))
	var unreadIncoming []string
	for _, m := range page.Messages {
		s.seen[m.ID] = true
		if m.ReceiverID == s.selfID && !m.Read {
			unreadIncoming = append(unreadIncoming, m.ID)
		}
	}
	s.pagination = Pagination{
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		HasNext:    page.Page < page.TotalPages,
	}
	s.applyRead(unreadIncoming, s.selfID)
	s.mu.Unlock()

	if len(unreadIncoming) > 0 {
		if err := s.api.MarkManyRead(ctx, unreadIncoming); err != nil {
			s.log.Warn("mark_conversation_read_failed", "peer", peerID, "error", err.Error())
		} else {
			s.publish(bus.MessageRead, ReadEvent{IDs: unreadIncoming, ReaderID: s.selfID})
		}
	}
	return nil
}

// LoadMore appends the next (older) page of the open conversation.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.pagination.HasNext || s.currentPeer == "" {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	peer := s.currentPeer
	next := s.pagination.Page + 1
	s.mu.Unlock()

	page, err := s.api.Conversation(ctx, peer, next, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return err
	}
	if s.currentPeer != peer {
		return nil
	}
	for _, m := range page.Messages {
		if s.seen[m.ID] {
			continue
		}
		s.seen[m.ID] = true
		s.messages = append(s.messages, m)
	}
	s.pagination = Pagination{
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		HasNext:    page.Page < page.TotalPages,
	}
	return nil
}

// SendMessage optimistically prepends a provisional message when the
// receiver is the open conversation, then commits over REST. On success
// the provisional entry is swapped for the server record; on failure it
// is removed and the error returned.
func (s *Store) SendMessage(ctx context.Context, receiverID, content string) (*models.Message, error) {
	provisional := models.Message{
		ID:         uuid.NewString(),
		SenderID:   s.selfID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	s.mu.Lock()
	inConversation := s.currentPeer == receiverID
	if inConversation {
		s.messages = append([]models.Message{provisional}, s.messages...)
		s.seen[provisional.ID] = true
		s.pagination.Total++
	}
	s.mu.Unlock()

	sent, err := s.api.Send(ctx, receiverID, content)

	s.mu.Lock()
	if inConversation {
		if err != nil {
			s.removeLocked(provisional.ID)
		} else {
			s.replaceLocked(provisional.ID, *sent)
		}
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	s.publish(bus.MessageNew, *sent)
	s.scheduleConversationsRefresh()
	return sent, nil
}

// UpdateMessage edits a sent message's content.
func (s *Store) UpdateMessage(ctx context.Context, id, content string) error {
	updated, err := s.api.Update(ctx, id, content)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.replaceLocked(id, *updated)
	s.mu.Unlock()
	return nil
}

// DeleteMessage removes a message.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	s.scheduleConversationsRefresh()
	return nil
}

func (s *Store) FetchUnreadCount(ctx context.Context) error {
	count, err := s.api.UnreadCount(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return err
	}
	s.unread = count
	return nil
}

// RefreshConversations refetches the recent-conversations summary list.
func (s *Store) RefreshConversations(ctx context.Context) error {
	convs, err := s.api.RecentConversations(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return err
	}
	s.conversations = convs
	return nil
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	convs := make([]ConversationSummary, len(s.conversations))
	copy(convs, s.conversations)
	return State{
		CurrentPeer:     s.currentPeer,
		Messages:        msgs,
		Conversations:   convs,
		UnreadCount:     s.unread,
		Pagination:      s.pagination,
		Loading:         s.loading,
		Err:             s.lastErr,
		SocketConnected: s.connected,
	}
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Store) publish(name string, payload any) {
	if s.bus != nil {
		s.bus.Publish(name, s.instanceID, payload)
	}
}

// handleNew merges an arriving message. It only joins the visible list
// when it belongs to the open conversation; the unread counter and the
// conversations summary move either way.
func (s *Store) handleNew(m models.Message, direct bool) {
	s.mu.Lock()
	if s.seen[m.ID] {
		s.mu.Unlock()
		return
	}
	if s.currentPeer != "" && m.PeerOf(s.selfID) == s.currentPeer {
		s.seen[m.ID] = true
		s.messages = append([]models.Message{m}, s.messages...)
		s.pagination.Total++
	}
	if m.ReceiverID == s.selfID && !m.Read {
		s.unread++
	}
	s.mu.Unlock()

	if direct {
		s.publish(bus.MessageNew, m)
	}
	s.scheduleConversationsRefresh()
}

// applyRead flips the listed messages to read. The unread counter only
// moves for messages addressed to readerID when readerID is the local
// user: a peer reading our sent message updates the flag but not our
// counter. Caller holds mu.
func (s *Store) applyRead(ids []string, readerID string) {
	for _, id := range ids {
		for i := range s.messages {
			if s.messages[i].ID != id || s.messages[i].Read {
				continue
			}
			s.messages[i].Read = true
			if readerID == s.selfID && s.messages[i].ReceiverID == s.selfID {
				if s.unread > 0 {
					s.unread--
				}
			}
		}
	}
}

func (s *Store) removeLocked(id string) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			delete(s.seen, id)
			if s.pagination.Total > 0 {
				s.pagination.Total--
			}
			return
		}
	}
}

func (s *Store) replaceLocked(id string, with models.Message) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i] = with
			if id != with.ID {
				delete(s.seen, id)
				s.seen[with.ID] = true
			}
			return
		}
	}
}

// scheduleConversationsRefresh debounces a summary-list refetch: the
// authoritative ordering and preview live server-side, so after a send
// or receive the list is refetched shortly rather than recomputed.
func (s *Store) scheduleConversationsRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
	}
	s.refreshTimer = time.AfterFunc(s.refreshDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.RefreshConversations(ctx); err != nil {
			s.log.Warn("conversations_refresh_failed", "error", err.Error())
		}
	})
}
