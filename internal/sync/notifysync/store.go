// Package notifysync keeps a local, incrementally-updated view of the
// current user's notifications consistent across every store instance in
// the process, regardless of whether an update arrived over REST, a
// socket push, a local user action, or a sibling instance's broadcast.
package notifysync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuscare/internal/api/models"
	"campuscare/internal/realtime"
	"campuscare/internal/sync/alert"
	"campuscare/internal/sync/bus"
	"campuscare/internal/sync/socket"
)

const defaultPageSize = 20

type ListParams struct {
	Page  int
	Limit int
}

// Page is the wire shape of a notification list response.
type Page struct {
	Logs       []models.Notification `json:"logs"`
	Page       int                   `json:"page"`
	TotalPages int                   `json:"totalPages"`
	Total      int                   `json:"total"`
}

// Stats are aggregate counters. Total counts every known notification;
// Unread and the per-bucket maps count unread ones only, so they move in
// lockstep with UnreadCount.
type Stats struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	BySeverity map[string]int `json:"bySeverity"`
	ByType     map[string]int `json:"byType"`
}

// Pagination is authoritative only right after a fetch; incremental
// inserts and deletes adjust Total approximately until the next refetch.
type Pagination struct {
	Page       int
	TotalPages int
	Total      int
	HasNext    bool
}

// API is the notification REST surface the store drives.
type API interface {
	List(ctx context.Context, params ListParams) (*Page, error)
	UnreadCount(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)
	MarkRead(ctx context.Context, id string) error
	MarkManyRead(ctx context.Context, ids []string) error
	Delete(ctx context.Context, id string) error
}

// State is a point-in-time copy of the store, safe to read after the
// store has moved on.
type State struct {
	Notifications   []models.Notification
	UnreadCount     int
	Stats           Stats
	Pagination      Pagination
	Loading         bool
	Err             error
	SocketConnected bool
}

type Options struct {
	Bus      *bus.Bus
	Socket   *socket.Manager
	Alerts   *alert.Gate
	Logger   *slog.Logger
	PageSize int
}

// Store is one consumer's view of the notification list. Multiple stores
// sharing a Bus converge on the same state: locally-committed mutations
// are rebroadcast and applied idempotently by siblings, and each store
// discards its own echo by instance id.
type Store struct {
	api        API
	bus        *bus.Bus
	sock       *socket.Manager
	alerts     *alert.Gate
	log        *slog.Logger
	instanceID string
	pageSize   int

	mu         sync.Mutex
	items      []models.Notification
	seen       map[string]bool
	unread     int
	stats      Stats
	pagination Pagination
	loading    bool
	lastErr    error
	connected  bool
	sockWired  bool

	reg  *socket.Registration
	offs []func()
}

func NewStore(a API, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{
		api:        a,
		bus:        opts.Bus,
		sock:       opts.Socket,
		alerts:     opts.Alerts,
		log:        opts.Logger,
		instanceID: uuid.NewString(),
		pageSize:   opts.PageSize,
		seen:       make(map[string]bool),
		stats:      newStats(),
	}
	s.subscribe()
	return s
}

func newStats() Stats {
	return Stats{BySeverity: make(map[string]int), ByType: make(map[string]int)}
}

// InstanceID identifies this store on the broadcast bus.
func (s *Store) InstanceID() string { return s.instanceID }

// Start runs the initial fetches and, when a socket manager was supplied,
// attaches to the shared connection.
func (s *Store) Start(ctx context.Context) error {
	s.ConnectSocket()
	return s.Refresh(ctx)
}

// Close tears down bus and socket subscriptions. The shared socket
// connection itself stays up for other consumers.
func (s *Store) Close() {
	s.mu.Lock()
	offs := s.offs
	s.offs = nil
	reg := s.reg
	s.reg = nil
	s.mu.Unlock()
	for _, off := range offs {
		off()
	}
	if reg != nil {
		reg.Remove()
	}
}

// ConnectSocket attaches to the shared connection exactly once per store;
// repeated calls are no-ops.
func (s *Store) ConnectSocket() {
	s.mu.Lock()
	if s.sock == nil || s.sockWired {
		s.mu.Unlock()
		return
	}
	s.sockWired = true
	s.mu.Unlock()

	off := s.sock.On(realtime.EventNewNotification, func(data json.RawMessage) {
		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			s.log.Warn("bad_notification_payload", "error", err.Error())
			return
		}
		s.handleNew(n, true)
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
	s.offs = append(s.offs, off)
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
		s.bus.Subscribe(bus.NotificationNew, func(ev bus.Event) {
			if ev.SourceID == s.instanceID {
				return
			}
			if n, ok := ev.Payload.(models.Notification); ok {
				s.handleNew(n, false)
			}
		}),
		s.bus.Subscribe(bus.NotificationRead, func(ev bus.Event) {
			if ev.SourceID == s.instanceID {
				return
			}
			if id, ok := ev.Payload.(string); ok {
				s.mu.Lock()
				s.applyRead(id, time.Now())
				s.mu.Unlock()
			}
		}),
		s.bus.Subscribe(bus.NotificationReadMany, func(ev bus.Event) {
			if ev.SourceID == s.instanceID {
				return
			}
			if ids, ok := ev.Payload.([]string); ok {
				now := time.Now()
				s.mu.Lock()
				for _, id := range ids {
					s.applyRead(id, now)
				}
				s.mu.Unlock()
			}
		}),
		s.bus.Subscribe(bus.NotificationDeleted, func(ev bus.Event) {
			if ev.SourceID == s.instanceID {
				return
			}
			if id, ok := ev.Payload.(string); ok {
				s.mu.Lock()
				s.applyDelete(id)
				s.mu.Unlock()
			}
		}),
	)
}

// Fetch replaces the list and pagination wholesale from the server. On
// failure the prior state stays intact.
func (s *Store) Fetch(ctx context.Context, params ListParams) error {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = s.pageSize
	}
	s.mu.Lock()
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()

	page, err := s.api.List(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return err
	}
	s.items = make([]models.Notification, len(page.Logs))
	copy(s.items, page.Logs)
	s.seen = make(map[string]bool, len(page.Logs))
	for _, n := range page.Logs {
		s.seen[n.ID] = true
	}
	s.pagination = Pagination{
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		HasNext:    page.Page < page.TotalPages,
	}
	return nil
}

// FetchUnreadCount reseeds the counter from the authoritative server
// total.
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

func (s *Store) FetchStats(ctx context.Context) error {
	stats, err := s.api.Stats(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return err
	}
	s.stats = copyStats(*stats)
	return nil
}

// Refresh runs the three authoritative fetches concurrently and returns
// the first error, if any.
func (s *Store) Refresh(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, 3)
	wg.Add(3)
	go func() { defer wg.Done(); errs[0] = s.Fetch(ctx, ListParams{}) }()
	go func() { defer wg.Done(); errs[1] = s.FetchUnreadCount(ctx) }()
	go func() { defer wg.Done(); errs[2] = s.FetchStats(ctx) }()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadMore appends the next page to the list. Calling it while a load is
// in flight, or when no next page exists, is a no-op.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.pagination.HasNext {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	next := s.pagination.Page + 1
	limit := s.pageSize
	s.mu.Unlock()

	page, err := s.api.List(ctx, ListParams{Page: next, Limit: limit})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return err
	}
	for _, n := range page.Logs {
		if s.seen[n.ID] {
			continue
		}
		s.seen[n.ID] = true
		s.items = append(s.items, n)
	}
	s.pagination = Pagination{
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		HasNext:    page.Page < page.TotalPages,
	}
	return nil
}

// MarkAsRead flips the notification to read locally, commits the change
// over REST, and broadcasts it to sibling instances. If the server
// rejects the change the local flip is reverted and the error returned.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	now := time.Now()
	s.mu.Lock()
	wasUnread := s.applyRead(id, now)
	s.mu.Unlock()

	if err := s.api.MarkRead(ctx, id); err != nil {
		if wasUnread {
			s.mu.Lock()
			s.revertRead(id)
			s.mu.Unlock()
		}
		return err
	}
	s.publish(bus.NotificationRead, id)
	return nil
}

// MarkManyAsRead is the batched variant. The counter moves by the number
// of ids that were actually unread, not by len(ids), so re-marking
// already-read notifications never over-decrements.
func (s *Store) MarkManyAsRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	s.mu.Lock()
	var affected []string
	for _, id := range ids {
		if s.applyRead(id, now) {
			affected = append(affected, id)
		}
	}
	s.mu.Unlock()

	if err := s.api.MarkManyRead(ctx, ids); err != nil {
		s.mu.Lock()
		for _, id := range affected {
			s.revertRead(id)
		}
		s.mu.Unlock()
		return err
	}
	s.publish(bus.NotificationReadMany, ids)
	return nil
}

// MarkAllAsRead marks every locally-known unread notification. It only
// touches the local cache's view of the set, not the full server set.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	var ids []string
	for _, n := range s.items {
		if n.Unread() {
			ids = append(ids, n.ID)
		}
	}
	s.mu.Unlock()
	return s.MarkManyAsRead(ctx, ids)
}

// Delete removes the notification locally, commits over REST, and
// broadcasts. A rejected delete reinserts the entry where it was.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	removed, at := s.applyDelete(id)
	s.mu.Unlock()

	if err := s.api.Delete(ctx, id); err != nil {
		if removed != nil {
			s.mu.Lock()
			s.reinsert(*removed, at)
			s.mu.Unlock()
		}
		return err
	}
	s.publish(bus.NotificationDeleted, id)
	return nil
}

// RequestAlertPermission wraps the alert prompt; it reports whether
// alerts for direct socket arrivals are now allowed.
func (s *Store) RequestAlertPermission() bool {
	if s.alerts == nil {
		return false
	}
	return s.alerts.Request()
}

// Snapshot returns a consistent copy of the store's state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.Notification, len(s.items))
	copy(items, s.items)
	return State{
		Notifications:   items,
		UnreadCount:     s.unread,
		Stats:           copyStats(s.stats),
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

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) SocketConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Store) publish(name string, payload any) {
	if s.bus != nil {
		s.bus.Publish(name, s.instanceID, payload)
	}
}

// handleNew merges an arriving notification. direct is true when this
// instance received it from the transport itself, in which case it is
// rebroadcast for siblings and may surface a local alert.
func (s *Store) handleNew(n models.Notification, direct bool) {
	s.mu.Lock()
	if s.seen[n.ID] {
		s.mu.Unlock()
		return
	}
	s.seen[n.ID] = true
	s.items = append([]models.Notification{n}, s.items...)
	s.pagination.Total++
	s.stats.Total++
	if n.Unread() {
		s.unread++
		s.stats.Unread++
		s.stats.BySeverity[n.Severity]++
		s.stats.ByType[n.Type]++
	}
	s.mu.Unlock()

	if direct {
		s.publish(bus.NotificationNew, n)
		if s.alerts != nil {
			s.alerts.Notify(n.Title, n.Message)
		}
	}
}

// applyRead flips the entity to read and adjusts counters, returning
// whether it was previously unread. Already-read entities are untouched,
// which keeps re-marking idempotent. Caller holds mu.
func (s *Store) applyRead(id string, at time.Time) bool {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].Unread() {
			return false
		}
		s.items[i].Status = models.StatusRead
		readAt := at
		s.items[i].ReadAt = &readAt
		decr(&s.unread, 1)
		decr(&s.stats.Unread, 1)
		decrBucket(s.stats.BySeverity, s.items[i].Severity)
		decrBucket(s.stats.ByType, s.items[i].Type)
		return true
	}
	return false
}

// revertRead is the compensating action for a rejected mark-as-read.
// Caller holds mu.
func (s *Store) revertRead(id string) {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if s.items[i].Unread() {
			return
		}
		s.items[i].Status = models.StatusUnread
		s.items[i].ReadAt = nil
		s.unread++
		s.stats.Unread++
		s.stats.BySeverity[s.items[i].Severity]++
		s.stats.ByType[s.items[i].Type]++
		return
	}
}

// applyDelete removes the entity and adjusts counters, returning the
// removed entity and its position for possible reinsertion. Caller
// holds mu.
func (s *Store) applyDelete(id string) (*models.Notification, int) {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		removed := s.items[i]
		s.items = append(s.items[:i], s.items[i+1:]...)
		delete(s.seen, id)
		decr(&s.pagination.Total, 1)
		decr(&s.stats.Total, 1)
		if removed.Unread() {
			decr(&s.unread, 1)
			decr(&s.stats.Unread, 1)
			decrBucket(s.stats.BySeverity, removed.Severity)
			decrBucket(s.stats.ByType, removed.Type)
		}
		return &removed, i
	}
	return nil, 0
}

// reinsert is the compensating action for a rejected delete. Caller
// holds mu.
func (s *Store) reinsert(n models.Notification, at int) {
	if s.seen[n.ID] {
		return
	}
	if at > len(s.items) {
		at = len(s.items)
	}
	s.items = append(s.items[:at], append([]models.Notification{n}, s.items[at:]...)...)
	s.seen[n.ID] = true
	s.pagination.Total++
	s.stats.Total++
	if n.Unread() {
		s.unread++
		s.stats.Unread++
		s.stats.BySeverity[n.Severity]++
		s.stats.ByType[n.Type]++
	}
}

func copyStats(in Stats) Stats {
	out := Stats{Total: in.Total, Unread: in.Unread, BySeverity: make(map[string]int, len(in.BySeverity)), ByType: make(map[string]int, len(in.ByType))}
	for k, v := range in.BySeverity {
		out.BySeverity[k] = v
	}
	for k, v := range in.ByType {
		out.ByType[k] = v
	}
	return out
}

// Counters are eventually consistent approximations; clamping keeps them
// from going negative when an adjustment races a reseed.
func decr(v *int, by int) {
	*v -= by
	if *v < 0 {
		*v = 0
	}
}

func decrBucket(m map[string]int, key string) {
	if m == nil {
		return
	}
	if m[key] > 0 {
		m[key]--
	} else {
		delete(m, key)
	}
}
