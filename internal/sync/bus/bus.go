package bus

import "sync"

// Event names carried on the bus. Read/delete events carry the ids needed
// to replay the mutation; new-entity events carry the full record.
const (
	NotificationNew      = "notification:new"
	NotificationRead     = "notification:read"
	NotificationReadMany = "notification:readMany"
	NotificationDeleted  = "notification:deleted"
	MessageNew           = "message:new"
	MessageRead          = "message:read"
)

// Event is a same-process broadcast between sync store instances.
// SourceID identifies the instance that published it so that instance can
// discard its own echo.
type Event struct {
	Name     string
	SourceID string
	Payload  any
}

type Handler func(Event)

// Bus is an in-process publish/subscribe channel. Handlers run
// synchronously in the publishing goroutine, so a published mutation is
// visible to every sibling instance before Publish returns.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func New() *Bus {
	return &Bus{
		handlers: make(map[string]map[int]Handler),
	}
}

// Subscribe registers h for events named name and returns a function that
// removes the registration. Callers must unsubscribe on teardown.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.handlers[name]
	if set == nil {
		set = make(map[int]Handler)
		b.handlers[name] = set
	}
	id := b.nextID
	b.nextID++
	set[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.handlers[name]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(b.handlers, name)
			}
		}
	}
}

// Publish delivers the event to every handler subscribed to name.
// Handlers are invoked outside the bus lock so they may subscribe or
// unsubscribe while handling.
func (b *Bus) Publish(name, sourceID string, payload any) {
	b.mu.RLock()
	snapshot := make([]Handler, 0, len(b.handlers[name]))
	for _, h := range b.handlers[name] {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()

	ev := Event{Name: name, SourceID: sourceID, Payload: payload}
	for _, h := range snapshot {
		h(ev)
	}
}
