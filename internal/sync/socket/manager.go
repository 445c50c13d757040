// Package socket owns the client side of the realtime push channel.
// One Manager holds at most one websocket connection per process, shared
// by every sync store that wants live events.
package socket

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Callbacks is the transport-lifecycle callback set a consumer registers
// when attaching to the shared connection. Nil fields are simply skipped.
type Callbacks struct {
	OnConnect    func()
	OnDisconnect func(error)
	OnError      func(error)
}

// EventHandler receives the raw payload of a named server event.
type EventHandler func(data json.RawMessage)

// frame is the wire shape pushed by the server: {"event":..., "data":...}
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var ErrNoEndpoint = errors.New("socket: endpoint not configured")

// Registration represents one consumer's callback set on the shared
// connection. Update swaps handlers without touching the transport, which
// consumers need because their handlers close over state that changes.
type Registration struct {
	m  *Manager
	id int
}

// Update merges the non-nil fields of cb over the registered set. The
// connection stays up and no events are dropped during the swap.
func (r *Registration) Update(cb Callbacks) {
	if r == nil || r.m == nil {
		return
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.regs[r.id]
	if !ok {
		return
	}
	if cb.OnConnect != nil {
		cur.OnConnect = cb.OnConnect
	}
	if cb.OnDisconnect != nil {
		cur.OnDisconnect = cb.OnDisconnect
	}
	if cb.OnError != nil {
		cur.OnError = cb.OnError
	}
	r.m.regs[r.id] = cur
}

// Remove drops the callback set. The connection itself stays up for the
// remaining consumers.
func (r *Registration) Remove() {
	if r == nil || r.m == nil {
		return
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.regs, r.id)
}

// Manager multiplexes one websocket connection across any number of
// consumers. Connect is idempotent: the first caller dials, later callers
// only add their callback set. Reconnection policy stays with the caller;
// the manager's only job is to never multiply connections.
type Manager struct {
	mu     sync.Mutex
	url    string
	header http.Header
	dialer *websocket.Dialer

	conn       *websocket.Conn
	connected  bool
	dialing    bool
	manualStop bool

	nextRegID int
	regs      map[int]Callbacks

	nextHandlerID int
	handlers      map[string]map[int]EventHandler
}

func NewManager() *Manager {
	return &Manager{
		dialer:   websocket.DefaultDialer,
		regs:     make(map[int]Callbacks),
		handlers: make(map[string]map[int]EventHandler),
	}
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide shared manager.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// SetEndpoint configures where Connect dials. Must be set before the
// first Connect; later calls only affect future dials.
func (m *Manager) SetEndpoint(url string, header http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
	m.header = header
}

// Connect registers cb and ensures the transport is up. If a connection
// already exists the caller's OnConnect fires immediately and no second
// dial happens. If another caller is mid-dial, this caller just waits for
// that dial's outcome via its callbacks. Dial failures are reported
// through OnError, never returned.
func (m *Manager) Connect(cb Callbacks) *Registration {
	m.mu.Lock()
	id := m.nextRegID
	m.nextRegID++
	m.regs[id] = cb
	reg := &Registration{m: m, id: id}

	if m.connected {
		m.mu.Unlock()
		if cb.OnConnect != nil {
			cb.OnConnect()
		}
		return reg
	}
	if m.dialing {
		m.mu.Unlock()
		return reg
	}
	if m.url == "" {
		m.mu.Unlock()
		if cb.OnError != nil {
			cb.OnError(ErrNoEndpoint)
		}
		return reg
	}
	m.dialing = true
	url, header := m.url, m.header
	m.mu.Unlock()

	conn, resp, err := m.dialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	m.mu.Lock()
	m.dialing = false
	if err != nil {
		cbs := m.snapshotRegsLocked()
		m.mu.Unlock()
		for _, c := range cbs {
			if c.OnError != nil {
				c.OnError(err)
			}
		}
		return reg
	}
	m.conn = conn
	m.connected = true
	m.manualStop = false
	cbs := m.snapshotRegsLocked()
	m.mu.Unlock()

	go m.readPump(conn)

	for _, c := range cbs {
		if c.OnConnect != nil {
			c.OnConnect()
		}
	}
	return reg
}

// On subscribes a handler for a named server event and returns a function
// that removes it. This is the single subscription surface for domain
// events; there is no raw transport escape hatch.
func (m *Manager) On(event string, h EventHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.handlers[event]
	if set == nil {
		set = make(map[int]EventHandler)
		m.handlers[event] = set
	}
	id := m.nextHandlerID
	m.nextHandlerID++
	set[id] = h

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if set, ok := m.handlers[event]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(m.handlers, event)
			}
		}
	}
}

// Disconnect closes the transport. Safe to call when never connected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	if conn != nil {
		m.manualStop = true
	}
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Manager) snapshotRegsLocked() []Callbacks {
	cbs := make([]Callbacks, 0, len(m.regs))
	for _, c := range m.regs {
		cbs = append(cbs, c)
	}
	return cbs
}

// readPump reads frames until the connection dies, dispatching each to
// the handlers registered for its event name.
func (m *Manager) readPump(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			m.mu.Lock()
			if m.conn != conn {
				// A newer connection replaced this one; nothing to report.
				m.mu.Unlock()
				return
			}
			manual := m.manualStop
			m.conn = nil
			m.connected = false
			m.manualStop = false
			cbs := m.snapshotRegsLocked()
			m.mu.Unlock()

			conn.Close()
			if manual {
				err = nil
			}
			for _, c := range cbs {
				if c.OnDisconnect != nil {
					c.OnDisconnect(err)
				}
			}
			return
		}

		m.mu.Lock()
		hs := make([]EventHandler, 0, len(m.handlers[f.Event]))
		for _, h := range m.handlers[f.Event] {
			hs = append(hs, h)
		}
		m.mu.Unlock()

		for _, h := range hs {
			h(f.Data)
		}
	}
}
