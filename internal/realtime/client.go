package realtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const ( // ping pong (2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time to write a message to the peer
	PongWait       = 60 * time.Second    // no pong within this window = dead connection
	PingPeriod     = (PongWait * 9) / 10 // send pings before the pong window expires
	MaxMessageSize = 512                 // maximum inbound frame size from peer
)

// Inbound frames from clients are acknowledgement/keepalive only, so a
// small steady budget is plenty; anything past it is a misbehaving
// client.
const inboundRateLimit = rate.Limit(5)

type Client struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	limiter *rate.Limiter
}

func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:      uuid.NewString(),
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, 64),
		hub:     hub,
		limiter: rate.NewLimiter(inboundRateLimit, 10),
	}
}

// ReadPump consumes inbound frames until the connection dies. The server
// pushes events one way; inbound traffic only refreshes liveness, so
// frames are read and discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.hub.log.Warn("client_flooding", "client_id", c.ID, "user_id", c.UserID)
			return
		}
	}
}

// WritePump drains the send channel to the peer and keeps the heartbeat
// going.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
