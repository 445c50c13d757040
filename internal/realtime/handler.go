package realtime

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin in development; auth is by
	// token, not origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades an authenticated request to a websocket and parks it
// in the hub. validate resolves a bearer token to a user id; the token
// is taken from the Authorization header or, for browser websocket
// clients that cannot set headers, a "token" query parameter.
func Handler(hub *Hub, validate func(token string) (userID string, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			header := c.GetHeader("Authorization")
			if parts := strings.Split(header, " "); len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		userID, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}

		client := NewClient(userID, conn, hub)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
