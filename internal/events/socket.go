package events

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/logging"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// RequireUpgrade rejects plain HTTP requests to the socket route
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler serves the event socket. Incoming messages are ignored; the read loop
// only detects disconnects.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(logging.UserIDLocal).(string)
		client := h.Register(userID)
		defer h.Unregister(client)
		h.log.Debug().Str("user_id", userID).Msg("Event socket connected")

		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.Unregister(client)
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case msg := <-client.Messages():
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-client.Done():
				return
			}
		}
	})
}
