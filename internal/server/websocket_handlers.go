package server

import (
	"encoding/json"
	"log/slog"

	"confessional/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedHandler streams user and operator notifications to the chat gateway.
// It must be mounted behind WebSocketAuthRequired.
func (s *Server) FeedHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		actor, _ := conn.Locals("userID").(int64)
		if actor == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"feed unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(actor, conn)
		if err != nil {
			middleware.Logger.Warn("feed registration refused",
				slog.Int64("actor", actor), slog.String("error", err.Error()))
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}

		middleware.Logger.Info("feed connected", slog.Int64("actor", actor))
		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
