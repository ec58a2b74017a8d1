package handler

import (
	"context"
	"os"

	"github.com/philippzach/growth-gpt-sub000/internal/actor"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	internalWS "github.com/philippzach/growth-gpt-sub000/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StreamHandler upgrades websocket requests and attaches connections to
// their session actor.
type StreamHandler struct {
	manager *actor.Manager
	logger  logger.ILogger
}

func NewStreamHandler(manager *actor.Manager, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		manager: manager,
		logger:  log,
	}
}

// ServeWs handles websocket requests from the peer. The token travels as
// a query param (browsers cannot set headers on websocket handshakes) with
// the Authorization header as fallback for tooling.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("StreamHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	sessionId, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	// Ownership check happens before the upgrade so an attacker probing
	// foreign session ids never gets a websocket at all.
	session, err := h.manager.Snapshot(c.Context(), sessionId)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	if session.UserId != userId {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Session belongs to another user"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("StreamHandler", "Starting WebSocket session", map[string]interface{}{
				"session_id": sessionId, "user_id": userId,
			})
			client := internalWS.NewClient(conn, sessionId, userId, h.manager)
			if err := h.manager.Attach(context.Background(), client); err != nil {
				h.logger.Error("StreamHandler", "Attach failed", map[string]interface{}{
					"session_id": sessionId, "error": err.Error(),
				})
				conn.Close()
				return
			}
			client.Run()
			h.logger.Info("StreamHandler", "WebSocket session ended", map[string]interface{}{
				"session_id": sessionId, "user_id": userId,
			})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the streaming route.
func (h *StreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/:id", h.ServeWs)
}
