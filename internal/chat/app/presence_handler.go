package app

import (
	"strconv"

	"chat_delivery_service/internal/chat/domain"
	"chat_delivery_service/internal/chat/repository"

	"github.com/gofiber/fiber/v2"
)

// PresenceHandler read-only REST surface over the presence/unread store
type PresenceHandler struct {
	presence repository.PresenceRepository
}

// NewPresenceHandler create PresenceHandler
func NewPresenceHandler(presence repository.PresenceRepository) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// GetPresence GET /presence/:user_id
func (h *PresenceHandler) GetPresence(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user_id"})
	}

	status, err := h.presence.GetStatus(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(domain.PresenceInfo{UserID: userID, Status: status})
}

// GetUnread GET /conversations/:conv_id/unread?user_id=N
func (h *PresenceHandler) GetUnread(c *fiber.Ctx) error {
	conversationID, err := strconv.ParseInt(c.Params("conv_id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid conv_id"})
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user_id"})
	}

	unread, err := h.presence.GetUnread(c.Context(), conversationID, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(domain.UnreadInfo{
		ConversationID: conversationID,
		UserID:         userID,
		Unread:         unread,
	})
}
