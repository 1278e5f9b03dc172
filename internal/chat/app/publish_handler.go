package app

import (
	"time"

	"chat_delivery_service/internal/chat/domain"
	"chat_delivery_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PublishHandler ingress the message-creation collaborator calls after
// its record is durable. POST /publish body is the persisted record.
type PublishHandler struct {
	publisher *MessagePublisher
}

// NewPublishHandler create PublishHandler
func NewPublishHandler(publisher *MessagePublisher) *PublishHandler {
	return &PublishHandler{publisher: publisher}
}

// Publish POST /publish. 202 once the event is in the log. A failed
// append is a partial success: the message stays persisted upstream,
// only delivery is not guaranteed, so the answer is 502 and not a
// rollback.
func (h *PublishHandler) Publish(c *fiber.Ctx) error {
	var msg domain.MessageRecord
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid message record"})
	}
	if msg.ID <= 0 || msg.ConversationID <= 0 || msg.SenderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id, conversation_id and sender_id are required"})
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := h.publisher.Publish(c.Context(), msg); err != nil {
		logger.Log.Error("publish failed", zap.Int64("messageID", msg.ID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"ok":    false,
			"id":    msg.ID,
			"error": "message persisted, delivery not guaranteed",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "id": msg.ID})
}
