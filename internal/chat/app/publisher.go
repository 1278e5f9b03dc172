package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"chat_delivery_service/internal/chat/domain"
)

// EventAppender producer side of the event log
type EventAppender interface {
	Append(ctx context.Context, key, value []byte) error
}

// MessagePublisher is the publish path. Called by the message-creation
// collaborator only after the record is durable in the relational
// store. An append failure means "persisted but delivery not
// guaranteed", the persisted message is never rolled back from here.
type MessagePublisher struct {
	log EventAppender
}

// NewMessagePublisher create a MessagePublisher
func NewMessagePublisher(log EventAppender) *MessagePublisher {
	return &MessagePublisher{log: log}
}

// Publish append one delivery event, keyed by conversation id so the
// log preserves per-conversation order
func (p *MessagePublisher) Publish(ctx context.Context, msg domain.MessageRecord) error {
	event := domain.DeliveryEvent{
		Event:          domain.EventMessageSent,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery event for message %d: %w", msg.ID, err)
	}

	key := []byte(strconv.FormatInt(msg.ConversationID, 10))
	if err := p.log.Append(ctx, key, value); err != nil {
		return fmt.Errorf("message %d persisted but delivery event append failed: %w", msg.ID, err)
	}
	return nil
}
