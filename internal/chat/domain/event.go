package domain

import "time"

const (
	// EventMessageSent event kind produced once per persisted message
	EventMessageSent = "message.sent"

	// EnvelopeMessageNew websocket envelope type pushed to clients
	EnvelopeMessageNew = "message.new"
)

// DeliveryEvent is the unit of work flowing from message creation to
// fan-out. Produced once by the publish path, consumed at-least-once by
// the delivery bridge, never mutated.
type DeliveryEvent struct {
	Event          string `json:"event"`
	MessageID      int64  `json:"message_id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// MessageRecord is a message already durable in the relational store,
// handed to the publish path by the message-creation collaborator.
type MessageRecord struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// WSEnvelope is the JSON frame pushed to live channels
type WSEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
