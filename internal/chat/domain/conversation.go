package domain

import "time"

// Conversation relational model, owned by the CRUD collaborator. The
// delivery core only reads it to resolve recipients.
type Conversation struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"size:200" json:"title"`
	IsGroup   bool      `gorm:"not null;default:false" json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName conversations table
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant membership row (conversation_id, user_id)
type ConversationParticipant struct {
	ConversationID int64  `gorm:"primaryKey" json:"conversation_id"`
	UserID         int64  `gorm:"primaryKey" json:"user_id"`
	Role           string `gorm:"size:20;not null;default:member" json:"role"`
}

// TableName conversation_participants table
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}
