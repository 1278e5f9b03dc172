package repository

import (
	"context"
	"errors"

	"chat_delivery_service/internal/chat/domain"

	"gorm.io/gorm"
)

// ErrConversationNotFound conversation id is unknown to the membership store
var ErrConversationNotFound = errors.New("conversation not found")

// MemberRepository definition conversation membership lookup. The rows
// are written by the CRUD collaborator, this side only reads.
type MemberRepository interface {
	AutoMigrate() error
	ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

// AutoMigrate keep conversations and conversation_participants in sync
func (r *memberRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Conversation{}, &domain.ConversationParticipant{})
}

// ParticipantIDs all user ids of one conversation
func (r *memberRepository) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrConversationNotFound
	}

	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
