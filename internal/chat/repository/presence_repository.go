package repository

import (
	"context"
	"fmt"
	"time"

	"chat_delivery_service/internal/chat/domain"

	"github.com/go-redis/redis/v8"
)

// PresenceRepository definition presence and unread counter store.
// Presence is a sliding-TTL marker key, a user is online iff the key
// exists. Unread counters only go up here, reset belongs to the
// mark-read collaborator.
type PresenceRepository interface {
	MarkOnline(ctx context.Context, userID int64) error
	GetStatus(ctx context.Context, userID int64) (string, error)
	IncrUnread(ctx context.Context, conversationID, userID int64) (int64, error)
	GetUnread(ctx context.Context, conversationID, userID int64) (int64, error)
}

type redisPresenceRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceRepository create a PresenceRepository over redis
func NewPresenceRepository(client *redis.Client, ttl time.Duration) PresenceRepository {
	return &redisPresenceRepository{client: client, ttl: ttl}
}

// PresenceKey redis key of one user presence marker
func PresenceKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// UnreadKey redis key of one (conversation, user) unread counter
func UnreadKey(conversationID, userID int64) string {
	return fmt.Sprintf("unread:conv:%d:user:%d", conversationID, userID)
}

// MarkOnline set or refresh the presence marker with a fresh TTL
func (r *redisPresenceRepository) MarkOnline(ctx context.Context, userID int64) error {
	return r.client.Set(ctx, PresenceKey(userID), domain.StatusOnline, r.ttl).Err()
}

// GetStatus online iff the presence key still exists
func (r *redisPresenceRepository) GetStatus(ctx context.Context, userID int64) (string, error) {
	_, err := r.client.Get(ctx, PresenceKey(userID)).Result()
	if err == redis.Nil {
		return domain.StatusOffline, nil
	} else if err != nil {
		return "", fmt.Errorf("failed to get presence for user %d: %w", userID, err)
	}
	return domain.StatusOnline, nil
}

// IncrUnread single atomic INCR, no read-modify-write from this side
func (r *redisPresenceRepository) IncrUnread(ctx context.Context, conversationID, userID int64) (int64, error) {
	n, err := r.client.Incr(ctx, UnreadKey(conversationID, userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr unread for conv %d user %d: %w", conversationID, userID, err)
	}
	return n, nil
}

// GetUnread missing counter reads as zero
func (r *redisPresenceRepository) GetUnread(ctx context.Context, conversationID, userID int64) (int64, error) {
	n, err := r.client.Get(ctx, UnreadKey(conversationID, userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to get unread for conv %d user %d: %w", conversationID, userID, err)
	}
	return n, nil
}
