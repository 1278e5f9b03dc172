package database

import (
	"context"
	"fmt"
	"time"

	"chat_delivery_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewRedisClient init redis connection, ping until it answers
func NewRedisClient(r RedisConnection) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: r.Addr,
		DB:   r.DB,
	})

	var err error
	for attempt := 1; attempt <= r.RetryCount; attempt++ {
		err = rdb.Ping(context.Background()).Err()
		if err == nil {
			return rdb, nil
		}

		logger.Log.Warn("Failed to connect to redis, retrying...",
			zap.Int("attempt", attempt),
			zap.String("address", r.Addr),
			zap.Error(err),
		)
		time.Sleep(r.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to redis [%s] after %d attempts: %w", r.Addr, r.RetryCount, err)
}
