package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chat_delivery_service/pkg/database"
	"chat_delivery_service/pkg/logger"
	testtool "chat_delivery_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisRepository(t *testing.T, ttl time.Duration) PresenceRepository {
	t.Helper()
	logger.SetNewNop()
	ctx := context.Background()

	container, host, port, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:latest",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	client, err := database.NewRedisClient(database.RedisConnection{
		Addr:          fmt.Sprintf("%s:%s", host, port),
		DB:            0,
		RetryCount:    5,
		RetryInterval: 1,
	})
	require.NoError(t, err)

	return NewPresenceRepository(client, ttl)
}

func TestRedisPresenceRepository_PresenceLifecycle(t *testing.T) {
	repo := setupRedisRepository(t, 2*time.Second)
	ctx := context.Background()

	status, err := repo.GetStatus(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, "offline", status)

	assert.NoError(t, repo.MarkOnline(ctx, 7))
	status, err = repo.GetStatus(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, "online", status)

	// each refresh pushes the expiry forward
	time.Sleep(1500 * time.Millisecond)
	assert.NoError(t, repo.MarkOnline(ctx, 7))
	time.Sleep(1500 * time.Millisecond)
	status, err = repo.GetStatus(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, "online", status)

	// left alone, the key lapses and the user reads offline
	assert.Eventually(t, func() bool {
		s, err := repo.GetStatus(ctx, 7)
		return err == nil && s == "offline"
	}, 5*time.Second, 200*time.Millisecond)
}

func TestRedisPresenceRepository_UnreadCounters(t *testing.T) {
	repo := setupRedisRepository(t, time.Minute)
	ctx := context.Background()

	count, err := repo.GetUnread(ctx, 42, 9)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	n, err := repo.IncrUnread(ctx, 42, 9)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.IncrUnread(ctx, 42, 9)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err = repo.GetUnread(ctx, 42, 9)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// counters are scoped per conversation and per user
	count, err = repo.GetUnread(ctx, 42, 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
	count, err = repo.GetUnread(ctx, 43, 9)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
