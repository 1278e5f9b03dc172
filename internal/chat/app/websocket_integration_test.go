package app

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"chat_delivery_service/internal/chat/domain"
	"chat_delivery_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// full path: fiber upgrade, registry registration, broadcast to a real
// websocket client, disconnect on client close
func TestChatWebsocketHandler_EndToEndDelivery(t *testing.T) {
	logger.SetNewNop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	presence := &countingPresence{}
	registry := NewConnectionRegistry(presence)
	handler := NewChatWebsocketHandler(registry, 50*time.Millisecond)

	fiberApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	fiberApp.Get("/ws", websocket.New(func(c *websocket.Conn) {
		handler.Serve(ctx, c)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = fiberApp.Listener(ln) }()
	defer fiberApp.Shutdown()

	url := fmt.Sprintf("ws://%s/ws?user_id=7", ln.Addr().String())
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Eventually(t, func() bool {
		return registry.LiveChannels(7) == 1
	}, 2*time.Second, 10*time.Millisecond)

	report := registry.Broadcast(ctx, []int64{7, 9}, domain.WSEnvelope{
		Type: domain.EnvelopeMessageNew,
		Data: map[string]interface{}{"message_id": 1},
	})
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, []int64{9}, report.Offline)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(frame), domain.EnvelopeMessageNew)

	client.Close()
	assert.Eventually(t, func() bool {
		return registry.LiveChannels(7) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatWebsocketHandler_RejectsInvalidUserID(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	presence := &countingPresence{}
	registry := NewConnectionRegistry(presence)
	handler := NewChatWebsocketHandler(registry, time.Second)

	fiberApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	fiberApp.Get("/ws", websocket.New(func(c *websocket.Conn) {
		handler.Serve(ctx, c)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = fiberApp.Listener(ln) }()
	defer fiberApp.Shutdown()

	url := fmt.Sprintf("ws://%s/ws?user_id=abc", ln.Addr().String())
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	// server closes right away, nothing gets registered
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = client.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, registry.LiveChannels(0))
}
