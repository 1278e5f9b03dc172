package app

import (
	"context"
	"strconv"
	"time"

	"chat_delivery_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// ClientConn full surface the handler needs from one websocket
// connection. *websocket.Conn satisfies it.
type ClientConn interface {
	ChannelConn
	ReadMessage() (int, []byte, error)
}

// ChatWebsocketHandler owns the lifecycle of one client channel:
// handshake, heartbeat loop, teardown
type ChatWebsocketHandler struct {
	registry  *ConnectionRegistry
	heartbeat time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(registry *ConnectionRegistry, heartbeat time.Duration) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		registry:  registry,
		heartbeat: heartbeat,
	}
}

// Serve entry point wired into the fiber /ws route. The user id comes
// in as a query param at connect time.
func (h *ChatWebsocketHandler) Serve(ctx context.Context, conn *websocket.Conn) {
	userID, err := strconv.ParseInt(conn.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		logger.Log.Warn("websocket rejected, invalid user_id", zap.String("raw", conn.Query("user_id")))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid user_id"))
		conn.Close()
		return
	}
	h.HandleConnection(ctx, userID, conn)
}

// HandleConnection run the channel until it dies. A reader goroutine
// pumps inbound frames into a Go channel so the loop can race them
// against the heartbeat ticker: whichever fires first refreshes
// presence. Inbound payloads are liveness signals only, their content
// is ignored.
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, userID int64, conn ClientConn) {
	ch := NewChannel(userID, conn)
	h.registry.Connect(ctx, userID, ch)
	logger.Log.Info("websocket connected", zap.Int64("userID", userID))

	defer func() {
		h.registry.Disconnect(ctx, userID, ch)
		logger.Log.Info("websocket closed", zap.Int64("userID", userID))
	}()

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- msg:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-frames:
			h.refresh(ctx, userID)
		case <-ticker.C:
			h.refresh(ctx, userID)
		case err := <-readErr:
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("websocket close frame", zap.Int64("userID", userID))
			} else {
				logger.Log.Warn("websocket read error", zap.Int64("userID", userID), zap.Error(err))
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *ChatWebsocketHandler) refresh(ctx context.Context, userID int64) {
	if err := h.registry.RefreshPresence(ctx, userID); err != nil {
		logger.Log.Warn("presence refresh failed", zap.Int64("userID", userID), zap.Error(err))
	}
}
