package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chat_delivery_service/internal/chat/repository"
	"chat_delivery_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// ErrChannelClosed send attempted on a channel already torn down
var ErrChannelClosed = errors.New("channel closed")

// defaultSendTimeout bound on a single frame write, a peer that can't
// drain its socket within this window counts as a failed send
const defaultSendTimeout = 5 * time.Second

// ChannelConn is the send surface one live websocket connection exposes
// to the registry. *websocket.Conn satisfies it.
type ChannelConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Channel is one live client session of a user. Created on a successful
// handshake, closed exactly once, never reused after that.
type Channel struct {
	UserID    int64
	CreatedAt time.Time

	conn        ChannelConn
	sendTimeout time.Duration
	mu          sync.Mutex
	closed      bool
}

// NewChannel create a Channel for a registered user connection
func NewChannel(userID int64, conn ChannelConn) *Channel {
	return &Channel{
		UserID:      userID,
		CreatedAt:   time.Now(),
		conn:        conn,
		sendTimeout: defaultSendTimeout,
	}
}

// Send push one text frame, writes on the same channel are serialized.
// Every write carries a deadline so a stalled peer costs at most the
// send timeout, deadline expiry surfaces as a write error.
func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Alive report whether the channel has been closed
func (c *Channel) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close tear down the underlying connection, safe to call repeatedly
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if err := c.conn.Close(); err != nil {
		logger.Log.Debug("channel close", zap.Int64("userID", c.UserID), zap.Error(err))
	}
}

// DeliveryReport outcome of one Broadcast call
type DeliveryReport struct {
	// Delivered channels that accepted the payload
	Delivered int
	// Failed channels dropped after a failed send
	Failed int
	// Offline recipients the payload never reached: zero live channels,
	// or an unsendable payload. Not retried here, durability is the
	// event log's job.
	Offline []int64
}

// ConnectionRegistry maps a user id to its live channels on this
// process. It answers "who is connected here right now", nothing
// cross-process. Injected everywhere it is needed, no singleton.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	channels map[int64]map[*Channel]struct{}
	presence repository.PresenceRepository
}

// NewConnectionRegistry create a ConnectionRegistry
func NewConnectionRegistry(presence repository.PresenceRepository) *ConnectionRegistry {
	return &ConnectionRegistry{
		channels: make(map[int64]map[*Channel]struct{}),
		presence: presence,
	}
}

// Connect register a live channel, multi-device allowed, and refresh
// the user's presence marker
func (r *ConnectionRegistry) Connect(ctx context.Context, userID int64, ch *Channel) {
	r.mu.Lock()
	set, ok := r.channels[userID]
	if !ok {
		set = make(map[*Channel]struct{})
		r.channels[userID] = set
	}
	set[ch] = struct{}{}
	r.mu.Unlock()

	if err := r.presence.MarkOnline(ctx, userID); err != nil {
		logger.Log.Warn("failed to mark presence on connect",
			zap.Int64("userID", userID), zap.Error(err))
	}
}

// Disconnect remove a channel and close it. Idempotent: duplicate or
// late disconnects and never-registered channels are no-ops. An emptied
// user entry is pruned immediately. The presence TTL is left to lapse
// so brief reconnects don't flicker presence.
func (r *ConnectionRegistry) Disconnect(ctx context.Context, userID int64, ch *Channel) {
	r.mu.Lock()
	if set, ok := r.channels[userID]; ok {
		if _, registered := set[ch]; registered {
			delete(set, ch)
			if len(set) == 0 {
				delete(r.channels, userID)
			}
		}
	}
	r.mu.Unlock()

	ch.Close()
}

// RefreshPresence re-extend the presence TTL, driven by the channel
// heartbeat loop
func (r *ConnectionRegistry) RefreshPresence(ctx context.Context, userID int64) error {
	return r.presence.MarkOnline(ctx, userID)
}

// LiveChannels current live channel count of one user
func (r *ConnectionRegistry) LiveChannels(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[userID])
}

// Broadcast send payload to every live channel of every named user. A
// failed or timed-out send drops only that channel (implicit
// disconnect) and never blocks delivery to the rest. Recipients without
// a live channel are reported as offline, not an error. A payload that
// can't be marshalled reaches nobody, every recipient comes back in
// Offline so the caller can tell it apart from a clean no-op.
func (r *ConnectionRegistry) Broadcast(ctx context.Context, userIDs []int64, payload interface{}) DeliveryReport {
	var report DeliveryReport

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Error("broadcast payload marshal failed", zap.Error(err))
		seen := make(map[int64]struct{}, len(userIDs))
		for _, userID := range userIDs {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
			report.Offline = append(report.Offline, userID)
		}
		return report
	}

	seen := make(map[int64]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		channels := r.channelsFor(userID)
		if len(channels) == 0 {
			report.Offline = append(report.Offline, userID)
			continue
		}

		for _, ch := range channels {
			if err := ch.Send(data); err != nil {
				logger.Log.Warn("send failed, dropping channel",
					zap.Int64("userID", userID), zap.Error(err))
				r.Disconnect(ctx, userID, ch)
				report.Failed++
				continue
			}
			report.Delivered++
		}
	}

	return report
}

// CloseAll shutdown path, every channel goes through Disconnect so the
// map is fully pruned before it is abandoned
func (r *ConnectionRegistry) CloseAll(ctx context.Context) {
	r.mu.RLock()
	pairs := make(map[int64][]*Channel, len(r.channels))
	for userID, set := range r.channels {
		for ch := range set {
			pairs[userID] = append(pairs[userID], ch)
		}
	}
	r.mu.RUnlock()

	for userID, channels := range pairs {
		for _, ch := range channels {
			r.Disconnect(ctx, userID, ch)
		}
	}
}

// channelsFor snapshot of one user's channels, sends happen outside
// the registry lock
func (r *ConnectionRegistry) channelsFor(userID int64) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.channels[userID]
	if len(set) == 0 {
		return nil
	}
	channels := make([]*Channel, 0, len(set))
	for ch := range set {
		channels = append(channels, ch)
	}
	return channels
}
