package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chat_delivery_service/internal/chat/domain"
	"chat_delivery_service/internal/chat/repository"
	"chat_delivery_service/pkg/logger"

	"go.uber.org/zap"
)

// EventSource consuming side of the event log, Next blocks until an
// event is available or ctx is cancelled
type EventSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// Broadcaster fan-out capability the bridge is constructed with,
// *ConnectionRegistry in production
type Broadcaster interface {
	Broadcast(ctx context.Context, userIDs []int64, payload interface{}) DeliveryReport
}

// DeliveryBridge is the single background task that moves events from
// the log to live channels: resolve recipients, bump unread counters,
// broadcast. One poisoned event never stalls the ones after it.
type DeliveryBridge struct {
	source   EventSource
	members  repository.MemberRepository
	presence repository.PresenceRepository
	caster   Broadcaster

	// sourceBackoff wait after a transient source error before the
	// next pull
	sourceBackoff time.Duration
}

// NewDeliveryBridge create a DeliveryBridge
func NewDeliveryBridge(
	source EventSource,
	members repository.MemberRepository,
	presence repository.PresenceRepository,
	caster Broadcaster,
) *DeliveryBridge {
	return &DeliveryBridge{
		source:        source,
		members:       members,
		presence:      presence,
		caster:        caster,
		sourceBackoff: time.Second,
	}
}

// Run consume until ctx is cancelled. Consumption is at-least-once:
// after a crash/restart the same event may come around again and will
// increment and broadcast again, deduplication is the client's call.
func (b *DeliveryBridge) Run(ctx context.Context) {
	logger.Log.Info("delivery bridge started")
	for {
		raw, err := b.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				logger.Log.Info("delivery bridge stopped")
				return
			}
			logger.Log.Error("event log read failed", zap.Error(err))
			select {
			case <-time.After(b.sourceBackoff):
			case <-ctx.Done():
				logger.Log.Info("delivery bridge stopped")
				return
			}
			continue
		}

		if err := b.handleEvent(ctx, raw); err != nil {
			logger.Log.Error("event skipped", zap.Error(err))
		}
	}
}

// handleEvent process one raw event end to end. A decode failure or an
// unknown conversation is a data error, dropped for good. Store and
// lookup failures skip the event and the loop moves on.
func (b *DeliveryBridge) handleEvent(ctx context.Context, raw []byte) error {
	var event domain.DeliveryEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("malformed event payload, dropped: %w", err)
	}

	recipients, err := b.resolveRecipients(ctx, event)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	for _, userID := range recipients {
		if _, err := b.presence.IncrUnread(ctx, event.ConversationID, userID); err != nil {
			logger.Log.Error("unread incr failed",
				zap.Int64("conversationID", event.ConversationID),
				zap.Int64("userID", userID),
				zap.Error(err),
			)
		}
	}

	envelope := domain.WSEnvelope{
		Type: domain.EnvelopeMessageNew,
		Data: event,
	}
	report := b.caster.Broadcast(ctx, recipients, envelope)
	logger.Log.Debug("event fanned out",
		zap.Int64("messageID", event.MessageID),
		zap.Int64("conversationID", event.ConversationID),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed),
		zap.Int("offline", len(report.Offline)),
	)
	return nil
}

// resolveRecipients participant ids of the conversation minus the
// sender, computed fresh per event
func (b *DeliveryBridge) resolveRecipients(ctx context.Context, event domain.DeliveryEvent) ([]int64, error) {
	participants, err := b.members.ParticipantIDs(ctx, event.ConversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, fmt.Errorf("event for unknown conversation %d, dropped: %w", event.ConversationID, err)
		}
		return nil, fmt.Errorf("membership lookup failed for conversation %d: %w", event.ConversationID, err)
	}

	recipients := make([]int64, 0, len(participants))
	for _, userID := range participants {
		if userID != event.SenderID {
			recipients = append(recipients, userID)
		}
	}
	return recipients, nil
}
