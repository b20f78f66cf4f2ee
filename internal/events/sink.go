// Package events publishes delivery status events to interested subscribers.
// This is a best-effort, at-most-once side channel, distinct from the
// at-least-once guarantee of the delivery engine itself.
package events

import (
	"context"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"go.uber.org/zap"
)

// Event names published on the status exchange.
const (
	EventDispatched        = "notification.dispatched"
	EventRetrySucceeded    = "notification.retry_succeeded"
	EventRetryFailed       = "notification.retry_failed"
	EventPermanentlyFailed = "notification.permanently_failed"
)

// StatusEvent is the payload for every delivery status event.
type StatusEvent struct {
	NotificationID string           `json:"notificationId"`
	LogID          string           `json:"logId,omitempty"`
	CorrelationID  string           `json:"correlationId,omitempty"`
	Channel        domain.Channel   `json:"channel,omitempty"`
	Status         domain.LogStatus `json:"status,omitempty"`
	RetryCount     int              `json:"retryCount"`
	Error          string           `json:"error,omitempty"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

// Sink publishes status events.
type Sink interface {
	Publish(ctx context.Context, event string, payload StatusEvent) error
	Close() error
}

// BestEffortSink wraps a Sink so publish failures are logged and never
// propagated to the delivery path.
type BestEffortSink struct {
	sink   Sink
	logger *zap.Logger
}

func NewBestEffortSink(sink Sink, logger *zap.Logger) *BestEffortSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestEffortSink{sink: sink, logger: logger}
}

// Publish is fire-and-forget: the caller's outcome never depends on it.
func (s *BestEffortSink) Publish(ctx context.Context, event string, payload StatusEvent) {
	if s == nil || s.sink == nil {
		return
	}

	if err := s.sink.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("failed to publish status event",
			zap.String("event", event),
			zap.String("notificationId", payload.NotificationID),
			zap.Error(err),
		)
	}
}

func (s *BestEffortSink) Close() error {
	if s == nil || s.sink == nil {
		return nil
	}
	return s.sink.Close()
}
