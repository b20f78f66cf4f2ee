package service

import (
	"context"
	"sync"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/events"
	"github.com/munchmtxi/notification-engine/internal/provider"
	"github.com/munchmtxi/notification-engine/internal/repository"
)

type fakeNotificationRepo struct {
	createFn  func(ctx context.Context, n *domain.Notification) error
	getByIDFn func(ctx context.Context, id string) (*domain.Notification, error)
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type fakeLogRepo struct {
	createFn                  func(ctx context.Context, l *domain.NotificationLog) error
	getByIDFn                 func(ctx context.Context, id string) (*domain.NotificationLog, error)
	listByNotificationIDFn    func(ctx context.Context, notificationID string) ([]domain.NotificationLog, error)
	listDueForRetryFn         func(ctx context.Context, now time.Time, limit int) ([]repository.DueLog, error)
	claimForRetryFn           func(ctx context.Context, id string, expectedRetryCount int, now, leaseUntil time.Time) (bool, error)
	markRetrySucceededFn      func(ctx context.Context, id string, messageID string) error
	markRetryFailedFn         func(ctx context.Context, id string, nextRetryAt time.Time, sendErr string) error
	markPermanentlyFailedFn   func(ctx context.Context, id string, reason string) error
	aggregateDeliveryStatsFn  func(ctx context.Context, from, to time.Time) ([]repository.DeliveryStat, error)
	aggregateFailureReasonsFn func(ctx context.Context, from, to time.Time) ([]repository.FailureReason, error)
}

func (f *fakeLogRepo) Create(ctx context.Context, l *domain.NotificationLog) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeLogRepo) GetByID(ctx context.Context, id string) (*domain.NotificationLog, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLogRepo) ListByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationLog, error) {
	if f.listByNotificationIDFn != nil {
		return f.listByNotificationIDFn(ctx, notificationID)
	}
	return nil, nil
}

func (f *fakeLogRepo) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]repository.DueLog, error) {
	if f.listDueForRetryFn != nil {
		return f.listDueForRetryFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeLogRepo) ClaimForRetry(ctx context.Context, id string, expectedRetryCount int, now, leaseUntil time.Time) (bool, error) {
	if f.claimForRetryFn != nil {
		return f.claimForRetryFn(ctx, id, expectedRetryCount, now, leaseUntil)
	}
	return true, nil
}

func (f *fakeLogRepo) MarkRetrySucceeded(ctx context.Context, id string, messageID string) error {
	if f.markRetrySucceededFn != nil {
		return f.markRetrySucceededFn(ctx, id, messageID)
	}
	return nil
}

func (f *fakeLogRepo) MarkRetryFailed(ctx context.Context, id string, nextRetryAt time.Time, sendErr string) error {
	if f.markRetryFailedFn != nil {
		return f.markRetryFailedFn(ctx, id, nextRetryAt, sendErr)
	}
	return nil
}

func (f *fakeLogRepo) MarkPermanentlyFailed(ctx context.Context, id string, reason string) error {
	if f.markPermanentlyFailedFn != nil {
		return f.markPermanentlyFailedFn(ctx, id, reason)
	}
	return nil
}

func (f *fakeLogRepo) AggregateDeliveryStats(ctx context.Context, from, to time.Time) ([]repository.DeliveryStat, error) {
	if f.aggregateDeliveryStatsFn != nil {
		return f.aggregateDeliveryStatsFn(ctx, from, to)
	}
	return nil, nil
}

func (f *fakeLogRepo) AggregateFailureReasons(ctx context.Context, from, to time.Time) ([]repository.FailureReason, error) {
	if f.aggregateFailureReasonsFn != nil {
		return f.aggregateFailureReasonsFn(ctx, from, to)
	}
	return nil, nil
}

type fakeTemplateStore struct {
	findFn func(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error)
}

func (f *fakeTemplateStore) FindActiveByName(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error) {
	if f.findFn != nil {
		return f.findFn(ctx, name, channel)
	}
	return nil, domain.ErrNotFound
}

type stubAdapter struct {
	channel        domain.Channel
	sendTemplateFn func(ctx context.Context, address, templateName string, parameters map[string]string) (*provider.SendResult, error)
	sendCustomFn   func(ctx context.Context, address string, msg provider.Message) (*provider.SendResult, error)
}

func (a *stubAdapter) Channel() domain.Channel { return a.channel }

func (a *stubAdapter) SendTemplateMessage(ctx context.Context, address, templateName string, parameters map[string]string) (*provider.SendResult, error) {
	if a.sendTemplateFn != nil {
		return a.sendTemplateFn(ctx, address, templateName, parameters)
	}
	return &provider.SendResult{MessageID: "tpl-msg-1"}, nil
}

func (a *stubAdapter) SendCustomMessage(ctx context.Context, address string, msg provider.Message) (*provider.SendResult, error) {
	if a.sendCustomFn != nil {
		return a.sendCustomFn(ctx, address, msg)
	}
	return &provider.SendResult{MessageID: "msg-1"}, nil
}

// recordingSink captures published events for assertions.
type recordingSink struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	event   string
	payload events.StatusEvent
}

func (s *recordingSink) Publish(ctx context.Context, event string, payload events.StatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, publishedEvent{event: event, payload: payload})
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) events() []publishedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]publishedEvent, len(s.published))
	copy(out, s.published)
	return out
}
