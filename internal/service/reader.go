package service

import (
	"context"
	"fmt"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/repository"
)

// Reader serves the read endpoints: one notification and its per-channel
// delivery logs.
type Reader struct {
	notifications repository.NotificationRepository
	logs          repository.NotificationLogRepository
}

func NewReader(notifications repository.NotificationRepository, logs repository.NotificationLogRepository) (*Reader, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("notification log repository is required")
	}
	return &Reader{notifications: notifications, logs: logs}, nil
}

func (r *Reader) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return r.notifications.GetByID(ctx, id)
}

func (r *Reader) GetLogs(ctx context.Context, notificationID string) ([]domain.NotificationLog, error) {
	if notificationID == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return r.logs.ListByNotificationID(ctx, notificationID)
}
