package repository

import (
	"context"
	"errors"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"gorm.io/gorm"
)

// DueLog pairs a failed log row with its owning notification's priority, which
// the sweep needs to resolve the retry policy.
type DueLog struct {
	Log      domain.NotificationLog
	Priority domain.Priority
}

// DeliveryStat is one (channel, status) aggregation bucket.
type DeliveryStat struct {
	Channel       domain.Channel   `gorm:"column:type"`
	Status        domain.LogStatus `gorm:"column:status"`
	Count         int64            `gorm:"column:count"`
	AvgRetryCount float64          `gorm:"column:avg_retry_count"`
}

// FailureReason is one permanently-failed error-text bucket.
type FailureReason struct {
	Error string `gorm:"column:error"`
	Count int64  `gorm:"column:count"`
}

type NotificationLogRepository interface {
	Create(ctx context.Context, l *domain.NotificationLog) error
	GetByID(ctx context.Context, id string) (*domain.NotificationLog, error)
	ListByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationLog, error)
	ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]DueLog, error)
	ClaimForRetry(ctx context.Context, id string, expectedRetryCount int, now, leaseUntil time.Time) (bool, error)
	MarkRetrySucceeded(ctx context.Context, id string, messageID string) error
	MarkRetryFailed(ctx context.Context, id string, nextRetryAt time.Time, sendErr string) error
	MarkPermanentlyFailed(ctx context.Context, id string, reason string) error
	AggregateDeliveryStats(ctx context.Context, from, to time.Time) ([]DeliveryStat, error)
	AggregateFailureReasons(ctx context.Context, from, to time.Time) ([]FailureReason, error)
}

type GormNotificationLogRepo struct {
	db *gorm.DB
}

func NewGormNotificationLogRepo(db *gorm.DB) *GormNotificationLogRepo {
	return &GormNotificationLogRepo{db: db}
}

func (r *GormNotificationLogRepo) Create(ctx context.Context, l *domain.NotificationLog) error {
	model := logModelFromDomain(l)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if l != nil {
		*l = *logModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationLogRepo) GetByID(ctx context.Context, id string) (*domain.NotificationLog, error) {
	var model NotificationLogModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return logModelToDomain(&model), nil
}

func (r *GormNotificationLogRepo) ListByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationLog, error) {
	var models []NotificationLogModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	logs := make([]domain.NotificationLog, 0, len(models))
	for i := range models {
		logs = append(logs, *logModelToDomain(&models[i]))
	}
	return logs, nil
}

// ListDueForRetry returns FAILED rows whose next retry is due, joined with the
// owning notification's priority. There is deliberately no retry-count filter
// here: rows past their budget are selected so the sweep can promote them to
// PERMANENTLY_FAILED instead of leaving them stuck at FAILED.
func (r *GormNotificationLogRepo) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]DueLog, error) {
	type dueRow struct {
		NotificationLogModel
		Priority domain.Priority `gorm:"column:priority"`
	}

	var rows []dueRow
	err := r.db.WithContext(ctx).
		Model(&NotificationLogModel{}).
		Select("notification_logs.*, notifications.priority AS priority").
		Joins("JOIN notifications ON notifications.id = notification_logs.notification_id").
		Where("notification_logs.status = ? AND notification_logs.next_retry_at <= ?", domain.StatusFailed, now).
		Order("notification_logs.next_retry_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	due := make([]DueLog, 0, len(rows))
	for i := range rows {
		due = append(due, DueLog{
			Log:      *logModelToDomain(&rows[i].NotificationLogModel),
			Priority: rows[i].Priority,
		})
	}
	return due, nil
}

// ClaimForRetry takes a short-lived lease on a due row by pushing next_retry_at
// forward, guarded on status and the retry count observed at query time. At
// most one concurrent sweep instance can win the update, so at most one retry
// is ever in flight per row.
func (r *GormNotificationLogRepo) ClaimForRetry(ctx context.Context, id string, expectedRetryCount int, now, leaseUntil time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationLogModel{}).
		Where("id = ? AND status = ? AND retry_count = ? AND next_retry_at <= ?",
			id, domain.StatusFailed, expectedRetryCount, now).
		Update("next_retry_at", leaseUntil)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormNotificationLogRepo) MarkRetrySucceeded(ctx context.Context, id string, messageID string) error {
	updates := map[string]any{
		"status":        domain.StatusSent,
		"retry_count":   gorm.Expr("retry_count + 1"),
		"next_retry_at": nil,
		"error":         nil,
	}
	if messageID != "" {
		updates["message_id"] = messageID
	}

	result := r.db.WithContext(ctx).
		Model(&NotificationLogModel{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationLogRepo) MarkRetryFailed(ctx context.Context, id string, nextRetryAt time.Time, sendErr string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationLogModel{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"next_retry_at": nextRetryAt,
			"error":         sendErr,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkPermanentlyFailed transitions a row to its terminal failure state. The
// status guard makes the transition idempotent under concurrent sweeps.
func (r *GormNotificationLogRepo) MarkPermanentlyFailed(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationLogModel{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(map[string]any{
			"status":        domain.StatusPermanentlyFailed,
			"next_retry_at": nil,
			"error":         reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationLogRepo) AggregateDeliveryStats(ctx context.Context, from, to time.Time) ([]DeliveryStat, error) {
	var stats []DeliveryStat
	err := r.db.WithContext(ctx).
		Model(&NotificationLogModel{}).
		Select("type, status, COUNT(*) AS count, AVG(retry_count) AS avg_retry_count").
		Where("created_at >= ? AND created_at <= ?", from, to).
		Group("type, status").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *GormNotificationLogRepo) AggregateFailureReasons(ctx context.Context, from, to time.Time) ([]FailureReason, error) {
	var reasons []FailureReason
	err := r.db.WithContext(ctx).
		Model(&NotificationLogModel{}).
		Select("error, COUNT(*) AS count").
		Where("status = ? AND created_at >= ? AND created_at <= ?", domain.StatusPermanentlyFailed, from, to).
		Group("error").
		Order("count DESC").
		Scan(&reasons).Error
	if err != nil {
		return nil, err
	}
	return reasons, nil
}
