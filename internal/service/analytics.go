package service

import (
	"context"
	"fmt"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/repository"
	"go.uber.org/zap"
)

// DeliveryAnalytics summarizes delivery outcomes over a time window.
type DeliveryAnalytics struct {
	From            time.Time                  `json:"from"`
	To              time.Time                  `json:"to"`
	DeliveryStats   []repository.DeliveryStat  `json:"deliveryStats"`
	FailureAnalysis []repository.FailureReason `json:"failureAnalysis"`
}

// AnalyticsService aggregates notification log rows for reporting.
type AnalyticsService struct {
	logs   repository.NotificationLogRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewAnalyticsService(logs repository.NotificationLogRepository, logger *zap.Logger) (*AnalyticsService, error) {
	if logs == nil {
		return nil, fmt.Errorf("notification log repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnalyticsService{
		logs:   logs,
		logger: logger,
		now:    time.Now,
	}, nil
}

// GetDeliveryAnalytics returns per-channel delivery stats and the grouped
// reasons behind permanent failures for the given window. A zero To defaults
// to now; a zero From defaults to 24 hours before To.
func (s *AnalyticsService) GetDeliveryAnalytics(ctx context.Context, from, to time.Time) (*DeliveryAnalytics, error) {
	if to.IsZero() {
		to = s.now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", domain.ErrValidation)
	}

	stats, err := s.logs.AggregateDeliveryStats(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate delivery stats: %w", err)
	}

	reasons, err := s.logs.AggregateFailureReasons(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate failure reasons: %w", err)
	}

	// Empty windows report empty slices, never null.
	if stats == nil {
		stats = []repository.DeliveryStat{}
	}
	if reasons == nil {
		reasons = []repository.FailureReason{}
	}

	return &DeliveryAnalytics{
		From:            from,
		To:              to,
		DeliveryStats:   stats,
		FailureAnalysis: reasons,
	}, nil
}
