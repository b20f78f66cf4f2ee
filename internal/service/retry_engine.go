package service

import (
	"context"
	"fmt"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/events"
	"github.com/munchmtxi/notification-engine/internal/observability"
	"github.com/munchmtxi/notification-engine/internal/provider"
	"github.com/munchmtxi/notification-engine/internal/ratelimit"
	"github.com/munchmtxi/notification-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepInterval    = time.Minute
	defaultSweepLimit       = 200
	defaultSweepConcurrency = 8

	// claimLease bounds how long a claimed row is invisible to other sweeps.
	// It must exceed the send timeout so a slow provider call cannot race a
	// second claim on the same row.
	claimLease = 2 * time.Minute
)

// RetryEngine periodically sweeps failed log rows whose backoff has elapsed
// and re-attempts delivery, promoting rows that exhausted their priority
// tier's budget to PERMANENTLY_FAILED.
type RetryEngine struct {
	logs        repository.NotificationLogRepository
	adapters    *provider.Registry
	limiter     ratelimit.RateLimiter
	events      *events.BestEffortSink
	metrics     *observability.Metrics
	logger      *zap.Logger
	interval    time.Duration
	limit       int
	concurrency int
	sendTimeout time.Duration
	now         func() time.Time
}

func NewRetryEngine(
	logs repository.NotificationLogRepository,
	adapters *provider.Registry,
	limiter ratelimit.RateLimiter,
	sink *events.BestEffortSink,
	metrics *observability.Metrics,
	interval time.Duration,
	limit int,
	concurrency int,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*RetryEngine, error) {
	if logs == nil {
		return nil, fmt.Errorf("notification log repository is required")
	}
	if adapters == nil {
		return nil, fmt.Errorf("adapter registry is required")
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryEngine{
		logs:        logs,
		adapters:    adapters,
		limiter:     limiter,
		events:      sink,
		metrics:     metrics,
		logger:      logger,
		interval:    interval,
		limit:       limit,
		concurrency: concurrency,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}, nil
}

// Start runs the sweep loop until the context is cancelled.
func (e *RetryEngine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so already-due rows do not wait for the first
	// ticker edge.
	if err := e.ProcessFailedNotifications(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("initial retry sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.ProcessFailedNotifications(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Error("retry sweep failed", zap.Error(err))
			}
		}
	}
}

// ProcessFailedNotifications runs one sweep: fetch due rows, then process
// them with bounded concurrency. A failure on one row never stops the rest.
func (e *RetryEngine) ProcessFailedNotifications(ctx context.Context) error {
	e.metrics.IncSweepInFlight()
	defer e.metrics.DecSweepInFlight()

	now := e.now().UTC()
	due, err := e.logs.ListDueForRetry(ctx, now, e.limit)
	if err != nil {
		return fmt.Errorf("failed to list due retries: %w", err)
	}
	e.metrics.ObserveSweepEligible(len(due))

	if len(due) == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	for i := range due {
		row := due[i]
		group.Go(func() error {
			if err := e.processDue(groupCtx, row); err != nil {
				e.logger.Error("failed to process due retry",
					zap.String("logId", row.Log.ID),
					zap.String("notificationId", row.Log.NotificationID),
					zap.String("channel", row.Log.Channel.String()),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	return group.Wait()
}

// processDue handles one due row: promote exhausted rows, otherwise claim and
// re-attempt delivery.
func (e *RetryEngine) processDue(ctx context.Context, row repository.DueLog) error {
	log := row.Log
	policy := domain.PolicyFor(row.Priority)

	// Rows at or past their budget are promoted here rather than filtered out
	// of the sweep, so an exhausted row can never sit at FAILED forever.
	if log.RetryCount >= policy.MaxAttempts {
		return e.markPermanentlyFailed(ctx, &log, policy.MaxAttempts)
	}

	now := e.now().UTC()
	claimed, err := e.logs.ClaimForRetry(ctx, log.ID, log.RetryCount, now, now.Add(claimLease))
	if err != nil {
		return fmt.Errorf("failed to claim row for retry: %w", err)
	}
	if !claimed {
		// Another sweep instance got there first.
		return nil
	}

	adapter, err := e.adapters.For(log.Channel)
	if err != nil {
		return e.recordRetryFailure(ctx, &log, row.Priority, policy, err)
	}

	if err := e.limiter.Wait(ctx, log.Channel.String()); err != nil {
		return e.recordRetryFailure(ctx, &log, row.Priority, policy, fmt.Errorf("rate limit wait: %w", err))
	}

	started := e.now()
	result, sendErr := sendWithTimeout(ctx, e.sendTimeout, adapter, &log)
	e.metrics.ObserveSendDuration(log.Channel.String(), e.now().Sub(started))

	if sendErr != nil {
		return e.recordRetryFailure(ctx, &log, row.Priority, policy, sendErr)
	}

	messageID := ""
	if result != nil {
		messageID = result.MessageID
	}
	if err := e.logs.MarkRetrySucceeded(ctx, log.ID, messageID); err != nil {
		return fmt.Errorf("failed to mark retry succeeded: %w", err)
	}

	e.logger.Info("retry delivery succeeded",
		zap.String("logId", log.ID),
		zap.String("notificationId", log.NotificationID),
		zap.String("channel", log.Channel.String()),
		zap.Int("retryCount", log.RetryCount+1),
	)
	e.metrics.IncRetry(log.Channel.String(), "success")
	e.publish(ctx, events.EventRetrySucceeded, &log, log.RetryCount+1, "")
	return nil
}

// recordRetryFailure increments the attempt counter, schedules the next
// backoff, and promotes the row when the increment reaches the budget.
func (e *RetryEngine) recordRetryFailure(ctx context.Context, log *domain.NotificationLog, priority domain.Priority, policy domain.RetryPolicy, sendErr error) error {
	newCount := log.RetryCount + 1
	nextRetry := domain.NextRetryAt(priority, newCount+1, e.now().UTC())

	if err := e.logs.MarkRetryFailed(ctx, log.ID, nextRetry, sendErr.Error()); err != nil {
		return fmt.Errorf("failed to mark retry failed: %w", err)
	}

	e.logger.Warn("retry delivery failed",
		zap.String("logId", log.ID),
		zap.String("notificationId", log.NotificationID),
		zap.String("channel", log.Channel.String()),
		zap.Int("retryCount", newCount),
		zap.Error(sendErr),
	)
	e.metrics.IncRetry(log.Channel.String(), "failure")
	e.metrics.IncSendFailure(log.Channel.String(), failureKind(sendErr))
	e.publish(ctx, events.EventRetryFailed, log, newCount, sendErr.Error())

	if newCount >= policy.MaxAttempts {
		log.RetryCount = newCount
		return e.markPermanentlyFailed(ctx, log, policy.MaxAttempts)
	}
	return nil
}

func (e *RetryEngine) markPermanentlyFailed(ctx context.Context, log *domain.NotificationLog, maxAttempts int) error {
	reason := fmt.Sprintf("Max retry attempts (%d) reached", maxAttempts)
	if err := e.logs.MarkPermanentlyFailed(ctx, log.ID, reason); err != nil {
		return fmt.Errorf("failed to mark permanently failed: %w", err)
	}

	e.logger.Warn("delivery permanently failed",
		zap.String("logId", log.ID),
		zap.String("notificationId", log.NotificationID),
		zap.String("channel", log.Channel.String()),
		zap.Int("retryCount", log.RetryCount),
	)
	e.metrics.IncPermanentlyFailed(log.Channel.String())
	e.publish(ctx, events.EventPermanentlyFailed, log, log.RetryCount, reason)
	return nil
}

func (e *RetryEngine) publish(ctx context.Context, event string, log *domain.NotificationLog, retryCount int, errText string) {
	status := domain.StatusFailed
	switch event {
	case events.EventRetrySucceeded:
		status = domain.StatusSent
	case events.EventPermanentlyFailed:
		status = domain.StatusPermanentlyFailed
	}

	e.events.Publish(ctx, event, events.StatusEvent{
		NotificationID: log.NotificationID,
		LogID:          log.ID,
		Channel:        log.Channel,
		Status:         status,
		RetryCount:     retryCount,
		Error:          errText,
		OccurredAt:     e.now().UTC(),
	})
}
