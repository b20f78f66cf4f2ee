// Package service implements the delivery engine: dispatch, retry sweeps, and
// delivery analytics.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/events"
	"github.com/munchmtxi/notification-engine/internal/observability"
	"github.com/munchmtxi/notification-engine/internal/provider"
	"github.com/munchmtxi/notification-engine/internal/ratelimit"
	"github.com/munchmtxi/notification-engine/internal/repository"
	"github.com/munchmtxi/notification-engine/internal/template"
	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// DispatchRequest is the input for a multi-channel dispatch. Exactly one of
// TemplateName and RawContent must be set.
type DispatchRequest struct {
	Recipient     domain.Recipient
	TemplateName  string
	RawContent    string
	Subject       string
	Variables     map[string]string
	Priority      domain.Priority
	Channels      []domain.Channel
	CorrelationID string
}

// ChannelOutcome is the per-channel result of a dispatch. A failed channel
// carries the error text persisted on its log row; it never fails the
// dispatch as a whole.
type ChannelOutcome struct {
	Channel   domain.Channel
	LogID     string
	Status    domain.LogStatus
	MessageID string
	Error     string
}

// DispatchResult reports what was persisted and attempted for one request.
type DispatchResult struct {
	NotificationID string
	CorrelationID  string
	Outcomes       []ChannelOutcome
}

// preparedChannel is a fully validated, rendered payload for one channel,
// built before any row is written.
type preparedChannel struct {
	channel      domain.Channel
	address      string
	templateID   *string
	templateName string
	parameters   map[string]string
	payload      template.Payload
}

// DispatchService orchestrates the synchronous dispatch path: validate and
// render everything first, persist second, send last.
type DispatchService struct {
	notifications repository.NotificationRepository
	logs          repository.NotificationLogRepository
	templates     *template.Cache
	adapters      *provider.Registry
	limiter       ratelimit.RateLimiter
	events        *events.BestEffortSink
	metrics       *observability.Metrics
	logger        *zap.Logger
	sendTimeout   time.Duration
	now           func() time.Time
	newID         func() string
}

func NewDispatchService(
	notifications repository.NotificationRepository,
	logs repository.NotificationLogRepository,
	templates *template.Cache,
	adapters *provider.Registry,
	limiter ratelimit.RateLimiter,
	sink *events.BestEffortSink,
	metrics *observability.Metrics,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*DispatchService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("notification log repository is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template cache is required")
	}
	if adapters == nil {
		return nil, fmt.Errorf("adapter registry is required")
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		notifications: notifications,
		logs:          logs,
		templates:     templates,
		adapters:      adapters,
		limiter:       limiter,
		events:        sink,
		metrics:       metrics,
		logger:        logger,
		sendTimeout:   sendTimeout,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}, nil
}

// Dispatch validates, renders, persists, and attempts delivery on every
// requested channel. Validation and rendering run for all channels before the
// first row is written: a bad request leaves no trace in storage.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	prepared := make([]preparedChannel, 0, len(req.Channels))
	for _, channel := range req.Channels {
		pc, err := s.prepareChannel(ctx, channel, &req)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, *pc)
	}

	notification := &domain.Notification{
		ID:            s.newID(),
		CorrelationID: req.CorrelationID,
		RecipientID:   req.Recipient.ID,
		TemplateID:    prepared[0].templateID,
		Priority:      req.Priority,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	result := &DispatchResult{
		NotificationID: notification.ID,
		CorrelationID:  notification.CorrelationID,
		Outcomes:       make([]ChannelOutcome, 0, len(prepared)),
	}

	for i := range prepared {
		outcome := s.deliverChannel(ctx, notification, &prepared[i])
		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

func (s *DispatchService) validateRequest(req *DispatchRequest) error {
	if req.Recipient.ID == "" {
		return fmt.Errorf("%w: recipient id is required", domain.ErrValidation)
	}
	if len(req.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", domain.ErrValidation)
	}
	if req.TemplateName == "" && req.RawContent == "" {
		return fmt.Errorf("%w: either templateName or rawContent is required", domain.ErrValidation)
	}
	if req.TemplateName != "" && req.RawContent != "" {
		return fmt.Errorf("%w: templateName and rawContent are mutually exclusive", domain.ErrValidation)
	}

	seen := make(map[domain.Channel]struct{}, len(req.Channels))
	for _, channel := range req.Channels {
		if !channel.IsValid() {
			return fmt.Errorf("%w: %q", domain.ErrUnsupportedChannel, channel)
		}
		if _, ok := seen[channel]; ok {
			return fmt.Errorf("%w: duplicate channel %s", domain.ErrValidation, channel)
		}
		seen[channel] = struct{}{}
	}

	if req.Priority == "" {
		req.Priority = domain.PriorityLow
	}
	if !req.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", domain.ErrValidation, req.Priority)
	}
	if req.CorrelationID == "" {
		req.CorrelationID = s.newID()
	}
	return nil
}

// prepareChannel resolves the address and template and renders the payload
// for one channel. Any error here aborts the whole dispatch before
// persistence.
func (s *DispatchService) prepareChannel(ctx context.Context, channel domain.Channel, req *DispatchRequest) (*preparedChannel, error) {
	if _, err := s.adapters.For(channel); err != nil {
		return nil, err
	}

	address, err := req.Recipient.AddressFor(channel)
	if err != nil {
		return nil, err
	}

	pc := &preparedChannel{
		channel:    channel,
		address:    address,
		parameters: req.Variables,
	}

	var tmpl *domain.Template
	if req.TemplateName != "" {
		tmpl, err = s.templates.Resolve(ctx, req.TemplateName, channel)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve template %q for %s: %w", req.TemplateName, channel, err)
		}
		if err := template.Validate(tmpl, req.Variables); err != nil {
			return nil, err
		}
		pc.templateID = &tmpl.ID
		pc.templateName = tmpl.Name
	} else {
		// Raw content skips placeholder validation: unresolved placeholders
		// are delivered verbatim.
		tmpl = &domain.Template{
			Channel: channel,
			Content: req.RawContent,
			Subject: req.Subject,
			Status:  domain.TemplateActive,
		}
	}

	pc.payload, err = template.FormatForChannel(channel, tmpl, req.Variables)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// deliverChannel attempts the first send for one channel and persists the
// outcome. Send failures are absorbed into the log row so sibling channels
// proceed unaffected.
func (s *DispatchService) deliverChannel(ctx context.Context, notification *domain.Notification, pc *preparedChannel) ChannelOutcome {
	now := s.now().UTC()
	log := &domain.NotificationLog{
		ID:             s.newID(),
		NotificationID: notification.ID,
		Channel:        pc.channel,
		Recipient:      pc.address,
		TemplateName:   pc.templateName,
		Parameters:     pc.parameters,
		Content:        pc.payload.Body,
		Subject:        pc.payload.Subject,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	adapter, err := s.adapters.For(pc.channel)
	if err != nil {
		// Unreachable after prepareChannel, kept as a guard.
		return ChannelOutcome{Channel: pc.channel, Status: domain.StatusFailed, Error: err.Error()}
	}

	if err := s.limiter.Wait(ctx, pc.channel.String()); err != nil {
		return s.persistFailure(ctx, notification, log, fmt.Errorf("rate limit wait: %w", err))
	}

	started := s.now()
	result, sendErr := sendWithTimeout(ctx, s.sendTimeout, adapter, log)
	s.metrics.ObserveSendDuration(pc.channel.String(), s.now().Sub(started))

	if sendErr != nil {
		return s.persistFailure(ctx, notification, log, sendErr)
	}

	log.Status = domain.StatusSent
	if result != nil && result.MessageID != "" {
		log.MessageID = &result.MessageID
	}
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Error("failed to persist sent log",
			zap.String("notificationId", notification.ID),
			zap.String("channel", pc.channel.String()),
			zap.Error(err),
		)
		return ChannelOutcome{Channel: pc.channel, Status: domain.StatusFailed, Error: err.Error()}
	}

	s.metrics.IncDispatched(pc.channel.String(), domain.StatusSent.String())
	s.publishOutcome(ctx, notification, log)

	outcome := ChannelOutcome{Channel: pc.channel, LogID: log.ID, Status: domain.StatusSent}
	if log.MessageID != nil {
		outcome.MessageID = *log.MessageID
	}
	return outcome
}

// persistFailure records a failed first attempt and schedules its first retry
// according to the notification's priority tier.
func (s *DispatchService) persistFailure(ctx context.Context, notification *domain.Notification, log *domain.NotificationLog, sendErr error) ChannelOutcome {
	errText := sendErr.Error()
	nextRetry := domain.NextRetryAt(notification.Priority, 1, s.now().UTC())

	log.Status = domain.StatusFailed
	log.Error = &errText
	log.NextRetryAt = &nextRetry

	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Error("failed to persist failed log",
			zap.String("notificationId", notification.ID),
			zap.String("channel", log.Channel.String()),
			zap.Error(err),
		)
		return ChannelOutcome{Channel: log.Channel, Status: domain.StatusFailed, Error: errText}
	}

	s.logger.Warn("channel delivery failed",
		zap.String("notificationId", notification.ID),
		zap.String("correlationId", notification.CorrelationID),
		zap.String("channel", log.Channel.String()),
		zap.Time("nextRetryAt", nextRetry),
		zap.Error(sendErr),
	)
	s.metrics.IncDispatched(log.Channel.String(), domain.StatusFailed.String())
	s.metrics.IncSendFailure(log.Channel.String(), failureKind(sendErr))
	s.publishOutcome(ctx, notification, log)

	return ChannelOutcome{Channel: log.Channel, LogID: log.ID, Status: domain.StatusFailed, Error: errText}
}

func (s *DispatchService) publishOutcome(ctx context.Context, notification *domain.Notification, log *domain.NotificationLog) {
	event := events.StatusEvent{
		NotificationID: notification.ID,
		LogID:          log.ID,
		CorrelationID:  notification.CorrelationID,
		Channel:        log.Channel,
		Status:         log.Status,
		RetryCount:     log.RetryCount,
		OccurredAt:     s.now().UTC(),
	}
	if log.Error != nil {
		event.Error = *log.Error
	}
	s.events.Publish(ctx, events.EventDispatched, event)
}

func failureKind(err error) string {
	if provider.IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
