package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/service"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req service.DispatchRequest) (*service.DispatchResult, error)
}

type NotificationReader interface {
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)
	GetLogs(ctx context.Context, notificationID string) ([]domain.NotificationLog, error)
}

type AnalyticsProvider interface {
	GetDeliveryAnalytics(ctx context.Context, from, to time.Time) (*service.DeliveryAnalytics, error)
}

type NotificationHandler struct {
	dispatcher Dispatcher
	reader     NotificationReader
	analytics  AnalyticsProvider
}

func NewNotificationHandler(dispatcher Dispatcher, reader NotificationReader, analytics AnalyticsProvider) (*NotificationHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("notification reader is required")
	}
	if analytics == nil {
		return nil, fmt.Errorf("analytics provider is required")
	}
	return &NotificationHandler{dispatcher: dispatcher, reader: reader, analytics: analytics}, nil
}

func RegisterNotificationRoutes(router fiber.Router, dispatcher Dispatcher, reader NotificationReader, analytics AnalyticsProvider) error {
	h, err := NewNotificationHandler(dispatcher, reader, analytics)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.DispatchNotification)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications/:id/logs", h.GetNotificationLogs)
	v1.Get("/analytics/delivery", h.GetDeliveryAnalytics)

	return nil
}

type recipientPayload struct {
	ID    string `json:"id"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type dispatchRequest struct {
	Recipient     recipientPayload  `json:"recipient"`
	TemplateName  string            `json:"templateName,omitempty"`
	Content       string            `json:"content,omitempty"`
	Subject       string            `json:"subject,omitempty"`
	Variables     map[string]string `json:"variables,omitempty"`
	Priority      string            `json:"priority,omitempty"`
	Channels      []string          `json:"channels"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

type channelResultResponse struct {
	Channel   string `json:"channel"`
	LogID     string `json:"logId,omitempty"`
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type dispatchResponse struct {
	NotificationID string                  `json:"notificationId"`
	CorrelationID  string                  `json:"correlationId"`
	Results        []channelResultResponse `json:"results"`
}

type notificationResponse struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlationId"`
	RecipientID   string    `json:"recipientId"`
	TemplateID    *string   `json:"templateId,omitempty"`
	Priority      string    `json:"priority"`
	CreatedAt     time.Time `json:"createdAt"`
}

type logResponse struct {
	ID             string     `json:"id"`
	NotificationID string     `json:"notificationId"`
	Channel        string     `json:"channel"`
	Recipient      string     `json:"recipient"`
	TemplateName   string     `json:"templateName,omitempty"`
	Content        string     `json:"content"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retryCount"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	Error          *string    `json:"error,omitempty"`
	MessageID      *string    `json:"messageId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (h *NotificationHandler) DispatchNotification(c *fiber.Ctx) error {
	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dispatchReq, err := requestToDispatchRequest(req, requestCorrelationID(c))
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.dispatcher.Dispatch(c.Context(), dispatchReq)
	if err != nil {
		return toHTTPError(err)
	}

	results := make([]channelResultResponse, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		results = append(results, channelResultResponse{
			Channel:   outcome.Channel.String(),
			LogID:     outcome.LogID,
			Status:    outcome.Status.String(),
			MessageID: outcome.MessageID,
			Error:     outcome.Error,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dispatchResponse{
		NotificationID: result.NotificationID,
		CorrelationID:  result.CorrelationID,
		Results:        results,
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.reader.GetNotification(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(notificationResponse{
		ID:            notification.ID,
		CorrelationID: notification.CorrelationID,
		RecipientID:   notification.RecipientID,
		TemplateID:    notification.TemplateID,
		Priority:      notification.Priority.String(),
		CreatedAt:     notification.CreatedAt,
	})
}

func (h *NotificationHandler) GetNotificationLogs(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	// 404 for unknown notifications rather than an empty list.
	if _, err := h.reader.GetNotification(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	logs, err := h.reader.GetLogs(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]logResponse, 0, len(logs))
	for i := range logs {
		responses = append(responses, toLogResponse(&logs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"logs":           responses,
	})
}

func (h *NotificationHandler) GetDeliveryAnalytics(c *fiber.Ctx) error {
	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return toHTTPError(err)
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return toHTTPError(err)
	}

	analytics, err := h.analytics.GetDeliveryAnalytics(c.Context(), from, to)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(analytics)
}

func requestToDispatchRequest(req dispatchRequest, fallbackCorrelationID string) (service.DispatchRequest, error) {
	if len(req.Channels) == 0 {
		return service.DispatchRequest{}, fmt.Errorf("%w: channels is required", domain.ErrValidation)
	}

	channels := make([]domain.Channel, 0, len(req.Channels))
	for _, raw := range req.Channels {
		channel, err := domain.ParseChannelFromString(raw)
		if err != nil {
			return service.DispatchRequest{}, err
		}
		channels = append(channels, channel)
	}

	var priority domain.Priority
	if strings.TrimSpace(req.Priority) != "" {
		parsed, err := domain.ParsePriorityFromString(req.Priority)
		if err != nil {
			return service.DispatchRequest{}, err
		}
		priority = parsed
	}

	correlationID := strings.TrimSpace(req.CorrelationID)
	if correlationID == "" {
		correlationID = strings.TrimSpace(fallbackCorrelationID)
	}

	return service.DispatchRequest{
		Recipient: domain.Recipient{
			ID:    strings.TrimSpace(req.Recipient.ID),
			Phone: strings.TrimSpace(req.Recipient.Phone),
			Email: strings.TrimSpace(req.Recipient.Email),
		},
		TemplateName:  strings.TrimSpace(req.TemplateName),
		RawContent:    req.Content,
		Subject:       req.Subject,
		Variables:     req.Variables,
		Priority:      priority,
		Channels:      channels,
		CorrelationID: correlationID,
	}, nil
}

func parseRFC3339Query(value string, field string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return t, nil
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toLogResponse(l *domain.NotificationLog) logResponse {
	return logResponse{
		ID:             l.ID,
		NotificationID: l.NotificationID,
		Channel:        l.Channel.String(),
		Recipient:      l.Recipient,
		TemplateName:   l.TemplateName,
		Content:        l.Content,
		Subject:        l.Subject,
		Status:         l.Status.String(),
		RetryCount:     l.RetryCount,
		NextRetryAt:    l.NextRetryAt,
		Error:          l.Error,
		MessageID:      l.MessageID,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnsupportedChannel):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
