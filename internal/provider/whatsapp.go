package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/munchmtxi/notification-engine/internal/domain"
)

const defaultWhatsAppTimeout = 10 * time.Second

type whatsAppTextRequest struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

type whatsAppTemplateRequest struct {
	To       string `json:"to"`
	Type     string `json:"type"`
	Template struct {
		Name       string            `json:"name"`
		Parameters map[string]string `json:"parameters,omitempty"`
	} `json:"template"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// WhatsAppAdapter sends messages through a WhatsApp Business API gateway.
// Templated sends use provider-approved templates; custom sends use free-form
// text within an open session window.
type WhatsAppAdapter struct {
	client   *resty.Client
	endpoint string
}

func NewWhatsAppAdapter(endpoint, token string) (*WhatsAppAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultWhatsAppTimeout)
	client.SetRetryCount(0)
	if strings.TrimSpace(token) != "" {
		client.SetAuthToken(token)
	}

	return NewWhatsAppAdapterWithClient(endpoint, client)
}

func NewWhatsAppAdapterWithClient(endpoint string, client *resty.Client) (*WhatsAppAdapter, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("whatsapp endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid whatsapp endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWhatsAppTimeout)
	}
	client.SetRetryCount(0)

	return &WhatsAppAdapter{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (a *WhatsAppAdapter) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (a *WhatsAppAdapter) SendTemplateMessage(ctx context.Context, address, templateName string, parameters map[string]string) (*SendResult, error) {
	if strings.TrimSpace(templateName) == "" {
		return nil, &SendError{Message: "template name is required", Transient: false}
	}

	req := whatsAppTemplateRequest{To: address, Type: "template"}
	req.Template.Name = templateName
	req.Template.Parameters = parameters

	return a.post(ctx, req)
}

func (a *WhatsAppAdapter) SendCustomMessage(ctx context.Context, address string, msg Message) (*SendResult, error) {
	req := whatsAppTextRequest{To: address, Type: "text"}
	req.Text.Body = msg.Content

	return a.post(ctx, req)
}

func (a *WhatsAppAdapter) post(ctx context.Context, body any) (*SendResult, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("whatsapp adapter is not initialized")
	}

	var parsed whatsAppResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&parsed).
		Post(a.endpoint)
	if err != nil {
		return nil, &SendError{
			Message:   "whatsapp request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{MessageID: firstMessageID(parsed)}, nil
	}

	return nil, &SendError{
		StatusCode: statusCode,
		Message:    gatewayErrorMessage("whatsapp", statusCode, response.String()),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func firstMessageID(resp whatsAppResponse) string {
	if len(resp.Messages) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Messages[0].ID)
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func gatewayErrorMessage(gateway string, statusCode int, body string) string {
	base := fmt.Sprintf("%s gateway returned status %d", gateway, statusCode)
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, trimmed)
}
