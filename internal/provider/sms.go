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

const defaultSMSTimeout = 10 * time.Second

type smsSendRequest struct {
	To           string            `json:"to"`
	From         string            `json:"from"`
	Body         string            `json:"body,omitempty"`
	TemplateName string            `json:"templateName,omitempty"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

type smsSendResponse struct {
	SID string `json:"sid"`
}

// SMSAdapter sends messages through a Twilio-compatible SMS gateway.
type SMSAdapter struct {
	client   *resty.Client
	endpoint string
	sender   string
}

func NewSMSAdapter(endpoint, accountSID, authToken, sender string) (*SMSAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultSMSTimeout)
	client.SetRetryCount(0)
	if strings.TrimSpace(accountSID) != "" {
		client.SetBasicAuth(accountSID, authToken)
	}

	return NewSMSAdapterWithClient(endpoint, sender, client)
}

func NewSMSAdapterWithClient(endpoint, sender string, client *resty.Client) (*SMSAdapter, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("sms endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid sms endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSMSTimeout)
	}
	client.SetRetryCount(0)

	return &SMSAdapter{
		client:   client,
		endpoint: trimmedEndpoint,
		sender:   strings.TrimSpace(sender),
	}, nil
}

func (a *SMSAdapter) Channel() domain.Channel { return domain.ChannelSMS }

func (a *SMSAdapter) SendTemplateMessage(ctx context.Context, address, templateName string, parameters map[string]string) (*SendResult, error) {
	if strings.TrimSpace(templateName) == "" {
		return nil, &SendError{Message: "template name is required", Transient: false}
	}

	return a.post(ctx, smsSendRequest{
		To:           address,
		From:         a.sender,
		TemplateName: templateName,
		Parameters:   parameters,
	})
}

func (a *SMSAdapter) SendCustomMessage(ctx context.Context, address string, msg Message) (*SendResult, error) {
	return a.post(ctx, smsSendRequest{
		To:   address,
		From: a.sender,
		Body: msg.Content,
	})
}

func (a *SMSAdapter) post(ctx context.Context, body smsSendRequest) (*SendResult, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("sms adapter is not initialized")
	}

	var parsed smsSendResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&parsed).
		Post(a.endpoint)
	if err != nil {
		return nil, &SendError{
			Message:   "sms request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{MessageID: strings.TrimSpace(parsed.SID)}, nil
	}

	return nil, &SendError{
		StatusCode: statusCode,
		Message:    gatewayErrorMessage("sms", statusCode, response.String()),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
