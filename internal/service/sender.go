package service

import (
	"context"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/provider"
)

// sendThroughAdapter routes a log row to the right adapter call. WhatsApp
// deliveries with a template name use the provider's approved-template API;
// every other send reuses the content rendered at dispatch time, so retries
// deliver exactly what the first attempt would have.
func sendThroughAdapter(ctx context.Context, adapter provider.Adapter, log *domain.NotificationLog) (*provider.SendResult, error) {
	if log.TemplateName != "" && log.Channel == domain.ChannelWhatsApp {
		return adapter.SendTemplateMessage(ctx, log.Recipient, log.TemplateName, log.Parameters)
	}

	return adapter.SendCustomMessage(ctx, log.Recipient, provider.Message{
		Subject: log.Subject,
		Content: log.Content,
	})
}

func sendWithTimeout(ctx context.Context, timeout time.Duration, adapter provider.Adapter, log *domain.NotificationLog) (*provider.SendResult, error) {
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sendThroughAdapter(sendCtx, adapter, log)
}
