package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/munchmtxi/notification-engine/internal/domain"
	mail "gopkg.in/mail.v2"
)

const defaultEmailSubject = "Notification"

// Dialer abstracts the SMTP dialer so sends can be faked in tests.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// EmailAdapter sends messages over SMTP. SMTP has no provider-side template
// rendering, so only custom (pre-rendered) sends are supported.
type EmailAdapter struct {
	dialer Dialer
	from   string
}

func NewEmailAdapter(host string, port int, username, password, from string) (*EmailAdapter, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	return NewEmailAdapterWithDialer(mail.NewDialer(host, port, username, password), from)
}

func NewEmailAdapterWithDialer(dialer Dialer, from string) (*EmailAdapter, error) {
	if dialer == nil {
		return nil, fmt.Errorf("smtp dialer is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	return &EmailAdapter{
		dialer: dialer,
		from:   strings.TrimSpace(from),
	}, nil
}

func (a *EmailAdapter) Channel() domain.Channel { return domain.ChannelEmail }

func (a *EmailAdapter) SendTemplateMessage(ctx context.Context, address, templateName string, parameters map[string]string) (*SendResult, error) {
	return nil, &SendError{
		Message:   fmt.Sprintf("smtp transport cannot render provider template %q", templateName),
		Transient: false,
	}
}

func (a *EmailAdapter) SendCustomMessage(ctx context.Context, address string, msg Message) (*SendResult, error) {
	if a == nil || a.dialer == nil {
		return nil, fmt.Errorf("email adapter is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, &SendError{Message: "send canceled", Transient: false, Cause: err}
	}

	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = defaultEmailSubject
	}

	message := mail.NewMessage()
	message.SetHeader("From", a.from)
	message.SetHeader("To", address)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", msg.Content)

	if err := a.dialer.DialAndSend(message); err != nil {
		// SMTP failures are connection or relay problems; treat as transient.
		return nil, &SendError{
			Message:   "smtp send failed",
			Transient: true,
			Cause:     err,
		}
	}

	return &SendResult{}, nil
}
