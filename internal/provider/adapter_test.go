package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/munchmtxi/notification-engine/internal/domain"
)

type stubAdapter struct {
	channel domain.Channel
}

func (s *stubAdapter) Channel() domain.Channel { return s.channel }

func (s *stubAdapter) SendTemplateMessage(ctx context.Context, address, templateName string, parameters map[string]string) (*SendResult, error) {
	return &SendResult{}, nil
}

func (s *stubAdapter) SendCustomMessage(ctx context.Context, address string, msg Message) (*SendResult, error) {
	return &SendResult{}, nil
}

func TestRegistryForReturnsRegisteredAdapter(t *testing.T) {
	t.Parallel()

	sms := &stubAdapter{channel: domain.ChannelSMS}
	registry, err := NewRegistry(sms, &stubAdapter{channel: domain.ChannelEmail})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	got, err := registry.For(domain.ChannelSMS)
	if err != nil {
		t.Fatalf("For() unexpected error = %v", err)
	}
	if got != sms {
		t.Fatal("For() returned wrong adapter")
	}
}

func TestRegistryForUnknownChannel(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(&stubAdapter{channel: domain.ChannelSMS})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	_, err = registry.For(domain.ChannelWhatsApp)
	if !errors.Is(err, domain.ErrUnsupportedChannel) {
		t.Fatalf("For() error = %v, want ErrUnsupportedChannel", err)
	}
}

func TestNewRegistryRejectsDuplicatesAndInvalidChannels(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(&stubAdapter{channel: domain.ChannelSMS}, &stubAdapter{channel: domain.ChannelSMS})
	if err == nil {
		t.Fatal("expected error for duplicate channel")
	}

	_, err = NewRegistry(&stubAdapter{channel: domain.Channel("PUSH")})
	if !errors.Is(err, domain.ErrUnsupportedChannel) {
		t.Fatalf("error = %v, want ErrUnsupportedChannel", err)
	}
}
