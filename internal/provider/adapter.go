package provider

import (
	"context"
	"fmt"

	"github.com/munchmtxi/notification-engine/internal/domain"
)

// Message is a rendered, channel-formatted payload. Subject is only set for
// email.
type Message struct {
	Subject string
	Content string
}

// SendResult stores provider call metadata for persistence on the log row.
type SendResult struct {
	MessageID string
}

// Adapter is the outbound delivery port for one channel. Implementations own
// their address formatting and must return failures as *SendError.
type Adapter interface {
	Channel() domain.Channel
	SendTemplateMessage(ctx context.Context, address, templateName string, parameters map[string]string) (*SendResult, error)
	SendCustomMessage(ctx context.Context, address string, msg Message) (*SendResult, error)
}

// Registry holds the adapter for each supported channel.
type Registry struct {
	adapters map[domain.Channel]Adapter
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	registry := &Registry{adapters: make(map[domain.Channel]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			return nil, fmt.Errorf("nil adapter in registry")
		}
		channel := adapter.Channel()
		if !channel.IsValid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedChannel, channel)
		}
		if _, exists := registry.adapters[channel]; exists {
			return nil, fmt.Errorf("duplicate adapter for channel %s", channel)
		}
		registry.adapters[channel] = adapter
	}
	return registry, nil
}

// For returns the adapter for a channel, rejecting unknown channels at the
// boundary.
func (r *Registry) For(channel domain.Channel) (Adapter, error) {
	if r == nil {
		return nil, fmt.Errorf("adapter registry is not initialized")
	}
	adapter, ok := r.adapters[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedChannel, channel)
	}
	return adapter, nil
}

// Channels returns the channels with a registered adapter.
func (r *Registry) Channels() []domain.Channel {
	channels := make([]domain.Channel, 0, len(r.adapters))
	for channel := range r.adapters {
		channels = append(channels, channel)
	}
	return channels
}
