package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents a delivery transport.
type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrUnsupportedChannel, s)
	}
	return ch, nil
}

// Priority represents the notification priority tier. It is immutable after
// creation and alone determines the retry policy.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Notification is the logical intent to inform a recipient, independent of
// delivery channel. Delivery state lives on the per-channel logs.
type Notification struct {
	ID            string
	CorrelationID string
	RecipientID   string
	TemplateID    *string
	Priority      Priority
	CreatedAt     time.Time
}

// Recipient carries the channel-specific addresses of a notification target.
type Recipient struct {
	ID    string
	Phone string
	Email string
}

// AddressFor resolves the delivery address for a channel.
func (r Recipient) AddressFor(channel Channel) (string, error) {
	switch channel {
	case ChannelWhatsApp, ChannelSMS:
		if strings.TrimSpace(r.Phone) == "" {
			return "", fmt.Errorf("%w: recipient has no phone number for %s", ErrValidation, channel)
		}
		return strings.TrimSpace(r.Phone), nil
	case ChannelEmail:
		if strings.TrimSpace(r.Email) == "" {
			return "", fmt.Errorf("%w: recipient has no email address", ErrValidation)
		}
		return strings.TrimSpace(r.Email), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, channel)
	}
}
