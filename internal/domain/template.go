package domain

import (
	"fmt"
	"strings"
	"time"
)

// TemplateStatus represents the lifecycle state of a message template.
type TemplateStatus string

const (
	TemplateActive     TemplateStatus = "ACTIVE"
	TemplateInactive   TemplateStatus = "INACTIVE"
	TemplateDeprecated TemplateStatus = "DEPRECATED"
)

func (s TemplateStatus) String() string { return string(s) }

func (s TemplateStatus) IsValid() bool {
	switch s {
	case TemplateActive, TemplateInactive, TemplateDeprecated:
		return true
	}
	return false
}

// Template is a named message body with {{var}} placeholders. Templates are
// managed by administrative tooling and read-only from the engine's side.
type Template struct {
	ID        string
	Name      string
	Channel   Channel
	Content   string
	Subject   string
	Status    TemplateStatus
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Template) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: template is required", ErrValidation)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("%w: template content is required", ErrValidation)
	}
	if !t.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrUnsupportedChannel, t.Channel)
	}
	if t.Channel == ChannelEmail && strings.TrimSpace(t.Subject) == "" {
		return fmt.Errorf("%w: email template requires a subject", ErrValidation)
	}
	return nil
}
