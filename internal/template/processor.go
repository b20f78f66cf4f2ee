// Package template resolves, validates, and renders notification templates,
// applying channel-specific formatting before anything reaches a provider.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/munchmtxi/notification-engine/internal/domain"
)

const (
	// SMS bodies are hard-truncated to a single segment.
	smsMaxLength      = 160
	truncationMarker  = "..."
	paragraphSentinel = "\x00"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)
	newlineRunPattern  = regexp.MustCompile(`\n{2,}`)
)

// Payload is a channel-formatted message ready for an adapter.
type Payload struct {
	Subject string
	Body    string
}

// Placeholders returns the distinct placeholder names found in content,
// sorted for deterministic error reporting.
func Placeholders(content string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names
}

// Validate checks that every placeholder in the template body (and subject,
// for email) has a supplied variable. It must run before any side effect.
func Validate(t *domain.Template, variables map[string]string) error {
	if err := t.Validate(); err != nil {
		return err
	}

	required := Placeholders(t.Content)
	if t.Channel == domain.ChannelEmail {
		required = mergeNames(required, Placeholders(t.Subject))
	}

	missing := make([]string, 0)
	for _, name := range required {
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &domain.MissingVariablesError{TemplateName: t.Name, Missing: missing}
	}
	return nil
}

// Render substitutes every placeholder occurrence with its variable value.
// Unresolved placeholders are left verbatim rather than failing, so a render
// after successful validation can never error late in the pipeline.
func Render(content string, variables map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}

// FormatForChannel renders the template and applies channel formatting rules.
func FormatForChannel(channel domain.Channel, t *domain.Template, variables map[string]string) (Payload, error) {
	body := Render(t.Content, variables)

	switch channel {
	case domain.ChannelSMS:
		return Payload{Body: TruncateSMS(body)}, nil
	case domain.ChannelEmail:
		return Payload{Subject: Render(t.Subject, variables), Body: body}, nil
	case domain.ChannelWhatsApp:
		return Payload{Body: normalizeWhatsAppBreaks(body)}, nil
	default:
		return Payload{}, fmt.Errorf("%w: no formatter for %q", domain.ErrUnsupportedChannel, channel)
	}
}

// TruncateSMS enforces the single-segment SMS limit, appending a truncation
// marker when content is cut. The result never exceeds 160 characters.
func TruncateSMS(body string) string {
	runes := []rune(body)
	if len(runes) <= smsMaxLength {
		return body
	}
	return string(runes[:smsMaxLength-len(truncationMarker)]) + truncationMarker
}

// normalizeWhatsAppBreaks promotes single line breaks to paragraph breaks,
// which is how the provider renders multi-line messages.
func normalizeWhatsAppBreaks(body string) string {
	normalized := newlineRunPattern.ReplaceAllString(body, paragraphSentinel)
	normalized = strings.ReplaceAll(normalized, "\n", "\n\n")
	return strings.ReplaceAll(normalized, paragraphSentinel, "\n\n")
}

// RenderStructured walks nested maps and slices substituting string leaves.
// Non-string leaves pass through untouched.
func RenderStructured(value any, variables map[string]string) any {
	switch v := value.(type) {
	case string:
		return Render(v, variables)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = RenderStructured(item, variables)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RenderStructured(item, variables)
		}
		return out
	default:
		return value
	}
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, name := range append(a, b...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, name)
	}
	sort.Strings(merged)
	return merged
}
