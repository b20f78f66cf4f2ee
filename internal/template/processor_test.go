package template

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/munchmtxi/notification-engine/internal/domain"
)

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	got := Placeholders("Hi {{ name }}, order {{orderNumber}} from {{name}} is ready")
	if len(got) != 2 {
		t.Fatalf("Placeholders() = %v, want 2 distinct names", got)
	}
	if got[0] != "name" || got[1] != "orderNumber" {
		t.Fatalf("Placeholders() = %v, want [name orderNumber]", got)
	}
}

func TestValidateReportsMissingVariables(t *testing.T) {
	t.Parallel()

	tmpl := &domain.Template{
		Name:    "order_confirmed",
		Channel: domain.ChannelSMS,
		Content: "Order {{orderNumber}} for {{customerName}} confirmed",
	}

	err := Validate(tmpl, map[string]string{"customerName": "Chisomo"})
	var missingErr *domain.MissingVariablesError
	if !errors.As(err, &missingErr) {
		t.Fatalf("Validate() error = %v, want MissingVariablesError", err)
	}
	if len(missingErr.Missing) != 1 || missingErr.Missing[0] != "orderNumber" {
		t.Fatalf("Missing = %v, want [orderNumber]", missingErr.Missing)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatal("MissingVariablesError should unwrap to ErrValidation")
	}
}

func TestValidateChecksEmailSubjectPlaceholders(t *testing.T) {
	t.Parallel()

	tmpl := &domain.Template{
		Name:    "order_receipt",
		Channel: domain.ChannelEmail,
		Subject: "Receipt for order {{orderNumber}}",
		Content: "Thanks {{customerName}}",
	}

	err := Validate(tmpl, map[string]string{"customerName": "Thoko"})
	var missingErr *domain.MissingVariablesError
	if !errors.As(err, &missingErr) {
		t.Fatalf("Validate() error = %v, want MissingVariablesError", err)
	}
	if missingErr.Missing[0] != "orderNumber" {
		t.Fatalf("Missing = %v, want orderNumber from subject", missingErr.Missing)
	}
}

func TestRenderSubstitutesAllOccurrences(t *testing.T) {
	t.Parallel()

	got := Render("{{name}} and {{name}} and {{unknown}}", map[string]string{"name": "Zikomo"})
	if got != "Zikomo and Zikomo and {{unknown}}" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestFormatForChannelSMSTruncation(t *testing.T) {
	t.Parallel()

	tmpl := &domain.Template{
		Name:    "long_sms",
		Channel: domain.ChannelSMS,
		Content: strings.Repeat("a", 200),
	}

	payload, err := FormatForChannel(domain.ChannelSMS, tmpl, nil)
	if err != nil {
		t.Fatalf("FormatForChannel() unexpected error = %v", err)
	}
	if n := utf8.RuneCountInString(payload.Body); n > 160 {
		t.Fatalf("SMS body length = %d, want <= 160", n)
	}
	if !strings.HasSuffix(payload.Body, "...") {
		t.Fatalf("SMS body %q should end with truncation marker", payload.Body)
	}
}

func TestFormatForChannelSMSShortBodyUntouched(t *testing.T) {
	t.Parallel()

	if got := TruncateSMS("short"); got != "short" {
		t.Fatalf("TruncateSMS() = %q, want untouched", got)
	}
}

func TestFormatForChannelEmailRendersSubject(t *testing.T) {
	t.Parallel()

	tmpl := &domain.Template{
		Name:    "order_receipt",
		Channel: domain.ChannelEmail,
		Subject: "Order {{orderNumber}}",
		Content: "Hello {{customerName}}",
	}

	payload, err := FormatForChannel(domain.ChannelEmail, tmpl, map[string]string{
		"orderNumber":  "MM-4411",
		"customerName": "Chikondi",
	})
	if err != nil {
		t.Fatalf("FormatForChannel() unexpected error = %v", err)
	}
	if payload.Subject != "Order MM-4411" {
		t.Fatalf("Subject = %q", payload.Subject)
	}
	if payload.Body != "Hello Chikondi" {
		t.Fatalf("Body = %q", payload.Body)
	}
}

func TestFormatForChannelWhatsAppParagraphBreaks(t *testing.T) {
	t.Parallel()

	tmpl := &domain.Template{
		Name:    "driver_assigned",
		Channel: domain.ChannelWhatsApp,
		Content: "Driver assigned\nPlate {{plate}}\n\nTrack your order",
	}

	payload, err := FormatForChannel(domain.ChannelWhatsApp, tmpl, map[string]string{"plate": "MW 1234"})
	if err != nil {
		t.Fatalf("FormatForChannel() unexpected error = %v", err)
	}
	want := "Driver assigned\n\nPlate MW 1234\n\nTrack your order"
	if payload.Body != want {
		t.Fatalf("Body = %q, want %q", payload.Body, want)
	}
}

func TestFormatForChannelUnsupported(t *testing.T) {
	t.Parallel()

	tmpl := &domain.Template{Name: "x", Channel: domain.ChannelSMS, Content: "y"}
	_, err := FormatForChannel(domain.Channel("PUSH"), tmpl, nil)
	if !errors.Is(err, domain.ErrUnsupportedChannel) {
		t.Fatalf("FormatForChannel() error = %v, want ErrUnsupportedChannel", err)
	}
}

func TestRenderStructuredWalksNestedValues(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"header": "Order {{orderNumber}}",
		"lines": []any{
			map[string]any{"item": "{{item}}", "qty": 2},
			"total: {{total}}",
		},
		"signed": true,
	}

	got, ok := RenderStructured(input, map[string]string{
		"orderNumber": "MM-9",
		"item":        "Nsima combo",
		"total":       "4500",
	}).(map[string]any)
	if !ok {
		t.Fatal("RenderStructured() should return a map")
	}

	if got["header"] != "Order MM-9" {
		t.Fatalf("header = %v", got["header"])
	}
	if got["signed"] != true {
		t.Fatalf("non-string leaf changed: %v", got["signed"])
	}

	lines := got["lines"].([]any)
	first := lines[0].(map[string]any)
	if first["item"] != "Nsima combo" {
		t.Fatalf("nested item = %v", first["item"])
	}
	if first["qty"] != 2 {
		t.Fatalf("nested non-string leaf changed: %v", first["qty"])
	}
	if lines[1] != "total: 4500" {
		t.Fatalf("nested string = %v", lines[1])
	}
}
