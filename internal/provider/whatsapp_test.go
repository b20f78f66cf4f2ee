package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestWhatsAppAdapterSendCustomMessageSuccess(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.abc123"}]}`))
	}))
	defer server.Close()

	adapter, err := NewWhatsAppAdapter(server.URL, "token")
	if err != nil {
		t.Fatalf("NewWhatsAppAdapter() error = %v", err)
	}

	result, err := adapter.SendCustomMessage(context.Background(), "+265991234567", Message{Content: "Your order is on the way"})
	if err != nil {
		t.Fatalf("SendCustomMessage() unexpected error: %v", err)
	}
	if result.MessageID != "wamid.abc123" {
		t.Fatalf("MessageID = %q, want wamid.abc123", result.MessageID)
	}

	if gotBody["to"] != "+265991234567" {
		t.Fatalf("request.to = %v", gotBody["to"])
	}
	if gotBody["type"] != "text" {
		t.Fatalf("request.type = %v, want text", gotBody["type"])
	}
}

func TestWhatsAppAdapterSendTemplateMessage(t *testing.T) {
	t.Parallel()

	var gotBody whatsAppTemplateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.tpl1"}]}`))
	}))
	defer server.Close()

	adapter, err := NewWhatsAppAdapter(server.URL, "")
	if err != nil {
		t.Fatalf("NewWhatsAppAdapter() error = %v", err)
	}

	result, err := adapter.SendTemplateMessage(context.Background(), "+265991234567", "order_confirmed", map[string]string{"orderNumber": "MM-1"})
	if err != nil {
		t.Fatalf("SendTemplateMessage() unexpected error: %v", err)
	}
	if result.MessageID != "wamid.tpl1" {
		t.Fatalf("MessageID = %q", result.MessageID)
	}

	if gotBody.Template.Name != "order_confirmed" {
		t.Fatalf("template name = %q", gotBody.Template.Name)
	}
	if gotBody.Template.Parameters["orderNumber"] != "MM-1" {
		t.Fatalf("template parameters = %v", gotBody.Template.Parameters)
	}
}

func TestWhatsAppAdapterStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "server error is transient", statusCode: http.StatusBadGateway, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "unauthorized is permanent", statusCode: http.StatusUnauthorized, wantTransient: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))
			defer server.Close()

			adapter, err := NewWhatsAppAdapter(server.URL, "")
			if err != nil {
				t.Fatalf("NewWhatsAppAdapter() error = %v", err)
			}

			_, err = adapter.SendCustomMessage(context.Background(), "+265991234567", Message{Content: "hello"})
			if err == nil {
				t.Fatal("expected send error")
			}

			var sendErr *SendError
			if !errors.As(err, &sendErr) {
				t.Fatalf("error = %T, want *SendError", err)
			}
			if sendErr.StatusCode != tc.statusCode {
				t.Fatalf("StatusCode = %d, want %d", sendErr.StatusCode, tc.statusCode)
			}
			if IsTransient(err) != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", IsTransient(err), tc.wantTransient)
			}
		})
	}
}

func TestWhatsAppAdapterTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(20 * time.Millisecond)

	adapter, err := NewWhatsAppAdapterWithClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewWhatsAppAdapterWithClient() error = %v", err)
	}

	_, err = adapter.SendCustomMessage(context.Background(), "+265991234567", Message{Content: "hello"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("timeout should be transient, got %v", err)
	}
}

func TestNewWhatsAppAdapterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewWhatsAppAdapter("", "token"); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewWhatsAppAdapter("not a url", "token"); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if _, err := NewWhatsAppAdapterWithClient("https://example.com", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
