package provider

import (
	"context"
	"errors"
	"testing"

	mail "gopkg.in/mail.v2"
)

type fakeDialer struct {
	sendFn func(m ...*mail.Message) error
	sent   []*mail.Message
}

func (f *fakeDialer) DialAndSend(m ...*mail.Message) error {
	f.sent = append(f.sent, m...)
	if f.sendFn != nil {
		return f.sendFn(m...)
	}
	return nil
}

func TestEmailAdapterSendCustomMessage(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	adapter, err := NewEmailAdapterWithDialer(dialer, "noreply@munch.example")
	if err != nil {
		t.Fatalf("NewEmailAdapterWithDialer() error = %v", err)
	}

	result, err := adapter.SendCustomMessage(context.Background(), "customer@munch.example", Message{
		Subject: "Order MM-7 receipt",
		Content: "Thanks for your order",
	})
	if err != nil {
		t.Fatalf("SendCustomMessage() unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected result")
	}
	if len(dialer.sent) != 1 {
		t.Fatalf("sent messages = %d, want 1", len(dialer.sent))
	}

	msg := dialer.sent[0]
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "customer@munch.example" {
		t.Fatalf("To header = %v", got)
	}
	if got := msg.GetHeader("Subject"); len(got) != 1 || got[0] != "Order MM-7 receipt" {
		t.Fatalf("Subject header = %v", got)
	}
}

func TestEmailAdapterDefaultsSubject(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	adapter, err := NewEmailAdapterWithDialer(dialer, "noreply@munch.example")
	if err != nil {
		t.Fatalf("NewEmailAdapterWithDialer() error = %v", err)
	}

	if _, err := adapter.SendCustomMessage(context.Background(), "x@munch.example", Message{Content: "body"}); err != nil {
		t.Fatalf("SendCustomMessage() unexpected error: %v", err)
	}
	if got := dialer.sent[0].GetHeader("Subject"); len(got) != 1 || got[0] != defaultEmailSubject {
		t.Fatalf("Subject header = %v, want default", got)
	}
}

func TestEmailAdapterSMTPFailureIsTransient(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{
		sendFn: func(m ...*mail.Message) error {
			return errors.New("connection refused")
		},
	}

	adapter, err := NewEmailAdapterWithDialer(dialer, "noreply@munch.example")
	if err != nil {
		t.Fatalf("NewEmailAdapterWithDialer() error = %v", err)
	}

	_, err = adapter.SendCustomMessage(context.Background(), "x@munch.example", Message{Content: "body"})
	if !IsTransient(err) {
		t.Fatalf("smtp failure should be transient, got %v", err)
	}
}

func TestEmailAdapterRejectsTemplateSends(t *testing.T) {
	t.Parallel()

	adapter, err := NewEmailAdapterWithDialer(&fakeDialer{}, "noreply@munch.example")
	if err != nil {
		t.Fatalf("NewEmailAdapterWithDialer() error = %v", err)
	}

	_, err = adapter.SendTemplateMessage(context.Background(), "x@munch.example", "order_receipt", nil)
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("error = %T, want *SendError", err)
	}
	if sendErr.Transient {
		t.Fatal("template send over smtp should fail permanently")
	}
}
