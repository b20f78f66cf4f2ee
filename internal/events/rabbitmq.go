package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	statusExchangeName = "notifications.status"
	reconnectBackoff   = time.Second
	maxBackoff         = 30 * time.Second
	dialTimeout        = 15 * time.Second
)

// RabbitMQSink publishes status events to a durable topic exchange, keyed by
// event name, so real-time consumers can bind to the subset they care about.
type RabbitMQSink struct {
	url string

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
}

func NewRabbitMQSink(url string) (*RabbitMQSink, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	s := &RabbitMQSink{url: url}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *RabbitMQSink) Publish(ctx context.Context, event string, payload StatusEvent) error {
	if s == nil {
		return fmt.Errorf("sink is not initialized")
	}
	if strings.TrimSpace(event) == "" {
		return fmt.Errorf("event name is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	ch, err := s.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Transient,
		Timestamp:     time.Now().UTC(),
		MessageId:     uuid.NewString(),
		CorrelationId: payload.CorrelationID,
		Body:          body,
	}

	if err := ch.PublishWithContext(ctx, statusExchangeName, event, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish event %q: %w", event, err)
	}

	return nil
}

func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

func (s *RabbitMQSink) channel(ctx context.Context) (*amqp.Channel, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	ch, err := conn.Channel()
	if err != nil {
		if errReconnect := s.reconnectWithBackoff(ctx); errReconnect != nil {
			return nil, errReconnect
		}

		s.mu.RLock()
		conn = s.conn
		s.mu.RUnlock()

		ch, err = conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("failed to create rabbitmq channel after reconnect: %w", err)
		}
	}

	if err := ch.ExchangeDeclare(statusExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare status exchange: %w", err)
	}

	return ch, nil
}

func (s *RabbitMQSink) ensureConnected(ctx context.Context) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return nil
	}

	return s.reconnectWithBackoff(ctx)
}

func (s *RabbitMQSink) reconnectWithBackoff(ctx context.Context) error {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return nil
	}

	wait := reconnectBackoff
	for {
		newConn, err := amqp.Dial(s.url)
		if err == nil {
			s.mu.Lock()
			oldConn := s.conn
			s.conn = newConn
			s.mu.Unlock()

			if oldConn != nil && !oldConn.IsClosed() {
				_ = oldConn.Close()
			}

			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq reconnect canceled: %w", ctx.Err())
		case <-time.After(wait):
		}

		wait *= 2
		if wait > maxBackoff {
			wait = maxBackoff
		}
	}
}
