// Package events publishes order and account lifecycle events to the kitchen
// and billing consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"digitalMenu/domain"
	"digitalMenu/pkg/config"
	"digitalMenu/pkg/logger"
)

// Publisher is implemented by every broker backend. Close releases the connection.
type Publisher interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
	Close() error
}

// New builds the publisher selected by EVENT_BROKER.
func New(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Broker {
	case "rabbitmq":
		return DialRabbit(cfg.RabbitURL, cfg.RabbitExchange)
	case "kafka":
		return NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "", "none":
		return LogPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown event broker %q", cfg.Broker)
	}
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event domain.LifecycleEvent) error {
	logger.Debug("Lifecycle event", "type", event.Type, "order_id", event.OrderID, "account_id", event.AccountID, "status", event.Status)
	return nil
}

func (LogPublisher) Close() error { return nil }

// routingKey is the event type, so consumers can bind to "order.*" or "account.*".
func routingKey(event domain.LifecycleEvent) string {
	return event.Type
}

// messageKey keeps one aggregate's events on one partition.
func messageKey(event domain.LifecycleEvent) []byte {
	if event.OrderID != 0 {
		return []byte(fmt.Sprintf("order-%d", event.OrderID))
	}
	return []byte(fmt.Sprintf("account-%d", event.AccountID))
}

func encode(event domain.LifecycleEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return body, nil
}
