// Package notify publishes booking lifecycle events to a message broker for
// downstream delivery.  Publishing happens after the database commit and
// never changes the outcome of a booking: errors are counted and returned
// for logging only.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/queue"
)

type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
	Close() error
}

// New picks the publisher named by cfg.Broker.
func New(cfg config.NotifyConfig, log *zap.Logger) (Publisher, error) {
	switch strings.ToLower(cfg.Broker) {
	case "rabbitmq", "amqp":
		return NewAMQPPublisher(cfg.RabbitURL, log), nil
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	case "", "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_BROKER %q", cfg.Broker)
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, queue.BookingEvent) error { return nil }
func (Noop) Close() error                                      { return nil }

func record(broker string, ev queue.BookingEvent, err error) error {
	metrics.RecordNotification(broker, ev.Type, err)
	return err
}
