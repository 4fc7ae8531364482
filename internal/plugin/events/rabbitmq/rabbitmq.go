package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chirino/social-service/internal/config"
	registryevents "github.com/chirino/social-service/internal/registry/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

func init() {
	registryevents.Register(registryevents.Plugin{
		Name:   "rabbitmq",
		Loader: load,
	})
}

func load(ctx context.Context) (registryevents.Publisher, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("rabbitmq events: SOCIAL_SERVICE_RABBITMQ_URL is required")
	}
	return Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
}

// Dial connects to the broker and declares a durable topic exchange. Events are
// published with the event type as routing key.
func Dial(url string, exchange string) (registryevents.Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq events: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq events: open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq events: declare exchange %s: %w", exchange, err)
	}
	return &rabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

type rabbitPublisher struct {
	// amqp channels are not safe for concurrent publishing.
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *rabbitPublisher) Publish(ctx context.Context, event registryevents.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq events: marshal: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		p.exchange,
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         event.Type,
		},
	)
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var _ registryevents.Publisher = (*rabbitPublisher)(nil)
