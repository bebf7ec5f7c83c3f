package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// RabbitPublisher публикует итоги диспетчеризации в очередь RabbitMQ.
// Доставка best-effort: подключение поднимается лениво и пересоздаётся
// после ошибки публикации.
type RabbitPublisher struct {
	url   string
	queue string
	log   zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

var _ domain.EventPublisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher создаёт издателя.
func NewRabbitPublisher(url, queue string, logger zerolog.Logger) *RabbitPublisher {
	return &RabbitPublisher{url: url, queue: queue, log: logger}
}

func (p *RabbitPublisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil && !p.conn.IsClosed() {
		return p.channel, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("подключение к RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала RabbitMQ: %w", err)
	}
	if _, err := channel.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}

	p.conn = conn
	p.channel = channel
	return channel, nil
}

func (p *RabbitPublisher) reset() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// PublishOutcome отправляет итог обработки объявления.
func (p *RabbitPublisher) PublishOutcome(ctx context.Context, outcome domain.DispatchOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("сериализация события: %w", err)
	}

	channel, err := p.ensureChannel()
	if err != nil {
		return err
	}

	start := time.Now()
	err = channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", p.queue, start, err)
	if err != nil {
		p.reset()
		return fmt.Errorf("публикация события: %w", err)
	}
	return nil
}

// Close закрывает подключение.
func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
