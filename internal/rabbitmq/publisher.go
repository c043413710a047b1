package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

const (
	// ExchangeName exchange событий подписки.
	ExchangeName = "subscription.events"
	// RouteCredited ключ маршрутизации события начисления.
	RouteCredited = "credited"
	// RouteSynced ключ маршрутизации результата синхронизации с панелью.
	RouteSynced = "synced"
	// RouteSyncFailed ключ маршрутизации постоянной ошибки синхронизации.
	RouteSyncFailed = "sync_failed"
)

// Publisher публикует события в RabbitMQ. Нулевой Publisher молча
// отбрасывает события: публикация не участвует в корректности начисления.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher создает Publisher поверх открытого канала.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// Publish сериализует сообщение в JSON и публикует его с ключом routingKey.
func (p *Publisher) Publish(routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	if p == nil || p.ch == nil {
		return nil
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(
		ExchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
