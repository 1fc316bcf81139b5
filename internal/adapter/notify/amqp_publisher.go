package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/sokoni/storefront/internal/port"
)

// AMQPPublisher pushes order-confirmed events to the notification
// exchange. Delivery is fire-and-forget from the checkout's point of
// view: the orchestrator logs a failed publish and moves on.
type AMQPPublisher struct {
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

func NewAMQPPublisher(conn *amqp.Connection, exchange, routingKey string, logger zerolog.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger.With().Str("component", "notifier").Logger(),
	}, nil
}

func (p *AMQPPublisher) OrderConfirmed(ctx context.Context, event port.OrderConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = p.channel.Publish(p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish order confirmed: %w", err)
	}

	p.logger.Debug().Int64("order_id", event.OrderID).Msg("order confirmed event published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.channel.Close()
}
