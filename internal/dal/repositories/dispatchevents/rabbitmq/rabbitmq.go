package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
)

type publisher interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

// EventPublisher fans dispatch events out to every bound queue.
type EventPublisher struct {
	client   publisher
	exchange string
}

// MustNewEventPublisher declares the fanout exchange.
func MustNewEventPublisher(client *rabbitmq.Client, exchange string) *EventPublisher {
	if err := client.DeclareFanout(exchange); err != nil {
		panic(err)
	}

	return NewEventPublisher(client, exchange)
}

// NewEventPublisher skips exchange declaration.
func NewEventPublisher(client publisher, exchange string) *EventPublisher {
	return &EventPublisher{
		client:   client,
		exchange: exchange,
	}
}

// Publish sends each event as a persistent JSON message keyed by its type.
func (p *EventPublisher) Publish(ctx context.Context, events ...dispatch.Event) error {
	pubCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	g, gctx := errgroup.WithContext(pubCtx)
	g.SetLimit(3)

	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			body, err := json.Marshal(ev)
			if err != nil {
				return err
			}

			return p.client.Publish(gctx, p.exchange, ev.Type, amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    uuid.NewString(),
				Timestamp:    ev.OccurredAt,
				Type:         ev.Type,
				Body:         body,
			})
		})
	}

	return g.Wait()
}
