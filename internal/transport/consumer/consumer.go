package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iinboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/inbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// service represents the service layer interface.
type service interface {
	RecordDispatchEvent(ctx context.Context, messageID string, ev dispatch.Event) error
}

// Consumer feeds dispatch events from RabbitMQ into the audit service.
type Consumer struct {
	client       *rabbitmq.Client
	service      service
	inboxRepo    iinboxrepo.IInboxRepository
	queue        amqp.Queue
	maxRetries   int
	firstBackoff time.Duration
	now          func() time.Time
	stop         chan struct{}
	done         chan struct{}
}

// NewConsumer declares the dispatch events exchange and the backoffice
// queue, and binds them.
func NewConsumer(client *rabbitmq.Client, service service, inboxRepo iinboxrepo.IInboxRepository) *Consumer {
	exchange := viper.GetString("rabbitmq.exchange")
	if exchange == "" {
		exchange = "dispatch.events"
	}
	queueName := viper.GetString("rabbitmq.queue")
	if queueName == "" {
		panic("rabbitmq.queue is not set in config")
	}

	if err := client.DeclareFanout(exchange); err != nil {
		panic(err)
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       queueName,
		Durable:    true,
		AutoDelete: false,
		Exclusive:  false,
		NoWait:     false,
	})
	if err != nil {
		panic(err)
	}

	if err := client.BindQueue(queue.Name, exchange, ""); err != nil {
		panic(err)
	}

	c := newConsumer(service, inboxRepo)
	c.client = client
	c.queue = queue

	return c
}

func newConsumer(service service, inboxRepo iinboxrepo.IInboxRepository) *Consumer {
	maxRetries := viper.GetInt("inbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}
	backoffSeconds := viper.GetInt("inbox.base_backoff_seconds")
	if backoffSeconds == 0 {
		backoffSeconds = 30
	}

	return &Consumer{
		service:      service,
		inboxRepo:    inboxRepo,
		maxRetries:   maxRetries,
		firstBackoff: time.Duration(backoffSeconds) * time.Second,
		now:          time.Now,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Run starts consuming messages from RabbitMQ.
func (c *Consumer) Run(ctx context.Context) error {
	consumerTag := viper.GetString("rabbitmq.consumer_tag")
	if consumerTag == "" {
		consumerTag = "backoffice"
	}

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:     c.queue.Name,
		Consumer:  consumerTag,
		AutoAck:   false,
		Exclusive: viper.GetBool("rabbitmq.exclusive"),
		NoLocal:   viper.GetBool("rabbitmq.no_local"),
		NoWait:    viper.GetBool("rabbitmq.no_wait"),
	})
	if err != nil {
		return err
	}

	slog.Info("Consumer started", "queue", c.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(50)

	go func() {
		for {
			select {
			case <-c.stop:
				slog.Info("Stopping consumer")
				close(c.done)

				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("Message channel closed")
					close(c.done)

					return
				}

				g.Go(func() error {
					c.processMessage(gctx, msg)

					return nil
				})
			}
		}
	}()

	<-c.done

	return g.Wait()
}

// processMessage settles every delivery. Malformed events are dropped; other
// failures are parked in the inbox and acked so the queue keeps moving.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.processMessage")
	defer span.End()
	span.SetAttributes(attribute.String("message.id", msg.MessageId))

	messageID := msg.MessageId
	ev, err := dispatch.DecodeEvent(msg.Body)
	if err == nil {
		if messageID == "" {
			messageID = ev.Key()
		}
		span.SetAttributes(attribute.String("order.ref", ev.OrderRef))
		err = c.service.RecordDispatchEvent(ctx, messageID, ev)
	}
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrMalformedEvent):
		slog.Error("Dropping malformed dispatch event", "message_id", msg.MessageId, "error", err)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return
	default:
		if parkErr := c.park(ctx, messageID, ev, err); parkErr != nil {
			slog.Error("Failed to park message in inbox, requeueing",
				"message_id", msg.MessageId,
				"error", parkErr,
			)
			if err := msg.Nack(false, true); err != nil {
				slog.Error("Failed to nack message", "error", err)
			}

			return
		}
		slog.Warn("Dispatch event parked in inbox",
			"message_id", messageID,
			"order_ref", ev.OrderRef,
			"event_type", ev.Type,
			"error", err,
		)
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)
	}
}

func (c *Consumer) park(ctx context.Context, messageID string, ev dispatch.Event, cause error) error {
	now := c.now()

	return c.inboxRepo.Park(ctx, inbox.ParkedEvent{
		MessageID:     messageID,
		Event:         ev,
		MaxAttempts:   c.maxRetries,
		LastError:     cause.Error(),
		ParkedAt:      now,
		NextAttemptAt: now.Add(c.firstBackoff),
	})
}

// Shutdown gracefully shuts down the consumer.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down consumer")
	close(c.stop)

	select {
	case <-c.done:
		slog.Info("Consumer stopped successfully")
	case <-time.After(10 * time.Second):
		slog.Warn("Consumer shutdown timeout")
	}

	return nil
}
