package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Unmarshal func(data []byte, v any) error

// Handler processes one decoded delivery. The handler owns the ack.
type Handler[T any] func(ctx context.Context, data *T, delivery amqp.Delivery) error

type deliverySource interface {
	Consume(ctx context.Context, queue, consumer string) <-chan amqp.Delivery
	IsClosed() bool
}

type Consumer interface {
	Subscribe(ctx context.Context)
}

type consumer[T any] struct {
	cfg       *ConsumerConfig
	src       deliverySource
	handler   Handler[T]
	unmarshal Unmarshal
	l         zerolog.Logger
}

func NewConsumer[T any](
	src deliverySource,
	handler Handler[T],
	cfg *ConsumerConfig,
	unmarshal Unmarshal,
	l zerolog.Logger,
) Consumer {
	if handler == nil {
		handler = func(context.Context, *T, amqp.Delivery) error { return nil }
	}
	if unmarshal == nil {
		unmarshal = json.Unmarshal
	}
	return &consumer[T]{
		cfg:       cfg,
		src:       src,
		handler:   handler,
		unmarshal: unmarshal,
		l: l.With().
			Str("component", "amqp-consumer").
			Type("type", *new(T)).
			Str("queue", cfg.Queue).
			Logger(),
	}
}

// Subscribe blocks until ctx is done or the source is closed for good.
func (c *consumer[T]) Subscribe(ctx context.Context) {
	msgCh := c.src.Consume(ctx, c.cfg.Queue, c.cfg.Consumer)
	c.l.Debug().Msg("consumer connected")
	for {
		select {
		case <-ctx.Done():
			c.l.Debug().Msg("consumer stopped")
			return

		case d, ok := <-msgCh:
			if !ok {
				if c.src.IsClosed() || ctx.Err() != nil {
					return
				}
				c.l.Debug().Msg("consumer closed, try to reconnect")
				msgCh = c.src.Consume(ctx, c.cfg.Queue, c.cfg.Consumer)
				continue
			}

			c.l.Debug().Bytes("body", d.Body).Msg("got new event")
			data := new(T)
			if err := c.unmarshal(d.Body, data); err != nil {
				c.l.Error().Err(err).Msg("failed to unmarshal event")
				if err := d.Reject(false); err != nil {
					c.l.Warn().Err(err).Msg("failed to reject event")
				}
				continue
			}
			c.handle(ctx, data, d)
		}
	}
}

func (c *consumer[T]) handle(ctx context.Context, data *T, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.l.Error().Msgf("catch panic: %v\n%s", r, string(debug.Stack()))
			if err := d.Nack(false, false); err != nil {
				c.l.Warn().Err(err).Msg("failed to nack event")
			}
		}
	}()
	if err := c.handler(ctx, data, d); err != nil {
		c.l.Error().Err(err).Msg("failed to consume event")
	}
}
