package amqp

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type DeliveryMode uint8

const (
	Transient  DeliveryMode = 1
	Persistent DeliveryMode = 2
)

type Marshal func(any) ([]byte, error)

type publishChannel interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

type Publisher[T any] interface {
	SendMessage(ctx context.Context, message *T, mode DeliveryMode) error
}

type publisher[T any] struct {
	cfg         *PublisherConfig
	ch          publishChannel
	marshal     Marshal
	contentType string
	l           zerolog.Logger
}

func NewPublisher[T any](ch publishChannel, cfg *PublisherConfig, marshal Marshal, l zerolog.Logger) Publisher[T] {
	contentType := "application/octet-stream"
	if marshal == nil {
		marshal = json.Marshal
		contentType = "application/json"
	}
	return &publisher[T]{
		cfg:         cfg,
		ch:          ch,
		marshal:     marshal,
		contentType: contentType,
		l: l.With().
			Str("component", "amqp-publisher").
			Type("type", *new(T)).
			Str("exchange", cfg.Exchange).
			Str("routing-key", cfg.RoutingKey).
			Logger(),
	}
}

func (p *publisher[T]) SendMessage(ctx context.Context, message *T, mode DeliveryMode) error {
	p.l.Debug().Msg("send message")
	body, err := p.marshal(message)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	msg := amqp.Publishing{
		DeliveryMode: uint8(mode),
		ContentType:  p.contentType,
		Body:         body,
	}
	if err := p.ch.Publish(ctx, p.cfg.Exchange, p.cfg.RoutingKey, msg); err != nil {
		p.l.Error().Err(err).Msg("failed to send message")
		return errors.Wrap(err, "send message")
	}
	return nil
}
