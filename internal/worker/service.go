package worker

import (
	"context"

	"github.com/pkg/errors"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/common/amqp"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
)

type Cracker interface {
	CrackMany(ctx context.Context, hashes []string) ([]messages.HashResult, error)
}

// Service consumes crack requests from the request queue and publishes one
// response per request to the response queue.
type Service struct {
	l       zerolog.Logger
	cfg     *amqp.Config
	cracker Cracker
}

func NewService(cfg *amqp.Config, cracker Cracker, l zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		cracker: cracker,
		l: l.With().
			Str("domain", "worker").
			Logger(),
	}
}

// Start blocks consuming requests until ctx is done.
func (s *Service) Start(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel(ctx)
	if err != nil {
		return errors.Wrap(err, "error create amqp channel")
	}
	defer func() { _ = ch.Close() }()
	if err := ch.Declare(s.cfg.Prefetch, s.cfg.RequestQueue, s.cfg.ResponseQueue); err != nil {
		return err
	}
	publisher := amqp.NewPublisher[messages.CrackResponse](ch, s.cfg.Publisher(s.cfg.ResponseQueue), nil, s.l)
	consumer := amqp.NewConsumer[messages.CrackRequest](ch, s.handler(publisher), s.cfg.Consumer(s.cfg.RequestQueue), nil, s.l)
	s.l.Info().Str("queue", s.cfg.RequestQueue).Msg("Worker is running")
	consumer.Subscribe(ctx)
	return ctx.Err()
}

// handler publishes the response before acking, so a crash in between
// redelivers the request instead of losing it.
func (s *Service) handler(publisher amqp.Publisher[messages.CrackResponse]) amqp.Handler[messages.CrackRequest] {
	return func(ctx context.Context, req *messages.CrackRequest, d amqp091.Delivery) error {
		l := s.l.With().Str("request-id", req.RequestId).Logger()
		l.Debug().Int("hashes", len(req.Hashes)).Msg("cracking request")
		results, err := s.cracker.CrackMany(ctx, req.Hashes)
		if err == nil {
			resp := &messages.CrackResponse{RequestId: req.RequestId, Results: results}
			err = publisher.SendMessage(ctx, resp, amqp.Persistent)
		}
		if err != nil {
			if nackErr := d.Nack(false, true); nackErr != nil {
				l.Warn().Err(nackErr).Msg("failed to nack request")
			}
			return errors.Wrap(err, "handle crack request")
		}
		if err := d.Ack(false); err != nil {
			return errors.Wrap(err, "ack crack request")
		}
		l.Debug().Msg("request answered")
		return nil
	}
}
