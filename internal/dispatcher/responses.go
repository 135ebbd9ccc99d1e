package dispatcher

import (
	"context"

	"github.com/pkg/errors"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/common/amqp"
	"github.com/ykhdr/rainbow-crack/internal/store/requeststore"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
)

// ResponseHandler completes requests from worker responses. Responses for
// unknown requests are acked and dropped.
func ResponseHandler(requestStore requeststore.RequestStore, l zerolog.Logger) amqp.Handler[messages.CrackResponse] {
	l = l.With().Str("domain", "responses").Logger()
	return func(ctx context.Context, resp *messages.CrackResponse, d amqp091.Delivery) error {
		err := requestStore.Complete(ctx, requeststore.Id(resp.RequestId), resp.Results)
		switch {
		case errors.Is(err, requeststore.ErrNotFound):
			l.Warn().Str("request-id", resp.RequestId).Msg("Response for unknown request")
		case err != nil:
			if nackErr := d.Nack(false, true); nackErr != nil {
				l.Warn().Err(nackErr).Msg("Failed to nack response")
			}
			return errors.Wrap(err, "complete request")
		}
		if err := d.Ack(false); err != nil {
			return errors.Wrap(err, "ack response")
		}
		return nil
	}
}
