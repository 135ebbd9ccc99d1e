package dispatcher

import (
	"context"

	"github.com/pkg/errors"
	"github.com/ykhdr/rainbow-crack/common/amqp"
	"github.com/ykhdr/rainbow-crack/internal/store/requeststore"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
)

type Cracker interface {
	CrackMany(ctx context.Context, hashes []string) ([]messages.HashResult, error)
}

type localExecutor struct {
	cracker      Cracker
	requestStore requeststore.RequestStore
}

// NewLocalExecutor cracks requests in process against the loaded table.
func NewLocalExecutor(cracker Cracker, requestStore requeststore.RequestStore) Executor {
	return &localExecutor{cracker: cracker, requestStore: requestStore}
}

func (e *localExecutor) Execute(ctx context.Context, req *requeststore.Info) error {
	results, err := e.cracker.CrackMany(ctx, req.Hashes)
	if err != nil {
		return err
	}
	return e.requestStore.Complete(ctx, req.ID, results)
}

type amqpExecutor struct {
	publisher amqp.Publisher[messages.CrackRequest]
}

// NewAmqpExecutor forwards requests to the worker queue. The request is
// completed when the matching response arrives, see ResponseHandler.
func NewAmqpExecutor(publisher amqp.Publisher[messages.CrackRequest]) Executor {
	return &amqpExecutor{publisher: publisher}
}

func (e *amqpExecutor) Execute(ctx context.Context, req *requeststore.Info) error {
	msg := &messages.CrackRequest{RequestId: string(req.ID), Hashes: req.Hashes}
	if err := e.publisher.SendMessage(ctx, msg, amqp.Persistent); err != nil {
		return errors.Wrap(err, "publish crack request")
	}
	return nil
}
