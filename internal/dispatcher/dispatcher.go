package dispatcher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/internal/store/requeststore"
	"golang.org/x/sync/errgroup"
)

var ErrQueueFull = errors.New("request queue is full")

// Executor runs a dequeued request. It either completes the request in the
// store itself or hands it to someone who will.
type Executor interface {
	Execute(ctx context.Context, req *requeststore.Info) error
}

type Config struct {
	RequestQueueSize int
	DispatchTimeout  time.Duration
	RequestTimeout   time.Duration
	Concurrency      int
}

type Dispatcher struct {
	l            zerolog.Logger
	cfg          Config
	requestC     chan *requeststore.Info
	requestStore requeststore.RequestStore
	executor     Executor
	now          func() time.Time
}

func NewDispatcher(
	cfg Config,
	requestStore requeststore.RequestStore,
	executor Executor,
	l zerolog.Logger,
) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		cfg:          cfg,
		requestC:     make(chan *requeststore.Info, cfg.RequestQueueSize),
		requestStore: requestStore,
		executor:     executor,
		now:          time.Now,
		l: l.With().
			Str("domain", "dispatcher").
			Logger(),
	}
}

// Start runs Concurrency request loops until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.l.Info().Int("concurrency", d.cfg.Concurrency).Msg("Dispatcher is running")
	group, gCtx := errgroup.WithContext(ctx)
	for range d.cfg.Concurrency {
		group.Go(func() error {
			for {
				select {
				case req := <-d.requestC:
					d.handleRequest(gCtx, req)
				case <-gCtx.Done():
					return gCtx.Err()
				}
			}
		})
	}
	return group.Wait()
}

// DispatchRequest stores a new request and queues it. When the queue stays
// full for DispatchTimeout the request is dropped and ErrQueueFull returned.
func (d *Dispatcher) DispatchRequest(ctx context.Context, hashes []string) (requeststore.Id, error) {
	req := requeststore.NewInfo(hashes, d.now())
	if err := d.requestStore.Save(ctx, req); err != nil {
		return "", errors.Wrap(err, "save request")
	}
	timer := time.NewTimer(d.cfg.DispatchTimeout)
	defer timer.Stop()
	select {
	case d.requestC <- req:
		d.l.Debug().Str("request-id", string(req.ID)).Int("hashes", len(hashes)).Msg("Request queued")
		return req.ID, nil
	case <-timer.C:
		d.drop(req.ID)
		return "", ErrQueueFull
	case <-ctx.Done():
		d.drop(req.ID)
		return "", ctx.Err()
	}
}

func (d *Dispatcher) drop(id requeststore.Id) {
	if err := d.requestStore.Delete(context.Background(), id); err != nil {
		d.l.Warn().Err(err).Str("request-id", string(id)).Msg("Failed to drop request")
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, req *requeststore.Info) {
	l := d.l.With().Str("request-id", string(req.ID)).Logger()
	if err := d.requestStore.UpdateStatus(ctx, req.ID, requeststore.StatusInProgress, ""); err != nil {
		l.Error().Err(err).Msg("Failed to mark request in progress")
		return
	}
	rCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()
	if err := d.executor.Execute(rCtx, req); err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "Request canceled by timeout"
		}
		l.Warn().Err(err).Msg("Request failed")
		d.fail(req.ID, reason)
		return
	}
	time.AfterFunc(d.cfg.RequestTimeout, func() {
		info, err := d.requestStore.Get(context.Background(), req.ID)
		if err == nil && !info.Finished() {
			l.Warn().Msg("Request canceled by timeout")
			d.fail(req.ID, "Request canceled by timeout")
		}
	})
}

func (d *Dispatcher) fail(id requeststore.Id, reason string) {
	err := d.requestStore.UpdateStatus(context.Background(), id, requeststore.StatusError, reason)
	if err != nil {
		d.l.Error().Err(err).Str("request-id", string(id)).Msg("Failed to mark request failed")
	}
}
