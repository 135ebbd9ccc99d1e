package rainbow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Sink receives every completed batch before the next one is dispatched.
// The slice is owned by the sink after the call.
type Sink interface {
	WriteBatch(chains []Chain) error
}

// CollectSink keeps every chain in memory.
type CollectSink struct {
	Chains []Chain
}

func (s *CollectSink) WriteBatch(chains []Chain) error {
	s.Chains = append(s.Chains, chains...)
	return nil
}

type BuildResult struct {
	Total   int
	Unique  int
	Elapsed time.Duration
}

// Uniqueness is the percentage of chains with a distinct endpoint.
func (r BuildResult) Uniqueness() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Unique) / float64(r.Total) * 100
}

type Builder struct {
	l        zerolog.Logger
	cfg      JobConfig
	scheme   *Scheme
	observer Observer
	now      func() time.Time
}

type BuilderOption func(*Builder)

func WithObserver(o Observer) BuilderOption {
	return func(b *Builder) {
		b.observer = o
	}
}

// WithClock replaces the wall clock used for the per-batch timeout check.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(
	cfg JobConfig,
	hasher Hasher,
	reduction Reduction,
	l zerolog.Logger,
	opts ...BuilderOption,
) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheme, err := NewScheme(hasher, reduction, cfg.Length, cfg.ChainLength)
	if err != nil {
		return nil, err
	}
	b := &Builder{
		cfg:      cfg,
		scheme:   scheme,
		observer: nopObserver{},
		now:      time.Now,
		l: l.With().
			Str("domain", "builder").
			Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) Scheme() *Scheme {
	return b.scheme
}

// Build generates one chain per start password and flushes them to sink batch
// by batch. On timeout, cancellation or a worker fault the batches already
// flushed stay in the sink, the interrupted batch is dropped and the error is
// returned together with the statistics of the flushed part.
func (b *Builder) Build(ctx context.Context, starts []string, sink Sink) (BuildResult, error) {
	began := b.now()
	if err := b.validateStarts(starts); err != nil {
		return BuildResult{}, err
	}
	if sink == nil {
		return BuildResult{}, validationErrorf("sink is required")
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	var res BuildResult
	// exact unique count; grows with the distinct endpoints, bounded by 36^length
	endings := make(map[string]struct{})
	batchCount := (len(starts) + b.cfg.BatchSize - 1) / b.cfg.BatchSize
	b.l.Debug().
		Int("chains", len(starts)).
		Int("batches", batchCount).
		Int("workers", b.cfg.Workers).
		Int("chain-length", b.cfg.ChainLength).
		Msg("starting table generation")

	for batch := 0; batch < batchCount; batch++ {
		if elapsed := b.now().Sub(began); elapsed >= b.cfg.Timeout {
			return res, errors.Wrapf(ErrTimeout, "limit %s reached after %d of %d chains",
				b.cfg.Timeout, res.Total, len(starts))
		}
		if err := ctx.Err(); err != nil {
			return res, b.interrupted(err, res.Total, len(starts))
		}
		lo := batch * b.cfg.BatchSize
		hi := min(lo+b.cfg.BatchSize, len(starts))
		chains, err := b.runBatch(ctx, starts[lo:hi])
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return res, b.interrupted(err, res.Total, len(starts))
			}
			b.l.Warn().Err(err).Int("batch", batch).Msg("batch failed")
			return res, err
		}
		if err := sink.WriteBatch(chains); err != nil {
			return res, errors.Wrapf(err, "flush batch %d", batch)
		}
		for _, c := range chains {
			endings[c.End] = struct{}{}
		}
		res.Total += len(chains)
		res.Unique = len(endings)
		b.observer.BatchDone(BatchProgress{
			Batch:   batch,
			Size:    len(chains),
			Done:    res.Total,
			Total:   len(starts),
			Unique:  res.Unique,
			Elapsed: b.now().Sub(began),
		})
	}
	res.Elapsed = b.now().Sub(began)
	b.observer.BuildDone(res)
	return res, nil
}

func (b *Builder) interrupted(err error, done, total int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "limit %s reached after %d of %d chains", b.cfg.Timeout, done, total)
	}
	return errors.Wrapf(err, "table generation cancelled after %d of %d chains", done, total)
}

// runBatch computes one batch on at most cfg.Workers goroutines. Every worker
// writes only its own slot of the result slice.
func (b *Builder) runBatch(ctx context.Context, starts []string) ([]Chain, error) {
	chains := make([]Chain, len(starts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i := range starts {
		g.Go(func() (err error) {
			if err := gCtx.Err(); err != nil {
				return err
			}
			defer func() {
				if r := recover(); r != nil {
					err = errors.Wrapf(ErrWorkerFailure, "chain from %q panicked: %v", starts[i], r)
				}
			}()
			c, err := b.scheme.GenerateChain(starts[i])
			if err != nil {
				return errors.Wrapf(ErrWorkerFailure, "chain from %q: %v", starts[i], err)
			}
			chains[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chains, nil
}

func (b *Builder) validateStarts(starts []string) error {
	if len(starts) == 0 {
		return validationErrorf("list of start passwords is empty")
	}
	for _, p := range starts {
		if err := ValidatePassword(p, b.cfg.Length); err != nil {
			return err
		}
	}
	return nil
}
