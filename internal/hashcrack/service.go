package hashcrack

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/internal/metrics"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
	"golang.org/x/sync/errgroup"
)

// Service answers crack queries against one loaded table. It is shared by the
// CLI, the HTTP server and the queue worker and is safe for concurrent use.
type Service struct {
	l       zerolog.Logger
	scheme  *rainbow.Scheme
	index   rainbow.Index
	cache   *lru.Cache[rainbow.Digest, rainbow.CrackResult]
	workers int
}

func NewService(
	scheme *rainbow.Scheme,
	index rainbow.Index,
	cacheSize int,
	workers int,
	l zerolog.Logger,
) (*Service, error) {
	if workers < rainbow.MinWorkers || workers > rainbow.MaxWorkers {
		return nil, errors.Wrapf(rainbow.ErrValidation, "workers must be in [%d, %d], got %d",
			rainbow.MinWorkers, rainbow.MaxWorkers, workers)
	}
	s := &Service{
		scheme:  scheme,
		index:   index,
		workers: workers,
		l: l.With().
			Str("domain", "hashcrack").
			Logger(),
	}
	if cacheSize > 0 {
		cache, err := lru.New[rainbow.Digest, rainbow.CrackResult](cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create result cache")
		}
		s.cache = cache
	}
	return s, nil
}

func (s *Service) Scheme() *rainbow.Scheme {
	return s.scheme
}

// Crack searches for one digest. Completed searches are cached, found or not;
// a failed or cancelled search is not.
func (s *Service) Crack(ctx context.Context, d rainbow.Digest) (rainbow.CrackResult, error) {
	if s.cache != nil {
		if res, ok := s.cache.Get(d); ok {
			metrics.CacheHits.Inc()
			return res, nil
		}
	}
	began := time.Now()
	res, err := s.scheme.Crack(ctx, d, s.index)
	metrics.ObserveCrack(res, err, time.Since(began).Seconds())
	if err != nil {
		return res, err
	}
	if s.cache != nil {
		s.cache.Add(d, res)
	}
	s.l.Debug().
		Str("hash", d.String()).
		Bool("found", res.Found).
		Int("hash-evaluations", res.HashEvaluations).
		Int("false-alarms", res.FalseAlarms).
		Msg("crack finished")
	return res, nil
}

// CrackHex parses and cracks one hex digest, folding the outcome into a
// result record. Only cancellation is returned as an error.
func (s *Service) CrackHex(ctx context.Context, hash string) (messages.HashResult, error) {
	out := messages.HashResult{Hash: hash}
	d, err := rainbow.ParseDigest(hash)
	if err != nil {
		out.Status = messages.StatusInvalid
		out.Error = err.Error()
		return out, nil
	}
	out.Hash = d.String()
	res, err := s.Crack(ctx, d)
	switch {
	case ctx.Err() != nil:
		return out, ctx.Err()
	case err != nil:
		out.Status = messages.StatusError
		out.Error = err.Error()
	case res.Found:
		out.Status = messages.StatusFound
		out.Password = res.Password
	default:
		out.Status = messages.StatusNotFound
	}
	return out, nil
}

// CrackMany cracks hashes on at most workers goroutines. Results keep the
// input order.
func (s *Service) CrackMany(ctx context.Context, hashes []string) ([]messages.HashResult, error) {
	results := make([]messages.HashResult, len(hashes))
	group, gCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i, h := range hashes {
		group.Go(func() error {
			res, err := s.CrackHex(gCtx, h)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, errors.Wrap(err, "crack cancelled")
	}
	return results, nil
}

// Summary counts results per status.
func Summary(results []messages.HashResult) map[string]int {
	out := make(map[string]int, 4)
	for _, r := range results {
		out[r.Status]++
	}
	return out
}
