package rainbow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequentialStarts enumerates n distinct passwords of the given length.
func sequentialStarts(n, length int) []string {
	starts := make([]string, n)
	for i := range starts {
		b := make([]byte, length)
		v := i
		for j := range b {
			b[j] = Alphabet[v%len(Alphabet)]
			v /= len(Alphabet)
		}
		starts[i] = string(b)
	}
	return starts
}

func testJob(length, chainLength int) JobConfig {
	return JobConfig{
		Length:      length,
		ChainLength: chainLength,
		Workers:     4,
		BatchSize:   64,
		Timeout:     time.Minute,
	}
}

func newTestBuilder(t *testing.T, cfg JobConfig, opts ...BuilderOption) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg, NewDESHasher(), NewReduction(SHA256ReductionType), zerolog.Nop(), opts...)
	require.NoError(t, err)
	return b
}

type recordingObserver struct {
	batches []BatchProgress
	result  *BuildResult
}

func (o *recordingObserver) BatchDone(p BatchProgress) { o.batches = append(o.batches, p) }
func (o *recordingObserver) BuildDone(r BuildResult) { o.result = &r }

func TestBuildReplaysChains(t *testing.T) {
	obs := &recordingObserver{}
	b := newTestBuilder(t, testJob(5, 40), WithObserver(obs))
	starts := sequentialStarts(300, 5)

	sink := &CollectSink{}
	res, err := b.Build(context.Background(), starts, sink)
	require.NoError(t, err)

	require.Len(t, sink.Chains, len(starts))
	assert.Equal(t, len(starts), res.Total)
	ends := make(map[string]struct{})
	for i, c := range sink.Chains {
		assert.Equal(t, starts[i], c.Start)
		replayed, err := b.Scheme().GenerateChain(c.Start)
		require.NoError(t, err)
		assert.Equal(t, replayed.End, c.End)
		ends[c.End] = struct{}{}
	}
	assert.Equal(t, len(ends), res.Unique)

	assert.Len(t, obs.batches, 5)
	assert.Equal(t, 300, obs.batches[4].Done)
	assert.Equal(t, 300-4*64, obs.batches[4].Size)
	require.NotNil(t, obs.result)
	assert.Equal(t, res.Total, obs.result.Total)
}

func TestBuildUniquenessShowsMerges(t *testing.T) {
	b := newTestBuilder(t, testJob(3, 50))
	starts := sequentialStarts(1000, 3)

	sink := &CollectSink{}
	res, err := b.Build(context.Background(), starts, sink)
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Total)
	assert.Greater(t, res.Uniqueness(), 0.0)
	assert.Less(t, res.Uniqueness(), 100.0)
	// reference value from the original table generator for the same starts
	assert.Equal(t, 649, res.Unique)
}

func TestBuildSameResultForAnyWorkerCount(t *testing.T) {
	starts := sequentialStarts(200, 4)

	one := &CollectSink{}
	cfg := testJob(4, 30)
	cfg.Workers = 1
	_, err := newTestBuilder(t, cfg).Build(context.Background(), starts, one)
	require.NoError(t, err)

	many := &CollectSink{}
	cfg.Workers = 16
	cfg.BatchSize = 7
	_, err = newTestBuilder(t, cfg).Build(context.Background(), starts, many)
	require.NoError(t, err)

	assert.Equal(t, one.Chains, many.Chains)
}

func TestBuildValidation(t *testing.T) {
	b := newTestBuilder(t, testJob(3, 5))

	_, err := b.Build(context.Background(), nil, &CollectSink{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = b.Build(context.Background(), []string{"abc", "ab"}, &CollectSink{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = b.Build(context.Background(), []string{"abc"}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	bad := []func(c *JobConfig){
		func(c *JobConfig) { c.Workers = 0 },
		func(c *JobConfig) { c.Workers = MaxWorkers + 1 },
		func(c *JobConfig) { c.BatchSize = 0 },
		func(c *JobConfig) { c.ChainLength = 0 },
		func(c *JobConfig) { c.Length = 9 },
		func(c *JobConfig) { c.Timeout = 0 },
	}
	for i, mutate := range bad {
		cfg := testJob(3, 5)
		mutate(&cfg)
		_, err := NewBuilder(cfg, NewDESHasher(), NewReduction(SHA256ReductionType), zerolog.Nop())
		assert.ErrorIs(t, err, ErrValidation, "case %d", i)
	}
}

func TestBuildTimeoutKeepsFlushedBatches(t *testing.T) {
	now := time.Now()
	clock := func() time.Time {
		now = now.Add(40 * time.Minute)
		return now
	}
	cfg := testJob(3, 5)
	cfg.Timeout = time.Hour
	cfg.BatchSize = 10
	b := newTestBuilder(t, cfg, WithClock(clock))

	sink := &CollectSink{}
	res, err := b.Build(context.Background(), sequentialStarts(50, 3), sink)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, sink.Chains, 10)
	assert.Equal(t, 10, res.Total)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newTestBuilder(t, testJob(3, 5))

	sink := &CollectSink{}
	_, err := b.Build(ctx, sequentialStarts(50, 3), sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, sink.Chains)
}

type faultyHasher struct {
	Hasher
	poison string
}

func (h faultyHasher) Hash(p string) Digest {
	if p == h.poison {
		panic("primitive fault")
	}
	return h.Hasher.Hash(p)
}

func TestBuildWorkerFault(t *testing.T) {
	cfg := testJob(3, 1)
	cfg.BatchSize = 10
	b, err := NewBuilder(cfg, faultyHasher{Hasher: NewDESHasher(), poison: "p00"},
		NewReduction(SHA256ReductionType), zerolog.Nop())
	require.NoError(t, err)

	starts := sequentialStarts(30, 3)
	starts[15] = "p00"
	sink := &CollectSink{}
	res, err := b.Build(context.Background(), starts, sink)
	require.ErrorIs(t, err, ErrWorkerFailure)
	assert.Len(t, sink.Chains, 10)
	assert.Equal(t, 10, res.Total)
}

type failingSink struct{}

func (failingSink) WriteBatch([]Chain) error { return errors.New("disk full") }

func TestBuildSinkError(t *testing.T) {
	b := newTestBuilder(t, testJob(3, 2))
	_, err := b.Build(context.Background(), sequentialStarts(5, 3), failingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
