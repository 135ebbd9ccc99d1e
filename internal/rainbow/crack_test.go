package rainbow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, s *Scheme, starts []string) (*MemoryIndex, []Chain) {
	t.Helper()
	chains := make([]Chain, 0, len(starts))
	for _, p := range starts {
		c, err := s.GenerateChain(p)
		require.NoError(t, err)
		chains = append(chains, c)
	}
	idx := NewMemoryIndex()
	_, err := LoadIndex(NewSliceSource(chains), idx)
	require.NoError(t, err)
	return idx, chains
}

// passwordAt returns the password at position pos of the chain from start.
func passwordAt(s *Scheme, start string, pos int) string {
	var at string
	s.walk(start, func(i int, p string, _ Digest) bool {
		if i == pos {
			at = p
			return false
		}
		return true
	})
	return at
}

func TestCrackSingleStepTable(t *testing.T) {
	s := testScheme(t, 3, 1)
	idx, _ := buildIndex(t, s, []string{"abc"})

	res, err := s.Crack(context.Background(), s.Hasher.Hash("abc"), idx)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "abc", res.Password)
}

func TestCrackFindsEveryDepth(t *testing.T) {
	s := testScheme(t, 5, 30)
	starts := sequentialStarts(100, 5)
	idx, _ := buildIndex(t, s, starts)

	for _, start := range []string{starts[0], starts[17], starts[99]} {
		for _, pos := range []int{0, 1, 14, 29} {
			p := passwordAt(s, start, pos)
			require.NotEmpty(t, p)
			target := s.Hasher.Hash(p)

			res, err := s.Crack(context.Background(), target, idx)
			require.NoError(t, err)
			require.True(t, res.Found, "start %s pos %d", start, pos)
			assert.Equal(t, target, s.Hasher.Hash(res.Password))
			assert.Equal(t, p, res.Password)
			assert.Positive(t, res.HashEvaluations)
		}
	}
}

func TestCrackNotFound(t *testing.T) {
	s := testScheme(t, 4, 10)
	starts := sequentialStarts(20, 4)
	idx, _ := buildIndex(t, s, starts)

	covered := make(map[string]struct{})
	for _, start := range starts {
		s.walk(start, func(_ int, p string, _ Digest) bool {
			covered[p] = struct{}{}
			return true
		})
	}
	var absent string
	for _, candidate := range sequentialStarts(5000, 4) {
		if _, ok := covered[candidate]; !ok {
			absent = candidate
			break
		}
	}
	require.NotEmpty(t, absent)

	res, err := s.Crack(context.Background(), s.Hasher.Hash(absent), idx)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Password)
	assert.LessOrEqual(t, res.HashEvaluations, s.ChainLength*s.ChainLength*2)
}

func TestCrackRejectsFalseEndpointMatch(t *testing.T) {
	s := testScheme(t, 4, 6)
	target := s.Hasher.Hash("zzzz")

	// an index whose every endpoint candidate points at an unrelated chain
	idx := lookupFunc(func(string) (string, bool, error) { return "aaaa", true, nil })
	res, err := s.Crack(context.Background(), target, idx)
	require.NoError(t, err)
	if res.Found {
		assert.Equal(t, target, s.Hasher.Hash(res.Password))
	} else {
		assert.Equal(t, s.ChainLength, res.FalseAlarms)
	}
}

func TestCrackBytesValidation(t *testing.T) {
	s := testScheme(t, 3, 1)
	_, err := s.CrackBytes(context.Background(), []byte{1, 2, 3}, NewMemoryIndex())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCrackCancelled(t *testing.T) {
	s := testScheme(t, 3, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Crack(ctx, s.Hasher.Hash("abc"), NewMemoryIndex())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrackConcurrentOnSharedIndex(t *testing.T) {
	s := testScheme(t, 5, 20)
	starts := sequentialStarts(50, 5)
	idx, _ := buildIndex(t, s, starts)

	errs := make(chan error, len(starts))
	for _, start := range starts {
		go func() {
			res, err := s.Crack(context.Background(), s.Hasher.Hash(start), idx)
			if err == nil && !res.Found {
				err = ErrNotFound
			}
			errs <- err
		}()
	}
	for range starts {
		assert.NoError(t, <-errs)
	}
}

type lookupFunc func(end string) (string, bool, error)

func (f lookupFunc) Lookup(end string) (string, bool, error) { return f(end) }

func TestLoadIndexFirstWins(t *testing.T) {
	chains := []Chain{
		{Start: "aaa", End: "zzz"},
		{Start: "bbb", End: "yyy"},
		{Start: "ccc", End: "zzz"},
	}
	idx := NewMemoryIndex()
	stats, err := LoadIndex(NewSliceSource(chains), idx)
	require.NoError(t, err)
	assert.Equal(t, LoadStats{TotalRows: 3, UniqueEndings: 2}, stats)

	start, ok, err := idx.Lookup("zzz")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "aaa", start)
	assert.Equal(t, 2, idx.Len())

	_, ok, _ = idx.Lookup("xxx")
	assert.False(t, ok)
}
