package pebbleindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/table"
)

func testScheme(t *testing.T) *rainbow.Scheme {
	t.Helper()
	s, err := rainbow.NewScheme(rainbow.NewDESHasher(), rainbow.NewReduction(rainbow.SHA256ReductionType), 4, 8)
	require.NoError(t, err)
	return s
}

func TestInsertFirstWinsAcrossBatches(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "idx"), false, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	idx.batchSize = 2

	chains := []rainbow.Chain{
		{Start: "aaaa", End: "zzzz"},
		{Start: "bbbb", End: "zzzz"},
		{Start: "cccc", End: "yyyy"},
		{Start: "dddd", End: "xxxx"},
		{Start: "eeee", End: "zzzz"},
	}
	stats, err := rainbow.LoadIndex(rainbow.NewSliceSource(chains), idx)
	require.NoError(t, err)
	require.NoError(t, idx.Flush())
	assert.Equal(t, rainbow.LoadStats{TotalRows: 5, UniqueEndings: 3}, stats)

	start, ok, err := idx.Lookup("zzzz")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "aaaa", start)

	_, ok, err = idx.Lookup("wwww")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = idx.Meta()
	assert.ErrorIs(t, err, ErrNoMeta)
}

func TestBuildAndCrack(t *testing.T) {
	dir := t.TempDir()
	tablePath := filepath.Join(dir, "table.csv")
	indexDir := filepath.Join(dir, "table.idx")
	scheme := testScheme(t)

	cfg := rainbow.JobConfig{Length: 4, ChainLength: 8, Workers: 2, BatchSize: 16, Timeout: time.Minute}
	b, err := rainbow.NewBuilder(cfg, scheme.Hasher, scheme.Reduction, zerolog.Nop())
	require.NoError(t, err)
	w, err := table.Create(tablePath, table.NewMeta(b.Scheme()), table.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	starts := []string{"abcd", "efgh", "ijkl", "mnop", "qrst", "uvwx", "yz01", "2345"}
	res, err := b.Build(context.Background(), starts, w)
	require.NoError(t, err)
	w.SetUniqueEndings(res.Unique)
	require.NoError(t, w.Close())

	stats, err := Build(tablePath, 0, scheme, indexDir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, len(starts), stats.TotalRows)
	assert.Equal(t, res.Unique, stats.UniqueEndings)

	idx, err := Open(indexDir, true, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	meta, loaded, err := idx.Meta()
	require.NoError(t, err)
	assert.NoError(t, meta.Check(scheme))
	assert.Equal(t, stats, loaded)

	found, err := scheme.Crack(context.Background(), scheme.Hasher.Hash("ijkl"), idx)
	require.NoError(t, err)
	assert.True(t, found.Found)
	assert.Equal(t, "ijkl", found.Password)
}

func TestBuildRejectsSchemeMismatch(t *testing.T) {
	dir := t.TempDir()
	tablePath := filepath.Join(dir, "table.csv")
	scheme := testScheme(t)

	w, err := table.Create(tablePath, table.NewMeta(scheme), table.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch([]rainbow.Chain{{Start: "abcd", End: "efgh"}}))
	require.NoError(t, w.Close())

	other, err := rainbow.NewScheme(scheme.Hasher, scheme.Reduction, 4, 9)
	require.NoError(t, err)
	_, err = Build(tablePath, 0, other, filepath.Join(dir, "idx"), zerolog.Nop())
	assert.ErrorIs(t, err, rainbow.ErrValidation)
}

func TestOpenMissingReadOnly(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent"), true, zerolog.Nop())
	assert.ErrorIs(t, err, rainbow.ErrResource)
}
