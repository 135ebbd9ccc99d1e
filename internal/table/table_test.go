package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

func testScheme(t *testing.T, length, chainLength int) *rainbow.Scheme {
	t.Helper()
	s, err := rainbow.NewScheme(rainbow.NewDESHasher(), rainbow.NewReduction(rainbow.SHA256ReductionType),
		length, chainLength)
	require.NoError(t, err)
	return s
}

func writeTable(t *testing.T, path string, scheme *rainbow.Scheme, opts Options, batches ...[]rainbow.Chain) {
	t.Helper()
	w, err := Create(path, NewMeta(scheme), opts, zerolog.Nop())
	require.NoError(t, err)
	for _, b := range batches {
		require.NoError(t, w.WriteBatch(b))
	}
	require.NoError(t, w.Close())
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "table.csv")
	scheme := testScheme(t, 3, 5)
	chains := []rainbow.Chain{
		{Start: "aaa", End: "zzz"},
		{Start: "bbb", End: "yyy"},
		{Start: "ccc", End: "zzz"},
		{Start: "ddd", End: "xxx"},
		{Start: "eee", End: "yyy"},
	}
	writeTable(t, path, scheme, Options{BatchSize: 2}, chains[:3], chains[3:])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "start_password,end_password\naaa,zzz\nbbb,yyy\nccc,zzz\nddd,xxx\neee,yyy\n", string(data))

	loaded, err := ReadAll(path, 0)
	require.NoError(t, err)
	assert.Equal(t, chains, loaded)

	idx := rainbow.NewMemoryIndex()
	stats, err := LoadIndex(path, 0, scheme, idx)
	require.NoError(t, err)
	assert.Equal(t, len(chains), stats.TotalRows)
	ends := make(map[string]struct{})
	for _, c := range chains {
		ends[c.End] = struct{}{}
	}
	assert.Equal(t, len(ends), stats.UniqueEndings)

	start, ok, err := idx.Lookup("zzz")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "aaa", start)
}

func TestMetaSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	scheme := testScheme(t, 3, 5)

	w, err := Create(path, NewMeta(scheme), DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch([]rainbow.Chain{{Start: "abc", End: "def"}}))
	w.SetUniqueEndings(1)
	w.SetSeed(42)
	require.NoError(t, w.Close())

	meta, ok, err := ReadMeta(MetaPath(path))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, FormatVersion, meta.FormatVersion)
	assert.Equal(t, rainbow.DESHasherName, meta.Hasher)
	assert.Equal(t, "sha256-v1", meta.Reduction)
	assert.Equal(t, 3, meta.PasswordLength)
	assert.Equal(t, 5, meta.ChainLength)
	assert.Equal(t, 1, meta.Chains)
	assert.Equal(t, 1, meta.UniqueEndings)
	assert.True(t, meta.Seeded)
	assert.EqualValues(t, 42, meta.Seed)
	assert.Len(t, meta.Checksum, 64)

	assert.NoError(t, meta.Check(scheme))
	assert.ErrorIs(t, meta.Check(testScheme(t, 3, 6)), rainbow.ErrValidation)
	assert.ErrorIs(t, meta.Check(testScheme(t, 4, 5)), rainbow.ErrValidation)

	other, err := rainbow.NewScheme(rainbow.NewDESHasher(), rainbow.NewReduction(rainbow.XXH3ReductionType), 3, 5)
	require.NoError(t, err)
	_, err = LoadIndex(path, 0, other, rainbow.NewMemoryIndex())
	assert.ErrorIs(t, err, rainbow.ErrValidation)
}

func TestReadMetaMissing(t *testing.T) {
	_, ok, err := ReadMeta(filepath.Join(t.TempDir(), "absent.meta"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTamperedTableFailsChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	scheme := testScheme(t, 3, 5)
	writeTable(t, path, scheme, DefaultOptions(), []rainbow.Chain{
		{Start: "abc", End: "def"},
		{Start: "ghi", End: "jkl"},
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := []byte(string(data[:len(data)-4]) + "jkm\n")
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	_, err = LoadIndex(path, 0, scheme, rainbow.NewMemoryIndex())
	assert.ErrorIs(t, err, rainbow.ErrResource)
}

func TestTableWithoutSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.csv")
	require.NoError(t, os.WriteFile(path, []byte("start_password,end_password\nstart1,end1\nstart2,end2\n"), 0o644))

	chains, err := ReadAll(path, 0)
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, "start1", chains[0].Start)
	assert.Equal(t, "end2", chains[1].End)
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.csv"), 0)
	assert.ErrorIs(t, err, rainbow.ErrResource)

	badHeader := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(badHeader, []byte("a,b\nabc,def\n"), 0o644))
	_, err = Open(badHeader, 0)
	assert.ErrorIs(t, err, rainbow.ErrResource)

	big := filepath.Join(dir, "big.csv")
	require.NoError(t, os.WriteFile(big, []byte("start_password,end_password\nabc,def\n"), 0o644))
	_, err = Open(big, 10)
	assert.ErrorIs(t, err, rainbow.ErrResource)

	short := filepath.Join(dir, "short.csv")
	require.NoError(t, os.WriteFile(short, []byte("start_password,end_password\nabc\n"), 0o644))
	r, err := Open(short, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	_, err = r.Next()
	assert.ErrorIs(t, err, rainbow.ErrResource)
}

func TestWriterEnforcesMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	scheme := testScheme(t, 3, 5)

	// header is 28 bytes, every row 8
	w, err := Create(path, NewMeta(scheme), Options{MaxFileSize: 28 + 2*8}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch([]rainbow.Chain{{Start: "abc", End: "def"}, {Start: "ghi", End: "jkl"}}))
	err = w.WriteBatch([]rainbow.Chain{{Start: "mno", End: "pqr"}})
	assert.ErrorIs(t, err, rainbow.ErrResource)
	assert.Equal(t, 2, w.Rows())
	w.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = Create(path, NewMeta(scheme), Options{MaxFileSize: 10}, zerolog.Nop())
	assert.ErrorIs(t, err, rainbow.ErrResource)
}

func TestCreateRefusesOversizedExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := Create(path, NewMeta(testScheme(t, 3, 5)), Options{MaxFileSize: 50}, zerolog.Nop())
	assert.ErrorIs(t, err, rainbow.ErrResource)
}

func TestAbortKeepsPreviousTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	scheme := testScheme(t, 3, 5)
	writeTable(t, path, scheme, DefaultOptions(), []rainbow.Chain{{Start: "abc", End: "def"}})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	w, err := Create(path, NewMeta(scheme), DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch([]rainbow.Chain{{Start: "ghi", End: "jkl"}, {Start: "mno", End: "pqr"}}))
	w.Abort()

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	chains, err := ReadAll(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []rainbow.Chain{{Start: "abc", End: "def"}}, chains)

	_, err = os.Stat(path + tmpSuffix)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(MetaPath(path + tmpSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestCloseReplacesPreviousTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	scheme := testScheme(t, 3, 5)
	writeTable(t, path, scheme, DefaultOptions(), []rainbow.Chain{{Start: "abc", End: "def"}})
	writeTable(t, path, scheme, DefaultOptions(), []rainbow.Chain{{Start: "ghi", End: "jkl"}, {Start: "mno", End: "pqr"}})

	chains, err := ReadAll(path, 0)
	require.NoError(t, err)
	assert.Len(t, chains, 2)
	meta, ok, err := ReadMeta(MetaPath(path))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, meta.Chains)

	_, err = os.Stat(path + tmpSuffix)
	assert.True(t, os.IsNotExist(err))
}
