package pebbleindex

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sblinch/kdl-go"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/table"
)

const defaultBatchSize = 10000

var (
	endPrefix = []byte{'E'}
	metaKey   = []byte("M/meta")
	statsKey  = []byte("M/stats")
)

var ErrNoMeta = errors.New("index has no table meta")

func endKey(end string) []byte {
	key := make([]byte, 0, len(endPrefix)+len(end))
	key = append(key, endPrefix...)
	return append(key, end...)
}

// Index is an endpoint index kept in a pebble database, for tables too large
// to hold in a map. Lookups are safe for concurrent use once loading is done.
type Index struct {
	l         zerolog.Logger
	db        *pebble.DB
	batch     *pebble.Batch
	pending   int
	batchSize int
}

func Open(dir string, readOnly bool, l zerolog.Logger) (*Index, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		ReadOnly:         readOnly,
		ErrorIfNotExists: readOnly,
	})
	if err != nil {
		return nil, errors.Wrapf(rainbow.ErrResource, "open index %s: %v", dir, err)
	}
	return &Index{
		db:        db,
		batchSize: defaultBatchSize,
		l: l.With().
			Str("domain", "pebble-index").
			Str("dir", dir).
			Logger(),
	}, nil
}

// Insert keeps the first start written for an endpoint. Writes are grouped
// into indexed batches so duplicates inside one batch are seen too.
func (i *Index) Insert(c rainbow.Chain) (bool, error) {
	if i.batch == nil {
		i.batch = i.db.NewIndexedBatch()
	}
	key := endKey(c.End)
	_, closer, err := i.batch.Get(key)
	if err == nil {
		_ = closer.Close()
		return false, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, errors.Wrap(err, "get endpoint")
	}
	if err := i.batch.Set(key, []byte(c.Start), nil); err != nil {
		return false, errors.Wrap(err, "set endpoint")
	}
	i.pending++
	if i.pending >= i.batchSize {
		if err := i.Flush(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (i *Index) Flush() error {
	if i.batch == nil {
		return nil
	}
	if err := i.batch.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "commit index batch: %v", err)
	}
	_ = i.batch.Close()
	i.l.Debug().Int("rows", i.pending).Msg("index batch committed")
	i.batch = nil
	i.pending = 0
	return nil
}

func (i *Index) Lookup(end string) (string, bool, error) {
	value, closer, err := i.db.Get(endKey(end))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer func() { _ = closer.Close() }()
	return string(value), true, nil
}

// SaveMeta records the table meta and load statistics alongside the index.
func (i *Index) SaveMeta(meta *table.Meta, stats rainbow.LoadStats) error {
	data, err := kdl.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "marshal table meta")
	}
	var raw [16]byte
	binary.BigEndian.PutUint64(raw[:8], uint64(stats.TotalRows))
	binary.BigEndian.PutUint64(raw[8:], uint64(stats.UniqueEndings))
	b := i.db.NewBatch()
	defer func() { _ = b.Close() }()
	if err := b.Set(metaKey, data, nil); err != nil {
		return errors.Wrap(err, "set meta")
	}
	if err := b.Set(statsKey, raw[:], nil); err != nil {
		return errors.Wrap(err, "set stats")
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "commit index meta: %v", err)
	}
	return nil
}

func (i *Index) Meta() (*table.Meta, rainbow.LoadStats, error) {
	var stats rainbow.LoadStats
	data, closer, err := i.db.Get(metaKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, stats, ErrNoMeta
	}
	if err != nil {
		return nil, stats, errors.Wrapf(rainbow.ErrResource, "read index meta: %v", err)
	}
	var meta table.Meta
	err = kdl.Unmarshal(data, &meta)
	_ = closer.Close()
	if err != nil {
		return nil, stats, errors.Wrapf(rainbow.ErrResource, "parse index meta: %v", err)
	}
	raw, closer, err := i.db.Get(statsKey)
	if err != nil {
		return nil, stats, errors.Wrapf(rainbow.ErrResource, "read index stats: %v", err)
	}
	defer func() { _ = closer.Close() }()
	if len(raw) == 16 {
		stats.TotalRows = int(binary.BigEndian.Uint64(raw[:8]))
		stats.UniqueEndings = int(binary.BigEndian.Uint64(raw[8:]))
	}
	return &meta, stats, nil
}

func (i *Index) Close() error {
	if i.batch != nil {
		_ = i.batch.Close()
		i.batch = nil
	}
	if err := i.db.Close(); err != nil {
		return errors.Wrap(err, "close index")
	}
	return nil
}

// Build loads the table at tablePath into a fresh index in dir.
func Build(tablePath string, maxFileSize int64, scheme *rainbow.Scheme, dir string, l zerolog.Logger) (rainbow.LoadStats, error) {
	r, err := table.Open(tablePath, maxFileSize)
	if err != nil {
		return rainbow.LoadStats{}, err
	}
	defer func() { _ = r.Close() }()
	meta := r.Meta()
	if meta != nil {
		if err := meta.Check(scheme); err != nil {
			return rainbow.LoadStats{}, err
		}
	} else {
		m := table.NewMeta(scheme)
		meta = &m
	}

	idx, err := Open(dir, false, l)
	if err != nil {
		return rainbow.LoadStats{}, err
	}
	defer func() { _ = idx.Close() }()
	stats, err := rainbow.LoadIndex(r, idx)
	if err != nil {
		return stats, err
	}
	if err := idx.Flush(); err != nil {
		return stats, err
	}
	if err := idx.SaveMeta(meta, stats); err != nil {
		return stats, err
	}
	idx.l.Info().
		Int("rows", stats.TotalRows).
		Int("unique-endings", stats.UniqueEndings).
		Msg("index built")
	return stats, nil
}
