package table

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/zeebo/blake3"
)

const (
	DefaultMaxFileSize    int64 = 1 << 30
	DefaultWriteBatchSize       = 1000
)

var Header = []string{"start_password", "end_password"}

const tmpSuffix = ".tmp"

type Options struct {
	MaxFileSize int64
	// BatchSize is the number of rows buffered between flushes.
	BatchSize int
}

func DefaultOptions() Options {
	return Options{
		MaxFileSize: DefaultMaxFileSize,
		BatchSize:   DefaultWriteBatchSize,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultWriteBatchSize
	}
	return o
}

// Writer streams chains into a CSV table. It implements rainbow.Sink so the
// builder can flush batch by batch.
type Writer struct {
	l       zerolog.Logger
	path    string
	tmpPath string
	opts    Options
	f       *os.File
	w       *csv.Writer
	sum     *blake3.Hasher
	meta    Meta
	size    int64
	pending int
	closed  bool
}

// Create starts a table that replaces path only on a successful Close. Rows go
// to a temporary file next to path, so an existing table survives an aborted
// run. An existing file larger than the size limit is refused before anything
// is written.
func Create(path string, meta Meta, opts Options, l zerolog.Logger) (*Writer, error) {
	opts = opts.withDefaults()
	if info, err := os.Stat(path); err == nil && info.Size() > opts.MaxFileSize {
		return nil, errors.Wrapf(rainbow.ErrResource, "output file %s already exceeds maximum size %d bytes",
			path, opts.MaxFileSize)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(rainbow.ErrResource, "create table directory: %v", err)
		}
	}
	tmpPath := path + tmpSuffix
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.Wrapf(rainbow.ErrResource, "create table file: %v", err)
	}
	sum := blake3.New()
	w := &Writer{
		path:    path,
		tmpPath: tmpPath,
		opts:    opts,
		f:       f,
		w:       csv.NewWriter(io.MultiWriter(f, sum)),
		sum:     sum,
		meta:    meta,
		l: l.With().
			Str("domain", "table").
			Str("path", path).
			Logger(),
	}
	if err := w.writeRow(Header[0], Header[1]); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

// WriteBatch appends chains, failing with a resource error as soon as the
// next row would push the file over the size limit.
func (w *Writer) WriteBatch(chains []rainbow.Chain) error {
	if w.closed {
		return errors.New("table writer is closed")
	}
	for _, c := range chains {
		if c.Start == "" || c.End == "" {
			return errors.Wrapf(rainbow.ErrValidation, "invalid chain %q -> %q", c.Start, c.End)
		}
		if err := w.writeRow(c.Start, c.End); err != nil {
			return err
		}
		w.meta.Chains++
		w.pending++
		if w.pending >= w.opts.BatchSize {
			if err := w.flush(); err != nil {
				return err
			}
			w.l.Debug().Int("chains", w.meta.Chains).Msg("table rows flushed")
		}
	}
	return nil
}

// writeRow relies on alphabet passwords never needing CSV quoting, so the
// encoded size is known before writing.
func (w *Writer) writeRow(start, end string) error {
	rowSize := int64(len(start) + len(end) + 2)
	if w.size+rowSize > w.opts.MaxFileSize {
		return errors.Wrapf(rainbow.ErrResource, "table file would exceed maximum size %d bytes", w.opts.MaxFileSize)
	}
	if err := w.w.Write([]string{start, end}); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "write table row: %v", err)
	}
	w.size += rowSize
	return nil
}

func (w *Writer) flush() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "flush table file: %v", err)
	}
	w.pending = 0
	return nil
}

func (w *Writer) Rows() int {
	return w.meta.Chains
}

func (w *Writer) SetUniqueEndings(n int) {
	w.meta.UniqueEndings = n
}

func (w *Writer) SetSeed(seed int64) {
	w.meta.Seeded = true
	w.meta.Seed = seed
}

// Close flushes the remaining rows, writes the metadata sidecar and moves
// both over the previous table at path.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	if err := w.f.Close(); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "close table file: %v", err)
	}
	w.meta.Checksum = hex.EncodeToString(w.sum.Sum(nil))
	if err := WriteMeta(MetaPath(w.tmpPath), &w.meta); err != nil {
		return err
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "replace table file: %v", err)
	}
	if err := os.Rename(MetaPath(w.tmpPath), MetaPath(w.path)); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "replace table meta: %v", err)
	}
	w.l.Info().
		Int("chains", w.meta.Chains).
		Int64("bytes", w.size).
		Msg("table saved")
	return nil
}

// Abort closes the writer and removes the temporary files. A table that
// existed at path before Create is left untouched.
func (w *Writer) Abort() {
	if !w.closed {
		w.closed = true
		_ = w.f.Close()
	}
	_ = os.Remove(w.tmpPath)
	_ = os.Remove(MetaPath(w.tmpPath))
}
