package table

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/zeebo/blake3"
)

// Reader streams chains from a CSV table one row at a time.
type Reader struct {
	path string
	f    *os.File
	r    *csv.Reader
	sum  *blake3.Hasher
	meta *Meta
	rows int
}

// Open checks the size limit, the header row and loads the sidecar when one
// exists.
func Open(path string, maxFileSize int64) (*Reader, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(rainbow.ErrResource, "table file not found: %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(rainbow.ErrResource, "stat table file: %v", err)
	}
	if info.Size() > maxFileSize {
		return nil, errors.Wrapf(rainbow.ErrResource, "table file %s exceeds maximum size %d bytes", path, maxFileSize)
	}
	meta, _, err := ReadMeta(MetaPath(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(rainbow.ErrResource, "open table file: %v", err)
	}
	sum := blake3.New()
	cr := csv.NewReader(io.TeeReader(f, sum))
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true
	r := &Reader{path: path, f: f, r: cr, sum: sum, meta: meta}

	header, err := cr.Read()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(rainbow.ErrResource, "read table header: %v", err)
	}
	if header[0] != Header[0] || header[1] != Header[1] {
		_ = f.Close()
		return nil, errors.Wrapf(rainbow.ErrResource, "invalid table header %q, expected %q", header, Header)
	}
	return r, nil
}

// Meta returns the sidecar of the table, or nil for tables written without one.
func (r *Reader) Meta() *Meta {
	return r.meta
}

// Next returns the next chain or io.EOF. At the end of the file the row count
// and checksum are compared with the sidecar.
func (r *Reader) Next() (rainbow.Chain, error) {
	rec, err := r.r.Read()
	if err == io.EOF {
		if err := r.verify(); err != nil {
			return rainbow.Chain{}, err
		}
		return rainbow.Chain{}, io.EOF
	}
	if err != nil {
		return rainbow.Chain{}, errors.Wrapf(rainbow.ErrResource, "read table row %d: %v", r.rows+1, err)
	}
	if rec[0] == "" || rec[1] == "" {
		return rainbow.Chain{}, errors.Wrapf(rainbow.ErrResource, "empty field in table row %d", r.rows+1)
	}
	r.rows++
	return rainbow.Chain{Start: rec[0], End: rec[1]}, nil
}

func (r *Reader) verify() error {
	if r.meta == nil {
		return nil
	}
	if r.meta.Chains != r.rows {
		return errors.Wrapf(rainbow.ErrResource, "table has %d rows, meta records %d", r.rows, r.meta.Chains)
	}
	if r.meta.Checksum == "" {
		return nil
	}
	if got := hex.EncodeToString(r.sum.Sum(nil)); got != r.meta.Checksum {
		return errors.Wrapf(rainbow.ErrResource, "table checksum %s does not match meta %s", got, r.meta.Checksum)
	}
	return nil
}

func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadAll loads every chain of a table. Meant for small tables.
func ReadAll(path string, maxFileSize int64) ([]rainbow.Chain, error) {
	r, err := Open(path, maxFileSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	var chains []rainbow.Chain
	for {
		c, err := r.Next()
		if err == io.EOF {
			return chains, nil
		}
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}
}

// LoadIndex streams the table at path into dst. When scheme is not nil and the
// table has a sidecar, the sidecar must match it.
func LoadIndex(path string, maxFileSize int64, scheme *rainbow.Scheme, dst rainbow.IndexWriter) (rainbow.LoadStats, error) {
	r, err := Open(path, maxFileSize)
	if err != nil {
		return rainbow.LoadStats{}, err
	}
	defer func() { _ = r.Close() }()
	if meta := r.Meta(); meta != nil && scheme != nil {
		if err := meta.Check(scheme); err != nil {
			return rainbow.LoadStats{}, err
		}
	}
	return rainbow.LoadIndex(r, dst)
}
