package hashcrack

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/config"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/store/pebbleindex"
	"github.com/ykhdr/rainbow-crack/internal/table"
)

// Table is a loaded endpoint index together with what is known about the
// table behind it.
type Table struct {
	Index   rainbow.Index
	Backend string
	Stats   rainbow.LoadStats
	// Meta is nil for a memory index loaded from a table without sidecar.
	Meta   *table.Meta
	closer io.Closer
}

func (t *Table) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// OpenTable loads the index backend named by cfg.Index. A memory index reads
// the whole CSV table; a pebble index must have been built beforehand.
func OpenTable(cfg *config.TableConfig, scheme *rainbow.Scheme, l zerolog.Logger) (*Table, error) {
	l = l.With().Str("domain", "table").Str("backend", cfg.Index).Logger()
	switch cfg.Index {
	case config.IndexPebble:
		return openPebble(cfg, scheme, l)
	case config.IndexMemory, "":
		return openMemory(cfg, scheme, l)
	default:
		return nil, errors.Wrapf(rainbow.ErrValidation, "unknown index backend %q", cfg.Index)
	}
}

func openMemory(cfg *config.TableConfig, scheme *rainbow.Scheme, l zerolog.Logger) (*Table, error) {
	idx := rainbow.NewMemoryIndex()
	stats, err := table.LoadIndex(cfg.Path, cfg.MaxFileSize, scheme, idx)
	if err != nil {
		return nil, err
	}
	meta, _, err := table.ReadMeta(table.MetaPath(cfg.Path))
	if err != nil {
		return nil, err
	}
	l.Info().
		Str("path", cfg.Path).
		Int("rows", stats.TotalRows).
		Int("unique-endpoints", stats.UniqueEndings).
		Msg("table loaded")
	return &Table{Index: idx, Backend: config.IndexMemory, Stats: stats, Meta: meta}, nil
}

func openPebble(cfg *config.TableConfig, scheme *rainbow.Scheme, l zerolog.Logger) (*Table, error) {
	dir := cfg.IndexPath()
	idx, err := pebbleindex.Open(dir, true, l)
	if err != nil {
		return nil, err
	}
	meta, stats, err := idx.Meta()
	if errors.Is(err, pebbleindex.ErrNoMeta) {
		_ = idx.Close()
		return nil, errors.Wrapf(rainbow.ErrResource, "index %s is incomplete, rebuild it", dir)
	}
	if err == nil {
		err = meta.Check(scheme)
	}
	if err == nil {
		err = checkIndexFresh(cfg.Path, dir, meta)
	}
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	l.Info().
		Str("dir", dir).
		Int("rows", stats.TotalRows).
		Int("unique-endpoints", stats.UniqueEndings).
		Msg("index opened")
	return &Table{Index: idx, Backend: config.IndexPebble, Stats: stats, Meta: meta, closer: idx}, nil
}

// checkIndexFresh compares the checksum the index was built from with the
// sidecar of the table currently at tablePath. Without a sidecar there is
// nothing to compare.
func checkIndexFresh(tablePath, dir string, indexMeta *table.Meta) error {
	current, ok, err := table.ReadMeta(table.MetaPath(tablePath))
	if err != nil || !ok || current.Checksum == "" {
		return err
	}
	if current.Checksum != indexMeta.Checksum {
		return errors.Wrapf(rainbow.ErrResource,
			"index %s was built from another version of %s, rebuild it with index build --force", dir, tablePath)
	}
	return nil
}
