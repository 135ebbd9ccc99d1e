package rainbow

import (
	"io"

	"github.com/pkg/errors"
)

// Index maps chain endpoints to chain starts. Implementations are read-only
// once loaded and safe for concurrent lookups.
type Index interface {
	Lookup(end string) (start string, ok bool, err error)
}

// IndexWriter is filled by LoadIndex. Insert keeps the first start seen for
// an endpoint and reports whether end was new.
type IndexWriter interface {
	Insert(c Chain) (inserted bool, err error)
}

// ChainSource yields persisted chains in storage order and returns io.EOF
// after the last one.
type ChainSource interface {
	Next() (Chain, error)
}

type LoadStats struct {
	TotalRows     int
	UniqueEndings int
}

// LoadIndex scans src once in order. The same source always produces the same
// index: on duplicate endpoints the first start wins.
func LoadIndex(src ChainSource, dst IndexWriter) (LoadStats, error) {
	var stats LoadStats
	for {
		c, err := src.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, errors.Wrapf(err, "read chain %d", stats.TotalRows+1)
		}
		stats.TotalRows++
		inserted, err := dst.Insert(c)
		if err != nil {
			return stats, errors.Wrapf(err, "index chain %d", stats.TotalRows)
		}
		if inserted {
			stats.UniqueEndings++
		}
	}
}

// MemoryIndex is a map backed index. Fill it before sharing it between
// goroutines.
type MemoryIndex struct {
	m map[string]string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{m: make(map[string]string)}
}

func (idx *MemoryIndex) Insert(c Chain) (bool, error) {
	if _, ok := idx.m[c.End]; ok {
		return false, nil
	}
	idx.m[c.End] = c.Start
	return true, nil
}

func (idx *MemoryIndex) Lookup(end string) (string, bool, error) {
	start, ok := idx.m[end]
	return start, ok, nil
}

func (idx *MemoryIndex) Len() int {
	return len(idx.m)
}

// SliceSource replays in-memory chains as a ChainSource.
type SliceSource struct {
	chains []Chain
	pos    int
}

func NewSliceSource(chains []Chain) *SliceSource {
	return &SliceSource{chains: chains}
}

func (s *SliceSource) Next() (Chain, error) {
	if s.pos >= len(s.chains) {
		return Chain{}, io.EOF
	}
	c := s.chains[s.pos]
	s.pos++
	return c, nil
}
