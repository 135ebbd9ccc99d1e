package table

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sblinch/kdl-go"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

const (
	FormatVersion = 1
	metaSuffix    = ".meta"
)

// Meta is the sidecar stored next to a table file. It pins the parameters the
// chains were generated with so a table cannot be searched with another
// reduction family or chain length by accident.
type Meta struct {
	FormatVersion  int    `kdl:"format-version"`
	Hasher         string `kdl:"hasher"`
	Reduction      string `kdl:"reduction"`
	PasswordLength int    `kdl:"password-length"`
	ChainLength    int    `kdl:"chain-length"`
	Chains         int    `kdl:"chains"`
	UniqueEndings  int    `kdl:"unique-endings"`
	Seeded         bool   `kdl:"seeded"`
	Seed           int64  `kdl:"seed"`
	Checksum       string `kdl:"checksum"`
}

func NewMeta(scheme *rainbow.Scheme) Meta {
	return Meta{
		FormatVersion:  FormatVersion,
		Hasher:         scheme.Hasher.Name(),
		Reduction:      scheme.Reduction.Name(),
		PasswordLength: scheme.Length,
		ChainLength:    scheme.ChainLength,
	}
}

func MetaPath(tablePath string) string {
	return tablePath + metaSuffix
}

// Check reports a validation error if the table was built with a different
// scheme than the one it is about to be searched with.
func (m *Meta) Check(scheme *rainbow.Scheme) error {
	if m.FormatVersion != FormatVersion {
		return errors.Wrapf(rainbow.ErrValidation, "unsupported table format version %d", m.FormatVersion)
	}
	mismatch := func(what string, table, want any) error {
		return errors.Wrapf(rainbow.ErrValidation, "table %s is %v, search uses %v", what, table, want)
	}
	switch {
	case m.Hasher != scheme.Hasher.Name():
		return mismatch("hasher", m.Hasher, scheme.Hasher.Name())
	case m.Reduction != scheme.Reduction.Name():
		return mismatch("reduction", m.Reduction, scheme.Reduction.Name())
	case m.PasswordLength != scheme.Length:
		return mismatch("password length", m.PasswordLength, scheme.Length)
	case m.ChainLength != scheme.ChainLength:
		return mismatch("chain length", m.ChainLength, scheme.ChainLength)
	}
	return nil
}

func WriteMeta(path string, m *Meta) error {
	data, err := kdl.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshal table meta")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "write table meta %s: %v", path, err)
	}
	return nil
}

// ReadMeta loads a sidecar. A missing sidecar is reported with ok == false.
func ReadMeta(path string) (m *Meta, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(rainbow.ErrResource, "read table meta %s: %v", path, err)
	}
	var meta Meta
	if err := kdl.Unmarshal(data, &meta); err != nil {
		return nil, false, errors.Wrapf(rainbow.ErrResource, "parse table meta %s: %v", path, err)
	}
	return &meta, true, nil
}
