package rainbow

import (
	"encoding/binary"

	"github.com/minio/sha256-simd"
	"github.com/zeebo/xxh3"
)

// Reduction maps a digest at a chain position back into the password space.
// The family name is recorded with every table; a table can only be searched
// with the family it was built with.
type Reduction interface {
	Name() string
	Reduce(d Digest, step, length int) string
}

type ReductionType int

const (
	SHA256ReductionType ReductionType = iota
	XXH3ReductionType
)

const (
	sha256ReductionName = "sha256-v1"
	xxh3ReductionName   = "xxh3-v1"
)

func NewReduction(reductionType ReductionType) Reduction {
	switch reductionType {
	case XXH3ReductionType:
		return xxh3Reduction{}
	default:
		return sha256Reduction{}
	}
}

func ParseReductionName(name string) (ReductionType, error) {
	switch name {
	case sha256ReductionName, "":
		return SHA256ReductionType, nil
	case xxh3ReductionName:
		return XXH3ReductionType, nil
	default:
		return 0, validationErrorf("unknown reduction family %q", name)
	}
}

func DefaultReductionStr() string {
	return sha256ReductionName
}

// ReduceBytes validates a raw digest and length before reducing.
func ReduceBytes(r Reduction, digest []byte, step, length int) (string, error) {
	d, err := DigestFromBytes(digest)
	if err != nil {
		return "", err
	}
	if err := ValidateLength(length); err != nil {
		return "", err
	}
	if step < 0 {
		return "", validationErrorf("step must be non-negative, got %d", step)
	}
	return r.Reduce(d, step, length), nil
}

// sha256Reduction hashes digest || be32(step) and maps the leading bytes to
// alphabet symbols.
type sha256Reduction struct{}

func (sha256Reduction) Name() string {
	return sha256ReductionName
}

func (sha256Reduction) Reduce(d Digest, step, length int) string {
	var data [DigestSize + 4]byte
	copy(data[:], d[:])
	binary.BigEndian.PutUint32(data[DigestSize:], uint32(step))
	sum := sha256.Sum256(data[:])
	return mapToAlphabet(sum[:length])
}

// xxh3Reduction seeds a 128-bit xxh3 with the step index.
type xxh3Reduction struct{}

func (xxh3Reduction) Name() string {
	return xxh3ReductionName
}

func (xxh3Reduction) Reduce(d Digest, step, length int) string {
	h := xxh3.Hash128Seed(d[:], uint64(step))
	var out [16]byte
	binary.BigEndian.PutUint64(out[:8], h.Hi)
	binary.BigEndian.PutUint64(out[8:], h.Lo)
	return mapToAlphabet(out[:length])
}

func mapToAlphabet(b []byte) string {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = Alphabet[int(v)%len(Alphabet)]
	}
	return string(out)
}
