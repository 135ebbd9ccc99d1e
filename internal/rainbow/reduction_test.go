package rainbow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256ReductionVectors(t *testing.T) {
	r := NewReduction(SHA256ReductionType)
	d := Digest{1, 2, 3, 4, 5, 6, 7, 8}

	assert.Equal(t, "3g84jn", r.Reduce(d, 0, 6))
	assert.Equal(t, "44cix1", r.Reduce(d, 1, 6))
	assert.Equal(t, "biju7r", r.Reduce(d, 7, 6))
}

func TestReductionRange(t *testing.T) {
	h := NewDESHasher()
	for _, name := range []string{"sha256-v1", "xxh3-v1"} {
		typ, err := ParseReductionName(name)
		require.NoError(t, err)
		r := NewReduction(typ)
		assert.Equal(t, name, r.Name())

		for length := MinPasswordLength; length <= MaxPasswordLength; length++ {
			for step := 0; step < 300; step += 7 {
				d := h.Hash(strings.Repeat("q", length))
				p := r.Reduce(d, step, length)
				assert.NoError(t, ValidatePassword(p, length), "%s step %d length %d", name, step, length)
			}
		}
	}
}

func TestReductionDependsOnStep(t *testing.T) {
	d := Digest{1, 2, 3, 4, 5, 6, 7, 8}
	for _, typ := range []ReductionType{SHA256ReductionType, XXH3ReductionType} {
		r := NewReduction(typ)
		distinct := make(map[string]struct{})
		for step := 0; step < 32; step++ {
			distinct[r.Reduce(d, step, 6)] = struct{}{}
		}
		assert.Greater(t, len(distinct), 28, r.Name())
		assert.Equal(t, r.Reduce(d, 3, 6), r.Reduce(d, 3, 6))
	}
}

func TestReduceBytesValidation(t *testing.T) {
	r := NewReduction(SHA256ReductionType)

	_, err := ReduceBytes(r, []byte{1, 2, 3}, 0, 6)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ReduceBytes(r, make([]byte, DigestSize), 0, 9)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ReduceBytes(r, make([]byte, DigestSize), -1, 6)
	assert.ErrorIs(t, err, ErrValidation)

	p, err := ReduceBytes(r, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, "3g84jn", p)
}

func TestParseReductionName(t *testing.T) {
	typ, err := ParseReductionName("")
	require.NoError(t, err)
	assert.Equal(t, SHA256ReductionType, typ)

	_, err = ParseReductionName("md5-v0")
	assert.ErrorIs(t, err, ErrValidation)
}
