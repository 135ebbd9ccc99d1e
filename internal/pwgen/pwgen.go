package pwgen

import (
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

// Generator produces random alphabet passwords. A seeded generator yields the
// same sequence on every run.
type Generator struct {
	rng *rand.Rand
}

func New(seed *int64) *Generator {
	var s uint64
	if seed != nil {
		s = uint64(*seed)
	} else {
		s = uint64(time.Now().UnixNano())
	}
	return &Generator{rng: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (g *Generator) Password(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = rainbow.Alphabet[g.rng.IntN(len(rainbow.Alphabet))]
	}
	return string(b)
}

// Passwords returns count random passwords. Duplicates are possible, as they
// are in the start set of any large table.
func (g *Generator) Passwords(count, length int) ([]string, error) {
	if count <= 0 {
		return nil, errors.Wrapf(rainbow.ErrValidation, "count must be greater than 0, got %d", count)
	}
	if err := rainbow.ValidateLength(length); err != nil {
		return nil, err
	}
	out := make([]string, count)
	for i := range out {
		out[i] = g.Password(length)
	}
	return out, nil
}
