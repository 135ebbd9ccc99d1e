package rainbow

import (
	"context"

	"github.com/pkg/errors"
)

type CrackResult struct {
	Password string
	Found    bool
	// HashEvaluations counts primitive calls spent on the search.
	HashEvaluations int
	// FalseAlarms counts endpoint hits whose chain did not contain the target.
	FalseAlarms int
}

// CrackBytes validates a raw digest before searching for it.
func (s *Scheme) CrackBytes(ctx context.Context, target []byte, idx Index) (CrackResult, error) {
	d, err := DigestFromBytes(target)
	if err != nil {
		return CrackResult{}, err
	}
	return s.Crack(ctx, d, idx)
}

// Crack searches idx for a chain passing through target. Every depth from the
// last chain position down to the first is tried; an endpoint hit is only
// accepted after walking its chain and finding a password that hashes to
// target. A search without such a password is not an error: Found is false.
func (s *Scheme) Crack(ctx context.Context, target Digest, idx Index) (CrackResult, error) {
	var res CrackResult
	for step := s.ChainLength - 1; step >= 0; step-- {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, "crack cancelled")
		}
		end := s.endpointFrom(target, step, &res)
		start, ok, err := idx.Lookup(end)
		if err != nil {
			return res, errors.Wrapf(ErrResource, "lookup endpoint %q: %v", end, err)
		}
		if !ok {
			continue
		}
		if p, found := s.verify(start, target, &res); found {
			res.Password = p
			res.Found = true
			return res, nil
		}
		res.FalseAlarms++
	}
	return res, nil
}

// endpointFrom computes the endpoint a chain would have if target were the
// digest at position step.
func (s *Scheme) endpointFrom(target Digest, step int, res *CrackResult) string {
	cursor := target
	var candidate string
	for i := step; i < s.ChainLength; i++ {
		candidate = s.Reduction.Reduce(cursor, i, s.Length)
		if i < s.ChainLength-1 {
			cursor = s.Hasher.Hash(candidate)
			res.HashEvaluations++
		}
	}
	return candidate
}

func (s *Scheme) verify(start string, target Digest, res *CrackResult) (string, bool) {
	var found string
	var ok bool
	s.walk(start, func(_ int, p string, d Digest) bool {
		res.HashEvaluations++
		if d == target {
			found, ok = p, true
			return false
		}
		return true
	})
	return found, ok
}
