package rainbow

// Chain is a stored rainbow chain: only its endpoints are kept.
type Chain struct {
	Start string
	End   string
}

// Scheme fixes everything a table depends on. Generation and cracking against
// the same table must use equal schemes.
type Scheme struct {
	Hasher      Hasher
	Reduction   Reduction
	Length      int
	ChainLength int
}

func NewScheme(hasher Hasher, reduction Reduction, length, chainLength int) (*Scheme, error) {
	if hasher == nil || reduction == nil {
		return nil, validationErrorf("hasher and reduction are required")
	}
	if err := ValidateLength(length); err != nil {
		return nil, err
	}
	if chainLength < 1 {
		return nil, validationErrorf("chain length must be greater than 0, got %d", chainLength)
	}
	return &Scheme{
		Hasher:      hasher,
		Reduction:   reduction,
		Length:      length,
		ChainLength: chainLength,
	}, nil
}

// GenerateChain runs ChainLength hash/reduce steps from start.
func (s *Scheme) GenerateChain(start string) (Chain, error) {
	if err := ValidatePassword(start, s.Length); err != nil {
		return Chain{}, err
	}
	return Chain{Start: start, End: s.walk(start, nil)}, nil
}

// alternateStep is the reduction index used when the regular one lands on a
// password already seen in the current chain. The offset is arbitrary; it only
// has to be deterministic and differ from step.
func alternateStep(step, chainLength int) int {
	return (step + chainLength) % 256
}

// walk replays the chain from start and returns its endpoint. visit, when not
// nil, is called for every position before the reduction; returning false
// stops the walk at that position.
func (s *Scheme) walk(start string, visit func(pos int, password string, digest Digest) bool) string {
	seen := make(map[string]struct{}, s.ChainLength+1)
	seen[start] = struct{}{}
	current := start
	for step := 0; step < s.ChainLength; step++ {
		digest := s.Hasher.Hash(current)
		if visit != nil && !visit(step, current, digest) {
			return current
		}
		next := s.Reduction.Reduce(digest, step, s.Length)
		if _, ok := seen[next]; ok {
			next = s.Reduction.Reduce(digest, alternateStep(step, s.ChainLength), s.Length)
		}
		seen[next] = struct{}{}
		current = next
	}
	return current
}
