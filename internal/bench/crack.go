package bench

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/internal/pwgen"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

var validate = validator.New()

// Cracker is satisfied by *hashcrack.Service.
type Cracker interface {
	Crack(ctx context.Context, d rainbow.Digest) (rainbow.CrackResult, error)
}

type CrackConfig struct {
	Table   string
	Count   int `validate:"min=1"`
	Repeats int `validate:"min=1"`
	// Seed makes the sample reproducible; run i uses Seed+i-1.
	Seed *int64
}

func (c CrackConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrapf(rainbow.ErrValidation, "crack bench: %v", err)
	}
	return nil
}

type CrackAttempt struct {
	Password  string
	Digest    rainbow.Digest
	Recovered string
	Found     bool
	Elapsed   time.Duration
}

type CrackRun struct {
	Run      int
	Tested   int
	Cracked  int
	GenTime  time.Duration
	Attempts []CrackAttempt
}

func (r CrackRun) SuccessRate() float64 {
	if r.Tested == 0 {
		return 0
	}
	return float64(r.Cracked) / float64(r.Tested) * 100
}

// CrackTime sums the search time of the digests that were cracked.
func (r CrackRun) CrackTime() time.Duration {
	var total time.Duration
	for _, a := range r.Attempts {
		if a.Found {
			total += a.Elapsed
		}
	}
	return total
}

func (r CrackRun) AvgCrackTime() time.Duration {
	if r.Cracked == 0 {
		return 0
	}
	return r.CrackTime() / time.Duration(r.Cracked)
}

// CrackBench hashes random passwords and times the search for each digest
// against one loaded table.
type CrackBench struct {
	l       zerolog.Logger
	scheme  *rainbow.Scheme
	cracker Cracker
	now     func() time.Time
}

func NewCrackBench(scheme *rainbow.Scheme, cracker Cracker, l zerolog.Logger) *CrackBench {
	return &CrackBench{
		scheme:  scheme,
		cracker: cracker,
		now:     time.Now,
		l: l.With().
			Str("domain", "bench").
			Logger(),
	}
}

// Run searches digests one at a time so every timing covers a single search.
// A failed search aborts the benchmark.
func (b *CrackBench) Run(ctx context.Context, cfg CrackConfig) ([]CrackRun, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runs := make([]CrackRun, 0, cfg.Repeats)
	for i := 1; i <= cfg.Repeats; i++ {
		run, err := b.runOnce(ctx, i, cfg)
		if err != nil {
			return runs, errors.Wrapf(err, "crack bench run %d", i)
		}
		b.l.Info().
			Int("run", i).
			Int("cracked", run.Cracked).
			Int("tested", run.Tested).
			Float64("success_rate", run.SuccessRate()).
			Dur("avg_crack_time", run.AvgCrackTime()).
			Msg("crack run finished")
		runs = append(runs, run)
	}
	return runs, nil
}

func (b *CrackBench) runOnce(ctx context.Context, n int, cfg CrackConfig) (CrackRun, error) {
	run := CrackRun{Run: n, Tested: cfg.Count}
	began := b.now()
	passwords, err := pwgen.New(runSeed(cfg.Seed, n)).Passwords(cfg.Count, b.scheme.Length)
	if err != nil {
		return run, err
	}
	run.GenTime = b.now().Sub(began)

	run.Attempts = make([]CrackAttempt, 0, len(passwords))
	for _, password := range passwords {
		attempt := CrackAttempt{
			Password: password,
			Digest:   b.scheme.Hasher.Hash(password),
		}
		began := b.now()
		res, err := b.cracker.Crack(ctx, attempt.Digest)
		if err != nil {
			return run, err
		}
		attempt.Elapsed = b.now().Sub(began)
		attempt.Found = res.Found
		attempt.Recovered = res.Password
		if res.Found {
			run.Cracked++
		}
		run.Attempts = append(run.Attempts, attempt)
	}
	return run, nil
}

func runSeed(seed *int64, run int) *int64 {
	if seed == nil {
		return nil
	}
	s := *seed + int64(run-1)
	return &s
}

func CrackStats(runs []CrackRun) []Stat {
	return []Stat{
		summarize("cracked_passwords", collect(runs, func(r CrackRun) float64 { return float64(r.Cracked) })),
		summarize("success_rate", collect(runs, CrackRun.SuccessRate)),
		summarize("password_gen_time", collect(runs, func(r CrackRun) float64 { return seconds(r.GenTime) })),
		summarize("total_crack_time", collect(runs, func(r CrackRun) float64 { return seconds(r.CrackTime()) })),
		summarize("avg_crack_time", collect(runs, func(r CrackRun) float64 { return seconds(r.AvgCrackTime()) })),
	}
}
