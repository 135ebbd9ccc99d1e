package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/internal/pwgen"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/table"
)

// GenerateCase is one point of the parameter grid.
type GenerateCase struct {
	Length      int
	ChainLength int
	Chains      int
	Workers     int
	BatchSize   int
}

func (c GenerateCase) tableName(run int) string {
	return fmt.Sprintf("table_p%d_c%d_n%d_proc%d_b%d_run%d.csv",
		c.Length, c.ChainLength, c.Chains, c.Workers, c.BatchSize, run)
}

// Grid is the cartesian product of the parameter lists, length varying
// slowest.
func Grid(lengths, chainLengths, chains, workers, batchSizes []int) []GenerateCase {
	var cases []GenerateCase
	for _, length := range lengths {
		for _, chainLength := range chainLengths {
			for _, n := range chains {
				for _, w := range workers {
					for _, batch := range batchSizes {
						cases = append(cases, GenerateCase{
							Length:      length,
							ChainLength: chainLength,
							Chains:      n,
							Workers:     w,
							BatchSize:   batch,
						})
					}
				}
			}
		}
	}
	return cases
}

type GenerateConfig struct {
	Cases       []GenerateCase `validate:"min=1"`
	Repeats     int            `validate:"min=1"`
	TablesDir   string         `validate:"required"`
	Reduction   rainbow.ReductionType
	Timeout     time.Duration `validate:"gt=0"`
	MaxFileSize int64
	Seed        *int64
}

func (c GenerateConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrapf(rainbow.ErrValidation, "generate bench: %v", err)
	}
	for _, gc := range c.Cases {
		if gc.Chains < 1 {
			return errors.Wrapf(rainbow.ErrValidation, "generate bench: chains must be greater than 0, got %d", gc.Chains)
		}
		if err := c.job(gc).Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c GenerateConfig) job(gc GenerateCase) rainbow.JobConfig {
	return rainbow.JobConfig{
		Length:      gc.Length,
		ChainLength: gc.ChainLength,
		Workers:     gc.Workers,
		BatchSize:   gc.BatchSize,
		Timeout:     c.Timeout,
		Seed:        c.Seed,
	}
}

type GenerateRun struct {
	Case      GenerateCase
	Run       int
	Total     int
	Unique    int
	GenTime   time.Duration
	BuildTime time.Duration
	LoadTime  time.Duration
	TableFile string
}

func (r GenerateRun) Uniqueness() float64 {
	return rainbow.BuildResult{Total: r.Total, Unique: r.Unique}.Uniqueness()
}

func (r GenerateRun) TotalTime() time.Duration {
	return r.GenTime + r.BuildTime + r.LoadTime
}

// GenerateBench builds one table per case and run, then times loading it back
// into a memory index. Tables are kept in TablesDir for later crack benches.
type GenerateBench struct {
	l   zerolog.Logger
	now func() time.Time
}

func NewGenerateBench(l zerolog.Logger) *GenerateBench {
	return &GenerateBench{
		now: time.Now,
		l: l.With().
			Str("domain", "bench").
			Logger(),
	}
}

func (b *GenerateBench) Run(ctx context.Context, cfg GenerateConfig) ([]GenerateRun, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.TablesDir, 0o755); err != nil {
		return nil, errors.Wrapf(rainbow.ErrResource, "create tables dir: %v", err)
	}
	var runs []GenerateRun
	for _, gc := range cfg.Cases {
		for i := 1; i <= cfg.Repeats; i++ {
			run, err := b.runOnce(ctx, cfg, gc, i)
			if err != nil {
				return runs, errors.Wrapf(err, "generate bench %s", gc.tableName(i))
			}
			b.l.Info().
				Str("table", run.TableFile).
				Int("chains", run.Total).
				Float64("uniqueness", run.Uniqueness()).
				Dur("total_time", run.TotalTime()).
				Msg("generate run finished")
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func (b *GenerateBench) runOnce(ctx context.Context, cfg GenerateConfig, gc GenerateCase, n int) (GenerateRun, error) {
	run := GenerateRun{
		Case:      gc,
		Run:       n,
		TableFile: filepath.Join(cfg.TablesDir, gc.tableName(n)),
	}
	seed := runSeed(cfg.Seed, n)

	began := b.now()
	starts, err := pwgen.New(seed).Passwords(gc.Chains, gc.Length)
	if err != nil {
		return run, err
	}
	run.GenTime = b.now().Sub(began)

	job := cfg.job(gc)
	job.Seed = seed
	builder, err := rainbow.NewBuilder(job, rainbow.NewDESHasher(), rainbow.NewReduction(cfg.Reduction), b.l)
	if err != nil {
		return run, err
	}
	scheme := builder.Scheme()
	w, err := table.Create(run.TableFile, table.NewMeta(scheme), table.Options{MaxFileSize: cfg.MaxFileSize}, b.l)
	if err != nil {
		return run, err
	}
	if seed != nil {
		w.SetSeed(*seed)
	}

	began = b.now()
	res, err := builder.Build(ctx, starts, w)
	if err != nil {
		w.Abort()
		return run, err
	}
	w.SetUniqueEndings(res.Unique)
	if err := w.Close(); err != nil {
		w.Abort()
		return run, err
	}
	run.BuildTime = b.now().Sub(began)
	run.Total = res.Total
	run.Unique = res.Unique

	began = b.now()
	if _, err := table.LoadIndex(run.TableFile, cfg.MaxFileSize, scheme, rainbow.NewMemoryIndex()); err != nil {
		return run, err
	}
	run.LoadTime = b.now().Sub(began)
	return run, nil
}

// GenerateStats groups runs by case, in first-seen order.
func GenerateStats(runs []GenerateRun) []CaseStats {
	var out []CaseStats
	index := make(map[GenerateCase]int)
	for _, r := range runs {
		i, ok := index[r.Case]
		if !ok {
			i = len(out)
			index[r.Case] = i
			out = append(out, CaseStats{Case: r.Case})
		}
		out[i].runs = append(out[i].runs, r)
	}
	for i := range out {
		rs := out[i].runs
		out[i].Repeats = len(rs)
		out[i].Stats = []Stat{
			summarize("total_chains", collect(rs, func(r GenerateRun) float64 { return float64(r.Total) })),
			summarize("unique_endpoints", collect(rs, func(r GenerateRun) float64 { return float64(r.Unique) })),
			summarize("uniqueness_percentage", collect(rs, GenerateRun.Uniqueness)),
			summarize("password_gen_time", collect(rs, func(r GenerateRun) float64 { return seconds(r.GenTime) })),
			summarize("table_gen_time", collect(rs, func(r GenerateRun) float64 { return seconds(r.BuildTime) })),
			summarize("load_time", collect(rs, func(r GenerateRun) float64 { return seconds(r.LoadTime) })),
			summarize("total_time", collect(rs, func(r GenerateRun) float64 { return seconds(r.TotalTime()) })),
		}
	}
	return out
}

type CaseStats struct {
	Case    GenerateCase
	Repeats int
	Stats   []Stat

	runs []GenerateRun
}
