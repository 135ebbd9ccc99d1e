package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/internal/bench"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

func newBenchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure crack success and table generation over repeated runs",
		Long: `Runs repeated measurements and writes the per-run results, a mean and
standard deviation summary (<out>_stats.csv) and, for crack runs, the
passwords cracked and missed (<out>_details.csv).`,
	}
	cmd.AddCommand(newBenchCrackCmd(a), newBenchGenerateCmd(a))
	return cmd
}

type benchCrackFlags struct {
	table   tableFlags
	count   int
	repeats int
	seed    int64
	out     string
}

func newBenchCrackCmd(a *app) *cobra.Command {
	f := &benchCrackFlags{}
	cmd := &cobra.Command{
		Use:   "crack",
		Short: "Crack the digests of random passwords against a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBenchCrack(cmd, f)
		},
	}
	fs := cmd.Flags()
	f.table.register(fs)
	fs.IntVar(&f.count, "count", 50, "random passwords per run")
	fs.IntVar(&f.repeats, "repeats", 1, "number of runs")
	fs.Int64Var(&f.seed, "seed", 0, "seed for reproducible samples")
	fs.StringVar(&f.out, "out", "bench_crack.csv", "results CSV path")
	return cmd
}

func (a *app) runBenchCrack(cmd *cobra.Command, f *benchCrackFlags) error {
	fs := cmd.Flags()
	f.table.apply(fs, a.cfg.TableConfig)
	if err := a.validate(); err != nil {
		return err
	}
	cfg := bench.CrackConfig{
		Table:   a.cfg.TableConfig.Path,
		Count:   f.count,
		Repeats: f.repeats,
	}
	if fs.Changed("seed") {
		cfg.Seed = &f.seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	t, svc, err := a.openService(0)
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	runs, err := bench.NewCrackBench(svc.Scheme(), svc, a.l).Run(ctx, cfg)
	if err != nil {
		return crackFailure(err)
	}
	report := bench.ReportFor(f.out)
	if err := bench.WriteCrackReport(report, cfg, svc.Scheme(), runs); err != nil {
		return err
	}

	stats := bench.CrackStats(runs)
	rate, avg := bench.Lookup(stats, "success_rate"), bench.Lookup(stats, "avg_crack_time")
	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"runs: %d\nsuccess rate: %.2f%% ± %.2f%%\navg crack time: %.6fs ± %.6fs\nresults: %s\nstats: %s\ndetails: %s\n",
		len(runs), rate.Mean, rate.Stdev, avg.Mean, avg.Stdev, report.Results, report.Stats, report.Details)
	return err
}

type benchGenerateFlags struct {
	lengths      []int
	chainLengths []int
	chains       []int
	workers      []int
	batchSizes   []int
	repeats      int
	reduction    string
	tablesDir    string
	timeout      time.Duration
	seed         int64
	out          string
}

func newBenchGenerateCmd(a *app) *cobra.Command {
	f := &benchGenerateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build and reload tables over a parameter grid",
		Example: `  rainbow bench generate --lengths 3,4 --chain-lengths 100 --chains 10000 \
    --workers 2,4 --batch-sizes 1000 --repeats 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBenchGenerate(cmd, f)
		},
	}
	fs := cmd.Flags()
	fs.IntSliceVar(&f.lengths, "lengths", []int{rainbow.DefaultLength}, "password lengths")
	fs.IntSliceVar(&f.chainLengths, "chain-lengths", []int{100}, "chain lengths")
	fs.IntSliceVar(&f.chains, "chains", []int{10000}, "chains per table")
	fs.IntSliceVar(&f.workers, "workers", []int{2}, "worker counts")
	fs.IntSliceVar(&f.batchSizes, "batch-sizes", []int{1000}, "chains per batch")
	fs.IntVar(&f.repeats, "repeats", 1, "runs per parameter combination")
	fs.StringVar(&f.reduction, "reduction", "", "reduction family (sha256-v1, xxh3-v1)")
	fs.StringVar(&f.tablesDir, "tables-dir", "bench_tables", "directory for the generated tables")
	fs.DurationVar(&f.timeout, "timeout", 0, "time limit per table")
	fs.Int64Var(&f.seed, "seed", 0, "seed for reproducible start passwords")
	fs.StringVar(&f.out, "out", "bench_generate.csv", "results CSV path")
	return cmd
}

func (a *app) runBenchGenerate(cmd *cobra.Command, f *benchGenerateFlags) error {
	fs := cmd.Flags()
	if fs.Changed("reduction") {
		a.cfg.TableConfig.Reduction = f.reduction
	}
	if err := a.validate(); err != nil {
		return err
	}
	reductionType, err := rainbow.ParseReductionName(a.cfg.TableConfig.Reduction)
	if err != nil {
		return err
	}
	cfg := bench.GenerateConfig{
		Cases:       bench.Grid(f.lengths, f.chainLengths, f.chains, f.workers, f.batchSizes),
		Repeats:     f.repeats,
		TablesDir:   f.tablesDir,
		Reduction:   reductionType,
		Timeout:     a.cfg.GenerateConfig.Timeout,
		MaxFileSize: a.cfg.TableConfig.MaxFileSize,
	}
	if fs.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fs.Changed("seed") {
		cfg.Seed = &f.seed
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	runs, err := bench.NewGenerateBench(a.l).Run(ctx, cfg)
	if err != nil {
		return err
	}
	report := bench.ReportFor(f.out)
	if err := bench.WriteGenerateReport(report, runs); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, cs := range bench.GenerateStats(runs) {
		c := cs.Case
		uniqueness, total := bench.Lookup(cs.Stats, "uniqueness_percentage"), bench.Lookup(cs.Stats, "total_time")
		if _, err := fmt.Fprintf(out, "p%d c%d n%d proc%d b%d: %.2f%% unique, %.3fs ± %.3fs\n",
			c.Length, c.ChainLength, c.Chains, c.Workers, c.BatchSize,
			uniqueness.Mean, total.Mean, total.Stdev); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "results: %s\nstats: %s\n", report.Results, report.Stats)
	return err
}
