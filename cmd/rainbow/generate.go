package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/internal/metrics"
	"github.com/ykhdr/rainbow-crack/internal/pwgen"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/table"
)

type generateFlags struct {
	table     tableFlags
	out       string
	chains    int
	workers   int
	batchSize int
	timeout   time.Duration
	seed      int64
}

func newGenerateCmd(a *app) *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a rainbow table from random start passwords",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd, f)
		},
	}
	fs := cmd.Flags()
	f.table.register(fs)
	fs.StringVar(&f.out, "out", "", "output table path (alias of --table)")
	fs.IntVar(&f.chains, "chains", 0, "number of chains")
	fs.IntVar(&f.workers, "workers", 0, "parallel workers (1-64)")
	fs.IntVar(&f.batchSize, "batch", 0, "chains per batch")
	fs.DurationVar(&f.timeout, "timeout", 0, "generation time limit")
	fs.Int64Var(&f.seed, "seed", 0, "seed for reproducible start passwords")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, f *generateFlags) error {
	fs := cmd.Flags()
	cfg := a.cfg
	f.table.apply(fs, cfg.TableConfig)
	if fs.Changed("out") {
		cfg.TableConfig.Path = f.out
	}
	gen := cfg.GenerateConfig
	if fs.Changed("chains") {
		gen.Chains = f.chains
	}
	if fs.Changed("workers") {
		gen.Workers = f.workers
	}
	if fs.Changed("batch") {
		gen.BatchSize = f.batchSize
	}
	if fs.Changed("timeout") {
		gen.Timeout = f.timeout
	}
	if fs.Changed("seed") {
		gen.Seed = &f.seed
	}
	if err := a.validate(); err != nil {
		return err
	}
	scheme, err := cfg.Scheme()
	if err != nil {
		return err
	}

	starts, err := pwgen.New(gen.Seed).Passwords(gen.Chains, cfg.TableConfig.PasswordLength)
	if err != nil {
		return err
	}
	metrics.Register()
	builder, err := rainbow.NewBuilder(cfg.JobConfig(), scheme.Hasher, scheme.Reduction, a.l,
		rainbow.WithObserver(rainbow.MultiObserver(rainbow.NewLogObserver(a.l), metrics.NewBuilderObserver())))
	if err != nil {
		return err
	}
	w, err := table.Create(cfg.TableConfig.Path, table.NewMeta(scheme), cfg.TableConfig.Options(), a.l)
	if err != nil {
		return err
	}
	if gen.Seed != nil {
		w.SetSeed(*gen.Seed)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	res, err := builder.Build(ctx, starts, w)
	if err != nil {
		w.Abort()
		return err
	}
	w.SetUniqueEndings(res.Unique)
	if err := w.Close(); err != nil {
		w.Abort()
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"table: %s\nchains: %d\nunique endpoints: %d (%.2f%%)\nelapsed: %s\n",
		cfg.TableConfig.Path, res.Total, res.Unique, res.Uniqueness(), res.Elapsed.Round(time.Millisecond))
	return err
}
