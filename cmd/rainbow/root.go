package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ykhdr/rainbow-crack/common/logging"
	"github.com/ykhdr/rainbow-crack/config"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

// app carries what every subcommand shares once the root has initialized.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	l          zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "rainbow",
		Short: "Rainbow table generator and cracker",
		Long: `Builds rainbow tables for fixed-length passwords over a-z0-9 and
recovers passwords from their 8-byte DES digests.

Examples:
  rainbow generate --out table.csv --length 6 --chain 1000 --chains 100000
  rainbow crack --table table.csv --length 6 --chain 1000 --hash 9f843bacaea128ec
  rainbow serve --config config/config.kdl`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the KDL config (default ./config/config.kdl)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides the config")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Wrap(rainbow.ErrValidation, err.Error())
	})
	root.AddCommand(
		newHashCmd(a),
		newGenerateCmd(a),
		newCrackCmd(a),
		newIndexCmd(a),
		newBenchCmd(a),
		newHashgenCmd(a),
		newServeCmd(a),
		newWorkerCmd(a),
	)
	return root
}

func (a *app) init(*cobra.Command, []string) error {
	cfg, err := config.InitializeConfig(a.configPath)
	if err != nil {
		if errors.Is(err, rainbow.ErrValidation) {
			return err
		}
		return errors.Wrap(rainbow.ErrResource, err.Error())
	}
	if a.logLevel != "" {
		level, err := logging.ParseLevelStrict(a.logLevel)
		if err != nil {
			return errors.Wrap(rainbow.ErrValidation, err.Error())
		}
		logging.Setup(level)
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.l = log.Logger
	return nil
}

// validate re-checks the config after flag overrides were applied.
func (a *app) validate() error {
	return a.cfg.Validate()
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// tableFlags binds the flags that select a table and its scheme.
type tableFlags struct {
	path      string
	length    int
	chain     int
	reduction string
	maxSize   int64
}

func (f *tableFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.path, "table", "", "table CSV path")
	fs.IntVar(&f.length, "length", 0, "password length (1-8)")
	fs.IntVar(&f.chain, "chain", 0, "chain length")
	fs.StringVar(&f.reduction, "reduction", "", "reduction family (sha256-v1, xxh3-v1)")
	fs.Int64Var(&f.maxSize, "max-file-size", 0, "maximum table file size in bytes")
}

func (f *tableFlags) apply(fs *pflag.FlagSet, cfg *config.TableConfig) {
	if fs.Changed("table") {
		cfg.Path = f.path
	}
	if fs.Changed("length") {
		cfg.PasswordLength = f.length
	}
	if fs.Changed("chain") {
		cfg.ChainLength = f.chain
	}
	if fs.Changed("reduction") {
		cfg.Reduction = f.reduction
	}
	if fs.Changed("max-file-size") {
		cfg.MaxFileSize = f.maxSize
	}
}
