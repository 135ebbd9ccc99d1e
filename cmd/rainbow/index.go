package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/store/pebbleindex"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage persistent endpoint indexes",
	}
	cmd.AddCommand(newIndexBuildCmd(a))
	return cmd
}

func newIndexBuildCmd(a *app) *cobra.Command {
	var (
		tf    tableFlags
		dir   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load a table into a pebble index for repeated cracking",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			tf.apply(fs, a.cfg.TableConfig)
			if fs.Changed("dir") {
				a.cfg.TableConfig.IndexDir = dir
			}
			if err := a.validate(); err != nil {
				return err
			}
			scheme, err := a.cfg.Scheme()
			if err != nil {
				return err
			}
			target := a.cfg.TableConfig.IndexPath()
			if _, err := os.Stat(target); err == nil {
				if !force {
					return errors.Wrapf(rainbow.ErrResource, "index %s already exists, use --force to rebuild", target)
				}
				if err := os.RemoveAll(target); err != nil {
					return errors.Wrap(rainbow.ErrResource, err.Error())
				}
			}
			stats, err := pebbleindex.Build(a.cfg.TableConfig.Path, a.cfg.TableConfig.MaxFileSize, scheme, target, a.l)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "index: %s\nrows: %d\nunique endpoints: %d\n",
				target, stats.TotalRows, stats.UniqueEndings)
			return err
		},
	}
	fs := cmd.Flags()
	tf.register(fs)
	fs.StringVar(&dir, "dir", "", "index directory (default <table>.idx)")
	fs.BoolVar(&force, "force", false, "replace an existing index")
	return cmd
}
