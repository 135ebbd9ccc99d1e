package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/internal/pwgen"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

func newHashgenCmd(a *app) *cobra.Command {
	var (
		count  int
		length int
		prefix string
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "hashgen",
		Short: "Write random passwords and their digests for test runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("length") {
				length = a.cfg.TableConfig.PasswordLength
			}
			var seedPtr *int64
			if cmd.Flags().Changed("seed") {
				seedPtr = &seed
			}
			passwords, err := pwgen.New(seedPtr).Passwords(count, length)
			if err != nil {
				return err
			}
			hasher := rainbow.NewDESHasher()
			hashes := make([]string, len(passwords))
			for i, p := range passwords {
				hashes[i] = hasher.Hash(p).String()
			}
			pwPath, hashPath := prefix+"_passwords.txt", prefix+"_hashes.txt"
			if err := writeLines(pwPath, passwords); err != nil {
				return err
			}
			if err := writeLines(hashPath, hashes); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d passwords to %s and digests to %s\n",
				len(passwords), pwPath, hashPath)
			return err
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&count, "count", 10, "number of passwords")
	fs.IntVar(&length, "length", 0, "password length (default from config)")
	fs.StringVar(&prefix, "out-prefix", "test", "prefix of the two output files")
	fs.Int64Var(&seed, "seed", 0, "seed for reproducible passwords")
	return cmd
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(rainbow.ErrResource, err.Error())
	}
	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = file.Close()
			return errors.Wrapf(rainbow.ErrResource, "write %s: %v", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return errors.Wrapf(rainbow.ErrResource, "write %s: %v", path, err)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "close %s: %v", path, err)
	}
	return nil
}
