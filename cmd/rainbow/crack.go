package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/internal/hashcrack"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
)

type crackFlags struct {
	table    tableFlags
	hash     string
	file     string
	index    string
	indexDir string
	workers  int
}

func newCrackCmd(a *app) *cobra.Command {
	f := &crackFlags{}
	cmd := &cobra.Command{
		Use:   "crack",
		Short: "Recover passwords from digests using a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCrack(cmd, f)
		},
	}
	fs := cmd.Flags()
	f.table.register(fs)
	fs.StringVar(&f.hash, "hash", "", "digest to crack, 16 hex characters")
	fs.StringVar(&f.file, "file", "", "file with one digest per line")
	fs.StringVar(&f.index, "index", "", "index backend (memory, pebble)")
	fs.StringVar(&f.indexDir, "index-dir", "", "pebble index directory")
	fs.IntVar(&f.workers, "workers", 0, "digests cracked in parallel in file mode")
	return cmd
}

func (a *app) runCrack(cmd *cobra.Command, f *crackFlags) error {
	fs := cmd.Flags()
	cfg := a.cfg
	f.table.apply(fs, cfg.TableConfig)
	if fs.Changed("index") {
		cfg.TableConfig.Index = f.index
	}
	if fs.Changed("index-dir") {
		cfg.TableConfig.IndexDir = f.indexDir
	}
	if fs.Changed("workers") {
		cfg.CrackConfig.Workers = f.workers
	}
	if (f.hash == "") == (f.file == "") {
		return errors.Wrap(rainbow.ErrValidation, "exactly one of --hash and --file is required")
	}
	if err := a.validate(); err != nil {
		return err
	}

	var hashes []string
	if f.file != "" {
		var err error
		if hashes, err = readDigestFile(f.file); err != nil {
			return err
		}
	} else if _, err := rainbow.ParseDigest(f.hash); err != nil {
		// reject a malformed digest before paying for the table load
		return err
	}

	t, svc, err := a.openService(0)
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	out := cmd.OutOrStdout()

	if f.file == "" {
		return crackSingle(ctx, out, svc, f.hash)
	}

	results, err := svc.CrackMany(ctx, hashes)
	if err != nil {
		return crackFailure(err)
	}
	for _, r := range results {
		if err := printResult(out, r); err != nil {
			return err
		}
	}
	summary := hashcrack.Summary(results)
	if _, err := fmt.Fprintf(out, "found %d of %d (not found %d, invalid %d, error %d)\n",
		summary[messages.StatusFound], len(results),
		summary[messages.StatusNotFound], summary[messages.StatusInvalid], summary[messages.StatusError]); err != nil {
		return err
	}
	if n := summary[messages.StatusError]; n > 0 {
		// the engine fails a search only on index lookups
		return errors.Wrapf(rainbow.ErrResource, "%d digests failed on index lookup", n)
	}
	return nil
}

// openService loads the configured table and wraps it in a crack service.
// The caller closes the table.
func (a *app) openService(cacheSize int) (*hashcrack.Table, *hashcrack.Service, error) {
	scheme, err := a.cfg.Scheme()
	if err != nil {
		return nil, nil, err
	}
	t, err := hashcrack.OpenTable(a.cfg.TableConfig, scheme, a.l)
	if err != nil {
		return nil, nil, err
	}
	svc, err := hashcrack.NewService(scheme, t.Index, cacheSize, a.cfg.CrackConfig.Workers, a.l)
	if err != nil {
		_ = t.Close()
		return nil, nil, err
	}
	return t, svc, nil
}

// crackSingle cracks one digest and reports not found as ErrNotFound.
func crackSingle(ctx context.Context, w io.Writer, svc *hashcrack.Service, hash string) error {
	d, err := rainbow.ParseDigest(hash)
	if err != nil {
		return err
	}
	res, err := svc.Crack(ctx, d)
	if err != nil {
		return crackFailure(err)
	}
	if !res.Found {
		_, _ = fmt.Fprintf(w, "%s: not found\n", d)
		return errors.Wrapf(rainbow.ErrNotFound, "digest %s", d)
	}
	_, err = fmt.Fprintln(w, res.Password)
	return err
}

// crackFailure keeps typed engine errors and tells an expired deadline from
// an interrupt.
func crackFailure(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(rainbow.ErrTimeout, err.Error())
	case errors.Is(err, context.Canceled):
		return errors.Wrap(err, "crack interrupted")
	default:
		return err
	}
}

func printResult(w io.Writer, r messages.HashResult) error {
	var err error
	switch r.Status {
	case messages.StatusFound:
		_, err = fmt.Fprintf(w, "%s: %s\n", r.Hash, r.Password)
	case messages.StatusNotFound:
		_, err = fmt.Fprintf(w, "%s: not found\n", r.Hash)
	default:
		_, err = fmt.Fprintf(w, "%s: %s (%s)\n", r.Hash, r.Status, r.Error)
	}
	return err
}

// readDigestFile returns the non-empty lines of path that are not comments.
func readDigestFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(rainbow.ErrResource, err.Error())
	}
	defer func() { _ = file.Close() }()

	var hashes []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hashes = append(hashes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(rainbow.ErrResource, "read %s: %v", path, err)
	}
	if len(hashes) == 0 {
		return nil, errors.Wrapf(rainbow.ErrValidation, "%s contains no digests", path)
	}
	return hashes, nil
}
