package bench

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

// Report names the files one benchmark writes.
type Report struct {
	Results string
	Stats   string
	Details string
}

// ReportFor derives the stats and details files from the results path:
// out.csv gives out_stats.csv and out_details.csv.
func ReportFor(out string) Report {
	ext := filepath.Ext(out)
	base := strings.TrimSuffix(out, ext)
	if ext == "" {
		ext = ".csv"
	}
	return Report{
		Results: out,
		Stats:   base + "_stats" + ext,
		Details: base + "_details" + ext,
	}
}

func WriteCrackReport(r Report, cfg CrackConfig, scheme *rainbow.Scheme, runs []CrackRun) error {
	results := [][]string{{
		"run_number", "table_file", "password_length", "chain_length", "test_passwords",
		"cracked_passwords", "success_rate", "password_gen_time", "total_crack_time", "avg_crack_time",
	}}
	for _, run := range runs {
		results = append(results, []string{
			strconv.Itoa(run.Run),
			cfg.Table,
			strconv.Itoa(scheme.Length),
			strconv.Itoa(scheme.ChainLength),
			strconv.Itoa(run.Tested),
			strconv.Itoa(run.Cracked),
			formatFloat(run.SuccessRate()),
			formatFloat(seconds(run.GenTime)),
			formatFloat(seconds(run.CrackTime())),
			formatFloat(seconds(run.AvgCrackTime())),
		})
	}
	if err := writeCSV(r.Results, results); err != nil {
		return err
	}

	stats := [][]string{
		{"Parameter", "Value"},
		{"table_file", cfg.Table},
		{"password_length", strconv.Itoa(scheme.Length)},
		{"chain_length", strconv.Itoa(scheme.ChainLength)},
		{"num_test_passwords", strconv.Itoa(cfg.Count)},
		{"num_repeats", strconv.Itoa(cfg.Repeats)},
		{},
		{"Metric", "Mean", "Standard Deviation"},
	}
	for _, s := range CrackStats(runs) {
		stats = append(stats, statRow(s))
	}
	if err := writeCSV(r.Stats, stats); err != nil {
		return err
	}

	details := [][]string{{"Run Number", "Cracked Passwords", "Failed Passwords"}}
	for _, run := range runs {
		var cracked, failed []string
		for _, a := range run.Attempts {
			if a.Found {
				cracked = append(cracked, a.Password)
			} else {
				failed = append(failed, a.Password)
			}
		}
		details = append(details, []string{
			strconv.Itoa(run.Run),
			strings.Join(cracked, ", "),
			strings.Join(failed, ", "),
		})
	}
	return writeCSV(r.Details, details)
}

// WriteGenerateReport writes the per-run results and one stats block row per
// case and metric. Generation has no details file.
func WriteGenerateReport(r Report, runs []GenerateRun) error {
	results := [][]string{{
		"run_number", "password_length", "chain_length", "num_chains", "num_processes", "batch_size",
		"total_chains", "unique_endpoints", "uniqueness_percentage",
		"password_gen_time", "table_gen_time", "load_time", "total_time", "table_file",
	}}
	for _, run := range runs {
		row := append([]string{strconv.Itoa(run.Run)}, caseColumns(run.Case)...)
		results = append(results, append(row,
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Unique),
			formatFloat(run.Uniqueness()),
			formatFloat(seconds(run.GenTime)),
			formatFloat(seconds(run.BuildTime)),
			formatFloat(seconds(run.LoadTime)),
			formatFloat(seconds(run.TotalTime())),
			run.TableFile,
		))
	}
	if err := writeCSV(r.Results, results); err != nil {
		return err
	}

	stats := [][]string{{
		"password_length", "chain_length", "num_chains", "num_processes", "batch_size", "num_repeats",
		"Metric", "Mean", "Standard Deviation",
	}}
	for _, cs := range GenerateStats(runs) {
		for _, s := range cs.Stats {
			row := append(caseColumns(cs.Case), strconv.Itoa(cs.Repeats))
			stats = append(stats, append(row, statRow(s)...))
		}
	}
	return writeCSV(r.Stats, stats)
}

func caseColumns(c GenerateCase) []string {
	return []string{
		strconv.Itoa(c.Length),
		strconv.Itoa(c.ChainLength),
		strconv.Itoa(c.Chains),
		strconv.Itoa(c.Workers),
		strconv.Itoa(c.BatchSize),
	}
}

func statRow(s Stat) []string {
	return []string{s.Metric, formatFloat(s.Mean), formatFloat(s.Stdev)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(rainbow.ErrResource, "create report: %v", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return errors.Wrapf(rainbow.ErrResource, "write report %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(rainbow.ErrResource, "close report %s: %v", path, err)
	}
	return nil
}
