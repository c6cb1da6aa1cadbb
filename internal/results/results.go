// Package results collects per-run results.csv files, merges them into one
// table, and sorts it by end-to-end time.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Sentinels for the two empty-report cases.
var (
	ErrNoResults      = errors.New("no results found")
	ErrNoValidResults = errors.New("no valid results found")
)

// E2EColumn is the end-to-end time column every results file must carry.
const E2EColumn = "E2E_time"

// sourceColumn tags each row with the directory its results file came from.
const sourceColumn = "log_dir"

// Table is the merged results table. Columns is the header in render order;
// Rows map column name to cell text.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Aggregator scans log directories for results files.
type Aggregator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Aggregate expands globPattern + "/results.csv", parses every match, tags
// rows with their source directory, and sorts ascending by E2E_time. Files
// that fail to parse are skipped with a diagnostic — one malformed run must
// not break the report for the others. Zero matches yields ErrNoResults; all
// matches failing yields ErrNoValidResults.
func (a *Aggregator) Aggregate(globPattern string) (*Table, error) {
	paths, err := filepath.Glob(filepath.Join(globPattern, "results.csv"))
	if err != nil {
		return nil, fmt.Errorf("expanding glob %q: %w", globPattern, err)
	}
	if len(paths) == 0 {
		return nil, ErrNoResults
	}
	sort.Strings(paths)

	var columns []string
	seen := map[string]bool{}
	var rows []map[string]string
	parsed := 0

	for _, path := range paths {
		header, records, err := readResultsFile(path)
		if err != nil {
			a.logger.Warn("skipping unparsable results file", "path", path, "error", err)
			continue
		}
		parsed++

		for _, col := range header {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}

		dir := filepath.Dir(path)
		for _, rec := range records {
			row := make(map[string]string, len(header)+1)
			for i, col := range header {
				if i < len(rec) {
					row[col] = rec[i]
				}
			}
			row[sourceColumn] = dir
			rows = append(rows, row)
		}
	}

	if parsed == 0 {
		return nil, ErrNoValidResults
	}

	if !seen[sourceColumn] {
		columns = append(columns, sourceColumn)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return e2eTime(rows[i]) < e2eTime(rows[j])
	})

	return &Table{Columns: columns, Rows: rows}, nil
}

// e2eTime parses the sort key; rows with a missing or malformed value sort
// last.
func e2eTime(row map[string]string) float64 {
	v, ok := row[E2EColumn]
	if !ok {
		return math.MaxFloat64
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.MaxFloat64
	}
	return f
}

func readResultsFile(path string) (header []string, records [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, errors.New("empty file")
	}
	return all[0], all[1:], nil
}

// Render formats the table for the console log pane.
func (t *Table) Render() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cells[i] = row[col]
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return b.String()
}

// SourceDirs returns the distinct source directories represented in the
// table, in first-seen order.
func (t *Table) SourceDirs() []string {
	var dirs []string
	seen := map[string]bool{}
	for _, row := range t.Rows {
		if d := row[sourceColumn]; d != "" && !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}
