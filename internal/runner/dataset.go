package runner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
)

// ErrDataAccess marks dataset read failures.
var ErrDataAccess = errors.New("data access")

// Dataset is an in-memory CSV table with a header row.
type Dataset struct {
	Header []string
	Rows   [][]string
}

// LoadDataset reads the CSV at path. The first record is the header; the rest
// are data rows.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening dataset %s: %v", ErrDataAccess, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are the cleaning job's problem, not ours

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading dataset %s: %v", ErrDataAccess, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: dataset %s is empty", ErrDataAccess, path)
	}

	return &Dataset{Header: records[0], Rows: records[1:]}, nil
}

// TotalRows is the number of data rows (header excluded).
func (d *Dataset) TotalRows() int {
	return len(d.Rows)
}

// Sample returns the first floor(totalRows * scale) rows. Row order comes from
// the source file, so the same scale over the same file yields the same sample.
func (d *Dataset) Sample(scale float64) *Dataset {
	n := int(float64(len(d.Rows)) * scale)
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	if n < 0 {
		n = 0
	}
	return &Dataset{Header: d.Header, Rows: d.Rows[:n]}
}

// WriteCSV writes the dataset back out as CSV, header first. Session
// implementations use this to hand the sampled rows to an external job.
func (d *Dataset) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sample file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(d.Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range d.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
