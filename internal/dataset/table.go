// Package dataset loads the historical salary reference table. A Table is
// immutable once built; reloads replace the whole table through a Holder.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Column names required in the reference file header.
const (
	ColJobTitle  = "job_title_normalized"
	ColCategory  = "category_clean"
	ColState     = "state_region"
	ColAvgSalary = "avg_salary_myr"
)

var ErrMissingColumn = errors.New("missing required column")

// Record is one row of the reference table. An empty string means the
// value was missing in the source. HasSalary is false when avg_salary_myr
// was empty or not a finite number.
type Record struct {
	JobTitle  string  `json:"job_title_normalized"`
	Category  string  `json:"category_clean"`
	State     string  `json:"state_region"`
	AvgSalary float64 `json:"avg_salary_myr"`
	HasSalary bool    `json:"-"`
}

// Table is a read-only sequence of records.
type Table struct {
	records []Record
}

// NewTable copies records into a new Table.
func NewTable(records []Record) *Table {
	cp := make([]Record, len(records))
	copy(cp, records)
	return &Table{records: cp}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns a copy of the rows in load order.
func (t *Table) Records() []Record {
	cp := make([]Record, len(t.records))
	copy(cp, t.records)
	return cp
}

// Each calls fn for every row in load order without copying.
func (t *Table) Each(fn func(Record)) {
	for _, r := range t.records {
		fn(r)
	}
}

// ReadCSV parses a reference table with a header row. Extra columns are
// ignored; any of the four required columns missing is an error.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reading header: %w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	cols := make([]int, 0, 4)
	for _, name := range []string{ColJobTitle, ColCategory, ColState, ColAvgSalary} {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		cols = append(cols, i)
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		rec := Record{
			JobTitle: field(row, cols[0]),
			Category: field(row, cols[1]),
			State:    field(row, cols[2]),
		}
		rec.AvgSalary, rec.HasSalary = parseSalary(field(row, cols[3]))
		records = append(records, rec)
	}
	return &Table{records: records}, nil
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[i])
	if strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

func parseSalary(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
