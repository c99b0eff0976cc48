package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/postgres"
)

// Source produces a fresh Table each time it is loaded.
type Source interface {
	Load(ctx context.Context) (*Table, error)
	Name() string
}

// FileSource reads a CSV reference file from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "csv:" + s.Path }

func (s FileSource) Load(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening reference file: %w", err)
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parsing reference file %s: %w", s.Path, err)
	}
	return t, nil
}

// tableName accepts a bare or schema-qualified identifier.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads the reference table from PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE salary_reference (
//	    job_title_normalized TEXT,
//	    category_clean       TEXT,
//	    state_region         TEXT,
//	    avg_salary_myr       DOUBLE PRECISION
//	);
type PostgresSource struct {
	db    *postgres.Client
	table string
}

// NewPostgresSource validates the table identifier and returns a source.
func NewPostgresSource(db *postgres.Client, table string) (*PostgresSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid reference table name %q", table)
	}
	return &PostgresSource{db: db, table: table}, nil
}

func (s *PostgresSource) Name() string { return "postgres:" + s.table }

func (s *PostgresSource) Load(ctx context.Context) (*Table, error) {
	query := fmt.Sprintf(
		`SELECT %s, %s, %s, %s FROM %s ORDER BY ctid`,
		ColJobTitle, ColCategory, ColState, ColAvgSalary, postgres.QuoteIdentifier(s.table),
	)
	rows, err := s.db.QueryContext(ctx, query)
	if postgres.IsUndefinedTable(err) {
		return nil, fmt.Errorf("reference table %q does not exist: %w", s.table, err)
	}
	if err != nil {
		return nil, fmt.Errorf("querying reference table: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var title, category, state sql.NullString
		var salary sql.NullFloat64
		if err := rows.Scan(&title, &category, &state, &salary); err != nil {
			return nil, fmt.Errorf("scanning reference row: %w", err)
		}
		records = append(records, Record{
			JobTitle:  title.String,
			Category:  category.String,
			State:     state.String,
			AvgSalary: salary.Float64,
			HasSalary: salary.Valid,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reference rows: %w", err)
	}
	return &Table{records: records}, nil
}
