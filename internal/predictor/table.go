package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/selection"
)

var ErrNoReferenceData = errors.New("no reference salaries to estimate from")

// SnapshotSource yields the active reference snapshot.
type SnapshotSource interface {
	Current() (*reference.Snapshot, error)
}

// Band is an experience bracket with its salary multiplier relative to the
// reference average.
type Band struct {
	Name       string
	MinYears   int
	Multiplier float64
}

// DefaultBands groups experience into intern, junior, mid and senior.
var DefaultBands = []Band{
	{Name: "intern", MinYears: 0, Multiplier: 0.80},
	{Name: "junior", MinYears: 1, Multiplier: 0.90},
	{Name: "mid", MinYears: 3, Multiplier: 1.00},
	{Name: "senior", MinYears: 6, Multiplier: 1.25},
}

// TableEstimator answers predictions from the reference table. It picks the
// narrowest cohort of rows matching the query, takes the cohort median as
// the point estimate and the interquartile range as the range, then scales
// both by the experience band.
type TableEstimator struct {
	source SnapshotSource
	bands  []Band
}

// NewTableEstimator builds an estimator with DefaultBands.
func NewTableEstimator(source SnapshotSource) *TableEstimator {
	return &TableEstimator{source: source, bands: DefaultBands}
}

func (e *TableEstimator) Predict(ctx context.Context, q Query) (float64, error) {
	stats, err := e.cohort(q)
	if err != nil {
		return 0, err
	}
	return math.Round(stats.median * e.multiplier(q)), nil
}

func (e *TableEstimator) PredictRange(ctx context.Context, q Query) (Range, error) {
	stats, err := e.cohort(q)
	if err != nil {
		return Range{}, err
	}
	m := e.multiplier(q)
	point := math.Round(stats.median * m)
	low := math.Min(math.Round(stats.p25*m), point)
	high := math.Max(math.Round(stats.p75*m), point)
	return Range{Low: low, High: high}, nil
}

// BandFor returns the experience band for the query. Internship titles are
// already priced as internships and use the neutral multiplier.
func (e *TableEstimator) BandFor(q Query) Band {
	if selection.IsInternship(q.JobTitle) {
		return Band{Name: "intern", Multiplier: 1.0}
	}
	band := e.bands[0]
	for _, b := range e.bands {
		if q.Experience >= b.MinYears {
			band = b
		}
	}
	return band
}

func (e *TableEstimator) multiplier(q Query) float64 {
	return e.BandFor(q).Multiplier
}

type cohortStats struct {
	median, p25, p75 float64
	size             int
}

func (e *TableEstimator) cohort(q Query) (cohortStats, error) {
	snap, err := e.source.Current()
	if err != nil {
		return cohortStats{}, err
	}
	matchers := []func(dataset.Record) bool{
		func(r dataset.Record) bool {
			return r.JobTitle == q.JobTitle && r.Category == q.Category && r.State == q.State
		},
		func(r dataset.Record) bool { return r.JobTitle == q.JobTitle && r.Category == q.Category },
		func(r dataset.Record) bool { return r.JobTitle == q.JobTitle },
		func(r dataset.Record) bool { return r.Category == q.Category && r.State == q.State },
		func(r dataset.Record) bool { return r.Category == q.Category },
		func(r dataset.Record) bool { return true },
	}
	for _, match := range matchers {
		var salaries []float64
		snap.Table.Each(func(r dataset.Record) {
			if r.HasSalary && match(r) {
				salaries = append(salaries, r.AvgSalary)
			}
		})
		if len(salaries) == 0 {
			continue
		}
		sort.Float64s(salaries)
		return cohortStats{
			median: quantile(salaries, 0.50),
			p25:    quantile(salaries, 0.25),
			p75:    quantile(salaries, 0.75),
			size:   len(salaries),
		}, nil
	}
	return cohortStats{}, fmt.Errorf("estimating %q in %q: %w", q.JobTitle, q.State, ErrNoReferenceData)
}

// quantile uses linear interpolation between closest ranks of sorted.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
