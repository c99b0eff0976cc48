// Package insights computes the read-only market views over the reference
// table: mean salary by state, by category and by job title, and the salary
// distribution. Every function is a stateless recomputation.
//
// Groups with equal means keep the order in which their key first appears in
// the table.
package insights

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
)

const (
	// DistributionCap is the display ceiling for the salary distribution.
	DistributionCap = 20000
	// TopJobTitlesLimit is how many titles the top-paying view keeps.
	TopJobTitlesLimit = 10
)

type GroupMean struct {
	Key   string  `json:"key"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Report bundles every insight view.
type Report struct {
	Rows         int         `json:"rows"`
	ByState      []GroupMean `json:"by_state"`
	ByCategory   []GroupMean `json:"by_category"`
	Distribution []float64   `json:"distribution"`
	Histogram    []Bin       `json:"histogram"`
	TopJobTitles []GroupMean `json:"top_job_titles"`
}

// Build computes all views for t.
func Build(t *dataset.Table) Report {
	dist := Distribution(t)
	return Report{
		Rows:         t.Len(),
		ByState:      MeanByState(t),
		ByCategory:   MeanByCategory(t),
		Distribution: dist,
		Histogram:    Histogram(dist, 1000),
		TopJobTitles: TopJobTitles(t, TopJobTitlesLimit),
	}
}

// MeanByState is the mean salary per state/region, highest first.
func MeanByState(t *dataset.Table) []GroupMean {
	return meanBy(t, func(r dataset.Record) string { return r.State })
}

// MeanByCategory is the mean salary per category, highest first.
func MeanByCategory(t *dataset.Table) []GroupMean {
	return meanBy(t, func(r dataset.Record) string { return r.Category })
}

// TopJobTitles is the n job titles with the highest mean salary.
func TopJobTitles(t *dataset.Table, n int) []GroupMean {
	means := meanBy(t, func(r dataset.Record) string { return r.JobTitle })
	if n >= 0 && len(means) > n {
		means = means[:n]
	}
	return means
}

// Distribution returns every known salary in table order with values above
// DistributionCap clamped. The table is not modified.
func Distribution(t *dataset.Table) []float64 {
	out := make([]float64, 0, t.Len())
	t.Each(func(r dataset.Record) {
		if !r.HasSalary {
			return
		}
		out = append(out, math.Min(r.AvgSalary, DistributionCap))
	})
	return out
}

// Histogram buckets values into fixed-width bins starting at 0. Negative
// values land in the first bin.
func Histogram(values []float64, width float64) []Bin {
	if len(values) == 0 || width <= 0 {
		return []Bin{}
	}
	maxV := 0.0
	for _, v := range values {
		maxV = math.Max(maxV, v)
	}
	n := int(maxV/width) + 1
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Low = float64(i) * width
		bins[i].High = float64(i+1) * width
	}
	for _, v := range values {
		i := int(math.Max(v, 0) / width)
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}

type accumulator struct {
	sum   float64
	count int
}

func meanBy(t *dataset.Table, key func(dataset.Record) string) []GroupMean {
	order := make([]string, 0)
	acc := make(map[string]*accumulator)
	t.Each(func(r dataset.Record) {
		k := key(r)
		if k == "" || !r.HasSalary {
			return
		}
		a, ok := acc[k]
		if !ok {
			a = &accumulator{}
			acc[k] = a
			order = append(order, k)
		}
		a.sum += r.AvgSalary
		a.count++
	})

	result := make([]GroupMean, 0, len(order))
	for _, k := range order {
		a := acc[k]
		result = append(result, GroupMean{Key: k, Mean: a.sum / float64(a.count), Count: a.count})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Mean > result[j].Mean
	})
	return result
}
