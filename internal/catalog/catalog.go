// Package catalog derives the selection option lists from the reference
// table: category to job titles, job title to categories, and the distinct
// categories and states. All lists are sorted and deduplicated, and only
// values observed in the table appear.
package catalog

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
)

// Catalog is the set of derived lookup indices for one reference table.
// It must not be mutated after Build returns.
type Catalog struct {
	CategoryToJobs  map[string][]string `json:"category_to_jobs"`
	JobToCategories map[string][]string `json:"job_to_categories"`
	Categories      []string            `json:"categories"`
	States          []string            `json:"states"`
}

// Build derives every index from records.
func Build(records []dataset.Record) *Catalog {
	return &Catalog{
		CategoryToJobs:  BuildCategoryToJobs(records),
		JobToCategories: BuildJobToCategories(records),
		Categories:      distinct(records, func(r dataset.Record) string { return r.Category }),
		States:          distinct(records, func(r dataset.Record) string { return r.State }),
	}
}

// BuildCategoryToJobs maps each observed category to its sorted distinct job
// titles. Rows missing either value are skipped.
func BuildCategoryToJobs(records []dataset.Record) map[string][]string {
	return group(records,
		func(r dataset.Record) string { return r.Category },
		func(r dataset.Record) string { return r.JobTitle },
	)
}

// BuildJobToCategories is the inverse of BuildCategoryToJobs.
func BuildJobToCategories(records []dataset.Record) map[string][]string {
	return group(records,
		func(r dataset.Record) string { return r.JobTitle },
		func(r dataset.Record) string { return r.Category },
	)
}

// ValidJobTitles returns the job titles selectable under category. It is
// empty when category is unset or unknown.
func (c *Catalog) ValidJobTitles(category string) []string {
	if category == "" {
		return nil
	}
	return c.CategoryToJobs[category]
}

// HasCategory reports whether category is one of the listed Categories.
func (c *Catalog) HasCategory(category string) bool {
	return sortedContains(c.Categories, category)
}

// HasState reports whether state is one of the listed States.
func (c *Catalog) HasState(state string) bool {
	return sortedContains(c.States, state)
}

func sortedContains(list []string, v string) bool {
	i := sort.SearchStrings(list, v)
	return i < len(list) && list[i] == v
}

func group(records []dataset.Record, key, value func(dataset.Record) string) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, r := range records {
		k, v := key(r), value(r)
		if k == "" || v == "" {
			continue
		}
		set, ok := sets[k]
		if !ok {
			set = make(map[string]struct{})
			sets[k] = set
		}
		set[v] = struct{}{}
	}
	out := make(map[string][]string, len(sets))
	for k, set := range sets {
		out[k] = sortedKeys(set)
	}
	return out
}

func distinct(records []dataset.Record, key func(dataset.Record) string) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		if k := key(r); k != "" {
			set[k] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
