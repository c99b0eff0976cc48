// Package selection implements the form's selection state machine as pure
// transitions over an explicit State value. Nothing here holds state between
// calls: callers load a State, apply one transition and store the result.
//
// Stored values are never trusted on read. Every accessor re-derives the
// valid options from the current Options, so a job title left over from a
// previous category (or a value dropped by a dataset reload) reads as unset
// instead of producing an error.
package selection

import (
	"strings"
	"unicode"
)

// Display placeholders for "no selection". They map to the empty string
// internally and never collide with real option values.
const (
	NoCategory = "-- Select category --"
	NoJobTitle = "-- Select job title --"
	NoState    = "-- Select state --"
)

// Experience bounds and default, in years.
const (
	DefaultExperience = 3
	MinExperience     = 0
	MaxExperience     = 10
)

const (
	internshipPrefix = "internship"
	internWord       = "intern"
)

// Options is the read side of the derived indices that transitions consult.
type Options interface {
	ValidJobTitles(category string) []string
	HasCategory(category string) bool
	HasState(state string) bool
}

// State is one session's in-progress selection. An empty string means unset.
// Generation counts resets and lets clients key input widgets so a reset
// discards any widget-local values.
type State struct {
	Category   string `json:"category,omitempty"`
	JobTitle   string `json:"job_title,omitempty"`
	Experience int    `json:"experience"`
	Region     string `json:"state,omitempty"`
	Generation uint64 `json:"generation"`
}

// New returns the default state.
func New() State {
	return State{Experience: DefaultExperience}
}

// SetCategory selects a category, or clears it for the placeholder. The
// stored job title is left alone; EffectiveJobTitle decides whether it still
// applies.
func SetCategory(s State, category string) State {
	s.Category = normalize(category, NoCategory)
	return s
}

// SetJobTitle selects a job title from the titles valid for the current
// category. With no category, or a title outside the valid list, the attempt
// is ignored and the job title reads as unset. Moving off an internship
// drops the pinned 0 and restores DefaultExperience.
func SetJobTitle(s State, jobTitle string, opts Options) State {
	leaving := IsInternship(s.JobTitle)
	jobTitle = normalize(jobTitle, NoJobTitle)
	if jobTitle == "" || !contains(opts.ValidJobTitles(EffectiveCategory(s, opts)), jobTitle) {
		s.JobTitle = ""
	} else {
		s.JobTitle = jobTitle
	}
	if leaving && !IsInternship(s.JobTitle) {
		s.Experience = DefaultExperience
	}
	return s
}

// SetExperience stores years of experience clamped to [0, 10]. For
// internships the value is pinned to 0.
func SetExperience(s State, years int, opts Options) State {
	if IsInternship(EffectiveJobTitle(s, opts)) {
		s.Experience = 0
		return s
	}
	s.Experience = clamp(years, MinExperience, MaxExperience)
	return s
}

// SetRegion selects a state/region, or clears it for the placeholder.
func SetRegion(s State, region string) State {
	s.Region = normalize(region, NoState)
	return s
}

// Reset clears every selection back to its default and bumps Generation by
// exactly one.
func Reset(s State) State {
	return State{
		Experience: DefaultExperience,
		Generation: s.Generation + 1,
	}
}

// EffectiveCategory returns the stored category if it still exists.
func EffectiveCategory(s State, opts Options) string {
	if s.Category == "" || !opts.HasCategory(s.Category) {
		return ""
	}
	return s.Category
}

// EffectiveJobTitle returns the stored job title only if it is valid for the
// effective category.
func EffectiveJobTitle(s State, opts Options) string {
	if s.JobTitle == "" {
		return ""
	}
	if !contains(opts.ValidJobTitles(EffectiveCategory(s, opts)), s.JobTitle) {
		return ""
	}
	return s.JobTitle
}

// EffectiveRegion returns the stored state/region if it still exists.
func EffectiveRegion(s State, opts Options) string {
	if s.Region == "" || !opts.HasState(s.Region) {
		return ""
	}
	return s.Region
}

// EffectiveExperience is 0 for internships, otherwise the stored value
// clamped to range.
func EffectiveExperience(s State, opts Options) int {
	if IsInternship(EffectiveJobTitle(s, opts)) {
		return 0
	}
	return clamp(s.Experience, MinExperience, MaxExperience)
}

// ExperienceInput describes how the experience control should render.
type ExperienceInput struct {
	Value    int    `json:"value"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Editable bool   `json:"editable"`
	Help     string `json:"help,omitempty"`
}

// ExperienceControl returns the experience control for the current state.
func ExperienceControl(s State, opts Options) ExperienceInput {
	if IsInternship(EffectiveJobTitle(s, opts)) {
		return ExperienceInput{
			Value:    0,
			Min:      0,
			Max:      0,
			Editable: false,
			Help:     "Internship experience is always 0 years.",
		}
	}
	return ExperienceInput{
		Value:    EffectiveExperience(s, opts),
		Min:      MinExperience,
		Max:      MaxExperience,
		Editable: true,
	}
}

// IsReady reports whether a prediction may be requested. Experience always
// has a value and does not take part.
func IsReady(s State, opts Options) bool {
	return EffectiveCategory(s, opts) != "" &&
		EffectiveJobTitle(s, opts) != "" &&
		EffectiveRegion(s, opts) != ""
}

// IsInternship reports whether a normalized job title names an internship:
// it starts with "internship" (any case) or its first word is "intern".
func IsInternship(jobTitle string) bool {
	t := strings.ToLower(strings.TrimSpace(jobTitle))
	if strings.HasPrefix(t, internshipPrefix) {
		return true
	}
	words := strings.FieldsFunc(t, func(r rune) bool { return !unicode.IsLetter(r) })
	return len(words) > 0 && words[0] == internWord
}

// Resolved is the state as it should be read: stale values removed and the
// internship rule applied.
type Resolved struct {
	Category   string `json:"category"`
	JobTitle   string `json:"job_title"`
	Experience int    `json:"experience"`
	Region     string `json:"state"`
	Ready      bool   `json:"ready"`
	Generation uint64 `json:"generation"`
}

// Resolve applies every read-side rule to s.
func Resolve(s State, opts Options) Resolved {
	return Resolved{
		Category:   EffectiveCategory(s, opts),
		JobTitle:   EffectiveJobTitle(s, opts),
		Experience: EffectiveExperience(s, opts),
		Region:     EffectiveRegion(s, opts),
		Ready:      IsReady(s, opts),
		Generation: s.Generation,
	}
}

func normalize(v, placeholder string) string {
	v = strings.TrimSpace(v)
	if v == placeholder {
		return ""
	}
	return v
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
