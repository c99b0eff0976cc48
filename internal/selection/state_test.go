package selection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
)

func testOptions() *catalog.Catalog {
	return catalog.Build([]dataset.Record{
		{JobTitle: "Software Engineer", Category: "Tech", State: "Selangor", AvgSalary: 8000, HasSalary: true},
		{JobTitle: "Software Engineer", Category: "Tech", State: "Penang", AvgSalary: 6000, HasSalary: true},
		{JobTitle: "Intern", Category: "Tech", State: "Selangor", AvgSalary: 1200, HasSalary: true},
		{JobTitle: "Internship - Audit", Category: "Finance", State: "Johor", AvgSalary: 900, HasSalary: true},
		{JobTitle: "Accountant", Category: "Finance", State: "Johor", AvgSalary: 4200, HasSalary: true},
		{JobTitle: "International Sales Manager", Category: "Sales", State: "Penang", AvgSalary: 9000, HasSalary: true},
	})
}

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.Equal(t, State{Experience: 3}, s)
	assert.False(t, IsReady(s, testOptions()))
}

func TestReset(t *testing.T) {
	opts := testOptions()
	states := []State{
		New(),
		{Category: "Tech", JobTitle: "Intern", Experience: 0, Region: "Penang", Generation: 4},
		{Category: "gone", JobTitle: "stale", Experience: 99, Region: "nowhere", Generation: 1 << 40},
	}
	for _, prev := range states {
		got := Reset(prev)
		assert.Equal(t, State{Experience: DefaultExperience, Generation: prev.Generation + 1}, got)
		assert.False(t, IsReady(got, opts))
	}
}

func TestIsReady(t *testing.T) {
	opts := testOptions()
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"nothing", New(), false},
		{"category only", State{Category: "Tech", Experience: 3}, false},
		{"no region", State{Category: "Tech", JobTitle: "Software Engineer", Experience: 3}, false},
		{"no job title", State{Category: "Tech", Region: "Penang", Experience: 3}, false},
		{"complete", State{Category: "Tech", JobTitle: "Software Engineer", Region: "Penang", Experience: 3}, true},
		{"experience irrelevant", State{Category: "Tech", JobTitle: "Software Engineer", Region: "Penang", Experience: 0}, true},
		{"stale job title", State{Category: "Finance", JobTitle: "Software Engineer", Region: "Johor"}, false},
		{"unknown region", State{Category: "Tech", JobTitle: "Software Engineer", Region: "Atlantis"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReady(tt.state, opts))
		})
	}
}

func TestSetCategory_StaleJobTitleReadsUnset(t *testing.T) {
	opts := testOptions()
	s := SetCategory(New(), "Tech")
	s = SetJobTitle(s, "Software Engineer", opts)
	require.Equal(t, "Software Engineer", EffectiveJobTitle(s, opts))

	s = SetCategory(s, "Finance")
	assert.Equal(t, "Software Engineer", s.JobTitle, "stored value is not cleared")
	assert.Equal(t, "", EffectiveJobTitle(s, opts))
	assert.False(t, IsReady(SetRegion(s, "Johor"), opts))

	// switching back revives the stored title
	s = SetCategory(s, "Tech")
	assert.Equal(t, "Software Engineer", EffectiveJobTitle(s, opts))
}

func TestSetCategory_Placeholder(t *testing.T) {
	s := SetCategory(SetCategory(New(), "Tech"), NoCategory)
	assert.Equal(t, "", s.Category)
}

func TestSetJobTitle(t *testing.T) {
	opts := testOptions()

	// no category: every attempt is ignored
	s := SetJobTitle(New(), "Software Engineer", opts)
	assert.Equal(t, "", s.JobTitle)

	s = SetCategory(s, "Tech")
	s = SetJobTitle(s, "Accountant", opts)
	assert.Equal(t, "", s.JobTitle, "title from another category")

	s = SetJobTitle(s, "Software Engineer", opts)
	assert.Equal(t, "Software Engineer", s.JobTitle)

	s = SetJobTitle(s, NoJobTitle, opts)
	assert.Equal(t, "", s.JobTitle)
}

func TestInternshipForcesZeroExperience(t *testing.T) {
	opts := testOptions()
	s := SetCategory(New(), "Finance")
	s = SetJobTitle(s, "Internship - Audit", opts)

	ctl := ExperienceControl(s, opts)
	assert.Equal(t, ExperienceInput{Value: 0, Min: 0, Max: 0, Editable: false, Help: "Internship experience is always 0 years."}, ctl)
	assert.Equal(t, 0, EffectiveExperience(s, opts))

	s = SetExperience(s, 7, opts)
	assert.Equal(t, 0, s.Experience)
	assert.Equal(t, 0, EffectiveExperience(s, opts))
}

func TestLeavingInternshipRestoresDefaultExperience(t *testing.T) {
	opts := testOptions()
	s := SetJobTitle(SetCategory(New(), "Finance"), "Accountant", opts)
	s = SetExperience(s, 7, opts)

	s = SetJobTitle(s, "Internship - Audit", opts)
	assert.Equal(t, 0, EffectiveExperience(s, opts))

	s = SetJobTitle(s, "Accountant", opts)
	assert.Equal(t, DefaultExperience, s.Experience)
	assert.Equal(t, DefaultExperience, EffectiveExperience(s, opts))

	// reselecting a regular title keeps the chosen value
	s = SetExperience(s, 6, opts)
	s = SetJobTitle(s, "Accountant", opts)
	assert.Equal(t, 6, s.Experience)
}

func TestExperienceClampedOtherwise(t *testing.T) {
	opts := testOptions()
	s := SetJobTitle(SetCategory(New(), "Finance"), "Accountant", opts)

	for _, tt := range []struct{ in, want int }{{-4, 0}, {0, 0}, {5, 5}, {10, 10}, {25, 10}} {
		got := SetExperience(s, tt.in, opts)
		assert.Equal(t, tt.want, got.Experience)
		assert.Equal(t, tt.want, EffectiveExperience(got, opts))
	}

	ctl := ExperienceControl(s, opts)
	assert.True(t, ctl.Editable)
	assert.Equal(t, 0, ctl.Min)
	assert.Equal(t, 10, ctl.Max)
	assert.Equal(t, DefaultExperience, ctl.Value)
}

func TestIsInternship(t *testing.T) {
	assert.True(t, IsInternship("internship"))
	assert.True(t, IsInternship("Internship - Marketing"))
	assert.True(t, IsInternship("INTERNSHIP"))
	assert.True(t, IsInternship("Intern"))
	assert.True(t, IsInternship("intern, software"))
	assert.False(t, IsInternship("International Sales Manager"))
	assert.False(t, IsInternship("Internal Auditor"))
	assert.False(t, IsInternship("Software Intern"))
	assert.False(t, IsInternship(""))
}

func TestScenario_InternPenang(t *testing.T) {
	opts := testOptions()
	s := New()
	s = SetCategory(s, "Tech")
	s = SetJobTitle(s, "Intern", opts)
	s = SetRegion(s, "Penang")

	r := Resolve(s, opts)
	assert.Equal(t, Resolved{Category: "Tech", JobTitle: "Intern", Experience: 0, Region: "Penang", Ready: true}, r)
}

func TestStateJSONRoundTrip(t *testing.T) {
	s := State{Category: "Tech", JobTitle: "Intern", Experience: 0, Region: "Penang", Generation: 2}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"Tech","job_title":"Intern","experience":0,"state":"Penang","generation":2}`, string(data))

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}
