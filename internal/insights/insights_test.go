package insights

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
)

func scenarioTable() *dataset.Table {
	return dataset.NewTable([]dataset.Record{
		{JobTitle: "Software Engineer", Category: "Tech", State: "Selangor", AvgSalary: 8000, HasSalary: true},
		{JobTitle: "Software Engineer", Category: "Tech", State: "Penang", AvgSalary: 6000, HasSalary: true},
		{JobTitle: "Intern", Category: "Tech", State: "Selangor", AvgSalary: 1200, HasSalary: true},
	})
}

func TestMeanByState_Scenario(t *testing.T) {
	got := MeanByState(scenarioTable())
	require.Len(t, got, 2)
	assert.Equal(t, GroupMean{Key: "Penang", Mean: 6000, Count: 1}, got[0])
	assert.Equal(t, GroupMean{Key: "Selangor", Mean: 4600, Count: 2}, got[1])
}

func TestTopJobTitles_Scenario(t *testing.T) {
	got := TopJobTitles(scenarioTable(), 1)
	require.Len(t, got, 1)
	assert.Equal(t, "Software Engineer", got[0].Key)
	assert.Equal(t, 7000.0, got[0].Mean)
}

func TestMeanByCategory(t *testing.T) {
	table := dataset.NewTable([]dataset.Record{
		{JobTitle: "A", Category: "Finance", State: "Johor", AvgSalary: 3000, HasSalary: true},
		{JobTitle: "B", Category: "Tech", State: "Johor", AvgSalary: 7000, HasSalary: true},
		{JobTitle: "C", Category: "Finance", State: "Johor", AvgSalary: 5000, HasSalary: true},
		{JobTitle: "D", Category: "", State: "Johor", AvgSalary: 99999, HasSalary: true},
		{JobTitle: "E", Category: "Retail", State: "Johor", HasSalary: false},
	})
	got := MeanByCategory(table)
	assert.Equal(t, []GroupMean{
		{Key: "Tech", Mean: 7000, Count: 1},
		{Key: "Finance", Mean: 4000, Count: 2},
	}, got)
}

func TestTiesKeepFirstSeenOrder(t *testing.T) {
	table := dataset.NewTable([]dataset.Record{
		{JobTitle: "Zeta", Category: "X", State: "S", AvgSalary: 5000, HasSalary: true},
		{JobTitle: "Alpha", Category: "X", State: "S", AvgSalary: 5000, HasSalary: true},
		{JobTitle: "Mid", Category: "X", State: "S", AvgSalary: 6000, HasSalary: true},
	})
	got := TopJobTitles(table, 10)
	keys := []string{got[0].Key, got[1].Key, got[2].Key}
	assert.Equal(t, []string{"Mid", "Zeta", "Alpha"}, keys)
}

func TestTopJobTitles_TruncatesToTen(t *testing.T) {
	recs := make([]dataset.Record, 0, 15)
	for i := 0; i < 15; i++ {
		recs = append(recs, dataset.Record{
			JobTitle: fmt.Sprintf("title-%02d", i), Category: "C", State: "S",
			AvgSalary: float64(1000 * (i + 1)), HasSalary: true,
		})
	}
	got := TopJobTitles(dataset.NewTable(recs), TopJobTitlesLimit)
	require.Len(t, got, 10)
	assert.Equal(t, "title-14", got[0].Key)
	assert.Equal(t, "title-05", got[9].Key)
}

func TestDistribution_ClampsForDisplayOnly(t *testing.T) {
	table := dataset.NewTable([]dataset.Record{
		{JobTitle: "A", Category: "C", State: "S", AvgSalary: 45000, HasSalary: true},
		{JobTitle: "B", Category: "C", State: "S", AvgSalary: 3000, HasSalary: true},
		{JobTitle: "C", Category: "C", State: "S", HasSalary: false},
	})
	assert.Equal(t, []float64{20000, 3000}, Distribution(table))
	assert.Equal(t, 45000.0, table.Records()[0].AvgSalary)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 999, 1000, 2500, 20000}, 1000)
	require.Len(t, bins, 21)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 1, bins[1].Count)
	assert.Equal(t, 1, bins[2].Count)
	assert.Equal(t, 1, bins[20].Count)
	assert.Empty(t, Histogram(nil, 1000))
}

func TestBuild(t *testing.T) {
	r := Build(scenarioTable())
	assert.Equal(t, 3, r.Rows)
	assert.Len(t, r.ByState, 2)
	assert.Len(t, r.ByCategory, 1)
	assert.Equal(t, []float64{8000, 6000, 1200}, r.Distribution)
	assert.Len(t, r.TopJobTitles, 2)
}
