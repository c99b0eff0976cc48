package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/insights"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print the market insights report",
	Long:  "Loads the reference dataset and prints mean salary by state and category, the salary distribution and the top paying job titles.",
	RunE:  runInsights,
}

var insightsJSON bool

func init() {
	insightsCmd.Flags().BoolVar(&insightsJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, _ []string) error {
	db, err := openPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	source, err := datasetSource(cfg.Dataset, db)
	if err != nil {
		return err
	}
	table, err := source.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading reference dataset: %w", err)
	}

	report := insights.Build(table)
	out := cmd.OutOrStdout()
	if insightsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, report)
}

func printReport(w io.Writer, r insights.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%d records)\n", app.InsightsCaption, r.Rows)

	section := func(title string, groups []insights.GroupMean) {
		fmt.Fprintf(tw, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
		for _, g := range groups {
			fmt.Fprintf(tw, "%s\t%s\t(%d)\n", g.Key, app.FormatRM(g.Mean), g.Count)
		}
	}
	section("Average salary by state", r.ByState)
	section("Average salary by category", r.ByCategory)
	section("Top paying job titles", r.TopJobTitles)

	title := "Salary distribution"
	fmt.Fprintf(tw, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
	for _, b := range r.Histogram {
		fmt.Fprintf(tw, "%s – %s\t%d\n", app.FormatRM(b.Low), app.FormatRM(b.High), b.Count)
	}
	return tw.Flush()
}
