package app

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/predictor"
)

// Display copy for the prediction result and the form.
const (
	Disclaimer = "This is an estimated salary. Actual compensation may vary " +
		"based on company, skills, and market conditions."
	ExperienceCaption = "Experience is grouped into ranges (intern, junior, mid, senior) " +
		"to provide stable and realistic salary predictions."
	ActionsCaption  = "Predict uses historical salary data. Reset clears all selections."
	InsightsCaption = "Insights based on historical job salary data."
	FeedbackCaption = "Help us improve this salary prediction app by sharing your feedback!"
)

var printer = message.NewPrinter(language.English)

// FormatRM renders whole ringgit with thousands separators, e.g. "RM 4,500".
func FormatRM(v float64) string {
	return printer.Sprintf("RM %.0f", v)
}

func present(q predictor.Query, est predictor.Estimate) Prediction {
	return Prediction{
		Salary:     est.Salary,
		Low:        est.Low,
		High:       est.High,
		SalaryText: "Predicted Salary: " + FormatRM(est.Salary),
		RangeText:  fmt.Sprintf("Expected Salary Range: %s – %s", FormatRM(est.Low), FormatRM(est.High)),
		Summary: fmt.Sprintf("This estimate is based on historical data for '%s' roles in the '%s' category "+
			"in %s, with around %d years of experience.", q.JobTitle, q.Category, q.State, q.Experience),
		Disclaimer: Disclaimer,
		Query:      q,
	}
}
