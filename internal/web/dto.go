package web

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Request bodies for the session API. An empty or placeholder value clears
// the selection.
type CategoryRequest struct {
	Category string `json:"category" validate:"max=200"`
}

type JobTitleRequest struct {
	JobTitle string `json:"job_title" validate:"max=200"`
}

type ExperienceRequest struct {
	Experience *int `json:"experience" validate:"required"`
}

type StateRequest struct {
	State string `json:"state" validate:"max=200"`
}

// FormRequest is the HTML form submission.
type FormRequest struct {
	Category   string `validate:"max=200"`
	JobTitle   string `validate:"max=200"`
	Experience *int   `validate:"omitnil,gte=-1000,lte=1000"`
	State      string `validate:"max=200"`
}

var validate = validator.New()

// describeValidation returns the first failing field and rule.
func describeValidation(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fmt.Sprintf("validation error: %s - %s", ve[0].Field(), ve[0].Tag())
	}
	return "validation error: invalid request"
}
