package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUndefinedTable(t *testing.T) {
	missing := &pq.Error{Code: "42P01", Message: `relation "salary_reference" does not exist`}
	assert.True(t, IsUndefinedTable(missing))
	assert.True(t, IsUndefinedTable(fmt.Errorf("query: %w", missing)))
	assert.False(t, IsUndefinedTable(&pq.Error{Code: "23505"}))
	assert.False(t, IsUndefinedTable(errors.New("connection refused")))
	assert.False(t, IsUndefinedTable(nil))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"salary_reference"`, QuoteIdentifier("salary_reference"))
	assert.Equal(t, `"public"."salary_reference"`, QuoteIdentifier("public.salary_reference"))
}
