package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrNotReady, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrPredictionUnavailable, http.StatusServiceUnavailable},
		{ErrDatasetUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", ErrNotReady), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestAppError(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusUnprocessableEntity, "experience %d out of range", 42)
	assert.Equal(t, "invalid input: experience 42 out of range", err.Error())
	assert.True(t, Is(err, ErrInvalidInput))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatusCode(err))

	var appErr *AppError
	assert.True(t, As(fmt.Errorf("ctx: %w", err), &appErr))
	assert.Equal(t, "experience 42 out of range", appErr.Message)
}
