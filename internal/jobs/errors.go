package jobs

import (
	"errors"
	"net/http"
)

// Domain errors for job operations.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobDuplicate      = errors.New("job already exists")
	ErrJobTerminal       = errors.New("job already finished")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrInvalidPriority   = errors.New("invalid job priority")
)

// MapHTTPStatus maps job errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrJobDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrJobTerminal), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidPriority):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
