package catalog

import (
	"errors"
	"net/http"
)

// Domain errors for catalog operations.
var (
	ErrStepNotFound   = errors.New("pipeline step not found")
	ErrStepDuplicate  = errors.New("pipeline step already exists")
	ErrClassNotFound  = errors.New("document class not found")
	ErrClassDuplicate = errors.New("document class already exists")
	ErrInvalidKind    = errors.New("invalid step kind")
)

// MapHTTPStatus maps catalog domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrStepNotFound) || errors.Is(err, ErrClassNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrStepDuplicate) || errors.Is(err, ErrClassDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidKind) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
