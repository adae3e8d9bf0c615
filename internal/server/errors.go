package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/startnerve/coursefactory/internal/credits"
	"github.com/startnerve/coursefactory/internal/outline"
	"github.com/startnerve/coursefactory/internal/store"
)

// ErrValidation indicates a request failed validation.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var insufficient *credits.ErrInsufficientCredits
	if errors.As(err, &insufficient) {
		return http.StatusForbidden
	}
	var disallowed *store.ErrDisallowedFileType
	if errors.As(err, &disallowed) {
		return http.StatusBadRequest
	}
	var invalid *ErrValidation
	if errors.As(err, &invalid) {
		return http.StatusBadRequest
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusBadRequest
	}
	// Unparseable model output is a server-side failure: the client sent a
	// valid request and got nothing usable back.
	if errors.Is(err, outline.ErrNoModules) {
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
