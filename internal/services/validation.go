package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendServiceError maps the service error taxonomy onto HTTP statuses.
// Unclassified errors are reported as a generic 500.
func SendServiceError(w http.ResponseWriter, err error) {
	var svcErr *ServiceError
	message := "Internal server error"
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	switch {
	case errors.Is(err, ErrValidation):
		SendErrorResponse(w, message, http.StatusBadRequest, err)
	case errors.Is(err, ErrNotFound):
		SendErrorResponse(w, message, http.StatusNotFound, nil)
	case errors.Is(err, ErrConflict):
		SendErrorResponse(w, message, http.StatusConflict, nil)
	case errors.Is(err, ErrDependency):
		SendErrorResponse(w, message, http.StatusBadGateway, nil)
	case errors.Is(err, ErrConcurrencyTimeout):
		w.Header().Set("Retry-After", "1")
		SendErrorResponse(w, message, http.StatusServiceUnavailable, nil)
	default:
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
