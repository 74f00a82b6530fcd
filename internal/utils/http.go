// Package utils provides utility functions used throughout the application.
package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// APIResponse represents a standard API response.
type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// ValidationErrorItem represents a single validation error.
type ValidationErrorItem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RespondWithJSON sends a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; all we can do is record it.
			GetLogger().Error("Failed to encode JSON response", err)
		}
	}
}

// RespondWithError sends an error response with the given status code and message.
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	response := APIResponse{
		Success: false,
		Error: map[string]string{
			"message": message,
		},
	}
	RespondWithJSON(w, statusCode, response)
}

// RespondWithAppError maps err to a status code and a non-leaking message.
func RespondWithAppError(w http.ResponseWriter, err error, fallback string) {
	RespondWithError(w, StatusCode(err), PublicMessage(err, fallback))
}

// RespondWithValidationError sends a validation error response.
func RespondWithValidationError(w http.ResponseWriter, err error) {
	var validationErrors []ValidationErrorItem

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationErrorItem{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
	} else {
		validationErrors = append(validationErrors, ValidationErrorItem{
			Field:   "general",
			Message: PublicMessage(err, "Invalid request"),
		})
	}

	message := "Validation failed"
	if len(validationErrors) == 1 {
		message = validationErrors[0].Message
	}

	response := APIResponse{
		Success: false,
		Error: map[string]any{
			"message": message,
			"errors":  validationErrors,
		},
	}

	RespondWithJSON(w, http.StatusBadRequest, response)
}
