// Package utils provides utility functions used throughout the application.
package utils

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	validationErrorMessages = map[string]string{
		"required":   "%s is required",
		"min":        "%s must be at least %s",
		"max":        "%s must be at most %s",
		"oneof":      "%s must be one of: %s",
		"media_type": "%s must be either images or videos",
	}
)

func init() {
	validate = validator.New()

	// Report query parameter names rather than Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = validate.RegisterValidation("media_type", validateMediaType)
}

// Validate performs validation on the given struct and returns validation errors.
func Validate(s any) error {
	return validate.Struct(s)
}

// FormatValidationErrors formats validation errors into a field → message map.
func FormatValidationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"general": err.Error()}
	}

	result := make(map[string]string, len(errs))
	for _, e := range errs {
		result[e.Field()] = validationMessage(e)
	}
	return result
}

func validationMessage(e validator.FieldError) string {
	format, ok := validationErrorMessages[e.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag())
	}
	if strings.Count(format, "%s") == 2 {
		return fmt.Sprintf(format, e.Field(), e.Param())
	}
	return fmt.Sprintf(format, e.Field())
}

func validateMediaType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "images", "videos":
		return true
	}
	return false
}
