package utils

import (
	"errors"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// Validator returns the shared struct validator
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError is one failed struct tag
type FieldError struct {
	Field string
	Tag   string
	Param string
}

// ValidateStruct checks the validate tags of s. It returns nil when s is
// valid and the failing fields in declaration order otherwise.
func ValidateStruct(s interface{}) ([]FieldError, error) {
	err := Validator().Struct(s)
	if err == nil {
		return nil, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, err
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, ve := range validationErrors {
		fields = append(fields, FieldError{
			Field: ve.Field(),
			Tag:   ve.Tag(),
			Param: ve.Param(),
		})
	}
	return fields, nil
}

// ProcessValidationErrors flattens field errors into field -> tag for responses
func ProcessValidationErrors(fields []FieldError) map[string]string {
	errorResponse := make(map[string]string, len(fields))
	for _, fe := range fields {
		errorResponse[fe.Field] = fe.Tag
	}
	return errorResponse
}

// SanitizeString removes control characters other than tab and newlines
// from free text such as remarks
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
