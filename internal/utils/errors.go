package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError marks bad client input
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err, or anything it wraps, is a ValidationError
// or a validator failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var fe validator.ValidationErrors
	return errors.As(err, &fe)
}

// FieldErrors renders validator failures as field -> message. It returns nil
// when err carries no validator failures.
func FieldErrors(err error) map[string]string {
	var fe validator.ValidationErrors
	if !errors.As(err, &fe) {
		return nil
	}
	out := make(map[string]string, len(fe))
	for _, f := range fe {
		out[strings.ToLower(f.Field())] = describe(f)
	}
	return out
}

func describe(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + f.Param()
	case "gte":
		return "must be at least " + f.Param()
	case "lte":
		return "must be at most " + f.Param()
	case "gt":
		return "must be greater than " + f.Param()
	default:
		return "failed " + f.Tag() + " validation"
	}
}
