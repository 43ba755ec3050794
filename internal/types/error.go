package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError names the document fields that failed validation. It is
// raised before any network call; no partial submission is possible.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(names, ", "))
}

func FieldError(field, reason string) error {
	return &ValidationError{
		Message: "validation error",
		Fields:  map[string]string{field: reason},
	}
}

func wrapValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}

	errorMap := make(map[string]string)
	for _, fieldError := range validationErrors {
		errorMap[fieldError.Field()] = fmt.Sprintf(
			"failed condition: %s",
			fieldError.Tag(),
		)
	}
	return &ValidationError{Message: "validation error", Fields: errorMap}
}
