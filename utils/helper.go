package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ProcessValidationErrors flattens validator errors into field -> rule. Other
// errors (malformed JSON) come back under "body".
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["body"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool, len(slice))
	out := make([]T, 0, len(slice))
	for _, v := range slice {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
