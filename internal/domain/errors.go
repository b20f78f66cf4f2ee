package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUnsupportedChannel = errors.New("unsupported channel")
)

// MissingVariablesError reports template placeholders that were not supplied.
// It is raised before any persistence or provider call.
type MissingVariablesError struct {
	TemplateName string
	Missing      []string
}

func (e *MissingVariablesError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("template %q is missing variables: %s", e.TemplateName, strings.Join(e.Missing, ", "))
}

func (e *MissingVariablesError) Unwrap() error { return ErrValidation }
