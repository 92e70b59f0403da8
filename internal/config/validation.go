package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// FieldError is a single configuration problem.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects every configuration problem so startup can report all
// of them at once. It implements error.
type Validator struct {
	errors []FieldError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]FieldError, 0)}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []FieldError {
	return v.errors
}

func (v *Validator) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Require records an error when value is empty.
func (v *Validator) Require(key, value string) {
	if value == "" {
		v.AddError(key, "required when this storage driver is selected")
	}
}

// ValidateURL checks for an absolute http(s) URL. Empty values are skipped.
func (v *Validator) ValidateURL(key, value string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
		return
	}
	if parsed.Host == "" {
		v.AddError(key, "URL must include a host")
	}
}

// ValidatePort accepts "8080" or ":8080".
func (v *Validator) ValidatePort(key, value string) {
	port, err := strconv.Atoi(strings.TrimPrefix(value, ":"))
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

func (v *Validator) ValidateEnum(key, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(key, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	}
}
