// Package config provides configuration management for the monitor.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error with user-friendly message.
type ValidationError struct {
	Field   string      // Field path (e.g., "collection.concurrency")
	Tag     string      // Validation tag that failed (e.g., "required", "gte")
	Value   interface{} // Actual value that failed validation
	Message string      // User-friendly error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// validate is the package-level validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("timezone", validateTimezone)
	validate.RegisterValidation("clock", validateClock)
}

// Validate validates the configuration and returns user-friendly error messages.
func Validate(cfg *Config) error {
	var validationErrors ValidationErrors

	if err := validate.Struct(cfg); err != nil {
		validationErrors = append(validationErrors, collectFieldErrors(err)...)
	}

	// Business rules that span several fields
	if errs := validateMail(cfg); len(errs) > 0 {
		validationErrors = append(validationErrors, errs...)
	}

	if errs := validateDurations(cfg); len(errs) > 0 {
		validationErrors = append(validationErrors, errs...)
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

// collectFieldErrors converts validator errors into ValidationErrors.
func collectFieldErrors(err error) ValidationErrors {
	var out ValidationErrors
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			out = append(out, &ValidationError{
				Field:   formatFieldName(fe.Namespace()),
				Tag:     fe.Tag(),
				Value:   fe.Value(),
				Message: translateError(fe),
			})
		}
	}
	return out
}

// validateTimezone is a custom validator for timezone strings.
func validateTimezone(fl validator.FieldLevel) bool {
	tz := fl.Field().String()
	if tz == "" {
		return true // Empty is allowed, will use default
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// validateClock is a custom validator for HH:MM strings.
func validateClock(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	_, err := ParseClock(fl.Field().String())
	return err == nil
}

// ParseClock parses an HH:MM time of day into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// validateMail checks that an enabled SMTP relay has a sender address.
func validateMail(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	mail := cfg.Notifications.Mail
	if mail.Host != "" && mail.From == "" {
		errors = append(errors, &ValidationError{
			Field:   "notifications.mail.from",
			Tag:     "required_with_host",
			Value:   "",
			Message: "from is required when notifications.mail.host is set",
		})
	}

	return errors
}

// validateServer validates the serve command intervals.
func validateDurations(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"collection.freshness_window", cfg.Collection.FreshnessWindow},
		{"server.collect_interval", cfg.Server.CollectInterval},
		{"server.evaluate_interval", cfg.Server.EvaluateInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errors = append(errors, &ValidationError{
				Field:   d.name,
				Tag:     "gt",
				Value:   d.value,
				Message: "duration must be greater than 0",
			})
		}
	}

	return errors
}

// formatFieldName converts the validator field namespace to a user-friendly format.
// Example: "Config.Collection.Concurrency" -> "collection.concurrency"
func formatFieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // Remove root struct name
	}

	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return strings.Join(parts, ".")
}

// translateError converts a validator.FieldError to a user-friendly message.
func translateError(fe validator.FieldError) string {
	field := formatFieldName(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "url":
		return fmt.Sprintf("invalid URL format: %v", fe.Value())
	case "email":
		return fmt.Sprintf("invalid email address: %v", fe.Value())
	case "gte":
		return fmt.Sprintf("value must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("value must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	case "dive":
		return fmt.Sprintf("invalid value in list: %v", fe.Value())
	case "timezone":
		return fmt.Sprintf("invalid timezone: %v", fe.Value())
	case "clock":
		return fmt.Sprintf("invalid time of day: %v", fe.Value())
	default:
		return fmt.Sprintf("validation failed on '%s' tag for field '%s'", fe.Tag(), field)
	}
}
