// Package validator wraps go-playground/validator with the custom rules and
// the human readable messages used by the API and the CLI.
package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/cancelready/backend/processor"
	"github.com/go-playground/validator/v10"
)

// vendorKeyRegex matches the vendor keys accepted by the service: generated
// keys (vk_ + hex) and the identifiers of vendors onboarded by older clients.
var vendorKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// ValidationError represents an individual validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a slice of ValidationError.
type ValidationErrors []ValidationError

// Error returns a string representation of the validation errors.
func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return sb.String()
}

// Validator is a wrapper around the go-playground/validator package.
type Validator struct {
	validator *validator.Validate
}

// New creates a new Validator instance. Field names in the errors are taken
// from the json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("nonblank", validateNonBlank)
	_ = v.RegisterValidation("vendorkey", validateVendorKey)
	_ = v.RegisterValidation("processor", validateProcessor)
	return &Validator{
		validator: v,
	}
}

// Validate validates a struct. It returns nil or ValidationErrors.
func (v *Validator) Validate(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err
	}
	validationErrors := make(ValidationErrors, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fieldErr.Field(),
			Message: getErrorMessage(fieldErr),
		})
	}
	return validationErrors
}

// validateNonBlank fails on strings made only of white space. Empty strings
// are valid, use the required tag for them.
func validateNonBlank(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || strings.TrimSpace(s) != ""
}

// validateVendorKey validates the vendor key charset.
func validateVendorKey(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	return vendorKeyRegex.MatchString(fl.Field().String())
}

// validateProcessor accepts the processor names a vendor can be configured
// with.
func validateProcessor(fl validator.FieldLevel) bool {
	switch processor.Type(fl.Field().String()) {
	case processor.Stripe, processor.Paddle, processor.None:
		return true
	default:
		return false
	}
}

// getErrorMessage returns a human-readable error message for a validation error.
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required", "nonblank":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("Must be at least %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters long", err.Param())
	case "vendorkey":
		return "Must contain only letters, digits, '-' and '_'"
	case "processor":
		return "Must be one of stripe, paddle or none"
	case "required_if":
		return fmt.Sprintf("This field is required when %s", err.Param())
	default:
		return fmt.Sprintf("Invalid value: %s", err.Tag())
	}
}
