// Package validation runs client-side form checks before a request leaves the
// portal. Failures come back as *domain.APIError of kind validation so callers
// handle them exactly like a backend 422.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/laundrypro/portal/internal/core/domain"
)

var (
	shared     *validator.Validate
	sharedOnce sync.Once
)

func instance() *validator.Validate {
	sharedOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(fieldName)
		shared = v
	})
	return shared
}

// Struct validates s and returns nil or a validation *domain.APIError whose
// Fields are keyed by the JSON field name.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldError(fe)
		}
	}
	return &domain.APIError{
		Kind:    domain.KindValidation,
		Message: "please correct the highlighted fields",
		Fields:  fields,
	}
}

// Var validates a single value against tag, reporting it under field.
func Var(field string, value any, tag string) error {
	err := instance().Var(value, tag)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		// Var errors carry no field name.
		msg := field + fieldError(ve[0])
		return &domain.APIError{
			Kind:    domain.KindValidation,
			Message: msg,
			Fields:  map[string]string{field: msg},
		}
	}
	return err
}

// Echo adapts the shared validator to echo.Validator so handlers can call
// c.Validate on bound forms.
type Echo struct{}

var _ echo.Validator = Echo{}

func (Echo) Validate(i any) error { return Struct(i) }

// fieldName reports JSON names; fields hidden from JSON fall back to the
// lower-camel Go name (confirmPassword).
func fieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		if f.Name == "" {
			return ""
		}
		return strings.ToLower(f.Name[:1]) + f.Name[1:]
	}
	return name
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "eqfield":
		return "passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
