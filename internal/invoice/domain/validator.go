package domain

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{2,4}$`)

// NewValidator returns a validator that understands the action payload tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("currency_code", func(fl validator.FieldLevel) bool {
		return currencyCodePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return IsISODate(fl.Field().String())
	})
	_ = v.RegisterValidation("invoice_status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	return v
}

// IsISODate accepts a calendar date or an RFC 3339 timestamp.
func IsISODate(value string) bool {
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

// ValidateInput checks an action payload against its struct tags.
func ValidateInput(v *validator.Validate, action Action) error {
	if action.Input == nil {
		return &SchemaError{
			Action:     action.Type,
			Violations: []FieldViolation{{Field: "input", Code: "required", Message: "input is required"}},
		}
	}
	err := v.Struct(action.Input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &SchemaError{
			Action:     action.Type,
			Violations: []FieldViolation{{Field: "input", Code: "invalid", Message: err.Error()}},
		}
	}
	violations := make([]FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, FieldViolation{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fe.Error(),
		})
	}
	return &SchemaError{Action: action.Type, Violations: violations}
}
