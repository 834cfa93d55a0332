package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchemaValidation   = errors.New("schema_validation")
	ErrUnknownAction      = errors.New("unknown_action")
	ErrDuplicateID        = errors.New("duplicate_id")
	ErrNotFound           = errors.New("not_found")
	ErrPriceInconsistent  = errors.New("price_inconsistent")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrTransitionBlocked  = errors.New("transition_blocked")
	ErrMalformedDocument  = errors.New("malformed_document")
	ErrMissingInvoiceRoot = errors.New("missing_invoice_root")
)

type FieldViolation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SchemaError reports an action payload that does not match its declared shape.
type SchemaError struct {
	Action     ActionType
	Violations []FieldViolation
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Code))
	}
	return fmt.Sprintf("%s: %s: %s", ErrSchemaValidation, e.Action, strings.Join(parts, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaValidation }

// PriceError reports which price check a line item failed.
type PriceError struct {
	LineItemID string
	Check      string
	Expected   string
	Actual     string
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("%s: line item %q: %s expected %s, got %s", ErrPriceInconsistent, e.LineItemID, e.Check, e.Expected, e.Actual)
}

func (e *PriceError) Unwrap() error { return ErrPriceInconsistent }
