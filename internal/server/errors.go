package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/invoicedoc/internal/document/domain"
	"github.com/smallbiznis/invoicedoc/internal/document/lock"
	invoicedomain "github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/statusrule"
	"github.com/smallbiznis/invoicedoc/internal/ratelimit"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var schemaErr *invoicedomain.SchemaError
	if errors.As(err, &schemaErr) {
		out := make([]ValidationError, 0, len(schemaErr.Violations))
		for _, v := range schemaErr.Violations {
			out = append(out, ValidationError{Field: v.Field, Code: v.Code, Message: v.Message})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "action payload does not match " + string(schemaErr.Action),
			Errors:  out,
		}
	}

	var transitionErr *statusrule.TransitionError
	if errors.As(err, &transitionErr) {
		out := make([]ValidationError, 0, len(transitionErr.Results))
		for _, res := range transitionErr.Results {
			out = append(out, ValidationError{
				Field:    res.Field,
				Code:     "rule_failed",
				Message:  res.Message,
				Severity: string(res.Severity),
			})
		}
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "transition_blocked",
			Message: "status change blocked by " + string(transitionErr.To) + " rules",
			Errors:  out,
		}
	}

	var priceErr *invoicedomain.PriceError
	if errors.As(err, &priceErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "price_inconsistent",
			Message: priceErr.Error(),
			Errors: []ValidationError{{
				Field:   priceErr.Check,
				Code:    "price_inconsistent",
				Message: "expected " + priceErr.Expected + ", got " + priceErr.Actual,
			}},
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, invoicedomain.ErrUnknownAction),
		errors.Is(err, documentdomain.ErrInvalidID),
		errors.Is(err, documentdomain.ErrInvalidName),
		errors.Is(err, documentdomain.ErrInvalidStatus):
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   validationErrorField(err),
				Code:    code,
				Message: "invalid value",
			}},
		}
	case errors.Is(err, invoicedomain.ErrMalformedDocument),
		errors.Is(err, invoicedomain.ErrMissingInvoiceRoot):
		return http.StatusBadRequest, errorPayload{
			Type:    "malformed_document",
			Message: err.Error(),
		}
	case errors.Is(err, invoicedomain.ErrPriceInconsistent),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrTransitionBlocked):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    validationErrorCode(err),
			Message: err.Error(),
		}
	case errors.Is(err, invoicedomain.ErrDuplicateID),
		errors.Is(err, documentdomain.ErrConcurrentEdit),
		errors.Is(err, lock.ErrLockTimeout):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many writes to this invoice, retry later",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the response type and the first field code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 && payload.Errors[0].Code != "" {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, documentdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		ErrInvalidRequest,
		invoicedomain.ErrUnknownAction,
		invoicedomain.ErrPriceInconsistent,
		invoicedomain.ErrInvalidTransition,
		invoicedomain.ErrTransitionBlocked,
		documentdomain.ErrInvalidID,
		documentdomain.ErrInvalidName,
		documentdomain.ErrInvalidStatus,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrUnknownAction):
		return "type"
	case errors.Is(err, documentdomain.ErrInvalidID):
		return "id"
	case errors.Is(err, documentdomain.ErrInvalidName):
		return "name"
	case errors.Is(err, documentdomain.ErrInvalidStatus):
		return "status"
	default:
		return "request"
	}
}
