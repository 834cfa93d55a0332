package server

import (
	"strconv"
	"strings"

	invoicedomain "github.com/smallbiznis/invoicedoc/internal/invoice/domain"
)

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

// parseStatus accepts any letter case; the result may still be invalid.
func parseStatus(value string) invoicedomain.Status {
	return invoicedomain.Status(strings.ToUpper(strings.TrimSpace(value)))
}
