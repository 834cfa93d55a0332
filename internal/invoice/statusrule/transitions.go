package statusrule

import (
	"slices"

	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
)

// TransitionTable is a hard allow-list of status moves. Setting a status to
// its current value is always allowed.
type TransitionTable map[domain.Status][]domain.Status

func (t TransitionTable) Allows(from, to domain.Status) bool {
	if from == to {
		return true
	}
	return slices.Contains(t[from], to)
}

// DefaultTransitions is the strict lifecycle used when hard enforcement is on.
func DefaultTransitions() TransitionTable {
	return TransitionTable{
		domain.StatusDraft: {
			domain.StatusIssued,
			domain.StatusCancelled,
		},
		domain.StatusIssued: {
			domain.StatusAccepted,
			domain.StatusRejected,
			domain.StatusAwaitingPayment,
			domain.StatusPaymentScheduled,
			domain.StatusCancelled,
		},
		domain.StatusAccepted: {
			domain.StatusAwaitingPayment,
			domain.StatusPaymentScheduled,
			domain.StatusCancelled,
		},
		domain.StatusRejected: {
			domain.StatusDraft,
			domain.StatusCancelled,
		},
		domain.StatusAwaitingPayment: {
			domain.StatusPaymentScheduled,
			domain.StatusPaymentSent,
			domain.StatusPaymentIssue,
			domain.StatusPaymentReceived,
			domain.StatusCancelled,
		},
		domain.StatusPaymentScheduled: {
			domain.StatusPaymentSent,
			domain.StatusPaymentIssue,
			domain.StatusCancelled,
		},
		domain.StatusPaymentSent: {
			domain.StatusPaymentReceived,
			domain.StatusPaymentIssue,
		},
		domain.StatusPaymentIssue: {
			domain.StatusAwaitingPayment,
			domain.StatusPaymentScheduled,
			domain.StatusPaymentSent,
			domain.StatusCancelled,
		},
	}
}
