package engine

import (
	"fmt"

	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
)

// EditInvoice merges header fields. Totals are untouched.
func EditInvoice(inv domain.Invoice, in domain.EditInvoiceInput) (domain.Invoice, error) {
	next := inv.Clone()
	next.InvoiceNo = merge.Value(in.InvoiceNo, next.InvoiceNo)
	next.DateIssued = merge.Value(in.DateIssued, next.DateIssued)
	next.DateDue = merge.Value(in.DateDue, next.DateDue)
	next.DateDelivered = merge.Pick(in.DateDelivered, next.DateDelivered)
	next.Currency = merge.Value(in.Currency, next.Currency)
	next.PaymentAccount = merge.Pick(in.PaymentAccount, next.PaymentAccount)
	return next, nil
}

// EditStatus sets the status unconditionally. Transition rules are checked
// by the caller before the action is built.
func EditStatus(inv domain.Invoice, in domain.EditStatusInput) (domain.Invoice, error) {
	next := inv.Clone()
	next.Status = in.Status
	return next, nil
}

func AddRef(inv domain.Invoice, in domain.AddRefInput) (domain.Invoice, error) {
	if inv.RefIndex(in.ID) >= 0 {
		return inv, fmt.Errorf("%w: ref %q", domain.ErrDuplicateID, in.ID)
	}
	next := inv.Clone()
	next.Refs = append(next.Refs, domain.Ref{ID: in.ID, Value: in.Value})
	return next, nil
}

// EditRef is a no-op when the ref does not exist.
func EditRef(inv domain.Invoice, in domain.EditRefInput) (domain.Invoice, error) {
	idx := inv.RefIndex(in.ID)
	if idx < 0 {
		return inv, nil
	}
	next := inv.Clone()
	next.Refs[idx].Value = in.Value
	return next, nil
}

// DeleteRef is a no-op when the ref does not exist.
func DeleteRef(inv domain.Invoice, in domain.DeleteRefInput) (domain.Invoice, error) {
	idx := inv.RefIndex(in.ID)
	if idx < 0 {
		return inv, nil
	}
	next := inv.Clone()
	next.Refs = append(next.Refs[:idx], next.Refs[idx+1:]...)
	return next, nil
}
