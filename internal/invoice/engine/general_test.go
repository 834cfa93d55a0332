package engine

import (
	"testing"

	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditInvoiceMergesHeader(t *testing.T) {
	inv, err := EditInvoice(domain.NewInvoice(), domain.EditInvoiceInput{
		InvoiceNo:  merge.Ptr("INV-1"),
		DateIssued: merge.Ptr("2024-01-01"),
		Currency:   merge.Ptr("EUR"),
	})
	require.NoError(t, err)

	inv, err = EditInvoice(inv, domain.EditInvoiceInput{DateDue: merge.Ptr("2024-01-31")})
	require.NoError(t, err)
	assert.Equal(t, "INV-1", inv.InvoiceNo)
	assert.Equal(t, "2024-01-01", inv.DateIssued)
	assert.Equal(t, "2024-01-31", inv.DateDue)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Nil(t, inv.DateDelivered)
}

func TestEditStatusIsUnconditional(t *testing.T) {
	inv, err := EditStatus(domain.NewInvoice(), domain.EditStatusInput{Status: domain.StatusPaymentReceived})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentReceived, inv.Status)
}

func TestRefs(t *testing.T) {
	inv, err := AddRef(domain.NewInvoice(), domain.AddRefInput{ID: "po", Value: "PO-1"})
	require.NoError(t, err)
	inv, err = AddRef(inv, domain.AddRefInput{ID: "contract", Value: "C-9"})
	require.NoError(t, err)

	_, err = AddRef(inv, domain.AddRefInput{ID: "po", Value: "PO-2"})
	require.ErrorIs(t, err, domain.ErrDuplicateID)

	same, err := EditRef(inv, domain.EditRefInput{ID: "missing", Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, inv, same)

	inv, err = EditRef(inv, domain.EditRefInput{ID: "po", Value: "PO-3"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Ref{{ID: "po", Value: "PO-3"}, {ID: "contract", Value: "C-9"}}, inv.Refs)

	same, err = DeleteRef(inv, domain.DeleteRefInput{ID: "missing"})
	require.NoError(t, err)
	assert.Len(t, same.Refs, 2)

	inv, err = DeleteRef(inv, domain.DeleteRefInput{ID: "po"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Ref{{ID: "contract", Value: "C-9"}}, inv.Refs)
}
