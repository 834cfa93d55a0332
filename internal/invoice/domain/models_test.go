package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalEntityIDJSON(t *testing.T) {
	b, err := json.Marshal(TaxID("DE123"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"taxId":"DE123"}`, string(b))

	var id LegalEntityID
	require.NoError(t, json.Unmarshal([]byte(`{"corpRegId":"HRB 1"}`), &id))
	assert.Equal(t, LegalEntityID{Kind: IDKindCorpRegID, Value: "HRB 1"}, id)

	assert.Error(t, json.Unmarshal([]byte(`{"taxId":"a","corpRegId":"b"}`), &id))
	assert.Error(t, json.Unmarshal([]byte(`{"vat":"a"}`), &id))

	_, err = json.Marshal(LegalEntityID{Kind: "other"})
	assert.Error(t, err)
}

func TestNewInvoiceShape(t *testing.T) {
	inv := NewInvoice()
	b, err := json.Marshal(inv)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "DRAFT", raw["status"])
	assert.Equal(t, "", raw["invoiceNo"])
	assert.Equal(t, []any{}, raw["lineItems"])
	assert.Equal(t, []any{}, raw["refs"])
	assert.Nil(t, raw["paymentAccount"])
}

func TestCloneIsDeep(t *testing.T) {
	city := "Paris"
	label := "Ops"
	inv := NewInvoice()
	inv.Issuer.ID = TaxID("FR1")
	inv.Issuer.PaymentRouting = &PaymentRouting{Bank: &Bank{
		Address:          &Address{City: &city},
		IntermediaryBank: &IntermediaryBank{Name: "Corr"},
	}}
	inv.LineItems = []LineItem{{ID: "A", Tags: []LineItemTag{{Dimension: "cc", Value: "1", Label: &label}}}}

	clone := inv.Clone()
	*clone.Issuer.PaymentRouting.Bank.Address.City = "Lyon"
	clone.Issuer.PaymentRouting.Bank.IntermediaryBank.Name = "Other"
	clone.Issuer.ID.Value = "FR2"
	*clone.LineItems[0].Tags[0].Label = "Eng"
	clone.LineItems[0].ID = "B"

	assert.Equal(t, "Paris", *inv.Issuer.PaymentRouting.Bank.Address.City)
	assert.Equal(t, "Corr", inv.Issuer.PaymentRouting.Bank.IntermediaryBank.Name)
	assert.Equal(t, "FR1", inv.Issuer.ID.Value)
	assert.Equal(t, "Ops", *inv.LineItems[0].Tags[0].Label)
	assert.Equal(t, "A", inv.LineItems[0].ID)
}

func TestEffectiveBIC(t *testing.T) {
	swift := "SWIFTXXX"
	bic := "BICCODEX"
	assert.Equal(t, "", (*Bank)(nil).EffectiveBIC())
	assert.Equal(t, swift, (&Bank{SWIFT: &swift}).EffectiveBIC())
	assert.Equal(t, bic, (&Bank{BIC: &bic, SWIFT: &swift}).EffectiveBIC())
}

func TestValidateInputUsesJSONNames(t *testing.T) {
	v := NewValidator()
	err := ValidateInput(v, AddRef(AddRefInput{ID: "x"}))
	require.ErrorIs(t, err, ErrSchemaValidation)
	schemaErr := err.(*SchemaError)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "value", schemaErr.Violations[0].Field)
	assert.Equal(t, "required", schemaErr.Violations[0].Code)

	assert.NoError(t, ValidateInput(v, EditInvoice(EditInvoiceInput{DateIssued: ptr("2024-05-01"), Currency: ptr("USDS")})))
	assert.Error(t, ValidateInput(v, EditInvoice(EditInvoiceInput{DateIssued: ptr("05/01/2024")})))
	assert.Error(t, ValidateInput(v, EditInvoice(EditInvoiceInput{Currency: ptr("eur")})))
	assert.Error(t, ValidateInput(v, Action{Type: ActionAddRef}))
}

func ptr(s string) *string { return &s }
