package engine

import (
	"encoding/json"
	"testing"

	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestEditLegalEntityKeepsUnsuppliedFields(t *testing.T) {
	inv, err := EditLegalEntity(domain.NewInvoice(), Issuer, domain.EditLegalEntityInput{
		ID:            merge.Ptr("DE123"),
		Name:          merge.Ptr("Acme GmbH"),
		StreetAddress: merge.Ptr("Main St 1"),
		City:          merge.Ptr("Berlin"),
		PostalCode:    merge.Ptr("10115"),
		Country:       merge.Ptr("DE"),
		Email:         merge.Ptr("billing@acme.test"),
	})
	require.NoError(t, err)
	before := inv.Issuer

	inv, err = EditLegalEntity(inv, Issuer, domain.EditLegalEntityInput{City: merge.Ptr("Munich")})
	require.NoError(t, err)

	after := inv.Issuer
	assert.Equal(t, "Munich", *after.Address.City)
	after.Address.City = before.Address.City
	assert.Equal(t, mustJSON(t, before), mustJSON(t, after))
	assert.Equal(t, domain.LegalEntity{}, inv.Payer)
}

func TestEditLegalEntityIdentityVariants(t *testing.T) {
	inv, err := EditLegalEntity(domain.NewInvoice(), Payer, domain.EditLegalEntityInput{ID: merge.Ptr("VAT-1")})
	require.NoError(t, err)
	assert.Equal(t, domain.IDKindTaxID, inv.Payer.ID.Kind)

	inv, err = EditLegalEntity(inv, Payer, domain.EditLegalEntityInput{CorpRegID: merge.Ptr("HRB 42")})
	require.NoError(t, err)
	assert.Equal(t, domain.LegalEntityID{Kind: domain.IDKindCorpRegID, Value: "HRB 42"}, *inv.Payer.ID)
	assert.JSONEq(t, `{"corpRegId":"HRB 42"}`, mustJSON(t, inv.Payer.ID))
}

func TestEditBankInitializesRouting(t *testing.T) {
	inv, err := EditBank(domain.NewInvoice(), Issuer, domain.EditBankInput{BIC: merge.Ptr("DEUTDEFF")})
	require.NoError(t, err)

	require.NotNil(t, inv.Issuer.PaymentRouting)
	assert.Nil(t, inv.Issuer.PaymentRouting.Wallet)
	bank := inv.Issuer.PaymentRouting.Bank
	require.NotNil(t, bank)
	assert.Equal(t, "", bank.AccountNum)
	assert.Equal(t, "", bank.Name)
	assert.Equal(t, "DEUTDEFF", *bank.BIC)
	assert.Nil(t, bank.IntermediaryBank)
	assert.Nil(t, bank.Address)
}

func TestEditBankNestedIntermediaryMerge(t *testing.T) {
	inv, err := EditBank(domain.NewInvoice(), Issuer, domain.EditBankInput{
		Name:                   merge.Ptr("Parent Bank"),
		AccountNum:             merge.Ptr("DE89370400440532013000"),
		BIC:                    merge.Ptr("COBADEFF"),
		City:                   merge.Ptr("Frankfurt"),
		NameIntermediary:       merge.Ptr("Correspondent"),
		AccountNumIntermediary: merge.Ptr("999"),
		CityIntermediary:       merge.Ptr("New York"),
	})
	require.NoError(t, err)
	bank := inv.Issuer.PaymentRouting.Bank
	assert.Equal(t, "Parent Bank", bank.Name)
	assert.Equal(t, "Frankfurt", *bank.Address.City)
	assert.Equal(t, "Correspondent", bank.IntermediaryBank.Name)
	assert.Equal(t, "New York", *bank.IntermediaryBank.Address.City)
	assert.Nil(t, bank.IntermediaryBank.BIC)

	// parent edit leaves intermediary alone
	inv, err = EditBank(inv, Issuer, domain.EditBankInput{Name: merge.Ptr("Renamed")})
	require.NoError(t, err)
	bank = inv.Issuer.PaymentRouting.Bank
	assert.Equal(t, "Renamed", bank.Name)
	assert.Equal(t, "DE89370400440532013000", bank.AccountNum)
	assert.Equal(t, "Correspondent", bank.IntermediaryBank.Name)
	assert.Equal(t, "999", bank.IntermediaryBank.AccountNum)

	// intermediary edit leaves parent alone
	inv, err = EditBank(inv, Issuer, domain.EditBankInput{BICIntermediary: merge.Ptr("CHASUS33")})
	require.NoError(t, err)
	bank = inv.Issuer.PaymentRouting.Bank
	assert.Equal(t, "COBADEFF", *bank.BIC)
	assert.Equal(t, "CHASUS33", *bank.IntermediaryBank.BIC)
	assert.Equal(t, "Frankfurt", *bank.Address.City)
	assert.Equal(t, "New York", *bank.IntermediaryBank.Address.City)
}

func TestEditWalletKeepsBank(t *testing.T) {
	inv, err := EditBank(domain.NewInvoice(), Payer, domain.EditBankInput{AccountNum: merge.Ptr("123")})
	require.NoError(t, err)
	inv, err = EditWallet(inv, Payer, domain.EditWalletInput{ChainName: merge.Ptr("base"), ChainID: merge.Ptr("8453")})
	require.NoError(t, err)
	inv, err = EditWallet(inv, Payer, domain.EditWalletInput{Address: merge.Ptr("0x0000000000000000000000000000000000000001")})
	require.NoError(t, err)

	routing := inv.Payer.PaymentRouting
	assert.Equal(t, "123", routing.Bank.AccountNum)
	assert.Equal(t, "base", *routing.Wallet.ChainName)
	assert.Equal(t, "8453", *routing.Wallet.ChainID)
	assert.Nil(t, routing.Wallet.Rpc)
	assert.Nil(t, inv.Issuer.PaymentRouting)
}

func TestPartyEditsDoNotMutateInput(t *testing.T) {
	inv, err := EditBank(domain.NewInvoice(), Issuer, domain.EditBankInput{Name: merge.Ptr("A"), City: merge.Ptr("X")})
	require.NoError(t, err)
	snapshot := mustJSON(t, inv)

	_, err = EditBank(inv, Issuer, domain.EditBankInput{Name: merge.Ptr("B"), City: merge.Ptr("Y")})
	require.NoError(t, err)
	_, err = EditLegalEntity(inv, Issuer, domain.EditLegalEntityInput{Name: merge.Ptr("Other")})
	require.NoError(t, err)
	assert.Equal(t, snapshot, mustJSON(t, inv))
}
