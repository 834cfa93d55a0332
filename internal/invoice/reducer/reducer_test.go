package reducer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/invoicedoc/internal/clock"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
	"github.com/smallbiznis/invoicedoc/internal/invoice/statusrule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReducer(opts ...Option) (*Reducer, *clock.FakeClock) {
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clk), WithLogger(zap.NewNop())}, opts...)
	return New(opts...), clk
}

func consultingLine() domain.Action {
	return domain.AddLineItem(domain.AddLineItemInput{
		ID:                "L1",
		Description:       "Consulting",
		Quantity:          merge.Ptr(10.0),
		TaxPercent:        merge.Ptr(20.0),
		UnitPriceTaxExcl:  merge.Ptr(100.0),
		UnitPriceTaxIncl:  merge.Ptr(120.0),
		TotalPriceTaxExcl: merge.Ptr(1000.0),
		TotalPriceTaxIncl: merge.Ptr(1200.0),
		Currency:          "USD",
	})
}

func TestEndToEndLineItemLifecycle(t *testing.T) {
	r, _ := newTestReducer()
	doc := domain.NewDocument()

	doc, err := r.Apply(doc, consultingLine())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, doc.State.TotalPriceTaxExcl)
	assert.Equal(t, 1200.0, doc.State.TotalPriceTaxIncl)

	doc, err = r.Apply(doc, domain.DeleteLineItem(domain.DeleteLineItemInput{ID: "L1"}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, doc.State.TotalPriceTaxExcl)
	assert.Equal(t, 0.0, doc.State.TotalPriceTaxIncl)

	require.Len(t, doc.Operations, 2)
	assert.Equal(t, 0, doc.Operations[0].Index)
	assert.Equal(t, domain.ActionAddLineItem, doc.Operations[0].Type)
	assert.Equal(t, domain.ScopeGlobal, doc.Operations[0].Scope)
	assert.Equal(t, 1, doc.Operations[1].Index)
}

func TestSchemaViolationNeverReachesEngine(t *testing.T) {
	r, _ := newTestReducer()
	doc := domain.NewDocument()

	bad := domain.AddLineItem(domain.AddLineItemInput{ID: "L1", Description: "no prices", Currency: "EUR"})
	next, err := r.Apply(doc, bad)
	require.ErrorIs(t, err, domain.ErrSchemaValidation)
	assert.Equal(t, doc, next)

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	fields := map[string]bool{}
	for _, v := range schemaErr.Violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["quantity"])
	assert.True(t, fields["unitPriceTaxIncl"])

	_, err = r.Apply(doc, domain.EditStatus("SHIPPED"))
	require.ErrorIs(t, err, domain.ErrSchemaValidation)

	_, err = r.Apply(doc, domain.EditIssuer(domain.EditLegalEntityInput{ID: merge.Ptr("a"), CorpRegID: merge.Ptr("b")}))
	require.ErrorIs(t, err, domain.ErrSchemaValidation)

	_, err = r.Apply(doc, domain.Action{Type: domain.ActionAddRef, Input: domain.DeleteRefInput{ID: "x"}})
	require.ErrorIs(t, err, domain.ErrSchemaValidation)
}

func TestPartyEmailMustBeAddress(t *testing.T) {
	r, _ := newTestReducer()
	doc := domain.NewDocument()

	next, err := r.Apply(doc, domain.EditPayer(domain.EditLegalEntityInput{Email: merge.Ptr("not-an-email")}))
	require.ErrorIs(t, err, domain.ErrSchemaValidation)
	assert.Equal(t, doc, next)

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "email", schemaErr.Violations[0].Field)

	next, err = r.Apply(doc, domain.EditPayer(domain.EditLegalEntityInput{Email: merge.Ptr("ap@buyer.test")}))
	require.NoError(t, err)
	assert.Equal(t, "ap@buyer.test", *next.State.Payer.ContactInfo.Email)
}

func TestEngineRejectionLeavesDocumentUnchanged(t *testing.T) {
	r, _ := newTestReducer()
	doc, err := r.Apply(domain.NewDocument(), consultingLine())
	require.NoError(t, err)

	next, err := r.Apply(doc, consultingLine())
	require.ErrorIs(t, err, domain.ErrDuplicateID)
	assert.Equal(t, doc, next)
	assert.Len(t, next.Operations, 1)

	next, err = r.Apply(doc, domain.EditLineItem(domain.EditLineItemInput{ID: "L1", UnitPriceTaxIncl: merge.Ptr(999.0)}))
	require.ErrorIs(t, err, domain.ErrPriceInconsistent)
	assert.Equal(t, doc, next)

	_, err = r.Apply(doc, domain.Action{Type: "NOPE", Input: struct{}{}})
	require.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestReplayIsDeterministic(t *testing.T) {
	r, clk := newTestReducer()
	actions := []domain.Action{
		domain.EditInvoice(domain.EditInvoiceInput{InvoiceNo: merge.Ptr("INV-7"), Currency: merge.Ptr("EUR")}),
		domain.EditIssuer(domain.EditLegalEntityInput{Name: merge.Ptr("Seller"), City: merge.Ptr("Lyon")}),
		domain.EditIssuerBank(domain.EditBankInput{Name: merge.Ptr("Bank"), NameIntermediary: merge.Ptr("Corr")}),
		domain.AddRef(domain.AddRefInput{ID: "po", Value: "PO-9"}),
		consultingLine(),
		domain.SetLineItemTag(domain.SetLineItemTagInput{LineItemID: "L1", Dimension: "costCenter", Value: "ops"}),
		domain.EditStatus(domain.StatusIssued),
	}

	doc := domain.NewDocument()
	for _, action := range actions {
		var err error
		doc, err = r.Apply(doc, action)
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	encoded, err := json.Marshal(doc.Operations)
	require.NoError(t, err)
	var stored []domain.Operation
	require.NoError(t, json.Unmarshal(encoded, &stored))

	replayed, err := New().Replay(stored)
	require.NoError(t, err)
	assert.Equal(t, doc.State, replayed.State)
	assert.Equal(t, doc.Operations[len(doc.Operations)-1].Hash, replayed.Operations[len(replayed.Operations)-1].Hash)
	assert.True(t, doc.Operations[3].Timestamp.Equal(replayed.Operations[3].Timestamp))

	stored[2].Hash = "tampered"
	_, err = New().Replay(stored)
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestStrictTransitions(t *testing.T) {
	lenient, _ := newTestReducer()
	doc, err := lenient.Apply(domain.NewDocument(), domain.EditStatus(domain.StatusPaymentReceived))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentReceived, doc.State.Status)

	strict, _ := newTestReducer(WithTransitionTable(statusrule.DefaultTransitions()))
	doc, err = strict.Apply(domain.NewDocument(), domain.EditStatus(domain.StatusPaymentReceived))
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusDraft, doc.State.Status)

	doc, err = strict.Apply(doc, domain.EditStatus(domain.StatusIssued))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIssued, doc.State.Status)
}

func TestApplyAllStopsAtFirstFailure(t *testing.T) {
	r, _ := newTestReducer()
	doc, err := r.ApplyAll(domain.NewDocument(), []domain.Action{
		domain.AddRef(domain.AddRefInput{ID: "a", Value: "1"}),
		domain.AddRef(domain.AddRefInput{ID: "a", Value: "2"}),
		domain.AddRef(domain.AddRefInput{ID: "b", Value: "3"}),
	})
	require.ErrorIs(t, err, domain.ErrDuplicateID)
	assert.Len(t, doc.Operations, 1)
	assert.Equal(t, []domain.Ref{{ID: "a", Value: "1"}}, doc.State.Refs)
}

func TestDecodedActionsApply(t *testing.T) {
	r, _ := newTestReducer()
	action, err := domain.DecodeAction(domain.ActionEditPayerWallet, json.RawMessage(`{"chainName":"base","address":"0xabc"}`))
	require.NoError(t, err)

	doc, err := r.Apply(domain.NewDocument(), action)
	require.NoError(t, err)
	assert.Equal(t, "base", *doc.State.Payer.PaymentRouting.Wallet.ChainName)

	_, err = domain.DecodeAction(domain.ActionEditPayerWallet, json.RawMessage(`{"chain":"base"}`))
	require.ErrorIs(t, err, domain.ErrSchemaValidation)
}
