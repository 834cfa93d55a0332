package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicedoc/internal/clock"
	"github.com/smallbiznis/invoicedoc/internal/config"
	"github.com/smallbiznis/invoicedoc/internal/document/domain"
	"github.com/smallbiznis/invoicedoc/internal/document/lock"
	"github.com/smallbiznis/invoicedoc/internal/document/repository"
	invoicedomain "github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
	"github.com/smallbiznis/invoicedoc/internal/invoice/reducer"
	"github.com/smallbiznis/invoicedoc/internal/invoice/statusrule"
	"github.com/smallbiznis/invoicedoc/internal/invoice/ubl"
	"github.com/smallbiznis/invoicedoc/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		Locker: lock.NewMemoryLocker(),
		Clock:  clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
		Cfg:    config.Config{},
		Rules:  config.NewStaticRulesHolder(config.DefaultRulesConfig()),
	})
	return svc, db
}

func lineItem(id string) invoicedomain.Action {
	return invoicedomain.AddLineItem(invoicedomain.AddLineItemInput{
		ID:                id,
		Description:       "Consulting",
		Quantity:          merge.Ptr(2.0),
		TaxPercent:        merge.Ptr(10.0),
		UnitPriceTaxExcl:  merge.Ptr(100.0),
		UnitPriceTaxIncl:  merge.Ptr(110.0),
		TotalPriceTaxExcl: merge.Ptr(200.0),
		TotalPriceTaxIncl: merge.Ptr(220.0),
		Currency:          "EUR",
	})
}

func sampleActions() []invoicedomain.Action {
	return []invoicedomain.Action{
		invoicedomain.EditInvoice(invoicedomain.EditInvoiceInput{
			InvoiceNo:  merge.Ptr("INV-7"),
			DateIssued: merge.Ptr("2024-05-01"),
			DateDue:    merge.Ptr("2024-05-31"),
			Currency:   merge.Ptr("EUR"),
		}),
		invoicedomain.EditIssuer(invoicedomain.EditLegalEntityInput{
			ID:      merge.Ptr("DE811907980"),
			Name:    merge.Ptr("Seller GmbH"),
			City:    merge.Ptr("Berlin"),
			Country: merge.Ptr("DE"),
		}),
		invoicedomain.EditIssuerBank(invoicedomain.EditBankInput{
			AccountNum: merge.Ptr("DE89370400440532013000"),
			BIC:        merge.Ptr("DEUTDEFF"),
		}),
		invoicedomain.EditPayer(invoicedomain.EditLegalEntityInput{
			Name:    merge.Ptr("Buyer SARL"),
			Country: merge.Ptr("FR"),
		}),
		lineItem("L1"),
	}
}

func TestCreateApplyAndGet(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{Name: "  May invoice "})
	require.NoError(t, err)
	assert.Equal(t, "May invoice", created.Name)
	assert.Equal(t, 0, created.Revision)
	assert.Equal(t, invoicedomain.StatusDraft, created.State.Status)

	var snap domain.Snapshot
	for _, action := range sampleActions() {
		snap, err = svc.Apply(ctx, created.ID, action)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, snap.Revision)
	assert.Equal(t, 220.0, snap.State.TotalPriceTaxIncl)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Hash, got.Hash)
	assert.Equal(t, "INV-7", got.State.InvoiceNo)

	ops, err := svc.Operations(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, ops, 5)
	for i, op := range ops {
		assert.Equal(t, i, op.Index)
	}
	assert.Equal(t, invoicedomain.ActionAddLineItem, ops[4].Type)
	assert.Equal(t, snap.Hash, ops[4].Hash)
}

func TestApplyRejectionLeavesDocumentUnchanged(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateRequest{})
	require.NoError(t, err)
	before, err := svc.Apply(ctx, doc.ID, lineItem("L1"))
	require.NoError(t, err)

	_, err = svc.Apply(ctx, doc.ID, lineItem("L1"))
	assert.ErrorIs(t, err, invoicedomain.ErrDuplicateID)

	after, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision)
	assert.Equal(t, before.Hash, after.Hash)

	ops, err := svc.Operations(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestUnknownDocument(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Get(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Apply(ctx, "12345", lineItem("L1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Operations(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChangeStatusBlockedByRules(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateRequest{})
	require.NoError(t, err)

	report, err := svc.ValidateTransition(ctx, doc.ID, invoicedomain.StatusIssued)
	require.NoError(t, err)
	assert.True(t, report.Blocked)
	assert.NotEmpty(t, report.Results)
	for _, res := range report.Results {
		assert.False(t, res.IsValid)
	}

	_, err = svc.ChangeStatus(ctx, doc.ID, invoicedomain.StatusIssued)
	var terr *statusrule.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, invoicedomain.StatusDraft, terr.From)
	assert.NotEmpty(t, terr.Results)
	assert.ErrorIs(t, err, invoicedomain.ErrTransitionBlocked)

	got, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusDraft, got.State.Status)
	assert.Equal(t, 0, got.Revision)
}

func TestChangeStatusWithoutRules(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateRequest{})
	require.NoError(t, err)

	snap, err := svc.ChangeStatus(ctx, doc.ID, invoicedomain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusCancelled, snap.State.Status)
	assert.Equal(t, 1, snap.Revision)

	_, err = svc.ChangeStatus(ctx, doc.ID, invoicedomain.Status("ARCHIVED"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestImportAndExportUBL(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	state, err := reducer.New().ApplyAll(invoicedomain.NewDocument(), sampleActions())
	require.NoError(t, err)
	xml, err := ubl.Export(state.State, ubl.WithPDF([]byte("%PDF-1.4 sample")))
	require.NoError(t, err)

	doc, err := svc.Create(ctx, domain.CreateRequest{Name: "imported"})
	require.NoError(t, err)

	_, err = svc.ImportUBL(ctx, doc.ID, strings.NewReader("<Invoice><ID>broken"))
	assert.ErrorIs(t, err, invoicedomain.ErrMalformedDocument)
	unchanged, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unchanged.Revision)

	snap, err := svc.ImportUBL(ctx, doc.ID, strings.NewReader(xml))
	require.NoError(t, err)
	assert.Equal(t, "INV-7", snap.State.InvoiceNo)
	assert.Equal(t, 220.0, snap.State.TotalPriceTaxIncl)
	assert.Greater(t, snap.Revision, 0)

	out, err := svc.ExportUBL(ctx, doc.ID, domain.ExportRequest{})
	require.NoError(t, err)
	assert.Contains(t, out, "<cbc:ID>INV-7</cbc:ID>")
	assert.Contains(t, out, `filename="inv-7.pdf"`)
}

func TestVerifyDetectsTampering(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateRequest{})
	require.NoError(t, err)
	for _, action := range sampleActions() {
		_, err = svc.Apply(ctx, doc.ID, action)
		require.NoError(t, err)
	}

	res, err := svc.Verify(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Reason)
	assert.Equal(t, res.Stored, res.Replayed)

	require.NoError(t, db.Model(&domain.Operation{}).
		Where("seq = ?", 0).
		Update("input", `{"invoiceNo":"FORGED"}`).Error)

	res, err = svc.Verify(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Reason)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		doc, err := svc.Create(ctx, domain.CreateRequest{Name: fmt.Sprintf("doc-%d", i)})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}
	_, err := svc.ChangeStatus(ctx, ids[0], invoicedomain.StatusCancelled)
	require.NoError(t, err)

	first, err := svc.List(ctx, domain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Documents, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, ids[2], first.Documents[0].ID)

	second, err := svc.List(ctx, domain.ListRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Documents, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, ids[0], second.Documents[0].ID)

	cancelled, err := svc.List(ctx, domain.ListRequest{Status: "cancelled"})
	require.NoError(t, err)
	require.Len(t, cancelled.Documents, 1)
	assert.Equal(t, ids[0], cancelled.Documents[0].ID)

	_, err = svc.List(ctx, domain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestConcurrentApplyKeepsLogContiguous(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateRequest{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Apply(ctx, doc.ID, lineItem(fmt.Sprintf("L%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Revision)
	assert.Len(t, got.State.LineItems, 10)

	ops, err := svc.Operations(ctx, doc.ID)
	require.NoError(t, err)
	for i, op := range ops {
		assert.Equal(t, i, op.Index)
	}

	res, err := svc.Verify(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Reason)
}
