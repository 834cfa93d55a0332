package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/reducer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleOps = `[
  {"type": "EDIT_INVOICE", "input": {"invoiceNo": "INV-9", "dateIssued": "2024-05-01", "currency": "EUR"}},
  {"type": "ADD_LINE_ITEM", "input": {
    "id": "L1", "description": "Consulting", "currency": "EUR",
    "quantity": 2, "taxPercent": 10,
    "unitPriceTaxExcl": 100, "unitPriceTaxIncl": 110,
    "totalPriceTaxExcl": 200, "totalPriceTaxIncl": 220
  }}
]`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestReplayPrintsState(t *testing.T) {
	ops := writeFile(t, "ops.json", []byte(sampleOps))

	out, err := execute(t, "replay", ops)
	require.NoError(t, err)

	var state domain.Invoice
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, "INV-9", state.InvoiceNo)
	assert.Equal(t, domain.StatusDraft, state.Status)
	assert.Equal(t, 200.0, state.TotalPriceTaxExcl)
	assert.Equal(t, 220.0, state.TotalPriceTaxIncl)
}

func TestReplayVerifiesRecordedLog(t *testing.T) {
	ops := writeFile(t, "ops.json", []byte(sampleOps))
	logPath := filepath.Join(t.TempDir(), "document.json")

	_, err := execute(t, "replay", ops, "--log", "-o", logPath)
	require.NoError(t, err)

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	var doc domain.Document
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.Operations, 2)

	recordedPath := writeFile(t, "recorded.json", mustJSON(t, doc.Operations))
	out, err := execute(t, "replay", recordedPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"invoiceNo": "INV-9"`)

	doc.Operations[1].Hash = strings.Repeat("0", 64)
	tampered := writeFile(t, "tampered.json", mustJSON(t, doc.Operations))
	_, err = execute(t, "replay", tampered)
	assert.ErrorIs(t, err, reducer.ErrHashMismatch)
}

func TestReplayRejectsUnknownAction(t *testing.T) {
	ops := writeFile(t, "ops.json", []byte(`[{"type": "RENAME_EVERYTHING", "input": {}}]`))

	_, err := execute(t, "replay", ops)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestExportImportRoundTrip(t *testing.T) {
	ops := writeFile(t, "ops.json", []byte(sampleOps))
	pdf := writeFile(t, "in.pdf", []byte("%PDF-1.7 attachment"))
	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "invoice.xml")
	importedPath := filepath.Join(dir, "imported.json")
	pdfOut := filepath.Join(dir, "out.pdf")

	_, err := execute(t, "export", ops, "--pdf", pdf, "-o", xmlPath)
	require.NoError(t, err)

	xml, err := os.ReadFile(xmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(xml), "<cbc:ID>INV-9</cbc:ID>")

	_, err = execute(t, "import", xmlPath, "-o", importedPath, "--pdf-out", pdfOut)
	require.NoError(t, err)

	attachment, err := os.ReadFile(pdfOut)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 attachment", string(attachment))

	b, err := os.ReadFile(importedPath)
	require.NoError(t, err)
	var raw []domain.RawAction
	require.NoError(t, json.Unmarshal(b, &raw))
	require.NotEmpty(t, raw)
	assert.Equal(t, domain.ActionEditInvoice, raw[0].Type)

	out, err := execute(t, "replay", importedPath)
	require.NoError(t, err)
	var state domain.Invoice
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, "INV-9", state.InvoiceNo)
	assert.Equal(t, "EUR", state.Currency)
	require.Len(t, state.LineItems, 1)
	assert.Equal(t, 220.0, state.TotalPriceTaxIncl)
}

func TestImportMalformedDocument(t *testing.T) {
	xmlPath := writeFile(t, "broken.xml", []byte(`<Invoice><ID>1</Invoice>`))

	_, err := execute(t, "import", xmlPath)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestValidate(t *testing.T) {
	ops := writeFile(t, "ops.json", []byte(sampleOps))

	out, err := execute(t, "validate", ops, "--to", "issued")
	assert.ErrorIs(t, err, errBlocked)
	assert.Contains(t, out, "DRAFT -> ISSUED")
	assert.Contains(t, out, "ok    invoiceNo")
	assert.Contains(t, out, "warning country")

	out, err = execute(t, "validate", ops, "--to", "CANCELLED")
	require.NoError(t, err)
	assert.Contains(t, out, "no rules apply")

	_, err = execute(t, "validate", ops, "--to", "ARCHIVED")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = execute(t, "validate", ops)
	assert.Error(t, err)
}

func TestValidateWithRulesFile(t *testing.T) {
	ops := writeFile(t, "ops.json", []byte(sampleOps))
	rules := writeFile(t, "rules.yml", []byte("rules:\n  blockOnWarning: false\n"))

	out, err := execute(t, "validate", ops, "--to", "ISSUED", "--rules", rules, "--json")
	require.NoError(t, err)

	var report validateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Blocked)
	assert.Equal(t, domain.StatusIssued, report.To)
	assert.NotEmpty(t, report.Results)
}

func TestLines(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"description", "quantity", "taxPercent", "unitPriceTaxExcl"},
		{"Hosting", 3, 20, 10},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "items.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	out, err := execute(t, "lines", path, "--currency", "EUR")
	require.NoError(t, err)

	var raw []domain.RawAction
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, domain.ActionAddLineItem, raw[0].Type)

	action, err := raw[0].Decode()
	require.NoError(t, err)
	item := action.Input.(domain.AddLineItemInput)
	assert.Equal(t, "Hosting", item.Description)
	assert.Equal(t, 36.0, *item.TotalPriceTaxIncl)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "invoicectl "+version+"\n", out)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
