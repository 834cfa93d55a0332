// Package sheet reads invoice line items from XLSX workbooks.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
	"github.com/xuri/excelize/v2"
)

const (
	colID          = "id"
	colDescription = "description"
	colQuantity    = "quantity"
	colTaxPercent  = "taxpercent"
	colUnitExcl    = "unitpricetaxexcl"
	colCurrency    = "currency"
)

var requiredColumns = []string{colDescription, colQuantity, colTaxPercent, colUnitExcl}

var ErrMissingColumn = errors.New("missing_column")

type Options struct {
	// Sheet defaults to the first sheet in the workbook.
	Sheet string
	// Currency is used for rows without a currency cell.
	Currency string
}

// ReadLineItems turns every non-empty row below the header into an
// ADD_LINE_ITEM action. Incl. prices and totals are derived from the excl.
// unit price, the quantity and the tax percent.
func ReadLineItems(r io.Reader, opts Options) ([]domain.Action, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readFile(f, opts)
}

// ReadLineItemsFile is ReadLineItems for a workbook on disk.
func ReadLineItemsFile(path string, opts Options) ([]domain.Action, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return readFile(f, opts)
}

func readFile(f *excelize.File, opts Options) ([]domain.Action, error) {
	name := opts.Sheet
	if name == "" {
		name = f.GetSheetName(0)
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := map[string]int{}
	for i, cell := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var explicit []string
	if i, ok := header[colID]; ok {
		for _, row := range rows[1:] {
			if i < len(row) {
				explicit = append(explicit, row[i])
			}
		}
	}
	ids := domain.NewLineIDs(explicit)

	var actions []domain.Action
	hundred := decimal.NewFromInt(100)
	for n, row := range rows[1:] {
		rowNum := n + 2
		cell := func(col string) string {
			i, ok := header[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if isBlank(row) {
			continue
		}

		id := ids.Next(cell(colID), rowNum-1)

		qty, err := number(cell(colQuantity), rowNum, colQuantity)
		if err != nil {
			return nil, err
		}
		pct, err := number(cell(colTaxPercent), rowNum, colTaxPercent)
		if err != nil {
			return nil, err
		}
		unitExcl, err := number(cell(colUnitExcl), rowNum, colUnitExcl)
		if err != nil {
			return nil, err
		}
		unitIncl := unitExcl.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred)))

		currency := cell(colCurrency)
		if currency == "" {
			currency = opts.Currency
		}

		actions = append(actions, domain.AddLineItem(domain.AddLineItemInput{
			ID:                id,
			Description:       cell(colDescription),
			TaxPercent:        merge.Ptr(pct.InexactFloat64()),
			Quantity:          merge.Ptr(qty.InexactFloat64()),
			Currency:          strings.ToUpper(currency),
			UnitPriceTaxExcl:  merge.Ptr(unitExcl.InexactFloat64()),
			UnitPriceTaxIncl:  merge.Ptr(unitIncl.InexactFloat64()),
			TotalPriceTaxExcl: merge.Ptr(qty.Mul(unitExcl).InexactFloat64()),
			TotalPriceTaxIncl: merge.Ptr(qty.Mul(unitIncl).InexactFloat64()),
		}))
	}
	return actions, nil
}

func number(raw string, row int, col string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("row %d: %s %q is not a number", row, col, raw)
	}
	return d, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
