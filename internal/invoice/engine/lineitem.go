// Package engine holds the pure state transitions applied by the reducer.
// Every function returns a new invoice and leaves its input untouched; on
// error the returned invoice is the unchanged input.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
)

var one = decimal.NewFromInt(1)

func AddLineItem(inv domain.Invoice, in domain.AddLineItemInput) (domain.Invoice, error) {
	if inv.LineItemIndex(in.ID) >= 0 {
		return inv, fmt.Errorf("%w: line item %q", domain.ErrDuplicateID, in.ID)
	}
	item := domain.LineItem{
		ID:                in.ID,
		Description:       in.Description,
		Quantity:          merge.Deref(in.Quantity),
		TaxPercent:        merge.Deref(in.TaxPercent),
		Currency:          in.Currency,
		UnitPriceTaxExcl:  merge.Deref(in.UnitPriceTaxExcl),
		UnitPriceTaxIncl:  merge.Deref(in.UnitPriceTaxIncl),
		TotalPriceTaxExcl: merge.Deref(in.TotalPriceTaxExcl),
		TotalPriceTaxIncl: merge.Deref(in.TotalPriceTaxIncl),
	}
	if err := ValidatePrices(item); err != nil {
		return inv, err
	}

	next := inv.Clone()
	next.LineItems = append(next.LineItems, item)
	return recomputeTotals(next), nil
}

// EditLineItem merges the non-null fields of in into the matching item and
// re-validates prices on the merged result.
func EditLineItem(inv domain.Invoice, in domain.EditLineItemInput) (domain.Invoice, error) {
	idx := inv.LineItemIndex(in.ID)
	if idx < 0 {
		return inv, fmt.Errorf("%w: line item %q", domain.ErrNotFound, in.ID)
	}

	current := inv.LineItems[idx]
	item := current.Clone()
	item.Description = merge.Value(in.Description, current.Description)
	item.Quantity = merge.Value(in.Quantity, current.Quantity)
	item.TaxPercent = merge.Value(in.TaxPercent, current.TaxPercent)
	item.Currency = merge.Value(in.Currency, current.Currency)
	item.UnitPriceTaxExcl = merge.Value(in.UnitPriceTaxExcl, current.UnitPriceTaxExcl)
	item.UnitPriceTaxIncl = merge.Value(in.UnitPriceTaxIncl, current.UnitPriceTaxIncl)
	item.TotalPriceTaxExcl = merge.Value(in.TotalPriceTaxExcl, current.TotalPriceTaxExcl)
	item.TotalPriceTaxIncl = merge.Value(in.TotalPriceTaxIncl, current.TotalPriceTaxIncl)
	if err := ValidatePrices(item); err != nil {
		return inv, err
	}

	next := inv.Clone()
	next.LineItems[idx] = item
	return recomputeTotals(next), nil
}

// DeleteLineItem removes the item if present.
func DeleteLineItem(inv domain.Invoice, in domain.DeleteLineItemInput) (domain.Invoice, error) {
	next := inv.Clone()
	items := next.LineItems[:0]
	for _, item := range next.LineItems {
		if item.ID != in.ID {
			items = append(items, item)
		}
	}
	next.LineItems = items
	return recomputeTotals(next), nil
}

func SetLineItemTag(inv domain.Invoice, in domain.SetLineItemTagInput) (domain.Invoice, error) {
	idx := inv.LineItemIndex(in.LineItemID)
	if idx < 0 {
		return inv, fmt.Errorf("%w: line item %q", domain.ErrNotFound, in.LineItemID)
	}

	next := inv.Clone()
	item := &next.LineItems[idx]
	tags := make([]domain.LineItemTag, 0, len(item.Tags)+1)
	replaced := false
	for _, tag := range item.Tags {
		if tag.Dimension != in.Dimension {
			tags = append(tags, tag)
			continue
		}
		replaced = true
		if in.Value != "" {
			tags = append(tags, domain.LineItemTag{Dimension: in.Dimension, Value: in.Value, Label: merge.Pick(in.Label, tag.Label)})
		}
	}
	if !replaced && in.Value != "" {
		tags = append(tags, domain.LineItemTag{Dimension: in.Dimension, Value: in.Value, Label: merge.Pick(in.Label, nil)})
	}
	item.Tags = tags
	return next, nil
}

// ValidatePrices checks, at two decimals, that totals equal quantity times
// unit prices and that the excl. price is the incl. price net of tax.
func ValidatePrices(item domain.LineItem) error {
	qty := decimal.NewFromFloat(item.Quantity)
	unitExcl := decimal.NewFromFloat(item.UnitPriceTaxExcl)
	unitIncl := decimal.NewFromFloat(item.UnitPriceTaxIncl)
	calcExcl := qty.Mul(unitExcl)
	calcIncl := qty.Mul(unitIncl)

	if err := equal2(item.ID, "totalPriceTaxIncl", calcIncl, decimal.NewFromFloat(item.TotalPriceTaxIncl)); err != nil {
		return err
	}
	if err := equal2(item.ID, "totalPriceTaxExcl", calcExcl, decimal.NewFromFloat(item.TotalPriceTaxExcl)); err != nil {
		return err
	}

	divisor := one.Add(decimal.NewFromFloat(item.TaxPercent).Div(decimal.NewFromInt(100)))
	if err := equal2(item.ID, "unitPriceTaxExcl", unitIncl.Div(divisor), unitExcl); err != nil {
		return err
	}
	return equal2(item.ID, "totalPriceTaxExcl", calcIncl.Div(divisor), calcExcl)
}

func equal2(id, check string, expected, actual decimal.Decimal) error {
	want := expected.Round(2)
	got := actual.Round(2)
	if want.Equal(got) {
		return nil
	}
	return &domain.PriceError{
		LineItemID: id,
		Check:      check,
		Expected:   want.StringFixed(2),
		Actual:     got.StringFixed(2),
	}
}

// recomputeTotals re-sums every line item instead of adjusting incrementally.
func recomputeTotals(inv domain.Invoice) domain.Invoice {
	excl := decimal.Zero
	incl := decimal.Zero
	for _, item := range inv.LineItems {
		qty := decimal.NewFromFloat(item.Quantity)
		excl = excl.Add(qty.Mul(decimal.NewFromFloat(item.UnitPriceTaxExcl)))
		incl = incl.Add(qty.Mul(decimal.NewFromFloat(item.UnitPriceTaxIncl)))
	}
	inv.TotalPriceTaxExcl = excl.InexactFloat64()
	inv.TotalPriceTaxIncl = incl.InexactFloat64()
	return inv
}
