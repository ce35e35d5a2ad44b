package billing

import (
	"sort"

	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// TaxSummaryLine is one merged tax line at the invoice level: all
// line-level tax lines sharing a tax name, summed.
type TaxSummaryLine struct {
	TaxName          string          `json:"tax_name"`
	Rate             decimal.Decimal `json:"rate"`
	TaxableAmount    decimal.Decimal `json:"taxable_amount"`
	Amount           decimal.Decimal `json:"amount"`
	IsInclusive      bool            `json:"is_inclusive"`
	CalculationOrder int             `json:"calculation_order"`
}

// Totals is the invoice-level financial snapshot.
type Totals struct {
	Subtotal            decimal.Decimal  `json:"subtotal"`
	TotalDiscount       decimal.Decimal  `json:"total_discount"`
	ServiceChargeAmount decimal.Decimal  `json:"service_charge_amount"`
	TaxLines            []TaxSummaryLine `json:"tax_lines"`
	TotalTax            decimal.Decimal  `json:"total_tax"`
	GrandTotal          decimal.Decimal  `json:"grand_total"`
	IsNegative          bool             `json:"is_negative"` // flagged, never clamped
}

// ComputeTotals aggregates line items and discounts into the invoice
// snapshot: grandTotal = subtotal − totalDiscount + serviceCharge +
// totalTax. A negative grand total is flagged explicitly — it is
// legitimate only on credit/debit notes and the caller decides whether to
// accept it.
func ComputeTotals(items []model.InvoiceLineItem, discounts []model.InvoiceDiscount) Totals {
	totals := Totals{
		Subtotal:            decimal.Zero,
		ServiceChargeAmount: decimal.Zero,
		TotalTax:            decimal.Zero,
	}

	merged := make(map[string]*TaxSummaryLine)
	for _, it := range items {
		totals.Subtotal = totals.Subtotal.Add(it.LineTotal)
		totals.ServiceChargeAmount = totals.ServiceChargeAmount.Add(it.ServiceChargeAmount)

		for _, tl := range it.TaxLines {
			line, ok := merged[tl.TaxName]
			if !ok {
				line = &TaxSummaryLine{
					TaxName:          tl.TaxName,
					Rate:             tl.Rate,
					IsInclusive:      tl.IsInclusive,
					CalculationOrder: tl.CalculationOrder,
					TaxableAmount:    decimal.Zero,
					Amount:           decimal.Zero,
				}
				merged[tl.TaxName] = line
			}
			line.TaxableAmount = line.TaxableAmount.Add(tl.TaxableAmount)
			line.Amount = line.Amount.Add(tl.Amount)
		}
	}

	totals.TaxLines = make([]TaxSummaryLine, 0, len(merged))
	for _, line := range merged {
		totals.TaxLines = append(totals.TaxLines, *line)
	}
	sort.SliceStable(totals.TaxLines, func(i, j int) bool {
		if totals.TaxLines[i].CalculationOrder != totals.TaxLines[j].CalculationOrder {
			return totals.TaxLines[i].CalculationOrder < totals.TaxLines[j].CalculationOrder
		}
		return totals.TaxLines[i].TaxName < totals.TaxLines[j].TaxName
	})

	for _, line := range totals.TaxLines {
		if !line.IsInclusive {
			totals.TotalTax = totals.TotalTax.Add(line.Amount)
		}
	}

	totals.TotalDiscount, _ = ApplyDiscounts(items, discounts)
	totals.GrandTotal = totals.Subtotal.
		Sub(totals.TotalDiscount).
		Add(totals.ServiceChargeAmount).
		Add(totals.TotalTax)
	totals.IsNegative = totals.GrandTotal.IsNegative()

	return totals
}
