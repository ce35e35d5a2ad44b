package billing

import (
	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// ApplyDiscounts computes the derived amount for each discount in list
// order and returns the capped total. Percentage discounts are computed
// against the invoice subtotal (sum of line totals, pre service-charge and
// pre-tax); LINE-scoped discounts use the referenced line's total as base.
// Fixed discounts take the literal value. Every amount is capped at the
// remaining subtotal so the total can never exceed the subtotal.
//
// Discounts are an invoice-level ledger entry: line items keep their
// original totals as an audit-accurate record of what was charged.
func ApplyDiscounts(items []model.InvoiceLineItem, discounts []model.InvoiceDiscount) (decimal.Decimal, []model.InvoiceDiscount) {
	subtotal := decimal.Zero
	lineTotals := make(map[string]decimal.Decimal, len(items))
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal)
		lineTotals[it.ID.String()] = it.LineTotal
	}

	remaining := subtotal
	applied := make([]model.InvoiceDiscount, len(discounts))
	totalDiscount := decimal.Zero

	for i, d := range discounts {
		base := subtotal
		if d.Scope == model.DiscountScopeLine && d.LineItemID != nil {
			base = lineTotals[d.LineItemID.String()] // zero when the line is unknown
		}

		var amount decimal.Decimal
		switch d.Type {
		case model.DiscountTypePercentage:
			amount = base.Mul(d.Value).Div(oneHundred)
		case model.DiscountTypeFixedAmount:
			amount = d.Value
			if amount.GreaterThan(base) {
				amount = base
			}
		default:
			amount = decimal.Zero
		}

		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		if amount.IsNegative() {
			amount = decimal.Zero
		}

		d.Amount = amount
		applied[i] = d
		remaining = remaining.Sub(amount)
		totalDiscount = totalDiscount.Add(amount)
	}

	return totalDiscount, applied
}
