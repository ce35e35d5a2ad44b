// Package billing implements the folio/invoice financial computation
// engine: line-item pricing with ordered tax and service-charge rules,
// discount application, invoice totals aggregation, derived ledger
// balances, and master-folio charge routing.
//
// Every function here is pure: it takes a snapshot of charges, payments,
// rules, and discounts and returns a new value. Identical inputs always
// produce identical outputs.
package billing

import (
	"fmt"
	"sort"

	"backend/internal/model"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// RuleSet bundles the active tax definitions and the service charge rule
// that together price a charge. ServiceCharge may be nil when no rule is
// configured.
type RuleSet struct {
	Taxes         []model.TaxDefinition
	ServiceCharge *model.ServiceChargeRule
}

// Build prices one charge under this rule set.
func (rs RuleSet) Build(charge model.FolioCharge) (model.InvoiceLineItem, []ConfigGap) {
	return BuildLineItem(charge, rs.Taxes, rs.ServiceCharge)
}

// ConfigGap flags a charge component that stayed untaxed or unsurcharged
// because no active rule covered its department. Not an error — the charge
// is processed — but callers should log it, since it usually means a
// configuration hole.
type ConfigGap struct {
	Department string
	Component  string // "service_charge" or "tax"
}

func (g ConfigGap) String() string {
	return fmt.Sprintf("no active %s rule covers department %s", g.Component, g.Department)
}

// BuildLineItem prices one raw charge against the active rule set.
//
// Taxes are applied in ascending CalculationOrder. A tax flagged
// TaxableOnServiceCharge includes the service-charge amount in its base
// (when the service charge itself is taxable); a compound tax additionally
// includes the amounts of all previously applied taxes. Inclusive taxes are
// reported on their tax line but not added to the line grand total — the
// amount already sits inside the line total.
//
// Zero quantity or zero unit price yields an all-zero line item, never an
// error.
func BuildLineItem(charge model.FolioCharge, taxDefs []model.TaxDefinition, scRule *model.ServiceChargeRule) (model.InvoiceLineItem, []ConfigGap) {
	var gaps []ConfigGap

	qty := decimal.NewFromInt(int64(charge.Quantity))
	lineTotal := charge.UnitAmount.Mul(qty)

	item := model.InvoiceLineItem{
		Description:             charge.Description,
		Department:              charge.Department,
		Quantity:                charge.Quantity,
		UnitPrice:               charge.UnitAmount,
		LineTotal:               lineTotal,
		Taxable:                 charge.Taxable,
		ServiceChargeApplicable: charge.ServiceChargeApplicable,
		ServiceChargeAmount:     decimal.Zero,
		TotalTax:                decimal.Zero,
	}

	scTaxable := false
	if charge.ServiceChargeApplicable {
		if scRule != nil && scRule.IsActive && scRule.AppliesToDepartment(charge.Department) {
			item.ServiceChargeAmount = lineTotal.Mul(scRule.Rate).Div(oneHundred)
			scTaxable = scRule.IsTaxable
		} else {
			gaps = append(gaps, ConfigGap{Department: charge.Department, Component: "service_charge"})
		}
	}

	if charge.Taxable {
		applicable := selectTaxes(taxDefs, charge.Department)
		if len(applicable) == 0 {
			gaps = append(gaps, ConfigGap{Department: charge.Department, Component: "tax"})
		}

		appliedSoFar := decimal.Zero // running sum of already-applied tax amounts
		for _, tax := range applicable {
			base := lineTotal
			if tax.TaxableOnServiceCharge && scTaxable {
				base = base.Add(item.ServiceChargeAmount)
			}
			if tax.IsCompound {
				base = base.Add(appliedSoFar)
			}
			amount := base.Mul(tax.Rate).Div(oneHundred)

			item.TaxLines = append(item.TaxLines, model.InvoiceTaxLine{
				TaxName:          tax.Name,
				Rate:             tax.Rate,
				TaxableAmount:    base,
				Amount:           amount,
				IsInclusive:      tax.IsInclusive,
				CalculationOrder: tax.CalculationOrder,
			})

			appliedSoFar = appliedSoFar.Add(amount)
			if !tax.IsInclusive {
				item.TotalTax = item.TotalTax.Add(amount)
			}
		}
	}

	item.LineGrandTotal = item.LineTotal.Add(item.ServiceChargeAmount).Add(item.TotalTax)
	return item, gaps
}

// selectTaxes returns the active definitions covering the department,
// sorted by CalculationOrder ascending. The sort is stable so definitions
// sharing an order keep their input position.
func selectTaxes(taxDefs []model.TaxDefinition, dept string) []model.TaxDefinition {
	var out []model.TaxDefinition
	for _, t := range taxDefs {
		if t.IsActive && t.AppliesToDepartment(dept) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CalculationOrder < out[j].CalculationOrder
	})
	return out
}
