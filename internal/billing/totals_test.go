package billing

import (
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineItem(desc, dept, total string) model.InvoiceLineItem {
	return model.InvoiceLineItem{
		ID:          uuid.New(),
		Description: desc,
		Department:  dept,
		Quantity:    1,
		UnitPrice:   dec(total),
		LineTotal:   dec(total),
	}
}

func TestComputeTotals_GrandTotalIdentity(t *testing.T) {
	// subtotal 1000, 10% discount, service charge 50, tax 60 → 1010.
	item := lineItem("Room night", model.DeptRoom, "1000")
	item.ServiceChargeAmount = dec("50")
	item.TotalTax = dec("60")
	item.TaxLines = []model.InvoiceTaxLine{{
		TaxName: "VAT", Rate: dec("6"), TaxableAmount: dec("1000"), Amount: dec("60"), CalculationOrder: 1,
	}}

	discounts := []model.InvoiceDiscount{{
		Scope: model.DiscountScopeInvoice, Type: model.DiscountTypePercentage, Value: dec("10"),
	}}

	totals := ComputeTotals([]model.InvoiceLineItem{item}, discounts)

	assert.True(t, totals.Subtotal.Equal(dec("1000")))
	assert.True(t, totals.TotalDiscount.Equal(dec("100")))
	assert.True(t, totals.ServiceChargeAmount.Equal(dec("50")))
	assert.True(t, totals.TotalTax.Equal(dec("60")))
	assert.True(t, totals.GrandTotal.Equal(dec("1010")), "grand = %s", totals.GrandTotal)
	assert.False(t, totals.IsNegative)
}

func TestComputeTotals_MergesTaxLinesByName(t *testing.T) {
	room := lineItem("Room night", model.DeptRoom, "200")
	room.TotalTax = dec("24")
	room.TaxLines = []model.InvoiceTaxLine{
		{TaxName: "VAT", Rate: dec("12"), TaxableAmount: dec("200"), Amount: dec("24"), CalculationOrder: 1},
	}
	dinner := lineItem("Dinner", model.DeptFNB, "100")
	dinner.TotalTax = dec("17")
	dinner.TaxLines = []model.InvoiceTaxLine{
		{TaxName: "VAT", Rate: dec("12"), TaxableAmount: dec("100"), Amount: dec("12"), CalculationOrder: 1},
		{TaxName: "City Tax", Rate: dec("5"), TaxableAmount: dec("100"), Amount: dec("5"), CalculationOrder: 2},
	}

	totals := ComputeTotals([]model.InvoiceLineItem{room, dinner}, nil)

	require.Len(t, totals.TaxLines, 2)
	assert.Equal(t, "VAT", totals.TaxLines[0].TaxName)
	assert.True(t, totals.TaxLines[0].TaxableAmount.Equal(dec("300")))
	assert.True(t, totals.TaxLines[0].Amount.Equal(dec("36")))
	assert.Equal(t, "City Tax", totals.TaxLines[1].TaxName)
	assert.True(t, totals.TotalTax.Equal(dec("41")))
}

func TestComputeTotals_NegativeFlaggedNotClamped(t *testing.T) {
	// A credit note carries negative line totals; the result must be flagged,
	// never clamped to zero.
	credit := lineItem("Refund: room night", model.DeptRoom, "-200")
	credit.LineGrandTotal = dec("-200")

	totals := ComputeTotals([]model.InvoiceLineItem{credit}, nil)

	assert.True(t, totals.GrandTotal.Equal(dec("-200")))
	assert.True(t, totals.IsNegative)
}

func TestComputeTotals_Idempotent(t *testing.T) {
	item := lineItem("Room night", model.DeptRoom, "333.33")
	item.ServiceChargeAmount = dec("33.333")
	item.TotalTax = dec("41.2")
	item.TaxLines = []model.InvoiceTaxLine{
		{TaxName: "VAT", Rate: dec("12"), TaxableAmount: dec("343.33"), Amount: dec("41.2"), CalculationOrder: 1},
	}
	discounts := []model.InvoiceDiscount{{
		Scope: model.DiscountScopeInvoice, Type: model.DiscountTypeFixedAmount, Value: dec("12.5"),
	}}
	items := []model.InvoiceLineItem{item}

	first := ComputeTotals(items, discounts)
	second := ComputeTotals(items, discounts)

	assert.Equal(t, first, second)
}

func TestComputeTotals_EmptyInput(t *testing.T) {
	totals := ComputeTotals(nil, nil)

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.GrandTotal.IsZero())
	assert.Empty(t, totals.TaxLines)
}
