package billing

import (
	"testing"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func roomCharge(qty int, unit string) model.FolioCharge {
	unitAmount := dec(unit)
	return model.FolioCharge{
		Description:             "Room night",
		Department:              model.DeptRoom,
		UnitAmount:              unitAmount,
		Quantity:                qty,
		Amount:                  unitAmount.Mul(decimal.NewFromInt(int64(qty))),
		Taxable:                 true,
		ServiceChargeApplicable: true,
	}
}

func serviceCharge10() *model.ServiceChargeRule {
	return &model.ServiceChargeRule{
		Rate:      dec("10"),
		IsActive:  true,
		AppliesTo: "ROOM,FNB,EXTRA",
		IsTaxable: true,
	}
}

func vat12OnServiceCharge() model.TaxDefinition {
	return model.TaxDefinition{
		Name:                   "VAT",
		TaxType:                model.TaxTypeVAT,
		Rate:                   dec("12"),
		IsActive:               true,
		AppliesTo:              "ROOM,FNB,EXTRA",
		CalculationOrder:       1,
		TaxableOnServiceCharge: true,
	}
}

func TestBuildLineItem_ServiceChargeAndTax(t *testing.T) {
	// 2 × 100, service charge 10%, VAT 12% on (lineTotal + serviceCharge).
	item, gaps := BuildLineItem(roomCharge(2, "100"), []model.TaxDefinition{vat12OnServiceCharge()}, serviceCharge10())

	assert.Empty(t, gaps)
	assert.True(t, item.LineTotal.Equal(dec("200")), "lineTotal = %s", item.LineTotal)
	assert.True(t, item.ServiceChargeAmount.Equal(dec("20")), "serviceCharge = %s", item.ServiceChargeAmount)

	require.Len(t, item.TaxLines, 1)
	assert.True(t, item.TaxLines[0].TaxableAmount.Equal(dec("220")), "tax base = %s", item.TaxLines[0].TaxableAmount)
	assert.True(t, item.TaxLines[0].Amount.Equal(dec("26.4")), "tax amount = %s", item.TaxLines[0].Amount)
	assert.True(t, item.TotalTax.Equal(dec("26.4")))
	assert.True(t, item.LineGrandTotal.Equal(dec("246.4")), "grand = %s", item.LineGrandTotal)
}

func TestBuildLineItem_CompoundTaxBaseIncludesPriorTax(t *testing.T) {
	// Tax #2 is compound with taxableOnServiceCharge=false: its base must be
	// lineTotal + tax#1 amount, not lineTotal alone.
	vat := model.TaxDefinition{
		Name: "VAT", Rate: dec("10"), IsActive: true,
		AppliesTo: "ROOM", CalculationOrder: 1,
	}
	cityTax := model.TaxDefinition{
		Name: "City Tax", Rate: dec("5"), IsActive: true,
		AppliesTo: "ROOM", CalculationOrder: 2, IsCompound: true,
	}

	charge := roomCharge(1, "1000")
	charge.ServiceChargeApplicable = false

	item, _ := BuildLineItem(charge, []model.TaxDefinition{cityTax, vat}, nil)

	require.Len(t, item.TaxLines, 2)
	assert.Equal(t, "VAT", item.TaxLines[0].TaxName)
	assert.True(t, item.TaxLines[0].Amount.Equal(dec("100")))

	assert.Equal(t, "City Tax", item.TaxLines[1].TaxName)
	assert.True(t, item.TaxLines[1].TaxableAmount.Equal(dec("1100")), "compound base = %s", item.TaxLines[1].TaxableAmount)
	assert.True(t, item.TaxLines[1].Amount.Equal(dec("55")))

	assert.True(t, item.LineGrandTotal.Equal(dec("1155")))
}

func TestBuildLineItem_InclusiveTaxReportedNotAdded(t *testing.T) {
	inclusive := model.TaxDefinition{
		Name: "Inclusive VAT", Rate: dec("12"), IsActive: true, IsInclusive: true,
		AppliesTo: "FNB", CalculationOrder: 1,
	}
	charge := model.FolioCharge{
		Description: "Dinner", Department: model.DeptFNB,
		UnitAmount: dec("112"), Quantity: 1, Amount: dec("112"),
		Taxable: true,
	}

	item, _ := BuildLineItem(charge, []model.TaxDefinition{inclusive}, nil)

	require.Len(t, item.TaxLines, 1)
	assert.True(t, item.TaxLines[0].IsInclusive)
	assert.False(t, item.TaxLines[0].Amount.IsZero(), "inclusive tax must still be reported")
	assert.True(t, item.TotalTax.IsZero(), "inclusive tax must not join totalTax")
	assert.True(t, item.LineGrandTotal.Equal(dec("112")), "grand = %s", item.LineGrandTotal)
}

func TestBuildLineItem_ZeroQuantityYieldsZeroLine(t *testing.T) {
	item, _ := BuildLineItem(roomCharge(0, "100"), []model.TaxDefinition{vat12OnServiceCharge()}, serviceCharge10())

	assert.True(t, item.LineTotal.IsZero())
	assert.True(t, item.ServiceChargeAmount.IsZero())
	assert.True(t, item.TotalTax.IsZero())
	assert.True(t, item.LineGrandTotal.IsZero())
}

func TestBuildLineItem_UnmatchedDepartmentFlagsGap(t *testing.T) {
	// MISC is covered by neither the tax nor the service charge: the line is
	// still produced with zero components and both gaps flagged.
	charge := roomCharge(1, "50")
	charge.Department = model.DeptMisc

	item, gaps := BuildLineItem(charge, []model.TaxDefinition{vat12OnServiceCharge()}, serviceCharge10())

	assert.True(t, item.ServiceChargeAmount.IsZero())
	assert.True(t, item.TotalTax.IsZero())
	assert.True(t, item.LineGrandTotal.Equal(dec("50")))
	assert.Len(t, gaps, 2)
}

func TestBuildLineItem_InactiveRulesIgnored(t *testing.T) {
	vat := vat12OnServiceCharge()
	vat.IsActive = false
	sc := serviceCharge10()
	sc.IsActive = false

	item, gaps := BuildLineItem(roomCharge(2, "100"), []model.TaxDefinition{vat}, sc)

	assert.True(t, item.LineGrandTotal.Equal(dec("200")))
	assert.Len(t, gaps, 2)
}

func TestBuildLineItem_NonTaxableSkipsTaxesOnly(t *testing.T) {
	charge := roomCharge(1, "100")
	charge.Taxable = false

	item, gaps := BuildLineItem(charge, []model.TaxDefinition{vat12OnServiceCharge()}, serviceCharge10())

	assert.Empty(t, gaps)
	assert.Empty(t, item.TaxLines)
	assert.True(t, item.ServiceChargeAmount.Equal(dec("10")))
	assert.True(t, item.LineGrandTotal.Equal(dec("110")))
}
