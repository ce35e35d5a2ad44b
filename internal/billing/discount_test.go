package billing

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestApplyDiscounts_PercentageAgainstSubtotal(t *testing.T) {
	items := []model.InvoiceLineItem{
		lineItem("Room night", model.DeptRoom, "600"),
		lineItem("Dinner", model.DeptFNB, "400"),
	}
	discounts := []model.InvoiceDiscount{{
		Scope: model.DiscountScopeInvoice, Type: model.DiscountTypePercentage, Value: dec("10"),
	}}

	total, applied := ApplyDiscounts(items, discounts)

	assert.True(t, total.Equal(dec("100")))
	assert.True(t, applied[0].Amount.Equal(dec("100")))
}

func TestApplyDiscounts_FixedCappedAtRemaining(t *testing.T) {
	items := []model.InvoiceLineItem{lineItem("Room night", model.DeptRoom, "150")}
	discounts := []model.InvoiceDiscount{
		{Scope: model.DiscountScopeInvoice, Type: model.DiscountTypeFixedAmount, Value: dec("100")},
		{Scope: model.DiscountScopeInvoice, Type: model.DiscountTypeFixedAmount, Value: dec("100")},
	}

	total, applied := ApplyDiscounts(items, discounts)

	assert.True(t, applied[0].Amount.Equal(dec("100")))
	assert.True(t, applied[1].Amount.Equal(dec("50")), "second discount capped at remaining subtotal")
	assert.True(t, total.Equal(dec("150")), "total discount never exceeds subtotal")
}

func TestApplyDiscounts_LineScopeUsesLineTotal(t *testing.T) {
	room := lineItem("Room night", model.DeptRoom, "600")
	dinner := lineItem("Dinner", model.DeptFNB, "400")
	dinnerID := dinner.ID

	discounts := []model.InvoiceDiscount{{
		Scope: model.DiscountScopeLine, LineItemID: &dinnerID,
		Type: model.DiscountTypePercentage, Value: dec("50"),
	}}

	total, _ := ApplyDiscounts([]model.InvoiceLineItem{room, dinner}, discounts)

	assert.True(t, total.Equal(dec("200")))
}

func TestApplyDiscounts_OrderMatters(t *testing.T) {
	items := []model.InvoiceLineItem{lineItem("Room night", model.DeptRoom, "100")}
	discounts := []model.InvoiceDiscount{
		{Scope: model.DiscountScopeInvoice, Type: model.DiscountTypeFixedAmount, Value: dec("80")},
		{Scope: model.DiscountScopeInvoice, Type: model.DiscountTypePercentage, Value: dec("50")},
	}

	total, applied := ApplyDiscounts(items, discounts)

	// The percentage is computed against the subtotal but capped at what the
	// first discount left over.
	assert.True(t, applied[0].Amount.Equal(dec("80")))
	assert.True(t, applied[1].Amount.Equal(dec("20")))
	assert.True(t, total.Equal(dec("100")))
}
