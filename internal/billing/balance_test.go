package billing

import (
	"testing"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func charge(amount string) model.FolioCharge {
	return model.FolioCharge{UnitAmount: dec(amount), Quantity: 1, Amount: dec(amount)}
}

func payment(amount string) model.FolioPayment {
	return model.FolioPayment{Amount: dec(amount), Status: model.PaymentStatusSettled}
}

func TestFolioBalance(t *testing.T) {
	charges := []model.FolioCharge{charge("200"), charge("150.50")}
	payments := []model.FolioPayment{payment("100")}

	assert.True(t, FolioBalance(charges, payments).Equal(dec("250.50")))
}

func TestFolioBalance_SkipsReversedPayments(t *testing.T) {
	reversed := payment("100")
	reversed.Status = model.PaymentStatusReversed

	balance := FolioBalance([]model.FolioCharge{charge("200")}, []model.FolioPayment{reversed})

	assert.True(t, balance.Equal(dec("200")))
}

func TestFolioBalance_QuantityIsInChargeAmount(t *testing.T) {
	c := model.FolioCharge{UnitAmount: dec("100"), Quantity: 3, Amount: dec("300")}

	assert.True(t, FolioBalance([]model.FolioCharge{c}, nil).Equal(dec("300")))
}

func TestMasterBalance_RollsUpChildren(t *testing.T) {
	// Master with no own postings and two children at 150 and 300 → 450.
	children := []decimal.Decimal{dec("150"), dec("300")}
	assert.True(t, MasterBalance(nil, nil, children).Equal(dec("450")))

	// Unlinking the second child drops its share immediately.
	assert.True(t, MasterBalance(nil, nil, children[:1]).Equal(dec("150")))
}

func TestMasterBalance_IncludesOwnPostings(t *testing.T) {
	balance := MasterBalance(
		[]model.FolioCharge{charge("500")},
		[]model.FolioPayment{payment("200")},
		[]decimal.Decimal{dec("100")},
	)

	assert.True(t, balance.Equal(dec("400")))
}
