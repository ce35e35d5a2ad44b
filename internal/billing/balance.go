package billing

import (
	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// FolioBalance derives a folio's balance from its postings:
// Σ(charge amount) − Σ(payment amount). The stored balance column is a
// cache of this value; it must never be patched independently.
func FolioBalance(charges []model.FolioCharge, payments []model.FolioPayment) decimal.Decimal {
	balance := decimal.Zero
	for _, c := range charges {
		balance = balance.Add(c.Amount)
	}
	for _, p := range payments {
		if p.Status == model.PaymentStatusReversed {
			continue
		}
		balance = balance.Sub(p.Amount)
	}
	return balance
}

// MasterBalance rolls a billing group up:
// masterCharges − masterPayments + Σ linked-child balances.
func MasterBalance(masterCharges []model.FolioCharge, masterPayments []model.FolioPayment, childBalances []decimal.Decimal) decimal.Decimal {
	balance := FolioBalance(masterCharges, masterPayments)
	for _, b := range childBalances {
		balance = balance.Add(b)
	}
	return balance
}
