package billing

import (
	"sort"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoutingDecision says where a charge posts. When Remainder is positive,
// the charge was split: Amount goes to the target, Remainder stays on the
// source folio.
type RoutingDecision struct {
	ToMaster      bool
	TargetFolioID *uuid.UUID // set when routing to a specific child folio
	Amount        decimal.Decimal
	Remainder     decimal.Decimal
	MatchedRuleID *uuid.UUID // nil when no rule applied
}

// StaysOnSource reports whether the full charge remains on its source folio.
func (d RoutingDecision) StaysOnSource() bool {
	return !d.ToMaster && d.TargetFolioID == nil
}

// RouteCharge decides which ledger absorbs a charge arriving on a folio
// linked to the given master.
//
// Rules are scanned in Priority order; the first active rule whose type
// matches the charge's department (ALL_CHARGES and CUSTOM match every
// department) and whose source filter matches the charge's folio wins.
// A CUSTOM rule with a percentage splits the amount proportionally. Under
// the MASTER_ONLY arrangement every charge routes to the master regardless
// of explicit rules. No match, or an inactive/absent master, leaves the
// charge on its source folio.
//
// The decision is deterministic: same rule list and charge, same result.
func RouteCharge(charge model.FolioCharge, master *model.MasterFolio) RoutingDecision {
	stay := RoutingDecision{Amount: charge.Amount, Remainder: decimal.Zero}
	if master == nil || master.Status != model.MasterStatusActive {
		return stay
	}

	if master.BillingArrangement == model.ArrangementMasterOnly {
		return RoutingDecision{ToMaster: true, Amount: charge.Amount, Remainder: decimal.Zero}
	}

	rules := make([]model.RoutingRule, len(master.RoutingRules))
	copy(rules, master.RoutingRules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	for i := range rules {
		rule := rules[i]
		if !rule.IsActive {
			continue
		}
		if rule.SourceFolioID != nil {
			if charge.FolioID == nil || *rule.SourceFolioID != *charge.FolioID {
				continue
			}
		}
		if !rule.MatchesDepartment(charge.Department) {
			continue
		}

		decision := RoutingDecision{
			TargetFolioID: rule.TargetFolioID,
			ToMaster:      rule.TargetFolioID == nil,
			Amount:        charge.Amount,
			Remainder:     decimal.Zero,
			MatchedRuleID: &rule.ID,
		}

		if rule.RuleType == model.RuleTypeCustom && rule.Percentage != nil {
			routed := charge.Amount.Mul(*rule.Percentage).Div(oneHundred)
			decision.Amount = routed
			decision.Remainder = charge.Amount.Sub(routed)
		}

		// Routing to the charge's own folio is a no-op target.
		if decision.TargetFolioID != nil && charge.FolioID != nil && *decision.TargetFolioID == *charge.FolioID {
			return stay
		}

		return decision
	}

	return stay
}
