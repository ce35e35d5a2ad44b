package billing

import (
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourcedCharge(folioID uuid.UUID, dept, amount string) model.FolioCharge {
	return model.FolioCharge{
		FolioID:    &folioID,
		Department: dept,
		UnitAmount: dec(amount),
		Quantity:   1,
		Amount:     dec(amount),
	}
}

func activeMaster(arrangement string, rules ...model.RoutingRule) *model.MasterFolio {
	return &model.MasterFolio{
		ID:                 uuid.New(),
		Status:             model.MasterStatusActive,
		BillingArrangement: arrangement,
		RoutingRules:       rules,
	}
}

func TestRouteCharge_FirstActiveMatchWins(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	rules := []model.RoutingRule{
		{ID: uuid.New(), RuleType: model.RuleTypeFnbCharges, IsActive: true, Priority: 0},
		{ID: uuid.New(), RuleType: model.RuleTypeRoomCharges, IsActive: true, Priority: 1, TargetFolioID: &target},
		{ID: uuid.New(), RuleType: model.RuleTypeAllCharges, IsActive: true, Priority: 2},
	}
	master := activeMaster(model.ArrangementIndividualWithRouting, rules...)

	decision := RouteCharge(sourcedCharge(source, model.DeptRoom, "100"), master)

	require.NotNil(t, decision.TargetFolioID)
	assert.Equal(t, target, *decision.TargetFolioID)
	assert.False(t, decision.ToMaster)
	assert.True(t, decision.Amount.Equal(dec("100")))
	assert.True(t, decision.Remainder.IsZero())
}

func TestRouteCharge_InactiveRuleSkipped(t *testing.T) {
	source := uuid.New()
	rules := []model.RoutingRule{
		{ID: uuid.New(), RuleType: model.RuleTypeRoomCharges, IsActive: false, Priority: 0},
	}
	master := activeMaster(model.ArrangementIndividualWithRouting, rules...)

	decision := RouteCharge(sourcedCharge(source, model.DeptRoom, "100"), master)

	assert.True(t, decision.StaysOnSource())
}

func TestRouteCharge_NoMatchStaysOnSource(t *testing.T) {
	source := uuid.New()
	rules := []model.RoutingRule{
		{ID: uuid.New(), RuleType: model.RuleTypeFnbCharges, IsActive: true, Priority: 0},
	}
	master := activeMaster(model.ArrangementIndividualWithRouting, rules...)

	decision := RouteCharge(sourcedCharge(source, model.DeptRoom, "100"), master)

	assert.True(t, decision.StaysOnSource())
	assert.True(t, decision.Amount.Equal(dec("100")))
}

func TestRouteCharge_MasterOnlyOverridesRules(t *testing.T) {
	source := uuid.New()
	// An explicit rule that would keep F&B on the source is irrelevant under
	// MASTER_ONLY.
	rules := []model.RoutingRule{
		{ID: uuid.New(), RuleType: model.RuleTypeFnbCharges, IsActive: true, Priority: 0, TargetFolioID: &source},
	}
	master := activeMaster(model.ArrangementMasterOnly, rules...)

	decision := RouteCharge(sourcedCharge(source, model.DeptFNB, "75"), master)

	assert.True(t, decision.ToMaster)
	assert.True(t, decision.Amount.Equal(dec("75")))
}

func TestRouteCharge_CustomPercentageSplits(t *testing.T) {
	source := uuid.New()
	pct := dec("60")
	rules := []model.RoutingRule{
		{ID: uuid.New(), RuleType: model.RuleTypeCustom, IsActive: true, Priority: 0, Percentage: &pct},
	}
	master := activeMaster(model.ArrangementIndividualWithRouting, rules...)

	decision := RouteCharge(sourcedCharge(source, model.DeptExtra, "200"), master)

	assert.True(t, decision.ToMaster)
	assert.True(t, decision.Amount.Equal(dec("120")), "routed = %s", decision.Amount)
	assert.True(t, decision.Remainder.Equal(dec("80")), "remainder = %s", decision.Remainder)
}

func TestRouteCharge_SourceFilter(t *testing.T) {
	source := uuid.New()
	other := uuid.New()
	rules := []model.RoutingRule{
		{ID: uuid.New(), RuleType: model.RuleTypeAllCharges, IsActive: true, Priority: 0, SourceFolioID: &other},
	}
	master := activeMaster(model.ArrangementIndividualWithRouting, rules...)

	decision := RouteCharge(sourcedCharge(source, model.DeptRoom, "100"), master)

	assert.True(t, decision.StaysOnSource(), "rule scoped to another source folio must not match")
}

func TestRouteCharge_Deterministic(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	rules := []model.RoutingRule{
		{ID: uuid.New(), RuleType: model.RuleTypeRoomCharges, IsActive: true, Priority: 0, TargetFolioID: &target},
		{ID: uuid.New(), RuleType: model.RuleTypeAllCharges, IsActive: true, Priority: 1},
	}
	master := activeMaster(model.ArrangementIndividualWithRouting, rules...)
	charge := sourcedCharge(source, model.DeptRoom, "100")

	first := RouteCharge(charge, master)
	second := RouteCharge(charge, master)
	assert.Equal(t, first, second)

	// Editing a non-matching rule must not change the outcome.
	master.RoutingRules[1].IsActive = false
	third := RouteCharge(charge, master)
	assert.Equal(t, first, third)

	// Reordering can change it: the ALL_CHARGES rule now wins.
	master.RoutingRules[1].IsActive = true
	master.RoutingRules[0].Priority = 5
	reordered := RouteCharge(charge, master)
	assert.True(t, reordered.ToMaster)
}

func TestRouteCharge_ClosedMasterDoesNotRoute(t *testing.T) {
	source := uuid.New()
	master := activeMaster(model.ArrangementMasterOnly)
	master.Status = model.MasterStatusClosed

	decision := RouteCharge(sourcedCharge(source, model.DeptRoom, "100"), master)

	assert.True(t, decision.StaysOnSource())
}
