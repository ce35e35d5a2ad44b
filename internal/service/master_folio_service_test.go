package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestMaster(t *testing.T, env *testEnv, arrangement string) *model.MasterFolio {
	t.Helper()
	master, err := env.masterSvc.CreateMasterFolio(context.Background(), CreateMasterFolioRequest{
		Name:               "Globex retreat",
		MasterType:         model.MasterTypeGroup,
		BillingArrangement: arrangement,
	}, uuid.NewString())
	require.NoError(t, err)
	return master
}

func TestLinkFolio_RollsUpChildBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	master := createTestMaster(t, env, model.ArrangementSplitBilling)
	actor := uuid.NewString()

	_, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Room night",
		Department:  model.DeptRoom,
		UnitAmount:  "150",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	linked, err := env.masterSvc.LinkFolio(ctx, master.ID.String(), folio.ID.String(), actor)
	require.NoError(t, err)
	assert.True(t, linked.TotalBalance.Equal(dec("150")))

	unlinked, err := env.masterSvc.UnlinkFolio(ctx, master.ID.String(), folio.ID.String(), actor)
	require.NoError(t, err)
	assert.True(t, unlinked.TotalBalance.IsZero())
}

func TestLinkFolio_AlreadyLinkedRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	first := createTestMaster(t, env, model.ArrangementSplitBilling)
	second := createTestMaster(t, env, model.ArrangementSplitBilling)
	actor := uuid.NewString()

	_, err := env.masterSvc.LinkFolio(ctx, first.ID.String(), folio.ID.String(), actor)
	require.NoError(t, err)

	_, err = env.masterSvc.LinkFolio(ctx, second.ID.String(), folio.ID.String(), actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already linked")
}

func TestUnlinkFolio_NotLinkedRejected(t *testing.T) {
	env := newTestEnv(t)
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	master := createTestMaster(t, env, model.ArrangementSplitBilling)

	_, err := env.masterSvc.UnlinkFolio(context.Background(), master.ID.String(), folio.ID.String(), uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not linked")
}

func TestSetRoutingRules_PercentageValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	master := createTestMaster(t, env, model.ArrangementSplitBilling)
	actor := uuid.NewString()

	_, err := env.masterSvc.SetRoutingRules(ctx, master.ID.String(), SetRoutingRulesRequest{
		Rules: []RoutingRuleInput{{RuleType: model.RuleTypeRoomCharges, Percentage: "50"}},
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only valid on CUSTOM rules")

	_, err = env.masterSvc.SetRoutingRules(ctx, master.ID.String(), SetRoutingRulesRequest{
		Rules: []RoutingRuleInput{{RuleType: model.RuleTypeCustom, Percentage: "120"}},
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 100")
}

func TestSetRoutingRules_PrioritiesFollowListOrder(t *testing.T) {
	env := newTestEnv(t)
	master := createTestMaster(t, env, model.ArrangementSplitBilling)

	rules, err := env.masterSvc.SetRoutingRules(context.Background(), master.ID.String(), SetRoutingRulesRequest{
		Rules: []RoutingRuleInput{
			{RuleType: model.RuleTypeRoomCharges},
			{RuleType: model.RuleTypeFnbCharges, IsActive: boolPtr(false)},
			{RuleType: model.RuleTypeCustom, Percentage: "25"},
		},
	}, uuid.NewString())
	require.NoError(t, err)

	require.Len(t, rules, 3)
	assert.Equal(t, 0, rules[0].Priority)
	assert.Equal(t, 1, rules[1].Priority)
	assert.Equal(t, 2, rules[2].Priority)
	assert.False(t, rules[1].IsActive)
	require.NotNil(t, rules[2].Percentage)
	assert.True(t, rules[2].Percentage.Equal(dec("25")))
}

func TestPostMasterChargeAndPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	master := createTestMaster(t, env, model.ArrangementMasterOnly)
	actor := uuid.NewString()

	charge, err := env.masterSvc.PostMasterCharge(ctx, master.ID.String(), PostChargeRequest{
		Description: "Banquet hall",
		Department:  model.DeptFNB,
		UnitAmount:  "250",
		Quantity:    2,
	}, actor)
	require.NoError(t, err)
	assert.True(t, charge.Amount.Equal(dec("500")))

	_, err = env.masterSvc.PostMasterPayment(ctx, master.ID.String(), PostPaymentRequest{
		Amount: "200",
		Method: model.PaymentMethodBankTransfer,
	}, actor)
	require.NoError(t, err)

	stored, err := env.masterRepo.FindByID(ctx, master.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalBalance.Equal(dec("300")))
}

func TestPostMasterCharge_SuspendedRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	master := createTestMaster(t, env, model.ArrangementMasterOnly)
	actor := uuid.NewString()

	_, err := env.masterSvc.SuspendMasterFolio(ctx, master.ID.String(), actor)
	require.NoError(t, err)

	// Suspension is recorded under its own audit action.
	var audit model.AuditLog
	require.NoError(t, env.db.First(&audit, "action = ? AND entity_id = ?",
		model.ActionSuspendMasterFolio, master.ID.String()).Error)

	_, err = env.masterSvc.PostMasterCharge(ctx, master.ID.String(), PostChargeRequest{
		Description: "Banquet hall",
		Department:  model.DeptFNB,
		UnitAmount:  "100",
		Quantity:    1,
	}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot post to a SUSPENDED master folio")

	// Payments remain possible so a suspended account can still be settled.
	_, err = env.masterSvc.PostMasterPayment(ctx, master.ID.String(), PostPaymentRequest{
		Amount: "50",
		Method: model.PaymentMethodCash,
	}, actor)
	require.NoError(t, err)
}

func TestCloseMasterFolio_NonZeroBalanceNeedsOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	master := createTestMaster(t, env, model.ArrangementMasterOnly)
	actor := uuid.NewString()

	_, err := env.masterSvc.PostMasterCharge(ctx, master.ID.String(), PostChargeRequest{
		Description: "Banquet hall",
		Department:  model.DeptFNB,
		UnitAmount:  "500",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	_, err = env.masterSvc.CloseMasterFolio(ctx, master.ID.String(), CloseMasterFolioRequest{}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-zero balance")

	closed, err := env.masterSvc.CloseMasterFolio(ctx, master.ID.String(), CloseMasterFolioRequest{
		Override: true,
		Reason:   "written off",
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, model.MasterStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = env.masterSvc.CloseMasterFolio(ctx, master.ID.String(), CloseMasterFolioRequest{Override: true}, actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")
}

func TestReopenMasterFolio_ClearsCloseMarkers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	master := createTestMaster(t, env, model.ArrangementMasterOnly)
	actor := uuid.NewString()

	_, err := env.masterSvc.CloseMasterFolio(ctx, master.ID.String(), CloseMasterFolioRequest{}, actor)
	require.NoError(t, err)

	reopened, err := env.masterSvc.ReopenMasterFolio(ctx, master.ID.String(), actor)
	require.NoError(t, err)
	assert.Equal(t, model.MasterStatusActive, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.Nil(t, reopened.ClosedBy)

	_, err = env.masterSvc.ReopenMasterFolio(ctx, master.ID.String(), actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already ACTIVE")
}

func TestRecomputeBalance_RepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	master := createTestMaster(t, env, model.ArrangementMasterOnly)
	actor := uuid.NewString()

	_, err := env.masterSvc.PostMasterCharge(ctx, master.ID.String(), PostChargeRequest{
		Description: "Banquet hall",
		Department:  model.DeptFNB,
		UnitAmount:  "400",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&model.MasterFolio{}).Where("id = ?", master.ID).
		Update("total_balance", dec("1")).Error)

	recomputed, err := env.masterSvc.RecomputeBalance(ctx, master.ID.String())
	require.NoError(t, err)
	assert.True(t, recomputed.TotalBalance.Equal(dec("400")))
}

func TestPostCharge_ConcurrentChildrenKeepMasterConsistent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	master := createTestMaster(t, env, model.ArrangementSplitBilling)
	actor := uuid.NewString()

	first := openTestFolio(t, env, guest.ID)
	second := openTestFolio(t, env, guest.ID)
	for _, folio := range []*model.Folio{first, second} {
		_, err := env.masterSvc.LinkFolio(ctx, master.ID.String(), folio.ID.String(), actor)
		require.NoError(t, err)
	}

	// Both children post at once; every posting recomputes the master
	// rollup, so the recomputes must serialize on the master's key.
	const perFolio = 5
	var wg sync.WaitGroup
	for _, folio := range []*model.Folio{first, second} {
		wg.Add(1)
		go func(folioID string) {
			defer wg.Done()
			for i := 0; i < perFolio; i++ {
				_, err := env.folioSvc.PostCharge(ctx, folioID, PostChargeRequest{
					Description: fmt.Sprintf("Minibar %d", i),
					Department:  model.DeptExtra,
					UnitAmount:  "10",
					Quantity:    1,
				}, actor)
				assert.NoError(t, err)
			}
		}(folio.ID.String())
	}
	wg.Wait()

	reloaded, err := env.masterSvc.GetMasterFolio(ctx, master.ID.String())
	require.NoError(t, err)
	assert.True(t, reloaded.TotalBalance.Equal(dec("100")), "master rollup drifted to %s", reloaded.TotalBalance)
}
