package service

import (
	"context"
	"strings"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestFolio(t *testing.T, env *testEnv, guestID uuid.UUID) *model.Folio {
	t.Helper()
	folio, err := env.folioSvc.OpenFolio(context.Background(), OpenFolioRequest{GuestID: guestID.String()}, uuid.NewString())
	require.NoError(t, err)
	return folio
}

func TestOpenFolio_NumbersSequentially(t *testing.T) {
	env := newTestEnv(t)
	guest := seedGuest(t, env.db)

	first := openTestFolio(t, env, guest.ID)
	second := openTestFolio(t, env, guest.ID)

	assert.True(t, strings.HasPrefix(first.FolioNo, "F-"))
	assert.True(t, strings.HasSuffix(first.FolioNo, "00001"))
	assert.True(t, strings.HasSuffix(second.FolioNo, "00002"))
	assert.Equal(t, model.FolioStatusOpen, first.Status)
	assert.True(t, first.Balance.IsZero())
}

func TestOpenFolio_UnknownGuest(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.folioSvc.OpenFolio(context.Background(), OpenFolioRequest{GuestID: uuid.NewString()}, uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "guest not found")
}

func TestPostChargeAndPayment_UpdatesStoredBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	actor := uuid.NewString()

	result, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Room night",
		Department:  model.DeptRoom,
		UnitAmount:  "100",
		Quantity:    2,
	}, actor)
	require.NoError(t, err)
	require.NotNil(t, result.Charge)
	assert.True(t, result.Charge.Amount.Equal(dec("200")))
	assert.Nil(t, result.RoutedCharge)

	_, err = env.folioSvc.PostPayment(ctx, folio.ID.String(), PostPaymentRequest{
		Amount: "50",
		Method: model.PaymentMethodCash,
	}, actor)
	require.NoError(t, err)

	stored, err := env.folioRepo.FindByID(ctx, folio.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("150")))
}

func TestPostPayment_RejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)

	_, err := env.folioSvc.PostPayment(context.Background(), folio.ID.String(), PostPaymentRequest{
		Amount: "-10",
		Method: model.PaymentMethodCash,
	}, uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestPostCharge_ClosedFolioRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)

	_, err := env.folioSvc.CloseFolio(ctx, folio.ID.String(), uuid.NewString())
	require.NoError(t, err)

	_, err = env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Late charge",
		Department:  model.DeptMisc,
		UnitAmount:  "10",
		Quantity:    1,
	}, uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot post to a CLOSED folio")
}

func TestPostCharge_AllChargesRuleRoutesToMaster(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	actor := uuid.NewString()

	master, err := env.masterSvc.CreateMasterFolio(ctx, CreateMasterFolioRequest{
		Name:               "ACME Corp",
		MasterType:         model.MasterTypeCorporate,
		BillingArrangement: model.ArrangementIndividualWithRouting,
	}, actor)
	require.NoError(t, err)

	_, err = env.masterSvc.LinkFolio(ctx, master.ID.String(), folio.ID.String(), actor)
	require.NoError(t, err)

	_, err = env.masterSvc.SetRoutingRules(ctx, master.ID.String(), SetRoutingRulesRequest{
		Rules: []RoutingRuleInput{{RuleType: model.RuleTypeAllCharges}},
	}, actor)
	require.NoError(t, err)

	result, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Room night",
		Department:  model.DeptRoom,
		UnitAmount:  "300",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	require.NotNil(t, result.RoutedCharge)
	require.NotNil(t, result.MatchedRuleID)
	assert.Nil(t, result.RoutedCharge.FolioID)
	require.NotNil(t, result.RoutedCharge.MasterFolioID)
	assert.Equal(t, master.ID, *result.RoutedCharge.MasterFolioID)

	source, err := env.folioRepo.FindByID(ctx, folio.ID)
	require.NoError(t, err)
	assert.True(t, source.Balance.IsZero())

	stored, err := env.masterRepo.FindByID(ctx, master.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalBalance.Equal(dec("300")))
}

func TestPostCharge_CustomRuleSplitsAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	actor := uuid.NewString()

	master, err := env.masterSvc.CreateMasterFolio(ctx, CreateMasterFolioRequest{
		Name:               "Conference block",
		MasterType:         model.MasterTypeGroup,
		BillingArrangement: model.ArrangementSplitBilling,
	}, actor)
	require.NoError(t, err)

	_, err = env.masterSvc.LinkFolio(ctx, master.ID.String(), folio.ID.String(), actor)
	require.NoError(t, err)

	_, err = env.masterSvc.SetRoutingRules(ctx, master.ID.String(), SetRoutingRulesRequest{
		Rules: []RoutingRuleInput{{RuleType: model.RuleTypeCustom, Percentage: "60"}},
	}, actor)
	require.NoError(t, err)

	result, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Banquet dinner",
		Department:  model.DeptFNB,
		UnitAmount:  "100",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	// 60% lands on the master, the 40% remainder stays on the guest folio.
	require.NotNil(t, result.RoutedCharge)
	assert.True(t, result.RoutedCharge.Amount.Equal(dec("60")))
	require.NotNil(t, result.Charge)
	assert.True(t, result.Charge.Amount.Equal(dec("40")))
	require.NotNil(t, result.Charge.FolioID)
	assert.Equal(t, folio.ID, *result.Charge.FolioID)

	source, err := env.folioRepo.FindByID(ctx, folio.ID)
	require.NoError(t, err)
	assert.True(t, source.Balance.Equal(dec("40")))

	// Master total = own routed charge plus the child balance.
	stored, err := env.masterRepo.FindByID(ctx, master.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalBalance.Equal(dec("100")))
}

func TestPostCharge_MasterOnlyArrangementRoutesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	actor := uuid.NewString()

	master, err := env.masterSvc.CreateMasterFolio(ctx, CreateMasterFolioRequest{
		Name:               "Tour group",
		MasterType:         model.MasterTypeTravelAgency,
		BillingArrangement: model.ArrangementMasterOnly,
	}, actor)
	require.NoError(t, err)

	_, err = env.masterSvc.LinkFolio(ctx, master.ID.String(), folio.ID.String(), actor)
	require.NoError(t, err)

	// No explicit rules needed under MASTER_ONLY.
	result, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Minibar",
		Department:  model.DeptExtra,
		UnitAmount:  "25",
		Quantity:    2,
	}, actor)
	require.NoError(t, err)

	require.NotNil(t, result.RoutedCharge)
	assert.Nil(t, result.MatchedRuleID)
	assert.True(t, result.RoutedCharge.Amount.Equal(dec("50")))

	source, err := env.folioRepo.FindByID(ctx, folio.ID)
	require.NoError(t, err)
	assert.True(t, source.Balance.IsZero())
}

func TestPostExtraService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)

	require.NoError(t, env.db.Create(&model.ExtraService{
		Code:       "SPA",
		Name:       "Spa treatment",
		Department: model.DeptExtra,
		UnitPrice:  dec("80"),
		Taxable:    true,
		IsActive:   true,
	}).Error)

	result, err := env.folioSvc.PostExtraService(ctx, folio.ID.String(), PostExtraServiceRequest{
		ServiceCode: "SPA",
		Quantity:    2,
	}, uuid.NewString())
	require.NoError(t, err)

	require.NotNil(t, result.Charge)
	assert.Equal(t, "Spa treatment", result.Charge.Description)
	assert.Equal(t, model.DeptExtra, result.Charge.Department)
	assert.True(t, result.Charge.Amount.Equal(dec("160")))
}

func TestPostExtraService_InactiveRejected(t *testing.T) {
	env := newTestEnv(t)
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)

	require.NoError(t, env.db.Create(&model.ExtraService{
		Code:      "OLD",
		Name:      "Retired service",
		UnitPrice: dec("10"),
		IsActive:  false,
	}).Error)

	_, err := env.folioSvc.PostExtraService(context.Background(), folio.ID.String(), PostExtraServiceRequest{
		ServiceCode: "OLD",
		Quantity:    1,
	}, uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestReconcileFolio_RepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	actor := uuid.NewString()

	_, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Room night",
		Department:  model.DeptRoom,
		UnitAmount:  "100",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	// Corrupt the stored balance behind the service's back.
	require.NoError(t, env.db.Model(&model.Folio{}).Where("id = ?", folio.ID).
		Update("balance", dec("999")).Error)

	result, err := env.folioSvc.ReconcileFolio(ctx, folio.ID.String(), actor)
	require.NoError(t, err)

	assert.True(t, result.Drifted)
	assert.True(t, result.StoredBalance.Equal(dec("999")))
	assert.True(t, result.ComputedBalance.Equal(dec("100")))

	stored, err := env.folioRepo.FindByID(ctx, folio.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("100")))
}

func TestReconcileFolio_NoDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)

	result, err := env.folioSvc.ReconcileFolio(ctx, folio.ID.String(), uuid.NewString())
	require.NoError(t, err)

	assert.False(t, result.Drifted)
	assert.True(t, result.ComputedBalance.IsZero())
}

func TestCloseFolio_RequiresZeroBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := seedGuest(t, env.db)
	folio := openTestFolio(t, env, guest.ID)
	actor := uuid.NewString()

	_, err := env.folioSvc.PostCharge(ctx, folio.ID.String(), PostChargeRequest{
		Description: "Room night",
		Department:  model.DeptRoom,
		UnitAmount:  "100",
		Quantity:    1,
	}, actor)
	require.NoError(t, err)

	_, err = env.folioSvc.CloseFolio(ctx, folio.ID.String(), actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-zero balance")

	_, err = env.folioSvc.PostPayment(ctx, folio.ID.String(), PostPaymentRequest{
		Amount: "100",
		Method: model.PaymentMethodCard,
	}, actor)
	require.NoError(t, err)

	closed, err := env.folioSvc.CloseFolio(ctx, folio.ID.String(), actor)
	require.NoError(t, err)
	assert.Equal(t, model.FolioStatusClosed, closed.Status)

	_, err = env.folioSvc.CloseFolio(ctx, folio.ID.String(), actor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already CLOSED")
}
