package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/billing"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/keylock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateMasterFolioRequest struct {
	Name               string `json:"name" binding:"required,max=255"`
	MasterType         string `json:"master_type" binding:"required,oneof=GROUP CORPORATE EVENT TRAVEL_AGENCY"`
	BillingArrangement string `json:"billing_arrangement" binding:"required,oneof=MASTER_ONLY SPLIT_BILLING INDIVIDUAL_WITH_ROUTING"`
	PrimaryContact     string `json:"primary_contact" binding:"max=255"`
}

type RoutingRuleInput struct {
	RuleType      string `json:"rule_type" binding:"required,oneof=ALL_CHARGES ROOM_CHARGES FNB_CHARGES EXTRA_SERVICES CUSTOM"`
	SourceFolioID string `json:"source_folio_id" binding:"omitempty,uuid"`
	TargetFolioID string `json:"target_folio_id" binding:"omitempty,uuid"` // empty = route to master
	Percentage    string `json:"percentage"`                               // CUSTOM only
	IsActive      *bool  `json:"is_active"`
}

type SetRoutingRulesRequest struct {
	Rules []RoutingRuleInput `json:"rules" binding:"required,dive"`
}

type CloseMasterFolioRequest struct {
	Override bool   `json:"override"` // close despite a non-zero balance; recorded in the audit log
	Reason   string `json:"reason" binding:"max=255"`
}

type MasterFolioFilter struct {
	Status     string
	MasterType string
	Page       int
	Limit      int
}

// --- Interface ---

type MasterFolioService interface {
	CreateMasterFolio(ctx context.Context, req CreateMasterFolioRequest, userID string) (*model.MasterFolio, error)
	GetMasterFolio(ctx context.Context, id string) (*model.MasterFolio, error)
	ListMasterFolios(ctx context.Context, filter MasterFolioFilter) ([]model.MasterFolio, int64, error)
	LinkFolio(ctx context.Context, masterID, folioID string, userID string) (*model.MasterFolio, error)
	UnlinkFolio(ctx context.Context, masterID, folioID string, userID string) (*model.MasterFolio, error)
	SetRoutingRules(ctx context.Context, masterID string, req SetRoutingRulesRequest, userID string) ([]model.RoutingRule, error)
	PostMasterCharge(ctx context.Context, masterID string, req PostChargeRequest, userID string) (*model.FolioCharge, error)
	PostMasterPayment(ctx context.Context, masterID string, req PostPaymentRequest, userID string) (*model.FolioPayment, error)
	RecomputeBalance(ctx context.Context, masterID string) (*model.MasterFolio, error)
	CloseMasterFolio(ctx context.Context, masterID string, req CloseMasterFolioRequest, userID string) (*model.MasterFolio, error)
	ReopenMasterFolio(ctx context.Context, masterID string, userID string) (*model.MasterFolio, error)
	SuspendMasterFolio(ctx context.Context, masterID string, userID string) (*model.MasterFolio, error)
}

type masterFolioService struct {
	masterRepo repository.MasterFolioRepository
	folioRepo  repository.FolioRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	locks      *keylock.KeyedMutex
	hub        EventBroadcaster
	now        func() time.Time
}

func NewMasterFolioService(
	masterRepo repository.MasterFolioRepository,
	folioRepo repository.FolioRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	locks *keylock.KeyedMutex,
	hub EventBroadcaster,
) MasterFolioService {
	return &masterFolioService{
		masterRepo: masterRepo,
		folioRepo:  folioRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		locks:      locks,
		hub:        hub,
		now:        time.Now,
	}
}

// --- Implementation ---

func (s *masterFolioService) CreateMasterFolio(ctx context.Context, req CreateMasterFolioRequest, userID string) (*model.MasterFolio, error) {
	master := &model.MasterFolio{
		Name:               req.Name,
		MasterType:         req.MasterType,
		BillingArrangement: req.BillingArrangement,
		PrimaryContact:     req.PrimaryContact,
		Status:             model.MasterStatusActive,
		TotalBalance:       decimal.Zero,
	}
	if err := s.masterRepo.Create(ctx, master); err != nil {
		return nil, fmt.Errorf("failed to create master folio: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCreateMasterFolio, master.ID.String(), master.Name, req)

	return master, nil
}

func (s *masterFolioService) GetMasterFolio(ctx context.Context, id string) (*model.MasterFolio, error) {
	masterID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}
	master, err := s.masterRepo.FindByIDWithDetail(ctx, masterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("master folio not found")
		}
		return nil, fmt.Errorf("failed to fetch master folio: %w", err)
	}
	return master, nil
}

func (s *masterFolioService) ListMasterFolios(ctx context.Context, filter MasterFolioFilter) ([]model.MasterFolio, int64, error) {
	return s.masterRepo.List(ctx, filter.Status, filter.MasterType, filter.Page, filter.Limit)
}

// LinkFolio attaches a folio to a master and recomputes the master total in
// the same transaction — the link and the new rollup are atomic.
func (s *masterFolioService) LinkFolio(ctx context.Context, masterID, folioID string, userID string) (*model.MasterFolio, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}
	fID, err := uuid.Parse(folioID)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}

	s.locks.Lock(mID.String())
	defer s.locks.Unlock(mID.String())

	var master *model.MasterFolio
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err = s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}
		if master.Status != model.MasterStatusActive {
			return fmt.Errorf("cannot link to a %s master folio", master.Status)
		}

		folio, err := s.folioRepo.FindByID(txCtx, fID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("folio not found")
			}
			return fmt.Errorf("failed to fetch folio: %w", err)
		}
		if folio.MasterFolioID != nil {
			return fmt.Errorf("folio is already linked to a master folio")
		}

		folio.MasterFolioID = &mID
		if err := s.folioRepo.Update(txCtx, folio); err != nil {
			return fmt.Errorf("failed to link folio: %w", err)
		}
		return s.recompute(txCtx, master)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionLinkFolio, mID.String(), master.Name, map[string]string{"folio_id": folioID})
	publishEvent(s.hub, EventMasterBalanceUpdated, map[string]string{"master_folio_id": mID.String()})

	return master, nil
}

// UnlinkFolio detaches a folio; already-routed charges stay where they were
// posted. The folio leaves with whatever balance its own rows produce.
func (s *masterFolioService) UnlinkFolio(ctx context.Context, masterID, folioID string, userID string) (*model.MasterFolio, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}
	fID, err := uuid.Parse(folioID)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}

	s.locks.Lock(mID.String())
	defer s.locks.Unlock(mID.String())

	var master *model.MasterFolio
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err = s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}

		folio, err := s.folioRepo.FindByID(txCtx, fID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("folio not found")
			}
			return fmt.Errorf("failed to fetch folio: %w", err)
		}
		if folio.MasterFolioID == nil || *folio.MasterFolioID != mID {
			return fmt.Errorf("folio is not linked to this master folio")
		}

		folio.MasterFolioID = nil
		if err := s.folioRepo.Update(txCtx, folio); err != nil {
			return fmt.Errorf("failed to unlink folio: %w", err)
		}
		return s.recompute(txCtx, master)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionUnlinkFolio, mID.String(), master.Name, map[string]string{"folio_id": folioID})
	publishEvent(s.hub, EventMasterBalanceUpdated, map[string]string{"master_folio_id": mID.String()})

	return master, nil
}

// SetRoutingRules replaces the whole rule list. Priorities follow list
// order, so the caller's ordering is the evaluation order.
func (s *masterFolioService) SetRoutingRules(ctx context.Context, masterID string, req SetRoutingRulesRequest, userID string) ([]model.RoutingRule, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}

	rules := make([]model.RoutingRule, 0, len(req.Rules))
	for i, in := range req.Rules {
		rule := model.RoutingRule{
			MasterFolioID: mID,
			RuleType:      in.RuleType,
			IsActive:      boolOrDefault(in.IsActive, true),
			Priority:      i,
		}
		if in.SourceFolioID != "" {
			src, parseErr := uuid.Parse(in.SourceFolioID)
			if parseErr != nil {
				return nil, fmt.Errorf("invalid source_folio_id on rule %d: %w", i+1, parseErr)
			}
			rule.SourceFolioID = &src
		}
		if in.TargetFolioID != "" {
			tgt, parseErr := uuid.Parse(in.TargetFolioID)
			if parseErr != nil {
				return nil, fmt.Errorf("invalid target_folio_id on rule %d: %w", i+1, parseErr)
			}
			rule.TargetFolioID = &tgt
		}
		if in.Percentage != "" {
			if in.RuleType != model.RuleTypeCustom {
				return nil, fmt.Errorf("percentage is only valid on CUSTOM rules (rule %d)", i+1)
			}
			pct, parseErr := decimal.NewFromString(in.Percentage)
			if parseErr != nil {
				return nil, fmt.Errorf("invalid percentage on rule %d: %w", i+1, parseErr)
			}
			if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
				return nil, fmt.Errorf("percentage on rule %d must be between 0 and 100", i+1)
			}
			rule.Percentage = &pct
		}
		rules = append(rules, rule)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err := s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}
		if master.Status != model.MasterStatusActive {
			return fmt.Errorf("cannot set routing rules on a %s master folio", master.Status)
		}
		return s.masterRepo.ReplaceRoutingRules(txCtx, mID, rules)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionSetRoutingRules, mID.String(), "", req)

	return rules, nil
}

func (s *masterFolioService) PostMasterCharge(ctx context.Context, masterID string, req PostChargeRequest, userID string) (*model.FolioCharge, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}

	unitAmount, err := decimal.NewFromString(req.UnitAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid unit amount: %w", err)
	}

	s.locks.Lock(mID.String())
	defer s.locks.Unlock(mID.String())

	charge := &model.FolioCharge{
		MasterFolioID:           &mID,
		Description:             req.Description,
		Department:              req.Department,
		UnitAmount:              unitAmount,
		Quantity:                req.Quantity,
		Amount:                  unitAmount.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Taxable:                 boolOrDefault(req.Taxable, true),
		ServiceChargeApplicable: boolOrDefault(req.ServiceChargeApplicable, true),
		PostedAt:                s.now(),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err := s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}
		if master.Status != model.MasterStatusActive {
			return fmt.Errorf("cannot post to a %s master folio", master.Status)
		}
		if err := s.folioRepo.CreateCharge(txCtx, charge); err != nil {
			return fmt.Errorf("failed to create charge: %w", err)
		}
		return s.recompute(txCtx, master)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionPostCharge, mID.String(), charge.Description, req)
	publishEvent(s.hub, EventMasterBalanceUpdated, map[string]string{"master_folio_id": mID.String()})

	return charge, nil
}

func (s *masterFolioService) PostMasterPayment(ctx context.Context, masterID string, req PostPaymentRequest, userID string) (*model.FolioPayment, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	s.locks.Lock(mID.String())
	defer s.locks.Unlock(mID.String())

	payment := &model.FolioPayment{
		MasterFolioID: &mID,
		Amount:        amount,
		Method:        req.Method,
		Status:        model.PaymentStatusSettled,
		Reference:     req.Reference,
		PostedAt:      s.now(),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err := s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}
		if master.Status == model.MasterStatusClosed {
			return fmt.Errorf("cannot post to a closed master folio")
		}
		if err := s.folioRepo.CreatePayment(txCtx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return s.recompute(txCtx, master)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionPostPayment, mID.String(), req.Method+" "+amount.StringFixed(2), req)
	publishEvent(s.hub, EventMasterBalanceUpdated, map[string]string{"master_folio_id": mID.String()})

	return payment, nil
}

func (s *masterFolioService) RecomputeBalance(ctx context.Context, masterID string) (*model.MasterFolio, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}

	s.locks.Lock(mID.String())
	defer s.locks.Unlock(mID.String())

	var master *model.MasterFolio
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err = s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}
		return s.recompute(txCtx, master)
	})
	if err != nil {
		return nil, err
	}

	return master, nil
}

func (s *masterFolioService) CloseMasterFolio(ctx context.Context, masterID string, req CloseMasterFolioRequest, userID string) (*model.MasterFolio, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}

	s.locks.Lock(mID.String())
	defer s.locks.Unlock(mID.String())

	var master *model.MasterFolio
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err = s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}
		if master.Status == model.MasterStatusClosed {
			return fmt.Errorf("master folio is already closed")
		}

		if err := s.recompute(txCtx, master); err != nil {
			return err
		}
		if !master.TotalBalance.IsZero() && !req.Override {
			return fmt.Errorf("cannot close master folio with non-zero balance %s", master.TotalBalance.StringFixed(2))
		}

		now := s.now()
		master.Status = model.MasterStatusClosed
		master.ClosedAt = &now
		if actorID, parseErr := uuid.Parse(userID); parseErr == nil {
			master.ClosedBy = &actorID
		}
		return s.masterRepo.Update(txCtx, master)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCloseMasterFolio, mID.String(), master.Name, req)

	return master, nil
}

func (s *masterFolioService) ReopenMasterFolio(ctx context.Context, masterID string, userID string) (*model.MasterFolio, error) {
	return s.setStatus(ctx, masterID, model.MasterStatusActive, model.ActionReopenMasterFolio, userID)
}

func (s *masterFolioService) SuspendMasterFolio(ctx context.Context, masterID string, userID string) (*model.MasterFolio, error) {
	return s.setStatus(ctx, masterID, model.MasterStatusSuspended, model.ActionSuspendMasterFolio, userID)
}

// --- Helpers ---

func (s *masterFolioService) setStatus(ctx context.Context, masterID, status, action, userID string) (*model.MasterFolio, error) {
	mID, err := uuid.Parse(masterID)
	if err != nil {
		return nil, fmt.Errorf("invalid master folio id: %w", err)
	}

	s.locks.Lock(mID.String())
	defer s.locks.Unlock(mID.String())

	var master *model.MasterFolio
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		master, err = s.masterRepo.FindByID(txCtx, mID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("master folio not found")
			}
			return fmt.Errorf("failed to fetch master folio: %w", err)
		}
		if master.Status == status {
			return fmt.Errorf("master folio is already %s", status)
		}

		master.Status = status
		if status == model.MasterStatusActive {
			master.ClosedAt = nil
			master.ClosedBy = nil
		}
		return s.masterRepo.Update(txCtx, master)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, action, mID.String(), master.Name, map[string]string{"status": status})

	return master, nil
}

// recompute rebuilds the master total from its own ledger plus every linked
// child balance and writes both the children's and the master's stored
// balances.
func (s *masterFolioService) recompute(ctx context.Context, master *model.MasterFolio) error {
	charges, err := s.masterRepo.ChargesByMaster(ctx, master.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch master charges: %w", err)
	}
	payments, err := s.masterRepo.PaymentsByMaster(ctx, master.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch master payments: %w", err)
	}
	children, err := s.folioRepo.ListByMasterFolio(ctx, master.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch child folios: %w", err)
	}

	childBalances := make([]decimal.Decimal, 0, len(children))
	for i := range children {
		childCharges, err := s.folioRepo.ChargesByFolio(ctx, children[i].ID)
		if err != nil {
			return fmt.Errorf("failed to fetch child charges: %w", err)
		}
		childPayments, err := s.folioRepo.PaymentsByFolio(ctx, children[i].ID)
		if err != nil {
			return fmt.Errorf("failed to fetch child payments: %w", err)
		}
		balance := billing.FolioBalance(childCharges, childPayments)
		if !children[i].Balance.Equal(balance) {
			if err := s.folioRepo.UpdateBalance(ctx, children[i].ID, balance); err != nil {
				return fmt.Errorf("failed to update child balance: %w", err)
			}
		}
		childBalances = append(childBalances, balance)
	}

	total := billing.MasterBalance(charges, payments, childBalances)
	if err := s.masterRepo.UpdateBalance(ctx, master.ID, total); err != nil {
		return fmt.Errorf("failed to update master balance: %w", err)
	}
	master.TotalBalance = total
	return nil
}
