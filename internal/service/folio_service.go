package service

import (
	"context"
	"encoding/json"
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

// EventBroadcaster pushes serialized events to connected websocket clients.
type EventBroadcaster interface {
	GetBroadcast() chan []byte
}

// Websocket event names
const (
	EventFolioBalanceUpdated  = "folio.balance_updated"
	EventMasterBalanceUpdated = "master_folio.balance_updated"
	EventInvoicePosted        = "invoice.posted"
)

// publishEvent serializes and broadcasts an event without blocking posting
// paths when no hub is attached or no reader is draining the channel.
func publishEvent(hub EventBroadcaster, event string, payload interface{}) {
	if hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{"event": event, "data": payload})
	if err != nil {
		return
	}
	select {
	case hub.GetBroadcast() <- msg:
	default:
	}
}

// --- DTOs ---

type OpenFolioRequest struct {
	GuestID       string `json:"guest_id" binding:"required,uuid"`
	ReservationID string `json:"reservation_id" binding:"omitempty,uuid"`
}

type PostChargeRequest struct {
	Description             string `json:"description" binding:"required,max=255"`
	Department              string `json:"department" binding:"required,oneof=ROOM FNB EXTRA MISC"`
	UnitAmount              string `json:"unit_amount" binding:"required"`
	Quantity                int    `json:"quantity" binding:"required,min=1"`
	Taxable                 *bool  `json:"taxable"`
	ServiceChargeApplicable *bool  `json:"service_charge_applicable"`
}

type PostPaymentRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Method    string `json:"method" binding:"required,oneof=CASH CARD BANK_TRANSFER CITY_LEDGER"`
	Reference string `json:"reference" binding:"max=100"`
}

type PostExtraServiceRequest struct {
	ServiceCode string `json:"service_code" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

type FolioFilter struct {
	Status  string
	GuestID string
	Page    int
	Limit   int
}

// PostChargeResult reports where a posted charge landed after routing.
type PostChargeResult struct {
	Charge        *model.FolioCharge `json:"charge"`
	RoutedCharge  *model.FolioCharge `json:"routed_charge,omitempty"` // set when routing moved all or part of the amount
	MatchedRuleID *uuid.UUID         `json:"matched_rule_id,omitempty"`
}

type ReconcileResult struct {
	FolioID         uuid.UUID       `json:"folio_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	Drifted         bool            `json:"drifted"`
}

// --- Interface ---

type FolioService interface {
	OpenFolio(ctx context.Context, req OpenFolioRequest, userID string) (*model.Folio, error)
	GetFolio(ctx context.Context, id string) (*model.Folio, error)
	ListFolios(ctx context.Context, filter FolioFilter) ([]model.Folio, int64, error)
	PostCharge(ctx context.Context, folioID string, req PostChargeRequest, userID string) (*PostChargeResult, error)
	PostPayment(ctx context.Context, folioID string, req PostPaymentRequest, userID string) (*model.FolioPayment, error)
	PostExtraService(ctx context.Context, folioID string, req PostExtraServiceRequest, userID string) (*PostChargeResult, error)
	ReconcileFolio(ctx context.Context, folioID string, userID string) (*ReconcileResult, error)
	CloseFolio(ctx context.Context, folioID string, userID string) (*model.Folio, error)
}

type folioService struct {
	folioRepo   repository.FolioRepository
	masterRepo  repository.MasterFolioRepository
	guestRepo   repository.GuestRepository
	extraRepo   repository.ExtraServiceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	locks       *keylock.KeyedMutex
	hub         EventBroadcaster
	now         func() time.Time
}

func NewFolioService(
	folioRepo repository.FolioRepository,
	masterRepo repository.MasterFolioRepository,
	guestRepo repository.GuestRepository,
	extraRepo repository.ExtraServiceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	locks *keylock.KeyedMutex,
	hub EventBroadcaster,
) FolioService {
	return &folioService{
		folioRepo:  folioRepo,
		masterRepo: masterRepo,
		guestRepo:  guestRepo,
		extraRepo:  extraRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		locks:      locks,
		hub:        hub,
		now:        time.Now,
	}
}

// --- Implementation ---

func (s *folioService) OpenFolio(ctx context.Context, req OpenFolioRequest, userID string) (*model.Folio, error) {
	guestID, err := uuid.Parse(req.GuestID)
	if err != nil {
		return nil, fmt.Errorf("invalid guest id: %w", err)
	}

	guest, err := s.guestRepo.FindByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("guest not found")
		}
		return nil, fmt.Errorf("failed to fetch guest: %w", err)
	}

	var reservationID *uuid.UUID
	if req.ReservationID != "" {
		parsed, parseErr := uuid.Parse(req.ReservationID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid reservation id: %w", parseErr)
		}
		reservationID = &parsed
	}

	folio := &model.Folio{
		GuestID:       guestID,
		ReservationID: reservationID,
		Status:        model.FolioStatusOpen,
		Balance:       decimal.Zero,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		folioNo, numErr := s.nextFolioNumber(txCtx)
		if numErr != nil {
			return numErr
		}
		folio.FolioNo = folioNo
		return s.folioRepo.Create(txCtx, folio)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open folio: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionOpenFolio, folio.ID.String(), folio.FolioNo+" ("+guest.FullName()+")", req)

	return folio, nil
}

func (s *folioService) GetFolio(ctx context.Context, id string) (*model.Folio, error) {
	folioID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}
	folio, err := s.folioRepo.FindByIDWithEntries(ctx, folioID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("folio not found")
		}
		return nil, fmt.Errorf("failed to fetch folio: %w", err)
	}
	return folio, nil
}

func (s *folioService) ListFolios(ctx context.Context, filter FolioFilter) ([]model.Folio, int64, error) {
	var guestID *uuid.UUID
	if filter.GuestID != "" {
		parsed, err := uuid.Parse(filter.GuestID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid guest id: %w", err)
		}
		guestID = &parsed
	}
	return s.folioRepo.List(ctx, filter.Status, guestID, filter.Page, filter.Limit)
}

func (s *folioService) PostCharge(ctx context.Context, folioID string, req PostChargeRequest, userID string) (*PostChargeResult, error) {
	id, err := uuid.Parse(folioID)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}

	unitAmount, err := decimal.NewFromString(req.UnitAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid unit amount: %w", err)
	}

	charge := model.FolioCharge{
		FolioID:                 &id,
		Description:             req.Description,
		Department:              req.Department,
		UnitAmount:              unitAmount,
		Quantity:                req.Quantity,
		Amount:                  unitAmount.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Taxable:                 boolOrDefault(req.Taxable, true),
		ServiceChargeApplicable: boolOrDefault(req.ServiceChargeApplicable, true),
		PostedAt:                s.now(),
	}

	return s.postCharge(ctx, id, charge, userID)
}

func (s *folioService) PostExtraService(ctx context.Context, folioID string, req PostExtraServiceRequest, userID string) (*PostChargeResult, error) {
	id, err := uuid.Parse(folioID)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}

	svc, err := s.extraRepo.FindByCode(ctx, req.ServiceCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("extra service '%s' not found", req.ServiceCode)
		}
		return nil, fmt.Errorf("failed to fetch extra service: %w", err)
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("extra service '%s' is not active", req.ServiceCode)
	}

	charge := model.FolioCharge{
		FolioID:                 &id,
		Description:             svc.Name,
		Department:              svc.Department,
		UnitAmount:              svc.UnitPrice,
		Quantity:                req.Quantity,
		Amount:                  svc.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Taxable:                 svc.Taxable,
		ServiceChargeApplicable: svc.ServiceChargeApplicable,
		PostedAt:                s.now(),
	}

	return s.postCharge(ctx, id, charge, userID)
}

// postCharge runs the shared posting path: validate the folio, route the
// charge against the linked master (if any), persist the resulting rows and
// recompute every affected balance inside one transaction.
func (s *folioService) postCharge(ctx context.Context, folioID uuid.UUID, charge model.FolioCharge, userID string) (*PostChargeResult, error) {
	s.locks.Lock(folioID.String())
	defer s.locks.Unlock(folioID.String())
	if masterKey := s.masterLockKey(ctx, folioID); masterKey != "" {
		s.locks.Lock(masterKey)
		defer s.locks.Unlock(masterKey)
	}

	result := &PostChargeResult{}
	var affectedMaster *model.MasterFolio

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		folio, err := s.folioRepo.FindByID(txCtx, folioID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("folio not found")
			}
			return fmt.Errorf("failed to fetch folio: %w", err)
		}
		if folio.Status != model.FolioStatusOpen {
			return fmt.Errorf("cannot post to a %s folio", folio.Status)
		}

		var master *model.MasterFolio
		if folio.MasterFolioID != nil {
			master, err = s.masterRepo.FindByIDWithDetail(txCtx, *folio.MasterFolioID)
			if err != nil {
				return fmt.Errorf("failed to fetch master folio: %w", err)
			}
		}

		decision := billing.RouteCharge(charge, master)
		result.MatchedRuleID = decision.MatchedRuleID

		switch {
		case decision.StaysOnSource():
			if err := s.folioRepo.CreateCharge(txCtx, &charge); err != nil {
				return fmt.Errorf("failed to create charge: %w", err)
			}
			result.Charge = &charge

		default:
			routed := charge
			routed.ID = uuid.Nil
			routed.Amount = decision.Amount
			if decision.ToMaster {
				routed.FolioID = nil
				routed.MasterFolioID = folio.MasterFolioID
			} else {
				routed.FolioID = decision.TargetFolioID
			}
			if err := s.folioRepo.CreateCharge(txCtx, &routed); err != nil {
				return fmt.Errorf("failed to create routed charge: %w", err)
			}
			result.RoutedCharge = &routed

			if decision.Remainder.IsPositive() {
				remainder := charge
				remainder.ID = uuid.Nil
				remainder.Amount = decision.Remainder
				if err := s.folioRepo.CreateCharge(txCtx, &remainder); err != nil {
					return fmt.Errorf("failed to create remainder charge: %w", err)
				}
				result.Charge = &remainder
			}
		}

		if err := s.recomputeFolioBalance(txCtx, folio); err != nil {
			return err
		}
		if result.RoutedCharge != nil && result.RoutedCharge.FolioID != nil && *result.RoutedCharge.FolioID != folio.ID {
			target, err := s.folioRepo.FindByID(txCtx, *result.RoutedCharge.FolioID)
			if err != nil {
				return fmt.Errorf("failed to fetch routing target folio: %w", err)
			}
			if err := s.recomputeFolioBalance(txCtx, target); err != nil {
				return err
			}
		}
		if master != nil {
			if err := s.recomputeMasterBalance(txCtx, master.ID); err != nil {
				return err
			}
			affectedMaster = master
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.RoutedCharge != nil {
		writeAuditLog(ctx, s.auditRepo, userID, model.ActionRouteCharge, folioID.String(), charge.Description, result)
	} else {
		writeAuditLog(ctx, s.auditRepo, userID, model.ActionPostCharge, folioID.String(), charge.Description, result)
	}

	publishEvent(s.hub, EventFolioBalanceUpdated, map[string]string{"folio_id": folioID.String()})
	if affectedMaster != nil {
		publishEvent(s.hub, EventMasterBalanceUpdated, map[string]string{"master_folio_id": affectedMaster.ID.String()})
	}

	return result, nil
}

func (s *folioService) PostPayment(ctx context.Context, folioID string, req PostPaymentRequest, userID string) (*model.FolioPayment, error) {
	id, err := uuid.Parse(folioID)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())
	if masterKey := s.masterLockKey(ctx, id); masterKey != "" {
		s.locks.Lock(masterKey)
		defer s.locks.Unlock(masterKey)
	}

	payment := &model.FolioPayment{
		FolioID:   &id,
		Amount:    amount,
		Method:    req.Method,
		Status:    model.PaymentStatusSettled,
		Reference: req.Reference,
		PostedAt:  s.now(),
	}

	var masterID *uuid.UUID
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		folio, err := s.folioRepo.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("folio not found")
			}
			return fmt.Errorf("failed to fetch folio: %w", err)
		}
		if folio.Status != model.FolioStatusOpen {
			return fmt.Errorf("cannot post to a %s folio", folio.Status)
		}

		if err := s.folioRepo.CreatePayment(txCtx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if err := s.recomputeFolioBalance(txCtx, folio); err != nil {
			return err
		}
		if folio.MasterFolioID != nil {
			masterID = folio.MasterFolioID
			return s.recomputeMasterBalance(txCtx, *folio.MasterFolioID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionPostPayment, id.String(), req.Method+" "+amount.StringFixed(2), req)

	publishEvent(s.hub, EventFolioBalanceUpdated, map[string]string{"folio_id": id.String()})
	if masterID != nil {
		publishEvent(s.hub, EventMasterBalanceUpdated, map[string]string{"master_folio_id": masterID.String()})
	}

	return payment, nil
}

// ReconcileFolio recomputes the balance from the charge and payment rows and
// overwrites the stored value when they drifted apart.
func (s *folioService) ReconcileFolio(ctx context.Context, folioID string, userID string) (*ReconcileResult, error) {
	id, err := uuid.Parse(folioID)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	result := &ReconcileResult{FolioID: id}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		folio, err := s.folioRepo.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("folio not found")
			}
			return fmt.Errorf("failed to fetch folio: %w", err)
		}

		computed, err := s.computeBalance(txCtx, folio.ID)
		if err != nil {
			return err
		}

		result.StoredBalance = folio.Balance
		result.ComputedBalance = computed
		result.Drifted = !folio.Balance.Equal(computed)

		if result.Drifted {
			return s.folioRepo.UpdateBalance(txCtx, folio.ID, computed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Drifted {
		writeAuditLog(ctx, s.auditRepo, userID, model.ActionReconcileFolio, id.String(), "", result)
		publishEvent(s.hub, EventFolioBalanceUpdated, map[string]string{"folio_id": id.String()})
	}

	return result, nil
}

func (s *folioService) CloseFolio(ctx context.Context, folioID string, userID string) (*model.Folio, error) {
	id, err := uuid.Parse(folioID)
	if err != nil {
		return nil, fmt.Errorf("invalid folio id: %w", err)
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	var folio *model.Folio
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		folio, err = s.folioRepo.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("folio not found")
			}
			return fmt.Errorf("failed to fetch folio: %w", err)
		}
		if folio.Status != model.FolioStatusOpen {
			return fmt.Errorf("folio is already %s", folio.Status)
		}

		computed, err := s.computeBalance(txCtx, folio.ID)
		if err != nil {
			return err
		}
		if !computed.IsZero() {
			return fmt.Errorf("cannot close folio with non-zero balance %s", computed.StringFixed(2))
		}

		folio.Status = model.FolioStatusClosed
		folio.Balance = computed
		return s.folioRepo.Update(txCtx, folio)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCloseFolio, id.String(), folio.FolioNo, nil)

	return folio, nil
}

// --- Helpers ---

func (s *folioService) nextFolioNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("F-%s-", s.now().Format("20060102"))
	count, err := s.folioRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to count folios: %w", err)
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (s *folioService) computeBalance(ctx context.Context, folioID uuid.UUID) (decimal.Decimal, error) {
	charges, err := s.folioRepo.ChargesByFolio(ctx, folioID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch charges: %w", err)
	}
	payments, err := s.folioRepo.PaymentsByFolio(ctx, folioID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch payments: %w", err)
	}
	return billing.FolioBalance(charges, payments), nil
}

// masterLockKey pre-reads the folio's master link so postings that trigger a
// master recompute also hold the master's key. Lock order is always folio
// first, master second; the master service only ever takes the master key.
func (s *folioService) masterLockKey(ctx context.Context, folioID uuid.UUID) string {
	folio, err := s.folioRepo.FindByID(ctx, folioID)
	if err != nil || folio.MasterFolioID == nil {
		return ""
	}
	return folio.MasterFolioID.String()
}

func (s *folioService) recomputeFolioBalance(ctx context.Context, folio *model.Folio) error {
	balance, err := s.computeBalance(ctx, folio.ID)
	if err != nil {
		return err
	}
	if err := s.folioRepo.UpdateBalance(ctx, folio.ID, balance); err != nil {
		return fmt.Errorf("failed to update folio balance: %w", err)
	}
	folio.Balance = balance
	return nil
}

// recomputeMasterBalance rebuilds the master total from its own ledger plus
// every linked child balance.
func (s *folioService) recomputeMasterBalance(ctx context.Context, masterID uuid.UUID) error {
	charges, err := s.masterRepo.ChargesByMaster(ctx, masterID)
	if err != nil {
		return fmt.Errorf("failed to fetch master charges: %w", err)
	}
	payments, err := s.masterRepo.PaymentsByMaster(ctx, masterID)
	if err != nil {
		return fmt.Errorf("failed to fetch master payments: %w", err)
	}
	children, err := s.folioRepo.ListByMasterFolio(ctx, masterID)
	if err != nil {
		return fmt.Errorf("failed to fetch child folios: %w", err)
	}

	childBalances := make([]decimal.Decimal, 0, len(children))
	for i := range children {
		balance, err := s.computeBalance(ctx, children[i].ID)
		if err != nil {
			return err
		}
		if !children[i].Balance.Equal(balance) {
			if err := s.folioRepo.UpdateBalance(ctx, children[i].ID, balance); err != nil {
				return fmt.Errorf("failed to update child balance: %w", err)
			}
		}
		childBalances = append(childBalances, balance)
	}

	total := billing.MasterBalance(charges, payments, childBalances)
	if err := s.masterRepo.UpdateBalance(ctx, masterID, total); err != nil {
		return fmt.Errorf("failed to update master balance: %w", err)
	}
	return nil
}
