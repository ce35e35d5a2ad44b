package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backend/internal/billing"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice number prefixes by invoice type
const (
	invoicePrefixStandard   = "INV"
	invoicePrefixProforma   = "PFM"
	invoicePrefixCreditNote = "CRN"
	invoicePrefixDebitNote  = "DBN"
)

// allowedTransitions is the invoice lifecycle: draft and interim stages may
// be cancelled, a posted invoice may only move through refund states driven
// by payment reversals.
var allowedTransitions = map[string][]string{
	model.InvoiceStatusDraft:   {model.InvoiceStatusInterim, model.InvoiceStatusCancelled},
	model.InvoiceStatusInterim: {model.InvoiceStatusFinal, model.InvoiceStatusCancelled},
	model.InvoiceStatusFinal:   {model.InvoiceStatusPosted, model.InvoiceStatusCancelled},
}

// --- DTOs ---

type CreateInvoiceRequest struct {
	FolioID     string                 `json:"folio_id" binding:"required,uuid"`
	InvoiceType string                 `json:"invoice_type" binding:"required,oneof=GUEST_FOLIO ROOM_ONLY FNB_ONLY EXTRAS_ONLY GROUP_MASTER"`
	DueDate     string                 `json:"due_date"` // YYYY-MM-DD, optional
	Notes       string                 `json:"notes"`
	Discounts   []InvoiceDiscountInput `json:"discounts"`
}

type InvoiceLineInput struct {
	Description             string `json:"description" binding:"required,max=255"`
	Department              string `json:"department" binding:"required,oneof=ROOM FNB EXTRA MISC"`
	Quantity                int    `json:"quantity" binding:"required,min=1"`
	UnitPrice               string `json:"unit_price" binding:"required"`
	Taxable                 *bool  `json:"taxable"`
	ServiceChargeApplicable *bool  `json:"service_charge_applicable"`
}

type InvoiceDiscountInput struct {
	Description string `json:"description" binding:"max=255"`
	Scope       string `json:"scope" binding:"omitempty,oneof=INVOICE LINE"`
	Type        string `json:"type" binding:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value       string `json:"value" binding:"required"`
	// LineIndex targets a line by its position in the invoice's sorted line
	// items. Required when Scope is LINE.
	LineIndex *int `json:"line_index" binding:"omitempty,min=0"`
}

type CreateProformaRequest struct {
	GuestID   string                 `json:"guest_id" binding:"omitempty,uuid"`
	GuestName string                 `json:"guest_name" binding:"max=255"`
	Lines     []InvoiceLineInput     `json:"lines" binding:"required,min=1,dive"`
	Discounts []InvoiceDiscountInput `json:"discounts"`
	Notes     string                 `json:"notes"`
}

type UpdateInvoiceLinesRequest struct {
	Lines     []InvoiceLineInput     `json:"lines" binding:"required,min=1,dive"`
	Discounts []InvoiceDiscountInput `json:"discounts"`
}

type TransitionInvoiceRequest struct {
	Status string `json:"status" binding:"required,oneof=INTERIM FINAL POSTED CANCELLED"`
	Reason string `json:"reason" binding:"max=255"`
}

type AddInvoicePaymentRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Method    string `json:"method" binding:"required,oneof=CASH CARD BANK_TRANSFER CITY_LEDGER"`
	Reference string `json:"reference" binding:"max=100"`
}

type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

type IssueNoteRequest struct {
	NoteType string             `json:"note_type" binding:"required,oneof=CREDIT_NOTE DEBIT_NOTE"`
	Lines    []InvoiceLineInput `json:"lines" binding:"required,min=1,dive"`
	Reason   string             `json:"reason" binding:"required,max=255"`
}

type InvoiceFilter struct {
	Status  string
	FolioID string
	Page    int
	Limit   int
}

// ValidationResult lists everything blocking an invoice from being posted.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

// --- Interface ---

type InvoiceService interface {
	CreateFromFolio(ctx context.Context, req CreateInvoiceRequest, userID string) (*model.Invoice, error)
	CreateProforma(ctx context.Context, req CreateProformaRequest, userID string) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	UpdateLines(ctx context.Context, id string, req UpdateInvoiceLinesRequest, userID string) (*model.Invoice, error)
	Validate(ctx context.Context, id string) (*ValidationResult, error)
	Transition(ctx context.Context, id string, req TransitionInvoiceRequest, userID string) (*model.Invoice, error)
	AddPayment(ctx context.Context, id string, req AddInvoicePaymentRequest, userID string) (*model.Invoice, error)
	ReversePayment(ctx context.Context, id, paymentID, reason, userID string) (*model.Invoice, error)
	IssueNote(ctx context.Context, id string, req IssueNoteRequest, userID string) (*model.Invoice, error)
	GetAuditTrail(ctx context.Context, id string) ([]model.InvoiceAuditEntry, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	folioRepo   repository.FolioRepository
	guestRepo   repository.GuestRepository
	resvRepo    repository.ReservationRepository
	auditRepo   repository.AuditRepository
	taxSvc      TaxService
	txManager   repository.TransactionManager
	hub         EventBroadcaster
	now         func() time.Time
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	folioRepo repository.FolioRepository,
	guestRepo repository.GuestRepository,
	resvRepo repository.ReservationRepository,
	auditRepo repository.AuditRepository,
	taxSvc TaxService,
	txManager repository.TransactionManager,
	hub EventBroadcaster,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		folioRepo:   folioRepo,
		guestRepo:   guestRepo,
		resvRepo:    resvRepo,
		auditRepo:   auditRepo,
		taxSvc:      taxSvc,
		txManager:   txManager,
		hub:         hub,
		now:         time.Now,
	}
}

// --- Implementation ---

func (s *invoiceService) CreateFromFolio(ctx context.Context, req CreateInvoiceRequest, userID string) (*model.Invoice, error) {
	folioID, err := uuid.Parse(req.FolioID)
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

	charges := filterChargesByInvoiceType(folio.Charges, req.InvoiceType)
	if len(charges) == 0 {
		return nil, fmt.Errorf("folio has no charges matching invoice type %s", req.InvoiceType)
	}

	rules, err := s.taxSvc.ActiveRuleSet(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.InvoiceLineItem, 0, len(charges))
	for i, charge := range charges {
		item, gaps := rules.Build(charge)
		for _, gap := range gaps {
			log.Printf("WARNING: %s (charge %q)", gap, charge.Description)
		}
		item.ID = uuid.New()
		item.SortOrder = i
		items = append(items, item)
	}

	discounts, err := buildDiscounts(req.Discounts, items)
	if err != nil {
		return nil, err
	}

	invoiceDate := s.now()
	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, parseErr := time.Parse("2006-01-02", req.DueDate)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid due_date format (expected YYYY-MM-DD): %w", parseErr)
		}
		if parsed.Format("20060102") < invoiceDate.Format("20060102") {
			return nil, fmt.Errorf("due_date must not be before the invoice date")
		}
		dueDate = &parsed
	}

	invoice := &model.Invoice{
		InvoiceType:   req.InvoiceType,
		Status:        model.InvoiceStatusDraft,
		FolioID:       &folio.ID,
		ReservationID: folio.ReservationID,
		GuestID:       &folio.GuestID,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		Notes:         req.Notes,
	}
	if folio.Guest != nil {
		invoice.GuestName = folio.Guest.FullName()
	}
	if folio.ReservationID != nil {
		if resv, resvErr := s.resvRepo.FindByIDWithRoom(ctx, *folio.ReservationID); resvErr == nil && resv.Room != nil {
			invoice.RoomNumber = resv.Room.RoomNumber
		}
	}

	applyTotals(invoice, items, discounts)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		no, numErr := s.nextInvoiceNumber(txCtx, invoicePrefixStandard)
		if numErr != nil {
			return numErr
		}
		invoice.InvoiceNo = no
		invoice.LineItems = items
		invoice.Discounts = discounts
		if createErr := s.invoiceRepo.Create(txCtx, invoice); createErr != nil {
			return fmt.Errorf("failed to create invoice: %w", createErr)
		}
		return s.appendAudit(txCtx, invoice.ID, model.InvoiceActionCreated,
			fmt.Sprintf("invoice %s created from folio %s", invoice.InvoiceNo, folio.FolioNo), userID)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceNo, req)

	return invoice, nil
}

func (s *invoiceService) CreateProforma(ctx context.Context, req CreateProformaRequest, userID string) (*model.Invoice, error) {
	rules, err := s.taxSvc.ActiveRuleSet(ctx)
	if err != nil {
		return nil, err
	}

	items, err := buildLineItems(req.Lines, rules)
	if err != nil {
		return nil, err
	}

	discounts, err := buildDiscounts(req.Discounts, items)
	if err != nil {
		return nil, err
	}

	invoice := &model.Invoice{
		InvoiceType: model.InvoiceTypeProforma,
		Status:      model.InvoiceStatusDraft,
		InvoiceDate: s.now(),
		GuestName:   req.GuestName,
		Notes:       req.Notes,
	}
	if req.GuestID != "" {
		guestID, parseErr := uuid.Parse(req.GuestID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid guest id: %w", parseErr)
		}
		invoice.GuestID = &guestID
		if guest, guestErr := s.guestRepo.FindByID(ctx, guestID); guestErr == nil {
			invoice.GuestName = guest.FullName()
		}
	}

	applyTotals(invoice, items, discounts)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		no, numErr := s.nextInvoiceNumber(txCtx, invoicePrefixProforma)
		if numErr != nil {
			return numErr
		}
		invoice.InvoiceNo = no
		invoice.LineItems = items
		invoice.Discounts = discounts
		if createErr := s.invoiceRepo.Create(txCtx, invoice); createErr != nil {
			return fmt.Errorf("failed to create proforma: %w", createErr)
		}
		return s.appendAudit(txCtx, invoice.ID, model.InvoiceActionCreated,
			fmt.Sprintf("proforma %s created", invoice.InvoiceNo), userID)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceNo, req)

	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}
	invoice, err := s.invoiceRepo.FindByIDWithDetail(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice not found")
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	var folioID *uuid.UUID
	if filter.FolioID != "" {
		parsed, err := uuid.Parse(filter.FolioID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid folio id: %w", err)
		}
		folioID = &parsed
	}
	return s.invoiceRepo.List(ctx, filter.Status, folioID, filter.Page, filter.Limit)
}

// UpdateLines replaces the line items and discounts of a DRAFT or INTERIM
// invoice and recomputes the totals snapshot. Posted invoices are immutable.
func (s *invoiceService) UpdateLines(ctx context.Context, id string, req UpdateInvoiceLinesRequest, userID string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}

	rules, err := s.taxSvc.ActiveRuleSet(ctx)
	if err != nil {
		return nil, err
	}

	items, err := buildLineItems(req.Lines, rules)
	if err != nil {
		return nil, err
	}

	discounts, err := buildDiscounts(req.Discounts, items)
	if err != nil {
		return nil, err
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}
		if invoice.Status != model.InvoiceStatusDraft && invoice.Status != model.InvoiceStatusInterim {
			return fmt.Errorf("cannot edit a %s invoice", invoice.Status)
		}

		if err := s.invoiceRepo.ReplaceLineItems(txCtx, invoiceID, items); err != nil {
			return fmt.Errorf("failed to replace line items: %w", err)
		}
		if err := s.invoiceRepo.ReplaceDiscounts(txCtx, invoiceID, discounts); err != nil {
			return fmt.Errorf("failed to replace discounts: %w", err)
		}

		applyTotals(invoice, items, discounts)
		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return s.appendAudit(txCtx, invoiceID, model.InvoiceActionLinesUpdated,
			fmt.Sprintf("line items replaced (%d lines, %d discounts)", len(items), len(discounts)), userID)
	})
	if err != nil {
		return nil, err
	}

	return invoice, nil
}

// invoiceProblems collects everything blocking an invoice from being posted.
// The same rule list backs the validation endpoint and the posting gate.
func invoiceProblems(invoice *model.Invoice) []string {
	problems := []string{}

	if len(invoice.LineItems) == 0 {
		problems = append(problems, "invoice has no line items")
	}
	for _, item := range invoice.LineItems {
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("line '%s' has non-positive quantity", item.Description))
		}
		if item.UnitPrice.IsNegative() {
			problems = append(problems, fmt.Sprintf("line '%s' has negative unit price", item.Description))
		}
	}
	if invoice.IsNegative && !invoice.IsAdjustmentType() {
		problems = append(problems, "grand total is negative on a non-adjustment invoice")
	}
	if invoice.GuestName == "" && invoice.GuestID == nil {
		problems = append(problems, "invoice has no guest reference")
	}
	if invoice.DueDate != nil && invoice.DueDate.Format("20060102") < invoice.InvoiceDate.Format("20060102") {
		problems = append(problems, "due date is before the invoice date")
	}

	totals := billing.ComputeTotals(invoice.LineItems, invoice.Discounts)
	if !totals.GrandTotal.Equal(invoice.GrandTotal) {
		problems = append(problems, "stored totals do not match recomputed totals")
	}

	return problems
}

// Validate reports the posting-readiness of an invoice. It never mutates
// state.
func (s *invoiceService) Validate(ctx context.Context, id string) (*ValidationResult, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	problems := invoiceProblems(invoice)
	return &ValidationResult{Valid: len(problems) == 0, Problems: problems}, nil
}

func (s *invoiceService) Transition(ctx context.Context, id string, req TransitionInvoiceRequest, userID string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByIDWithDetail(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}

		if !transitionAllowed(invoice.Status, req.Status) {
			return fmt.Errorf("invalid transition %s -> %s", invoice.Status, req.Status)
		}

		if req.Status == model.InvoiceStatusPosted {
			if invoice.InvoiceType == model.InvoiceTypeProforma {
				return fmt.Errorf("a proforma invoice cannot be posted")
			}
			totals := billing.ComputeTotals(invoice.LineItems, invoice.Discounts)
			if totals.IsNegative && !invoice.IsAdjustmentType() {
				return fmt.Errorf("cannot post an invoice with a negative grand total")
			}
			if problems := invoiceProblems(invoice); len(problems) > 0 {
				return fmt.Errorf("invoice failed validation: %s", strings.Join(problems, "; "))
			}
			now := s.now()
			invoice.PostedAt = &now
			if actorID, parseErr := uuid.Parse(userID); parseErr == nil {
				invoice.PostedBy = &actorID
			}
		}

		prev := invoice.Status
		invoice.Status = req.Status
		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		desc := fmt.Sprintf("status changed %s -> %s", prev, req.Status)
		if req.Reason != "" {
			desc += ": " + req.Reason
		}
		return s.appendAudit(txCtx, invoiceID, model.InvoiceActionStatusChanged, desc, userID)
	})
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case model.InvoiceStatusPosted:
		writeAuditLog(ctx, s.auditRepo, userID, model.ActionPostInvoice, invoice.ID.String(), invoice.InvoiceNo, req)
		publishEvent(s.hub, EventInvoicePosted, map[string]string{
			"invoice_id": invoice.ID.String(),
			"invoice_no": invoice.InvoiceNo,
		})
	case model.InvoiceStatusCancelled:
		writeAuditLog(ctx, s.auditRepo, userID, model.ActionCancelInvoice, invoice.ID.String(), invoice.InvoiceNo, req)
	}

	return invoice, nil
}

func (s *invoiceService) AddPayment(ctx context.Context, id string, req AddInvoicePaymentRequest, userID string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}
		if invoice.Status != model.InvoiceStatusFinal && invoice.Status != model.InvoiceStatusPosted {
			return fmt.Errorf("cannot accept payment on a %s invoice", invoice.Status)
		}

		payment := &model.InvoicePayment{
			InvoiceID: invoiceID,
			Amount:    amount,
			Method:    req.Method,
			Status:    model.PaymentStatusSettled,
			Reference: req.Reference,
			PostedAt:  s.now(),
		}
		if err := s.invoiceRepo.CreatePayment(txCtx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		if err := s.refreshPaymentTotals(txCtx, invoice); err != nil {
			return err
		}
		return s.appendAudit(txCtx, invoiceID, model.InvoiceActionPaymentAdded,
			fmt.Sprintf("payment %s %s received", req.Method, amount.StringFixed(2)), userID)
	})
	if err != nil {
		return nil, err
	}

	return invoice, nil
}

// ReversePayment is the only refund path on a posted invoice: a negative
// reversal row referencing the original payment. The original row is never
// deleted or edited.
func (s *invoiceService) ReversePayment(ctx context.Context, id, paymentID, reason, userID string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}
	targetID, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, fmt.Errorf("invalid payment id: %w", err)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}

		original, err := s.invoiceRepo.FindPaymentByID(txCtx, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment not found")
			}
			return fmt.Errorf("failed to fetch payment: %w", err)
		}
		if original.InvoiceID != invoiceID {
			return fmt.Errorf("payment does not belong to this invoice")
		}
		if original.IsReversal {
			return fmt.Errorf("cannot reverse a reversal")
		}
		if original.Status == model.PaymentStatusReversed {
			return fmt.Errorf("payment is already reversed")
		}

		reversal := &model.InvoicePayment{
			InvoiceID:         invoiceID,
			Amount:            original.Amount.Neg(),
			Method:            original.Method,
			Status:            model.PaymentStatusSettled,
			IsReversal:        true,
			ReversesPaymentID: &original.ID,
			Reference:         reason,
			PostedAt:          s.now(),
		}
		if err := s.invoiceRepo.CreatePayment(txCtx, reversal); err != nil {
			return fmt.Errorf("failed to create reversal: %w", err)
		}

		original.Status = model.PaymentStatusReversed
		if err := s.invoiceRepo.UpdatePayment(txCtx, original); err != nil {
			return fmt.Errorf("failed to mark payment reversed: %w", err)
		}

		if err := s.refreshPaymentTotals(txCtx, invoice); err != nil {
			return err
		}

		// A posted invoice with reversed payments moves to a refund state.
		if invoice.Status == model.InvoiceStatusPosted {
			if invoice.TotalPaid.IsZero() || invoice.TotalPaid.IsNegative() {
				invoice.Status = model.InvoiceStatusRefunded
			} else {
				invoice.Status = model.InvoiceStatusPartiallyRefunded
			}
			if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
				return fmt.Errorf("failed to update invoice status: %w", err)
			}
		}

		desc := fmt.Sprintf("payment %s reversed", original.ID)
		if reason != "" {
			desc += ": " + reason
		}
		return s.appendAudit(txCtx, invoiceID, model.InvoiceActionPaymentReversed, desc, userID)
	})
	if err != nil {
		return nil, err
	}

	return invoice, nil
}

// IssueNote creates a credit or debit note referencing a posted invoice.
// Credit note lines are stored with negated unit prices so the note's grand
// total comes out negative.
func (s *invoiceService) IssueNote(ctx context.Context, id string, req IssueNoteRequest, userID string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}

	original, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice not found")
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	if original.Status != model.InvoiceStatusPosted &&
		original.Status != model.InvoiceStatusPartiallyRefunded &&
		original.Status != model.InvoiceStatusRefunded {
		return nil, fmt.Errorf("notes can only be issued against a posted invoice")
	}

	rules, err := s.taxSvc.ActiveRuleSet(ctx)
	if err != nil {
		return nil, err
	}

	items, err := buildLineItems(req.Lines, rules)
	if err != nil {
		return nil, err
	}
	if req.NoteType == model.InvoiceTypeCreditNote {
		for i := range items {
			items[i].UnitPrice = items[i].UnitPrice.Neg()
			items[i].LineTotal = items[i].LineTotal.Neg()
			items[i].ServiceChargeAmount = items[i].ServiceChargeAmount.Neg()
			items[i].TotalTax = items[i].TotalTax.Neg()
			items[i].LineGrandTotal = items[i].LineGrandTotal.Neg()
			for j := range items[i].TaxLines {
				items[i].TaxLines[j].TaxableAmount = items[i].TaxLines[j].TaxableAmount.Neg()
				items[i].TaxLines[j].Amount = items[i].TaxLines[j].Amount.Neg()
			}
		}
	}

	note := &model.Invoice{
		InvoiceType:       req.NoteType,
		Status:            model.InvoiceStatusDraft,
		FolioID:           original.FolioID,
		ReservationID:     original.ReservationID,
		GuestID:           original.GuestID,
		OriginalInvoiceID: &original.ID,
		GuestName:         original.GuestName,
		RoomNumber:        original.RoomNumber,
		InvoiceDate:       s.now(),
		Notes:             req.Reason,
	}
	applyTotals(note, items, nil)

	prefix := invoicePrefixCreditNote
	if req.NoteType == model.InvoiceTypeDebitNote {
		prefix = invoicePrefixDebitNote
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		no, numErr := s.nextInvoiceNumber(txCtx, prefix)
		if numErr != nil {
			return numErr
		}
		note.InvoiceNo = no
		note.LineItems = items
		if createErr := s.invoiceRepo.Create(txCtx, note); createErr != nil {
			return fmt.Errorf("failed to create note: %w", createErr)
		}
		if auditErr := s.appendAudit(txCtx, note.ID, model.InvoiceActionCreated,
			fmt.Sprintf("%s %s created against %s", req.NoteType, note.InvoiceNo, original.InvoiceNo), userID); auditErr != nil {
			return auditErr
		}
		return s.appendAudit(txCtx, original.ID, model.InvoiceActionNoteIssued,
			fmt.Sprintf("%s %s issued: %s", req.NoteType, note.InvoiceNo, req.Reason), userID)
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionIssueNote, note.ID.String(), note.InvoiceNo, req)

	return note, nil
}

func (s *invoiceService) GetAuditTrail(ctx context.Context, id string) ([]model.InvoiceAuditEntry, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}
	return s.invoiceRepo.AuditTrail(ctx, invoiceID)
}

// --- Helpers ---

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func filterChargesByInvoiceType(charges []model.FolioCharge, invoiceType string) []model.FolioCharge {
	var dept string
	switch invoiceType {
	case model.InvoiceTypeRoomOnly:
		dept = model.DeptRoom
	case model.InvoiceTypeFnbOnly:
		dept = model.DeptFNB
	case model.InvoiceTypeExtrasOnly:
		dept = model.DeptExtra
	default:
		return charges
	}

	filtered := make([]model.FolioCharge, 0, len(charges))
	for _, c := range charges {
		if c.Department == dept {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func buildLineItems(lines []InvoiceLineInput, rules billing.RuleSet) ([]model.InvoiceLineItem, error) {
	items := make([]model.InvoiceLineItem, 0, len(lines))
	for i, line := range lines {
		unitPrice, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price on line %d: %w", i+1, err)
		}
		charge := model.FolioCharge{
			Description:             line.Description,
			Department:              line.Department,
			UnitAmount:              unitPrice,
			Quantity:                line.Quantity,
			Amount:                  unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
			Taxable:                 boolOrDefault(line.Taxable, true),
			ServiceChargeApplicable: boolOrDefault(line.ServiceChargeApplicable, true),
		}
		item, gaps := rules.Build(charge)
		for _, gap := range gaps {
			log.Printf("WARNING: %s (line %q)", gap, line.Description)
		}
		item.ID = uuid.New()
		item.SortOrder = i
		items = append(items, item)
	}
	return items, nil
}

func buildDiscounts(inputs []InvoiceDiscountInput, items []model.InvoiceLineItem) ([]model.InvoiceDiscount, error) {
	discounts := make([]model.InvoiceDiscount, 0, len(inputs))
	for i, in := range inputs {
		value, err := decimal.NewFromString(in.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid discount value on entry %d: %w", i+1, err)
		}
		if value.IsNegative() {
			return nil, fmt.Errorf("discount value on entry %d must not be negative", i+1)
		}

		scope := in.Scope
		if scope == "" {
			scope = model.DiscountScopeInvoice
		}

		d := model.InvoiceDiscount{
			Description: in.Description,
			Scope:       scope,
			Type:        in.Type,
			Value:       value,
			SortOrder:   i,
		}
		if scope == model.DiscountScopeLine {
			if in.LineIndex == nil {
				return nil, fmt.Errorf("line-scoped discount on entry %d needs a line_index", i+1)
			}
			if *in.LineIndex < 0 || *in.LineIndex >= len(items) {
				return nil, fmt.Errorf("line_index %d on entry %d does not match any line item", *in.LineIndex, i+1)
			}
			lineID := items[*in.LineIndex].ID
			d.LineItemID = &lineID
		}
		discounts = append(discounts, d)
	}

	// Derive amounts up front so the persisted rows carry them.
	_, applied := billing.ApplyDiscounts(items, discounts)
	return applied, nil
}

// applyTotals recomputes the totals snapshot onto the invoice.
func applyTotals(invoice *model.Invoice, items []model.InvoiceLineItem, discounts []model.InvoiceDiscount) {
	totals := billing.ComputeTotals(items, discounts)
	invoice.Subtotal = totals.Subtotal
	invoice.TotalDiscount = totals.TotalDiscount
	invoice.ServiceChargeAmount = totals.ServiceChargeAmount
	invoice.TotalTax = totals.TotalTax
	invoice.GrandTotal = totals.GrandTotal
	invoice.IsNegative = totals.IsNegative
	invoice.AmountDue = totals.GrandTotal.Sub(invoice.TotalPaid)
}

// refreshPaymentTotals recomputes TotalPaid/AmountDue from the payment rows.
// Reversal rows carry negative amounts, so a plain sum is correct.
func (s *invoiceService) refreshPaymentTotals(ctx context.Context, invoice *model.Invoice) error {
	payments, err := s.invoiceRepo.PaymentsByInvoice(ctx, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch payments: %w", err)
	}

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}

	invoice.TotalPaid = total
	invoice.AmountDue = invoice.GrandTotal.Sub(total)
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return fmt.Errorf("failed to update payment totals: %w", err)
	}
	return nil
}

func (s *invoiceService) appendAudit(ctx context.Context, invoiceID uuid.UUID, action, description, userID string) error {
	entry := &model.InvoiceAuditEntry{
		InvoiceID:   invoiceID,
		Action:      action,
		Description: description,
	}
	if actorID, err := uuid.Parse(userID); err == nil {
		entry.ActorID = &actorID
	}
	if err := s.invoiceRepo.CreateAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (s *invoiceService) nextInvoiceNumber(ctx context.Context, typePrefix string) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", typePrefix, s.now().Format("20060102"))
	count, err := s.invoiceRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to count invoices: %w", err)
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}
