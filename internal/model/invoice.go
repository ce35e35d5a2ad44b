package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceType enum constants
const (
	InvoiceTypeGuestFolio  = "GUEST_FOLIO"
	InvoiceTypeRoomOnly    = "ROOM_ONLY"
	InvoiceTypeFnbOnly     = "FNB_ONLY"
	InvoiceTypeExtrasOnly  = "EXTRAS_ONLY"
	InvoiceTypeGroupMaster = "GROUP_MASTER"
	InvoiceTypeProforma    = "PROFORMA"
	InvoiceTypeCreditNote  = "CREDIT_NOTE"
	InvoiceTypeDebitNote   = "DEBIT_NOTE"
)

// InvoiceStatus enum constants
const (
	InvoiceStatusDraft             = "DRAFT"
	InvoiceStatusInterim           = "INTERIM"
	InvoiceStatusFinal             = "FINAL"
	InvoiceStatusPosted            = "POSTED"
	InvoiceStatusCancelled         = "CANCELLED"
	InvoiceStatusRefunded          = "REFUNDED"
	InvoiceStatusPartiallyRefunded = "PARTIALLY_REFUNDED"
)

// Invoice audit-trail action constants
const (
	InvoiceActionCreated         = "CREATED"
	InvoiceActionLinesUpdated    = "LINES_UPDATED"
	InvoiceActionStatusChanged   = "STATUS_CHANGED"
	InvoiceActionPaymentAdded    = "PAYMENT_ADDED"
	InvoiceActionPaymentReversed = "PAYMENT_REVERSED"
	InvoiceActionNoteIssued      = "NOTE_ISSUED"
)

// DiscountScope / DiscountType enum constants
const (
	DiscountScopeInvoice = "INVOICE"
	DiscountScopeLine    = "LINE"

	DiscountTypePercentage  = "PERCENTAGE"
	DiscountTypeFixedAmount = "FIXED_AMOUNT"
)

// Invoice is a snapshot of computed totals over a set of line items plus
// payment tracking and an append-only audit trail. Once POSTED, line items
// and totals are immutable; adjustments are issued as new credit/debit
// notes referencing the original.
type Invoice struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNo         string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	InvoiceType       string     `gorm:"type:varchar(20);not null;index" json:"invoice_type"`
	Status            string     `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	FolioID           *uuid.UUID `gorm:"type:uuid;index" json:"folio_id"`
	Folio             *Folio     `gorm:"foreignKey:FolioID" json:"folio,omitempty"`
	ReservationID     *uuid.UUID `gorm:"type:uuid;index" json:"reservation_id"`
	GuestID           *uuid.UUID `gorm:"type:uuid;index" json:"guest_id"`
	Guest             *Guest     `gorm:"foreignKey:GuestID" json:"guest,omitempty"`
	OriginalInvoiceID *uuid.UUID `gorm:"type:uuid;index" json:"original_invoice_id"` // set on credit/debit notes

	// Display snapshot populated from collaborator lookups — never used in
	// financial computation.
	GuestName  string `gorm:"type:varchar(255)" json:"guest_name"`
	RoomNumber string `gorm:"type:varchar(20)" json:"room_number"`

	InvoiceDate time.Time  `gorm:"not null" json:"invoice_date"`
	DueDate     *time.Time `json:"due_date"`

	// Computed totals snapshot — always derived from line items + discounts,
	// never accepted from a caller.
	Subtotal            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"subtotal"`
	TotalDiscount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_discount"`
	ServiceChargeAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"service_charge_amount"`
	TotalTax            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_tax"`
	GrandTotal          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"grand_total"`
	IsNegative          bool            `gorm:"default:false" json:"is_negative"` // explicit flag, legitimate only on credit/debit notes

	TotalPaid decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_paid"`
	AmountDue decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount_due"`

	LineItems  []InvoiceLineItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"line_items,omitempty"`
	Discounts  []InvoiceDiscount   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"discounts,omitempty"`
	Payments   []InvoicePayment    `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
	AuditTrail []InvoiceAuditEntry `gorm:"foreignKey:InvoiceID" json:"audit_trail,omitempty"`

	Notes     string     `gorm:"type:text" json:"notes"`
	PostedAt  *time.Time `json:"posted_at"`
	PostedBy  *uuid.UUID `gorm:"type:uuid" json:"posted_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IsAdjustmentType reports whether this invoice may carry a negative grand total.
func (i *Invoice) IsAdjustmentType() bool {
	return i.InvoiceType == InvoiceTypeCreditNote || i.InvoiceType == InvoiceTypeDebitNote
}

// InvoiceLineItem is a priced, taxed line. LineGrandTotal is always
// recomputed from quantity, unit price, the two flags, and the active rule
// set — it is never stored independently of them.
type InvoiceLineItem struct {
	ID                      uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID               uuid.UUID        `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Description             string           `gorm:"type:varchar(255);not null" json:"description"`
	Department              string           `gorm:"type:varchar(20);not null" json:"department"`
	Quantity                int              `gorm:"not null;default:1" json:"quantity"`
	UnitPrice               decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	LineTotal               decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"line_total"`
	Taxable                 bool             `gorm:"default:true" json:"taxable"`
	ServiceChargeApplicable bool             `gorm:"default:true" json:"service_charge_applicable"`
	ServiceChargeAmount     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"service_charge_amount"`
	TotalTax                decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"total_tax"` // non-inclusive tax amounts only
	LineGrandTotal          decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"line_grand_total"`
	TaxLines                []InvoiceTaxLine `gorm:"foreignKey:LineItemID;constraint:OnDelete:CASCADE" json:"tax_lines,omitempty"`
	SortOrder               int              `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt               time.Time        `json:"created_at"`
}

func (l *InvoiceLineItem) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// InvoiceTaxLine captures one tax applied to one line item, in calculation order.
type InvoiceTaxLine struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LineItemID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"line_item_id"`
	TaxName          string          `gorm:"type:varchar(100);not null" json:"tax_name"`
	Rate             decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"`
	TaxableAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"taxable_amount"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	IsInclusive      bool            `gorm:"default:false" json:"is_inclusive"`
	CalculationOrder int             `gorm:"not null;default:0" json:"calculation_order"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (t *InvoiceTaxLine) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// InvoiceDiscount is an invoice-level ledger entry layered on top of line
// totals; it never retroactively alters individual line grand totals.
type InvoiceDiscount struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Description string          `gorm:"type:varchar(255)" json:"description"`
	Scope       string          `gorm:"type:varchar(20);not null;default:'INVOICE'" json:"scope"`
	Type        string          `gorm:"type:varchar(20);not null" json:"type"` // PERCENTAGE, FIXED_AMOUNT
	Value       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"value"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"` // derived
	LineItemID  *uuid.UUID      `gorm:"type:uuid;index" json:"line_item_id"`                 // set for LINE scope
	SortOrder   int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (d *InvoiceDiscount) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// InvoicePayment is a settled payment (or its reversal) against an invoice.
// Refunds on POSTED invoices happen only through reversal rows.
type InvoicePayment struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"` // negative on reversals
	Method            string          `gorm:"type:varchar(20);not null" json:"method"`
	Status            string          `gorm:"type:varchar(20);not null;default:'SETTLED'" json:"status"`
	IsReversal        bool            `gorm:"default:false" json:"is_reversal"`
	ReversesPaymentID *uuid.UUID      `gorm:"type:uuid" json:"reverses_payment_id"`
	Reference         string          `gorm:"type:varchar(100)" json:"reference"`
	PostedAt          time.Time       `gorm:"not null" json:"posted_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (p *InvoicePayment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// InvoiceAuditEntry is one immutable audit-trail record. Entries are
// append-only: never edited, never removed.
type InvoiceAuditEntry struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Action      string     `gorm:"type:varchar(50);not null" json:"action"`
	Description string     `gorm:"type:text;not null" json:"description"`
	ActorID     *uuid.UUID `gorm:"type:uuid" json:"actor_id"`
	Actor       *User      `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

func (e *InvoiceAuditEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
