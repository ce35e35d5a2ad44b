package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FolioStatus enum constants
const (
	FolioStatusOpen   = "OPEN"
	FolioStatusClosed = "CLOSED"
)

// PaymentMethod enum constants
const (
	PaymentMethodCash         = "CASH"
	PaymentMethodCard         = "CARD"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodCityLedger   = "CITY_LEDGER"
)

// PaymentStatus enum constants
const (
	PaymentStatusSettled  = "SETTLED"
	PaymentStatusReversed = "REVERSED"
)

// Folio is a guest's running account of charges and payments. Balance is a
// derived field: it is recomputed from the charge/payment rows inside the
// same transaction as every posting, never patched independently.
type Folio struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FolioNo       string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"folio_no"`
	GuestID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"guest_id"`
	Guest         *Guest          `gorm:"foreignKey:GuestID" json:"guest,omitempty"`
	ReservationID *uuid.UUID      `gorm:"type:uuid;index" json:"reservation_id"`
	Reservation   *Reservation    `gorm:"foreignKey:ReservationID" json:"reservation,omitempty"`
	MasterFolioID *uuid.UUID      `gorm:"type:uuid;index" json:"master_folio_id"` // back-reference kept in sync with MasterFolio.Children
	Status        string          `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance"`
	Charges       []FolioCharge   `gorm:"foreignKey:FolioID" json:"charges,omitempty"`
	Payments      []FolioPayment  `gorm:"foreignKey:FolioID" json:"payments,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (f *Folio) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FolioCharge is one posted charge. A charge belongs to exactly one ledger:
// either a folio (FolioID set) or a master folio's own account
// (MasterFolioID set) — routing decides which at posting time.
type FolioCharge struct {
	ID                      uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FolioID                 *uuid.UUID      `gorm:"type:uuid;index" json:"folio_id"`
	MasterFolioID           *uuid.UUID      `gorm:"type:uuid;index" json:"master_folio_id"`
	Description             string          `gorm:"type:varchar(255);not null" json:"description"`
	Department              string          `gorm:"type:varchar(20);not null;index" json:"department"` // ROOM, FNB, EXTRA, MISC
	UnitAmount              decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_amount"`
	Quantity                int             `gorm:"not null;default:1" json:"quantity"`
	Amount                  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"` // unit_amount × quantity, set at construction
	Taxable                 bool            `gorm:"default:true" json:"taxable"`
	ServiceChargeApplicable bool            `gorm:"default:true" json:"service_charge_applicable"`
	PostedAt                time.Time       `gorm:"not null;index" json:"posted_at"`
	CreatedAt               time.Time       `json:"created_at"`
}

func (c *FolioCharge) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// FolioPayment is one settled payment against a folio or master folio.
// Gateway processing is out of scope: rows arrive already settled.
type FolioPayment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FolioID       *uuid.UUID      `gorm:"type:uuid;index" json:"folio_id"`
	MasterFolioID *uuid.UUID      `gorm:"type:uuid;index" json:"master_folio_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Method        string          `gorm:"type:varchar(20);not null" json:"method"` // CASH, CARD, BANK_TRANSFER, CITY_LEDGER
	Status        string          `gorm:"type:varchar(20);not null;default:'SETTLED'" json:"status"`
	Reference     string          `gorm:"type:varchar(100)" json:"reference"`
	PostedAt      time.Time       `gorm:"not null;index" json:"posted_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p *FolioPayment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
