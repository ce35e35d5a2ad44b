package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MasterFolioType enum constants
const (
	MasterTypeGroup        = "GROUP"
	MasterTypeCorporate    = "CORPORATE"
	MasterTypeEvent        = "EVENT"
	MasterTypeTravelAgency = "TRAVEL_AGENCY"
)

// BillingArrangement enum constants
const (
	ArrangementMasterOnly            = "MASTER_ONLY"
	ArrangementSplitBilling          = "SPLIT_BILLING"
	ArrangementIndividualWithRouting = "INDIVIDUAL_WITH_ROUTING"
)

// MasterFolioStatus enum constants
const (
	MasterStatusActive    = "ACTIVE"
	MasterStatusClosed    = "CLOSED"
	MasterStatusSuspended = "SUSPENDED"
)

// RoutingRuleType enum constants
const (
	RuleTypeAllCharges    = "ALL_CHARGES"
	RuleTypeRoomCharges   = "ROOM_CHARGES"
	RuleTypeFnbCharges    = "FNB_CHARGES"
	RuleTypeExtraServices = "EXTRA_SERVICES"
	RuleTypeCustom        = "CUSTOM"
)

// MasterFolio groups child folios under one billing entity. TotalBalance is
// always a full recomputation: masterCharges − masterPayments + Σ linked
// child balances — it is never incrementally patched.
type MasterFolio struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name               string          `gorm:"type:varchar(255);not null" json:"name"`
	MasterType         string          `gorm:"type:varchar(20);not null;index" json:"master_type"`         // GROUP, CORPORATE, EVENT, TRAVEL_AGENCY
	BillingArrangement string          `gorm:"type:varchar(30);not null" json:"billing_arrangement"`       // MASTER_ONLY, SPLIT_BILLING, INDIVIDUAL_WITH_ROUTING
	PrimaryContact     string          `gorm:"type:varchar(255)" json:"primary_contact"`
	Status             string          `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	TotalBalance       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_balance"`
	Children           []Folio         `gorm:"foreignKey:MasterFolioID" json:"children,omitempty"`
	RoutingRules       []RoutingRule   `gorm:"foreignKey:MasterFolioID;constraint:OnDelete:CASCADE" json:"routing_rules,omitempty"`
	Charges            []FolioCharge   `gorm:"foreignKey:MasterFolioID" json:"charges,omitempty"`
	Payments           []FolioPayment  `gorm:"foreignKey:MasterFolioID" json:"payments,omitempty"`
	ClosedAt           *time.Time      `json:"closed_at"`
	ClosedBy           *uuid.UUID      `gorm:"type:uuid" json:"closed_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (m *MasterFolio) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// RoutingRule decides which ledger absorbs a charge. Rules are evaluated in
// Priority order; the first active rule whose type matches the charge's
// category wins. A CUSTOM rule with a percentage splits the charge between
// the target and the source folio.
type RoutingRule struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	MasterFolioID uuid.UUID        `gorm:"type:uuid;not null;index" json:"master_folio_id"`
	RuleType      string           `gorm:"type:varchar(20);not null" json:"rule_type"` // ALL_CHARGES, ROOM_CHARGES, FNB_CHARGES, EXTRA_SERVICES, CUSTOM
	SourceFolioID *uuid.UUID       `gorm:"type:uuid" json:"source_folio_id"`           // nil = any source
	TargetFolioID *uuid.UUID       `gorm:"type:uuid" json:"target_folio_id"`           // nil = master
	Percentage    *decimal.Decimal `gorm:"type:decimal(10,4)" json:"percentage"`       // CUSTOM only; nil = full amount
	IsActive      bool             `gorm:"default:true" json:"is_active"`
	Priority      int              `gorm:"not null;default:0;index" json:"priority"` // list position, ascending
	CreatedAt     time.Time        `json:"created_at"`
}

func (r *RoutingRule) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// MatchesDepartment reports whether the rule's type covers a charge category.
func (r *RoutingRule) MatchesDepartment(dept string) bool {
	switch r.RuleType {
	case RuleTypeAllCharges, RuleTypeCustom:
		return true
	case RuleTypeRoomCharges:
		return dept == DeptRoom
	case RuleTypeFnbCharges:
		return dept == DeptFNB
	case RuleTypeExtraServices:
		return dept == DeptExtra
	default:
		return false
	}
}
