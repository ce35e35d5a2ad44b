package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Department enum constants — every charge, tax definition, and
// service-charge rule is scoped to one or more of these.
const (
	DeptRoom  = "ROOM"
	DeptFNB   = "FNB"
	DeptExtra = "EXTRA"
	DeptMisc  = "MISC"
)

// TaxType enum constants
const (
	TaxTypeVAT     = "VAT"
	TaxTypeCityTax = "CITY_TAX"
	TaxTypeLuxury  = "LUXURY"
	TaxTypeOther   = "OTHER"
)

// TaxDefinition describes one tax applied to charges. Definitions are
// evaluated in ascending CalculationOrder; a compound tax computes its base
// on the running total including previously applied tax amounts.
type TaxDefinition struct {
	ID                     uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name                   string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	TaxType                string          `gorm:"type:varchar(20);not null;index" json:"tax_type"` // VAT, CITY_TAX, LUXURY, OTHER
	Rate                   decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"`         // percent, e.g. 12 = 12%
	IsInclusive            bool            `gorm:"default:false" json:"is_inclusive"`               // amount already contained in the charge
	IsActive               bool            `gorm:"default:true" json:"is_active"`
	AppliesTo              string          `gorm:"type:varchar(100);not null" json:"applies_to"` // comma-separated departments, e.g. "ROOM,FNB"
	CalculationOrder       int             `gorm:"not null;default:0;index" json:"calculation_order"`
	IsCompound             bool            `gorm:"default:false" json:"is_compound"`
	TaxableOnServiceCharge bool            `gorm:"default:false" json:"taxable_on_service_charge"`
	Description            string          `gorm:"type:text" json:"description"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (t *TaxDefinition) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// AppliesToDepartment reports whether this tax covers the given department.
func (t *TaxDefinition) AppliesToDepartment(dept string) bool {
	return departmentListContains(t.AppliesTo, dept)
}

// ServiceChargeRule is the hotel-wide service charge applied on top of
// charges before taxes. IsTaxable controls whether the service-charge amount
// joins the taxable base of taxes flagged TaxableOnServiceCharge.
type ServiceChargeRule struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Rate      decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"` // percent
	IsActive  bool            `gorm:"default:true" json:"is_active"`
	AppliesTo string          `gorm:"type:varchar(100);not null" json:"applies_to"`
	IsTaxable bool            `gorm:"default:true" json:"is_taxable"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *ServiceChargeRule) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// AppliesToDepartment reports whether the service charge covers the department.
func (s *ServiceChargeRule) AppliesToDepartment(dept string) bool {
	return departmentListContains(s.AppliesTo, dept)
}

func departmentListContains(list, dept string) bool {
	for _, d := range strings.Split(list, ",") {
		if strings.TrimSpace(d) == dept {
			return true
		}
	}
	return false
}
