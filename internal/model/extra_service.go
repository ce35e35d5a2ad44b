package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExtraService is a catalog entry for consumable services (minibar, spa,
// laundry...). Consuming one posts a folio charge carrying the catalog's
// department and tax/service-charge flags.
type ExtraService struct {
	ID                      uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Code                    string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name                    string          `gorm:"type:varchar(255);not null" json:"name"`
	Department              string          `gorm:"type:varchar(20);not null;default:'EXTRA'" json:"department"`
	UnitPrice               decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Taxable                 bool            `gorm:"default:true" json:"taxable"`
	ServiceChargeApplicable bool            `gorm:"default:true" json:"service_charge_applicable"`
	IsActive                bool            `gorm:"default:true" json:"is_active"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
	DeletedAt               gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (e *ExtraService) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
