package database

import (
	"log"

	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Role{},
		&model.Permission{},
		&model.Guest{},
		&model.Room{},
		&model.Reservation{},
		&model.TaxDefinition{},
		&model.ServiceChargeRule{},
		&model.ExtraService{},
		&model.MasterFolio{},
		&model.RoutingRule{},
		&model.Folio{},
		&model.FolioCharge{},
		&model.FolioPayment{},
		&model.Invoice{},
		&model.InvoiceLineItem{},
		&model.InvoiceTaxLine{},
		&model.InvoiceDiscount{},
		&model.InvoicePayment{},
		&model.InvoiceAuditEntry{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
