package service

import (
	"fmt"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/keylock"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv wires the services against an in-memory database with real
// repositories, the same way main does against postgres.
type testEnv struct {
	db          *gorm.DB
	folioRepo   repository.FolioRepository
	masterRepo  repository.MasterFolioRepository
	invoiceRepo repository.InvoiceRepository
	folioSvc    FolioService
	masterSvc   MasterFolioService
	invoiceSvc  InvoiceService
	taxSvc      TaxService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// Unique DSN per test so parallel tests never share a database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.User{},
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
	require.NoError(t, err)

	txManager := repository.NewTransactionManager(db)
	folioRepo := repository.NewFolioRepository(db)
	masterRepo := repository.NewMasterFolioRepository(db)
	guestRepo := repository.NewGuestRepository(db)
	resvRepo := repository.NewReservationRepository(db)
	extraRepo := repository.NewExtraServiceRepository(db)
	taxRepo := repository.NewTaxDefinitionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	taxSvc := NewTaxService(taxRepo, auditRepo)
	locks := keylock.New()

	return &testEnv{
		db:          db,
		folioRepo:   folioRepo,
		masterRepo:  masterRepo,
		invoiceRepo: invoiceRepo,
		folioSvc:    NewFolioService(folioRepo, masterRepo, guestRepo, extraRepo, auditRepo, txManager, locks, nil),
		masterSvc:   NewMasterFolioService(masterRepo, folioRepo, auditRepo, txManager, locks, nil),
		invoiceSvc:  NewInvoiceService(invoiceRepo, folioRepo, guestRepo, resvRepo, auditRepo, taxSvc, txManager, nil),
		taxSvc:      taxSvc,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func seedGuest(t *testing.T, db *gorm.DB) *model.Guest {
	t.Helper()
	guest := &model.Guest{FirstName: "Ana", LastName: "Petrova", Email: "ana.petrova@example.com"}
	require.NoError(t, db.Create(guest).Error)
	return guest
}

// seedVAT creates a single exclusive VAT covering every department.
func seedVAT(t *testing.T, db *gorm.DB, rate string) *model.TaxDefinition {
	t.Helper()
	def := &model.TaxDefinition{
		Name:      "VAT",
		TaxType:   model.TaxTypeVAT,
		Rate:      dec(rate),
		IsActive:  true,
		AppliesTo: "ROOM,FNB,EXTRA,MISC",
	}
	require.NoError(t, db.Create(def).Error)
	return def
}
