package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDWithDetail(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, status string, folioID *uuid.UUID, page, limit int) ([]model.Invoice, int64, error)
	Update(ctx context.Context, invoice *model.Invoice) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
	ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceLineItem) error
	ReplaceDiscounts(ctx context.Context, invoiceID uuid.UUID, discounts []model.InvoiceDiscount) error
	CreatePayment(ctx context.Context, payment *model.InvoicePayment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*model.InvoicePayment, error)
	UpdatePayment(ctx context.Context, payment *model.InvoicePayment) error
	PaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoicePayment, error)
	CreateAuditEntry(ctx context.Context, entry *model.InvoiceAuditEntry) error
	AuditTrail(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceAuditEntry, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDWithDetail(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Preload("LineItems.TaxLines").
		Preload("Discounts").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, status string, folioID *uuid.UUID, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Invoice{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if folioID != nil {
		query = query.Where("folio_id = ?", *folioID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Model(&model.Invoice{})
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if folioID != nil {
		fetchQuery = fetchQuery.Where("folio_id = ?", *folioID)
	}
	if err := fetchQuery.Order("created_at desc").Offset(offset).Limit(limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Save(invoice).Error
}

func (r *invoiceRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("invoice_no LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *invoiceRepository) ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceLineItem) error {
	db := GetDB(ctx, r.db)
	var existing []model.InvoiceLineItem
	if err := db.Where("invoice_id = ?", invoiceID).Find(&existing).Error; err != nil {
		return err
	}
	for _, item := range existing {
		if err := db.Where("line_item_id = ?", item.ID).Delete(&model.InvoiceTaxLine{}).Error; err != nil {
			return err
		}
	}
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceLineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	return db.Create(&items).Error
}

func (r *invoiceRepository) ReplaceDiscounts(ctx context.Context, invoiceID uuid.UUID, discounts []model.InvoiceDiscount) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceDiscount{}).Error; err != nil {
		return err
	}
	if len(discounts) == 0 {
		return nil
	}
	for i := range discounts {
		discounts[i].InvoiceID = invoiceID
	}
	return db.Create(&discounts).Error
}

func (r *invoiceRepository) CreatePayment(ctx context.Context, payment *model.InvoicePayment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *invoiceRepository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*model.InvoicePayment, error) {
	var payment model.InvoicePayment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *invoiceRepository) UpdatePayment(ctx context.Context, payment *model.InvoicePayment) error {
	return GetDB(ctx, r.db).Save(payment).Error
}

func (r *invoiceRepository) PaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoicePayment, error) {
	var payments []model.InvoicePayment
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("created_at asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *invoiceRepository) CreateAuditEntry(ctx context.Context, entry *model.InvoiceAuditEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *invoiceRepository) AuditTrail(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceAuditEntry, error) {
	var entries []model.InvoiceAuditEntry
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("created_at asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
