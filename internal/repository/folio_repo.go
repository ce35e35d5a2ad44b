package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type FolioRepository interface {
	Create(ctx context.Context, folio *model.Folio) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Folio, error)
	FindByIDWithEntries(ctx context.Context, id uuid.UUID) (*model.Folio, error)
	List(ctx context.Context, status string, guestID *uuid.UUID, page, limit int) ([]model.Folio, int64, error)
	ListByMasterFolio(ctx context.Context, masterFolioID uuid.UUID) ([]model.Folio, error)
	Update(ctx context.Context, folio *model.Folio) error
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
	CreateCharge(ctx context.Context, charge *model.FolioCharge) error
	CreatePayment(ctx context.Context, payment *model.FolioPayment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*model.FolioPayment, error)
	UpdatePayment(ctx context.Context, payment *model.FolioPayment) error
	ChargesByFolio(ctx context.Context, folioID uuid.UUID) ([]model.FolioCharge, error)
	PaymentsByFolio(ctx context.Context, folioID uuid.UUID) ([]model.FolioPayment, error)
}

type folioRepository struct {
	db *gorm.DB
}

func NewFolioRepository(db *gorm.DB) FolioRepository {
	return &folioRepository{db: db}
}

func (r *folioRepository) Create(ctx context.Context, folio *model.Folio) error {
	return GetDB(ctx, r.db).Create(folio).Error
}

func (r *folioRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Folio, error) {
	var folio model.Folio
	if err := GetDB(ctx, r.db).First(&folio, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &folio, nil
}

func (r *folioRepository) FindByIDWithEntries(ctx context.Context, id uuid.UUID) (*model.Folio, error) {
	var folio model.Folio
	err := GetDB(ctx, r.db).
		Preload("Charges", func(db *gorm.DB) *gorm.DB { return db.Order("posted_at asc") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("posted_at asc") }).
		Preload("Guest").
		First(&folio, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &folio, nil
}

func (r *folioRepository) List(ctx context.Context, status string, guestID *uuid.UUID, page, limit int) ([]model.Folio, int64, error) {
	var folios []model.Folio
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Folio{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if guestID != nil {
		query = query.Where("guest_id = ?", *guestID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Guest")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if guestID != nil {
		fetchQuery = fetchQuery.Where("guest_id = ?", *guestID)
	}
	if err := fetchQuery.Order("created_at desc").Offset(offset).Limit(limit).Find(&folios).Error; err != nil {
		return nil, 0, err
	}

	return folios, total, nil
}

func (r *folioRepository) ListByMasterFolio(ctx context.Context, masterFolioID uuid.UUID) ([]model.Folio, error) {
	var folios []model.Folio
	if err := GetDB(ctx, r.db).Where("master_folio_id = ?", masterFolioID).Order("created_at asc").Find(&folios).Error; err != nil {
		return nil, err
	}
	return folios, nil
}

func (r *folioRepository) Update(ctx context.Context, folio *model.Folio) error {
	return GetDB(ctx, r.db).Save(folio).Error
}

func (r *folioRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.Folio{}).Where("id = ?", id).Update("balance", balance).Error
}

func (r *folioRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Folio{}).Where("folio_no LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *folioRepository) CreateCharge(ctx context.Context, charge *model.FolioCharge) error {
	return GetDB(ctx, r.db).Create(charge).Error
}

func (r *folioRepository) CreatePayment(ctx context.Context, payment *model.FolioPayment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *folioRepository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*model.FolioPayment, error) {
	var payment model.FolioPayment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *folioRepository) UpdatePayment(ctx context.Context, payment *model.FolioPayment) error {
	return GetDB(ctx, r.db).Save(payment).Error
}

func (r *folioRepository) ChargesByFolio(ctx context.Context, folioID uuid.UUID) ([]model.FolioCharge, error) {
	var charges []model.FolioCharge
	if err := GetDB(ctx, r.db).Where("folio_id = ?", folioID).Order("posted_at asc").Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *folioRepository) PaymentsByFolio(ctx context.Context, folioID uuid.UUID) ([]model.FolioPayment, error) {
	var payments []model.FolioPayment
	if err := GetDB(ctx, r.db).Where("folio_id = ?", folioID).Order("posted_at asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
