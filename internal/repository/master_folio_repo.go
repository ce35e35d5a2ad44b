package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MasterFolioRepository interface {
	Create(ctx context.Context, master *model.MasterFolio) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MasterFolio, error)
	FindByIDWithDetail(ctx context.Context, id uuid.UUID) (*model.MasterFolio, error)
	List(ctx context.Context, status, masterType string, page, limit int) ([]model.MasterFolio, int64, error)
	Update(ctx context.Context, master *model.MasterFolio) error
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	ChargesByMaster(ctx context.Context, masterID uuid.UUID) ([]model.FolioCharge, error)
	PaymentsByMaster(ctx context.Context, masterID uuid.UUID) ([]model.FolioPayment, error)
	ReplaceRoutingRules(ctx context.Context, masterID uuid.UUID, rules []model.RoutingRule) error
	RoutingRulesByMaster(ctx context.Context, masterID uuid.UUID) ([]model.RoutingRule, error)
}

type masterFolioRepository struct {
	db *gorm.DB
}

func NewMasterFolioRepository(db *gorm.DB) MasterFolioRepository {
	return &masterFolioRepository{db: db}
}

func (r *masterFolioRepository) Create(ctx context.Context, master *model.MasterFolio) error {
	return GetDB(ctx, r.db).Create(master).Error
}

func (r *masterFolioRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MasterFolio, error) {
	var master model.MasterFolio
	if err := GetDB(ctx, r.db).First(&master, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &master, nil
}

func (r *masterFolioRepository) FindByIDWithDetail(ctx context.Context, id uuid.UUID) (*model.MasterFolio, error) {
	var master model.MasterFolio
	err := GetDB(ctx, r.db).
		Preload("Children").
		Preload("RoutingRules", func(db *gorm.DB) *gorm.DB { return db.Order("priority asc") }).
		Preload("Charges", func(db *gorm.DB) *gorm.DB { return db.Order("posted_at asc") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("posted_at asc") }).
		First(&master, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &master, nil
}

func (r *masterFolioRepository) List(ctx context.Context, status, masterType string, page, limit int) ([]model.MasterFolio, int64, error) {
	var masters []model.MasterFolio
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.MasterFolio{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if masterType != "" {
		query = query.Where("master_type = ?", masterType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Model(&model.MasterFolio{})
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if masterType != "" {
		fetchQuery = fetchQuery.Where("master_type = ?", masterType)
	}
	if err := fetchQuery.Order("created_at desc").Offset(offset).Limit(limit).Find(&masters).Error; err != nil {
		return nil, 0, err
	}

	return masters, total, nil
}

func (r *masterFolioRepository) Update(ctx context.Context, master *model.MasterFolio) error {
	return GetDB(ctx, r.db).Save(master).Error
}

func (r *masterFolioRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.MasterFolio{}).Where("id = ?", id).Update("total_balance", balance).Error
}

func (r *masterFolioRepository) ChargesByMaster(ctx context.Context, masterID uuid.UUID) ([]model.FolioCharge, error) {
	var charges []model.FolioCharge
	if err := GetDB(ctx, r.db).Where("master_folio_id = ?", masterID).Order("posted_at asc").Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *masterFolioRepository) PaymentsByMaster(ctx context.Context, masterID uuid.UUID) ([]model.FolioPayment, error) {
	var payments []model.FolioPayment
	if err := GetDB(ctx, r.db).Where("master_folio_id = ?", masterID).Order("posted_at asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *masterFolioRepository) ReplaceRoutingRules(ctx context.Context, masterID uuid.UUID, rules []model.RoutingRule) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("master_folio_id = ?", masterID).Delete(&model.RoutingRule{}).Error; err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	return db.Create(&rules).Error
}

func (r *masterFolioRepository) RoutingRulesByMaster(ctx context.Context, masterID uuid.UUID) ([]model.RoutingRule, error) {
	var rules []model.RoutingRule
	if err := GetDB(ctx, r.db).Where("master_folio_id = ?", masterID).Order("priority asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}
