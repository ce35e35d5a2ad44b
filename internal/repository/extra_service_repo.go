package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExtraServiceRepository interface {
	Create(ctx context.Context, svc *model.ExtraService) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ExtraService, error)
	FindByCode(ctx context.Context, code string) (*model.ExtraService, error)
	List(ctx context.Context, activeOnly bool, page, limit int) ([]model.ExtraService, int64, error)
	Update(ctx context.Context, svc *model.ExtraService) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type extraServiceRepository struct {
	db *gorm.DB
}

func NewExtraServiceRepository(db *gorm.DB) ExtraServiceRepository {
	return &extraServiceRepository{db: db}
}

func (r *extraServiceRepository) Create(ctx context.Context, svc *model.ExtraService) error {
	return GetDB(ctx, r.db).Create(svc).Error
}

func (r *extraServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ExtraService, error) {
	var svc model.ExtraService
	if err := GetDB(ctx, r.db).First(&svc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *extraServiceRepository) FindByCode(ctx context.Context, code string) (*model.ExtraService, error) {
	var svc model.ExtraService
	if err := GetDB(ctx, r.db).First(&svc, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *extraServiceRepository) List(ctx context.Context, activeOnly bool, page, limit int) ([]model.ExtraService, int64, error) {
	var services []model.ExtraService
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.ExtraService{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("code asc").Offset(offset).Limit(limit).Find(&services).Error; err != nil {
		return nil, 0, err
	}

	return services, total, nil
}

func (r *extraServiceRepository) Update(ctx context.Context, svc *model.ExtraService) error {
	return GetDB(ctx, r.db).Save(svc).Error
}

func (r *extraServiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.ExtraService{}, "id = ?", id).Error
}
