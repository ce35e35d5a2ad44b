package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaxDefinitionRepository interface {
	Create(ctx context.Context, def *model.TaxDefinition) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TaxDefinition, error)
	FindByName(ctx context.Context, name string) (*model.TaxDefinition, error)
	List(ctx context.Context, activeOnly bool) ([]model.TaxDefinition, error)
	ListActive(ctx context.Context) ([]model.TaxDefinition, error)
	Update(ctx context.Context, def *model.TaxDefinition) error
	Delete(ctx context.Context, id uuid.UUID) error
	ActiveServiceChargeRule(ctx context.Context) (*model.ServiceChargeRule, error)
	SaveServiceChargeRule(ctx context.Context, rule *model.ServiceChargeRule) error
}

type taxDefinitionRepository struct {
	db *gorm.DB
}

func NewTaxDefinitionRepository(db *gorm.DB) TaxDefinitionRepository {
	return &taxDefinitionRepository{db: db}
}

func (r *taxDefinitionRepository) Create(ctx context.Context, def *model.TaxDefinition) error {
	return GetDB(ctx, r.db).Create(def).Error
}

func (r *taxDefinitionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxDefinition, error) {
	var def model.TaxDefinition
	if err := GetDB(ctx, r.db).First(&def, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *taxDefinitionRepository) FindByName(ctx context.Context, name string) (*model.TaxDefinition, error) {
	var def model.TaxDefinition
	if err := GetDB(ctx, r.db).First(&def, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *taxDefinitionRepository) List(ctx context.Context, activeOnly bool) ([]model.TaxDefinition, error) {
	var defs []model.TaxDefinition
	query := GetDB(ctx, r.db).Order("calculation_order asc, name asc")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *taxDefinitionRepository) ListActive(ctx context.Context) ([]model.TaxDefinition, error) {
	return r.List(ctx, true)
}

func (r *taxDefinitionRepository) Update(ctx context.Context, def *model.TaxDefinition) error {
	return GetDB(ctx, r.db).Save(def).Error
}

func (r *taxDefinitionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.TaxDefinition{}, "id = ?", id).Error
}

func (r *taxDefinitionRepository) ActiveServiceChargeRule(ctx context.Context) (*model.ServiceChargeRule, error) {
	var rule model.ServiceChargeRule
	err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("updated_at desc").First(&rule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *taxDefinitionRepository) SaveServiceChargeRule(ctx context.Context, rule *model.ServiceChargeRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}
