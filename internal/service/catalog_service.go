package service

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateExtraServiceRequest struct {
	Code                    string `json:"code" binding:"required,max=50"`
	Name                    string `json:"name" binding:"required,max=255"`
	Department              string `json:"department" binding:"omitempty,oneof=ROOM FNB EXTRA MISC"`
	UnitPrice               string `json:"unit_price" binding:"required"`
	Taxable                 *bool  `json:"taxable"`
	ServiceChargeApplicable *bool  `json:"service_charge_applicable"`
}

type UpdateExtraServiceRequest struct {
	Name                    string `json:"name" binding:"max=255"`
	Department              string `json:"department" binding:"omitempty,oneof=ROOM FNB EXTRA MISC"`
	UnitPrice               string `json:"unit_price"`
	Taxable                 *bool  `json:"taxable"`
	ServiceChargeApplicable *bool  `json:"service_charge_applicable"`
	IsActive                *bool  `json:"is_active"`
}

// --- Interface ---

// CatalogService manages the extra-services price list consumed by folio
// charge posting.
type CatalogService interface {
	CreateExtraService(ctx context.Context, req CreateExtraServiceRequest) (*model.ExtraService, error)
	GetExtraService(ctx context.Context, id string) (*model.ExtraService, error)
	ListExtraServices(ctx context.Context, activeOnly bool, page, limit int) ([]model.ExtraService, int64, error)
	UpdateExtraService(ctx context.Context, id string, req UpdateExtraServiceRequest) (*model.ExtraService, error)
	DeleteExtraService(ctx context.Context, id string) error
}

type catalogService struct {
	extraRepo repository.ExtraServiceRepository
}

func NewCatalogService(extraRepo repository.ExtraServiceRepository) CatalogService {
	return &catalogService{extraRepo: extraRepo}
}

// --- Implementation ---

func (s *catalogService) CreateExtraService(ctx context.Context, req CreateExtraServiceRequest) (*model.ExtraService, error) {
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid unit price: %w", err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("unit price must not be negative")
	}

	if existing, err := s.extraRepo.FindByCode(ctx, req.Code); err == nil && existing != nil {
		return nil, fmt.Errorf("an extra service with code '%s' already exists", req.Code)
	}

	dept := req.Department
	if dept == "" {
		dept = model.DeptExtra
	}

	svc := &model.ExtraService{
		Code:                    req.Code,
		Name:                    req.Name,
		Department:              dept,
		UnitPrice:               price,
		Taxable:                 boolOrDefault(req.Taxable, true),
		ServiceChargeApplicable: boolOrDefault(req.ServiceChargeApplicable, true),
		IsActive:                true,
	}
	if err := s.extraRepo.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to create extra service: %w", err)
	}
	return svc, nil
}

func (s *catalogService) GetExtraService(ctx context.Context, id string) (*model.ExtraService, error) {
	svcID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid extra service id: %w", err)
	}
	svc, err := s.extraRepo.FindByID(ctx, svcID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("extra service not found")
		}
		return nil, fmt.Errorf("failed to fetch extra service: %w", err)
	}
	return svc, nil
}

func (s *catalogService) ListExtraServices(ctx context.Context, activeOnly bool, page, limit int) ([]model.ExtraService, int64, error) {
	return s.extraRepo.List(ctx, activeOnly, page, limit)
}

func (s *catalogService) UpdateExtraService(ctx context.Context, id string, req UpdateExtraServiceRequest) (*model.ExtraService, error) {
	svc, err := s.GetExtraService(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		svc.Name = req.Name
	}
	if req.Department != "" {
		svc.Department = req.Department
	}
	if req.UnitPrice != "" {
		price, parseErr := decimal.NewFromString(req.UnitPrice)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid unit price: %w", parseErr)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("unit price must not be negative")
		}
		svc.UnitPrice = price
	}
	if req.Taxable != nil {
		svc.Taxable = *req.Taxable
	}
	if req.ServiceChargeApplicable != nil {
		svc.ServiceChargeApplicable = *req.ServiceChargeApplicable
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}

	if err := s.extraRepo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to update extra service: %w", err)
	}
	return svc, nil
}

func (s *catalogService) DeleteExtraService(ctx context.Context, id string) error {
	svc, err := s.GetExtraService(ctx, id)
	if err != nil {
		return err
	}
	return s.extraRepo.Delete(ctx, svc.ID)
}
