package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"backend/internal/billing"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateTaxDefinitionRequest struct {
	Name                   string   `json:"name" binding:"required,max=100"`
	TaxType                string   `json:"tax_type" binding:"required,oneof=VAT CITY_TAX LUXURY OTHER"`
	Rate                   string   `json:"rate" binding:"required"` // percent, decimal string e.g. "12"
	IsInclusive            bool     `json:"is_inclusive"`
	IsActive               *bool    `json:"is_active"`
	AppliesTo              []string `json:"applies_to" binding:"required,min=1,dive,oneof=ROOM FNB EXTRA MISC"`
	CalculationOrder       int      `json:"calculation_order"`
	IsCompound             bool     `json:"is_compound"`
	TaxableOnServiceCharge bool     `json:"taxable_on_service_charge"`
	Description            string   `json:"description"`
}

type UpdateTaxDefinitionRequest struct {
	Name                   string   `json:"name" binding:"required,max=100"`
	TaxType                string   `json:"tax_type" binding:"required,oneof=VAT CITY_TAX LUXURY OTHER"`
	Rate                   string   `json:"rate" binding:"required"`
	IsInclusive            bool     `json:"is_inclusive"`
	IsActive               *bool    `json:"is_active"`
	AppliesTo              []string `json:"applies_to" binding:"required,min=1,dive,oneof=ROOM FNB EXTRA MISC"`
	CalculationOrder       int      `json:"calculation_order"`
	IsCompound             bool     `json:"is_compound"`
	TaxableOnServiceCharge bool     `json:"taxable_on_service_charge"`
	Description            string   `json:"description"`
}

type UpdateServiceChargeRequest struct {
	Rate      string   `json:"rate" binding:"required"`
	IsActive  *bool    `json:"is_active"`
	AppliesTo []string `json:"applies_to" binding:"required,min=1,dive,oneof=ROOM FNB EXTRA MISC"`
	IsTaxable *bool    `json:"is_taxable"`
}

// --- Interface ---

type TaxService interface {
	ListTaxDefinitions(ctx context.Context, activeOnly bool) ([]model.TaxDefinition, error)
	GetTaxDefinition(ctx context.Context, id string) (*model.TaxDefinition, error)
	CreateTaxDefinition(ctx context.Context, req CreateTaxDefinitionRequest, userID string) (*model.TaxDefinition, error)
	UpdateTaxDefinition(ctx context.Context, id string, req UpdateTaxDefinitionRequest, userID string) (*model.TaxDefinition, error)
	DeleteTaxDefinition(ctx context.Context, id string, userID string) error
	GetServiceCharge(ctx context.Context) (*model.ServiceChargeRule, error)
	UpdateServiceCharge(ctx context.Context, req UpdateServiceChargeRequest, userID string) (*model.ServiceChargeRule, error)
	ActiveRuleSet(ctx context.Context) (billing.RuleSet, error)
}

type taxService struct {
	taxRepo   repository.TaxDefinitionRepository
	auditRepo repository.AuditRepository
}

func NewTaxService(taxRepo repository.TaxDefinitionRepository, auditRepo repository.AuditRepository) TaxService {
	return &taxService{taxRepo: taxRepo, auditRepo: auditRepo}
}

// --- Implementation ---

func (s *taxService) ListTaxDefinitions(ctx context.Context, activeOnly bool) ([]model.TaxDefinition, error) {
	defs, err := s.taxRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tax definitions: %w", err)
	}
	return defs, nil
}

func (s *taxService) GetTaxDefinition(ctx context.Context, id string) (*model.TaxDefinition, error) {
	defID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid tax definition id: %w", err)
	}
	def, err := s.taxRepo.FindByID(ctx, defID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tax definition not found")
		}
		return nil, fmt.Errorf("failed to fetch tax definition: %w", err)
	}
	return def, nil
}

func (s *taxService) CreateTaxDefinition(ctx context.Context, req CreateTaxDefinitionRequest, userID string) (*model.TaxDefinition, error) {
	rate, err := parsePercent(req.Rate)
	if err != nil {
		return nil, err
	}

	if existing, err := s.taxRepo.FindByName(ctx, req.Name); err == nil && existing != nil {
		return nil, fmt.Errorf("a tax definition named '%s' already exists", req.Name)
	}

	def := model.TaxDefinition{
		Name:                   req.Name,
		TaxType:                req.TaxType,
		Rate:                   rate,
		IsInclusive:            req.IsInclusive,
		IsActive:               boolOrDefault(req.IsActive, true),
		AppliesTo:              strings.Join(req.AppliesTo, ","),
		CalculationOrder:       req.CalculationOrder,
		IsCompound:             req.IsCompound,
		TaxableOnServiceCharge: req.TaxableOnServiceCharge,
		Description:            req.Description,
	}

	if err := s.taxRepo.Create(ctx, &def); err != nil {
		return nil, fmt.Errorf("failed to create tax definition: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionCreateTaxDefinition, def.ID.String(), def.Name, req)

	return &def, nil
}

func (s *taxService) UpdateTaxDefinition(ctx context.Context, id string, req UpdateTaxDefinitionRequest, userID string) (*model.TaxDefinition, error) {
	defID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid tax definition id: %w", err)
	}

	def, err := s.taxRepo.FindByID(ctx, defID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tax definition not found")
		}
		return nil, fmt.Errorf("failed to fetch tax definition: %w", err)
	}

	rate, err := parsePercent(req.Rate)
	if err != nil {
		return nil, err
	}

	def.Name = req.Name
	def.TaxType = req.TaxType
	def.Rate = rate
	def.IsInclusive = req.IsInclusive
	def.IsActive = boolOrDefault(req.IsActive, def.IsActive)
	def.AppliesTo = strings.Join(req.AppliesTo, ",")
	def.CalculationOrder = req.CalculationOrder
	def.IsCompound = req.IsCompound
	def.TaxableOnServiceCharge = req.TaxableOnServiceCharge
	def.Description = req.Description

	if err := s.taxRepo.Update(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to update tax definition: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionUpdateTaxDefinition, def.ID.String(), def.Name, req)

	return def, nil
}

func (s *taxService) DeleteTaxDefinition(ctx context.Context, id string, userID string) error {
	defID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid tax definition id: %w", err)
	}

	def, err := s.taxRepo.FindByID(ctx, defID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("tax definition not found")
		}
		return fmt.Errorf("failed to fetch tax definition: %w", err)
	}

	if err := s.taxRepo.Delete(ctx, defID); err != nil {
		return fmt.Errorf("failed to delete tax definition: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionDeleteTaxDefinition, def.ID.String(), def.Name, map[string]string{"deleted_id": id})

	return nil
}

func (s *taxService) GetServiceCharge(ctx context.Context) (*model.ServiceChargeRule, error) {
	rule, err := s.taxRepo.ActiveServiceChargeRule(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service charge rule: %w", err)
	}
	return rule, nil
}

func (s *taxService) UpdateServiceCharge(ctx context.Context, req UpdateServiceChargeRequest, userID string) (*model.ServiceChargeRule, error) {
	rate, err := parsePercent(req.Rate)
	if err != nil {
		return nil, err
	}

	rule, err := s.taxRepo.ActiveServiceChargeRule(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service charge rule: %w", err)
	}
	if rule == nil {
		rule = &model.ServiceChargeRule{}
	}

	rule.Rate = rate
	rule.IsActive = boolOrDefault(req.IsActive, true)
	rule.AppliesTo = strings.Join(req.AppliesTo, ",")
	rule.IsTaxable = boolOrDefault(req.IsTaxable, true)

	if err := s.taxRepo.SaveServiceChargeRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save service charge rule: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionUpdateServiceCharge, rule.ID.String(), "service charge "+rate.StringFixed(2)+"%", req)

	return rule, nil
}

// ActiveRuleSet loads the active tax definitions and service charge rule for
// use by charge posting and invoice generation.
func (s *taxService) ActiveRuleSet(ctx context.Context) (billing.RuleSet, error) {
	defs, err := s.taxRepo.ListActive(ctx)
	if err != nil {
		return billing.RuleSet{}, fmt.Errorf("failed to fetch active tax definitions: %w", err)
	}

	scRule, err := s.taxRepo.ActiveServiceChargeRule(ctx)
	if err != nil {
		return billing.RuleSet{}, fmt.Errorf("failed to fetch service charge rule: %w", err)
	}

	return billing.RuleSet{Taxes: defs, ServiceCharge: scRule}, nil
}

// --- Helpers ---

func parsePercent(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate value: %w", err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("rate must not be negative")
	}
	return rate, nil
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *taxService) writeAuditLog(ctx context.Context, userID, action, entityID, entityName string, details interface{}) {
	writeAuditLog(ctx, s.auditRepo, userID, action, entityID, entityName, details)
}

// writeAuditLog is the shared best-effort audit writer. Operations never fail
// because logging failed.
func writeAuditLog(ctx context.Context, auditRepo repository.AuditRepository, userID, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}

	if userID != "" {
		if parsed, err := uuid.Parse(userID); err == nil {
			entry.UserID = &parsed
		}
	}

	_ = auditRepo.Log(ctx, &entry)
}
