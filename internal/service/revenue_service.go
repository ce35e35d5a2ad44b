package service

import (
	"context"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"
)

// --- DTOs ---

type RevenueDataPoint struct {
	Period             string `json:"period"`
	InvoiceCount       int    `json:"invoice_count"`
	TotalRevenue       string `json:"total_revenue"`
	TotalTax           string `json:"total_tax"`
	TotalServiceCharge string `json:"total_service_charge"`
	TotalDiscount      string `json:"total_discount"`
	TotalRefunded      string `json:"total_refunded"`
}

type DepartmentRevenuePoint struct {
	Department   string `json:"department"`
	TotalRevenue string `json:"total_revenue"`
	TotalTax     string `json:"total_tax"`
}

type RevenueFilter struct {
	GroupBy   string // day, week, month, quarter, year
	StartDate string // RFC3339
	EndDate   string // RFC3339
}

// --- Interface ---

type RevenueService interface {
	GetRevenueStatistics(ctx context.Context, filter RevenueFilter) ([]RevenueDataPoint, error)
	GetDepartmentRevenue(ctx context.Context, filter RevenueFilter) ([]DepartmentRevenuePoint, error)
}

type revenueService struct {
	revenueRepo repository.RevenueRepository
}

func NewRevenueService(revenueRepo repository.RevenueRepository) RevenueService {
	return &revenueService{revenueRepo: revenueRepo}
}

// --- Implementation ---

// GetRevenueStatistics aggregates POSTED invoices by posting date. Draft,
// interim and cancelled invoices never count towards revenue.
func (s *revenueService) GetRevenueStatistics(ctx context.Context, filter RevenueFilter) ([]RevenueDataPoint, error) {
	groupBy := filter.GroupBy
	switch groupBy {
	case "day", "week", "month", "quarter", "year":
		// valid
	default:
		groupBy = "month"
	}

	rows, err := s.revenueRepo.GetRevenueStatistics(ctx, groupBy, filter.StartDate, filter.EndDate, model.InvoiceStatusPosted)
	if err != nil {
		return nil, err
	}

	result := make([]RevenueDataPoint, 0, len(rows))
	for _, r := range rows {
		result = append(result, RevenueDataPoint{
			Period:             r.Period,
			InvoiceCount:       r.InvoiceCount,
			TotalRevenue:       fmt.Sprintf("%.4f", r.TotalRevenue),
			TotalTax:           fmt.Sprintf("%.4f", r.TotalTax),
			TotalServiceCharge: fmt.Sprintf("%.4f", r.TotalServiceCharge),
			TotalDiscount:      fmt.Sprintf("%.4f", r.TotalDiscount),
			TotalRefunded:      fmt.Sprintf("%.4f", r.TotalRefunded),
		})
	}

	return result, nil
}

func (s *revenueService) GetDepartmentRevenue(ctx context.Context, filter RevenueFilter) ([]DepartmentRevenuePoint, error) {
	rows, err := s.revenueRepo.GetDepartmentRevenue(ctx, filter.StartDate, filter.EndDate, model.InvoiceStatusPosted)
	if err != nil {
		return nil, err
	}

	result := make([]DepartmentRevenuePoint, 0, len(rows))
	for _, r := range rows {
		result = append(result, DepartmentRevenuePoint{
			Department:   r.Department,
			TotalRevenue: fmt.Sprintf("%.4f", r.TotalRevenue),
			TotalTax:     fmt.Sprintf("%.4f", r.TotalTax),
		})
	}

	return result, nil
}
