package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type RevenueDataRow struct {
	Period             string  `gorm:"column:period"`
	InvoiceCount       int     `gorm:"column:invoice_count"`
	TotalRevenue       float64 `gorm:"column:total_revenue"`
	TotalTax           float64 `gorm:"column:total_tax"`
	TotalServiceCharge float64 `gorm:"column:total_service_charge"`
	TotalDiscount      float64 `gorm:"column:total_discount"`
	TotalRefunded      float64 `gorm:"column:total_refunded"`
}

type DepartmentRevenueRow struct {
	Department   string  `gorm:"column:department"`
	TotalRevenue float64 `gorm:"column:total_revenue"`
	TotalTax     float64 `gorm:"column:total_tax"`
}

type RevenueRepository interface {
	GetRevenueStatistics(ctx context.Context, groupBy, startDate, endDate, postedStatus string) ([]RevenueDataRow, error)
	GetDepartmentRevenue(ctx context.Context, startDate, endDate, postedStatus string) ([]DepartmentRevenueRow, error)
}

type revenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) RevenueRepository {
	return &revenueRepository{db: db}
}

func (r *revenueRepository) GetRevenueStatistics(ctx context.Context, groupBy, startDate, endDate, postedStatus string) ([]RevenueDataRow, error) {
	query := `
		SELECT
			TO_CHAR(DATE_TRUNC($1, i.posted_at), 'YYYY-MM-DD') AS period,
			COUNT(i.id) AS invoice_count,
			COALESCE(SUM(i.grand_total), 0) AS total_revenue,
			COALESCE(SUM(i.total_tax), 0) AS total_tax,
			COALESCE(SUM(i.service_charge_amount), 0) AS total_service_charge,
			COALESCE(SUM(i.total_discount), 0) AS total_discount,
			COALESCE(SUM(CASE WHEN i.invoice_type = 'CREDIT_NOTE' THEN i.grand_total ELSE 0 END), 0) AS total_refunded
		FROM invoices i
		WHERE i.status = $4
		  AND i.posted_at >= $2::timestamptz
		  AND i.posted_at <= $3::timestamptz
		GROUP BY DATE_TRUNC($1, i.posted_at)
		ORDER BY period
	`

	var rows []RevenueDataRow
	if err := r.db.WithContext(ctx).Raw(query,
		groupBy, startDate, endDate, postedStatus,
	).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query revenue statistics: %w", err)
	}

	return rows, nil
}

func (r *revenueRepository) GetDepartmentRevenue(ctx context.Context, startDate, endDate, postedStatus string) ([]DepartmentRevenueRow, error) {
	query := `
		SELECT
			li.department AS department,
			COALESCE(SUM(li.line_grand_total), 0) AS total_revenue,
			COALESCE(SUM(li.total_tax), 0) AS total_tax
		FROM invoice_line_items li
		JOIN invoices i ON i.id = li.invoice_id
		WHERE i.status = $3
		  AND i.posted_at >= $1::timestamptz
		  AND i.posted_at <= $2::timestamptz
		GROUP BY li.department
		ORDER BY total_revenue DESC
	`

	var rows []DepartmentRevenueRow
	if err := r.db.WithContext(ctx).Raw(query,
		startDate, endDate, postedStatus,
	).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query department revenue: %w", err)
	}

	return rows, nil
}
