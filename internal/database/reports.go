package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"sme-docengine/internal/models"
)

// SummaryRow is one kind/status bucket of the tenant summary
type SummaryRow struct {
	Kind       models.Kind     `json:"kind"`
	Status     models.Status   `json:"status"`
	Count      int64           `json:"count"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Summarize counts documents and sums grand totals per kind and status for
// documents issued between from and to (inclusive).
func Summarize(ctx context.Context, db *gorm.DB, tenantID uint, from, to time.Time) ([]SummaryRow, error) {
	var rows []SummaryRow

	// COALESCE keeps empty buckets at 0 instead of NULL
	err := db.WithContext(ctx).
		Model(&models.Document{}).
		Select("kind, status, COUNT(*) AS count, COALESCE(SUM(grand_total), 0) AS grand_total").
		Where("tenant_id = ? AND issue_date BETWEEN ? AND ?", tenantID, from, to).
		Group("kind, status").
		Order("kind, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
