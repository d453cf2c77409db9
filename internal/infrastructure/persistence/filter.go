package persistence

import (
	"strings"

	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/shared"
)

// orderableColumns is the allowlist for ORDER BY targets. Filter.OrderBy
// values outside this set fall back to created_at to keep user input out
// of the SQL text.
var orderableColumns = map[string]bool{
	"created_at":        true,
	"updated_at":        true,
	"batch_number":      true,
	"expiry_date":       true,
	"total_quantity":    true,
	"reserved_quantity": true,
	"order_number":      true,
	"status":            true,
	"code":              true,
	"name":              true,
	"sku":               true,
}

// applyFilter applies pagination and ordering from a shared.Filter
func applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := filter.OrderBy
	if !orderableColumns[orderBy] {
		orderBy = "created_at"
	}
	orderDir := "ASC"
	if strings.EqualFold(filter.OrderDir, "desc") {
		orderDir = "DESC"
	}
	return query.Order(orderBy + " " + orderDir)
}
