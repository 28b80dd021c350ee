package persistence

import (
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
	"gorm.io/gorm"
)

// sortColumns whitelists the columns a list query may order by. Requested
// names are matched exactly after trimming, so nothing user supplied reaches
// the ORDER BY clause unless it is on the list.
type sortColumns struct {
	allowed  map[string]struct{}
	fallback string
}

func newSortColumns(fallback string, columns ...string) sortColumns {
	s := sortColumns{allowed: make(map[string]struct{}, len(columns)+3), fallback: fallback}
	for _, c := range append([]string{"id", "created_at", "updated_at"}, columns...) {
		s.allowed[c] = struct{}{}
	}
	return s
}

func (s sortColumns) column(requested string) string {
	if _, ok := s.allowed[strings.TrimSpace(requested)]; ok {
		return strings.TrimSpace(requested)
	}
	return s.fallback
}

// sortDirection is ASC only when asked for, DESC otherwise
func sortDirection(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}

var (
	itemSortColumns  = newSortColumns("sku", "sku", "name", "current_stock")
	batchSortColumns = newSortColumns("created_at",
		"batch_number", "expiry_date", "manufacturing_date",
		"quantity", "remaining_quantity", "unit_cost", "status")
)

// paginate applies the whitelisted ordering and page window of filter.
// Ordering always ends on id so pages are stable.
func paginate(query *gorm.DB, filter shared.Filter, cols sortColumns) *gorm.DB {
	column := cols.column(filter.OrderBy)
	query = query.Order(column + " " + sortDirection(filter.OrderDir))
	if column != "id" {
		query = query.Order("id ASC")
	}
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}
