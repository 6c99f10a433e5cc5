package option

import (
	"fmt"
	"strings"

	"licensing-controlplane/pkg/db/pagination"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before it is executed. Options compose
// left to right.
type QueryOption func(*gorm.DB) *gorm.DB

type QuerySortBy struct {
	Field   string
	OrderBy string
}

func Apply(tx *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		tx = opt(tx)
	}
	return tx
}

func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if limit > 0 {
			tx = tx.Limit(limit)
		}
		return tx
	}
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		field := sort.Field
		if field == "" {
			field = "created_at"
		}
		order := "ASC"
		if strings.EqualFold(sort.OrderBy, "DESC") {
			order = "DESC"
		}
		return tx.Order(fmt.Sprintf("%s %s", field, order))
	}
}

// WithIDIn narrows the query to rows whose primary key is in ids.
func WithIDIn(ids []string) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id IN ?", ids)
	}
}

func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		limit := p.Limit
		if limit <= 0 {
			limit = 10
		}
		tx = tx.Limit(limit)

		if p.Cursor != "" {
			cursor, err := pagination.DecodeCursor(p.Cursor)
			if err == nil && cursor.ID != "" {
				tx = tx.Where("id > ?", cursor.ID)
			}
		}

		return tx
	}
}
