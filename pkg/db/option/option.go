// Package option composes reusable GORM query modifiers.
package option

import (
	"github.com/smallbiznis/invoicedoc/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryFunc func(*gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func Where(query any, args ...any) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) })
}

func OrderBy(expr string) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB { return db.Order(expr) })
}

func Limit(n int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}

// ApplyPagination seeks past the cursor in page.PageToken, newest id first,
// and fetches one extra row so callers can tell whether more pages exist.
// An unreadable token restarts from the first page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if page.PageToken != "" {
			if cursor, err := pagination.DecodeCursor(page.PageToken); err == nil && cursor.ID != "" {
				db = db.Where("id < ?", cursor.ID)
			}
		}
		return db.Order("id desc").Limit(page.Size() + 1)
	})
}

func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt.Apply(db)
		}
	}
	return db
}
