// Package repository provides a generic GORM-backed store for flat tables.
package repository

import (
	"context"

	"github.com/smallbiznis/invoicedoc/pkg/db/option"
	"gorm.io/gorm"
)

type Repository[T any] interface {
	// WithTrx binds the store to an open transaction.
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	// UpdateWhere applies values to rows matching opts and reports how many
	// rows changed, so callers can detect lost compare-and-set races.
	UpdateWhere(ctx context.Context, values map[string]any, opts ...option.QueryOption) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
