package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedoc/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Document, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Document, error)
	// SaveSnapshot writes doc if the stored revision still equals
	// expectedRevision and reports whether it did.
	SaveSnapshot(ctx context.Context, db *gorm.DB, doc *Document, expectedRevision int) (bool, error)
	AppendOperations(ctx context.Context, db *gorm.DB, ops []*Operation) error
	ListOperations(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]*Operation, error)
}
