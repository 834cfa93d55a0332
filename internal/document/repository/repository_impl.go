package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedoc/internal/document/domain"
	"github.com/smallbiznis/invoicedoc/pkg/db/option"
	"github.com/smallbiznis/invoicedoc/pkg/db/pagination"
	"github.com/smallbiznis/invoicedoc/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func documents(db *gorm.DB) repository.Repository[domain.Document] {
	return repository.ProvideStore[domain.Document](db)
}

func operations(db *gorm.DB) repository.Repository[domain.Operation] {
	return repository.ProvideStore[domain.Operation](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return documents(db).Create(ctx, doc)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	return documents(db).FindOne(ctx, nil, option.Where("id = ?", id))
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Document, error) {
	opts := []option.QueryOption{option.ApplyPagination(page)}
	if filter.Status != "" {
		opts = append(opts, option.Where("status = ?", filter.Status))
	}
	return documents(db).Find(ctx, nil, opts...)
}

func (r *repo) SaveSnapshot(ctx context.Context, db *gorm.DB, doc *domain.Document, expectedRevision int) (bool, error) {
	n, err := documents(db).UpdateWhere(ctx, map[string]any{
		"status":     doc.Status,
		"invoice_no": doc.InvoiceNo,
		"currency":   doc.Currency,
		"state":      doc.State,
		"attachment": doc.Attachment,
		"revision":   doc.Revision,
		"hash":       doc.Hash,
		"updated_at": doc.UpdatedAt,
	},
		option.Where("id = ?", doc.ID),
		option.Where("revision = ?", expectedRevision),
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repo) AppendOperations(ctx context.Context, db *gorm.DB, ops []*domain.Operation) error {
	return operations(db).BatchCreate(ctx, ops)
}

func (r *repo) ListOperations(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]*domain.Operation, error) {
	return operations(db).Find(ctx, nil,
		option.Where("document_id = ?", documentID),
		option.OrderBy("seq asc"),
	)
}
