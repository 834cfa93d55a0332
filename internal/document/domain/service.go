package domain

import (
	"context"
	"errors"
	"io"

	invoicedomain "github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/statusrule"
	"github.com/smallbiznis/invoicedoc/pkg/db/pagination"
)

type CreateRequest struct {
	Name string
}

type ListRequest struct {
	PageToken string
	PageSize  int
	Status    string
}

type ListResponse struct {
	pagination.PageInfo
	Documents []Summary `json:"documents"`
}

type ExportRequest struct {
	// PDF overrides the stored attachment.
	PDF []byte
}

// TransitionReport lists every failing rule for a proposed status change.
type TransitionReport struct {
	From    invoicedomain.Status `json:"from"`
	To      invoicedomain.Status `json:"to"`
	Results []statusrule.Result  `json:"results"`
	Blocked bool                 `json:"blocked"`
}

type VerifyResult struct {
	Valid    bool   `json:"valid"`
	Revision int    `json:"revision"`
	Stored   string `json:"stored_hash"`
	Replayed string `json:"replayed_hash"`
	Reason   string `json:"reason,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Snapshot, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Operations(ctx context.Context, id string) ([]invoicedomain.Operation, error)
	Apply(ctx context.Context, id string, action invoicedomain.Action) (Snapshot, error)
	ChangeStatus(ctx context.Context, id string, target invoicedomain.Status) (Snapshot, error)
	ValidateTransition(ctx context.Context, id string, target invoicedomain.Status) (TransitionReport, error)
	ImportUBL(ctx context.Context, id string, src io.Reader) (Snapshot, error)
	ExportUBL(ctx context.Context, id string, req ExportRequest) (string, error)
	Verify(ctx context.Context, id string) (VerifyResult, error)
}

var (
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrNotFound       = errors.New("document_not_found")
	ErrConcurrentEdit = errors.New("concurrent_edit")
)
