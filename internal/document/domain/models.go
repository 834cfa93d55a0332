package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"gorm.io/datatypes"
)

// Document is the persisted snapshot of one invoice. Status, InvoiceNo and
// Currency duplicate fields of State for listing.
type Document struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"not null;default:''" json:"name"`
	Status     string         `gorm:"not null;index" json:"status"`
	InvoiceNo  string         `gorm:"column:invoice_no;not null;default:''" json:"invoice_no"`
	Currency   string         `gorm:"not null;default:''" json:"currency"`
	State      datatypes.JSON `gorm:"not null" json:"-"`
	Attachment []byte         `json:"-"`
	Revision   int            `gorm:"not null;default:0" json:"revision"`
	Hash       string         `gorm:"not null;default:''" json:"hash"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string { return "invoice_documents" }

// Operation is one row of a document's append-only action log.
type Operation struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	DocumentID snowflake.ID   `gorm:"not null;uniqueIndex:ux_invoice_operations_seq,priority:1" json:"document_id"`
	Seq        int            `gorm:"not null;uniqueIndex:ux_invoice_operations_seq,priority:2" json:"seq"`
	Type       string         `gorm:"not null" json:"type"`
	Scope      string         `gorm:"not null" json:"scope"`
	Input      datatypes.JSON `gorm:"not null" json:"input"`
	Hash       string         `gorm:"not null" json:"hash"`
	AppliedAt  time.Time      `gorm:"not null" json:"applied_at"`
}

func (Operation) TableName() string { return "invoice_operations" }

func (o Operation) ToInvoice() invoicedomain.Operation {
	return invoicedomain.Operation{
		Index:     o.Seq,
		Type:      invoicedomain.ActionType(o.Type),
		Scope:     o.Scope,
		Input:     json.RawMessage(o.Input),
		Timestamp: o.AppliedAt.UTC(),
		Hash:      o.Hash,
	}
}

func NewOperation(id, documentID snowflake.ID, op invoicedomain.Operation) Operation {
	return Operation{
		ID:         id,
		DocumentID: documentID,
		Seq:        op.Index,
		Type:       string(op.Type),
		Scope:      op.Scope,
		Input:      datatypes.JSON(op.Input),
		Hash:       op.Hash,
		AppliedAt:  op.Timestamp,
	}
}

// Snapshot is the API view of a document.
type Snapshot struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Revision  int                   `json:"revision"`
	Hash      string                `json:"hash"`
	State     invoicedomain.Invoice `json:"state"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Summary is the list view of a document.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	InvoiceNo string    `json:"invoice_no,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Revision  int       `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}
