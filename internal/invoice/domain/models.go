// Package domain contains the invoice aggregate, its action vocabulary and error kinds.
package domain

import (
	"encoding/json"
	"fmt"
)

// Status represents the invoice lifecycle state.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusIssued           Status = "ISSUED"
	StatusCancelled        Status = "CANCELLED"
	StatusAccepted         Status = "ACCEPTED"
	StatusRejected         Status = "REJECTED"
	StatusAwaitingPayment  Status = "AWAITINGPAYMENT"
	StatusPaymentScheduled Status = "PAYMENTSCHEDULED"
	StatusPaymentSent      Status = "PAYMENTSENT"
	StatusPaymentIssue     Status = "PAYMENTISSUE"
	StatusPaymentReceived  Status = "PAYMENTRECEIVED"
)

// Statuses lists every lifecycle state in declaration order.
var Statuses = []Status{
	StatusDraft,
	StatusIssued,
	StatusCancelled,
	StatusAccepted,
	StatusRejected,
	StatusAwaitingPayment,
	StatusPaymentScheduled,
	StatusPaymentSent,
	StatusPaymentIssue,
	StatusPaymentReceived,
}

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// AccountType classifies a bank account.
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeTrust    AccountType = "TRUST"
	AccountTypeWallet   AccountType = "WALLET"
)

// IDKind tags the variant held by a LegalEntityID.
type IDKind string

const (
	IDKindTaxID     IDKind = "taxId"
	IDKindCorpRegID IDKind = "corpRegId"
)

// LegalEntityID is either a tax id or a corporate registration id.
type LegalEntityID struct {
	Kind  IDKind
	Value string
}

func TaxID(value string) *LegalEntityID {
	return &LegalEntityID{Kind: IDKindTaxID, Value: value}
}

func CorpRegID(value string) *LegalEntityID {
	return &LegalEntityID{Kind: IDKindCorpRegID, Value: value}
}

func (id LegalEntityID) MarshalJSON() ([]byte, error) {
	switch id.Kind {
	case IDKindTaxID:
		return json.Marshal(map[string]string{"taxId": id.Value})
	case IDKindCorpRegID:
		return json.Marshal(map[string]string{"corpRegId": id.Value})
	default:
		return nil, fmt.Errorf("unknown legal entity id kind %q", id.Kind)
	}
}

func (id *LegalEntityID) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("legal entity id must hold exactly one of taxId or corpRegId")
	}
	if value, ok := raw["taxId"]; ok {
		*id = LegalEntityID{Kind: IDKindTaxID, Value: value}
		return nil
	}
	if value, ok := raw["corpRegId"]; ok {
		*id = LegalEntityID{Kind: IDKindCorpRegID, Value: value}
		return nil
	}
	return fmt.Errorf("legal entity id must hold exactly one of taxId or corpRegId")
}

type Address struct {
	StreetAddress   *string `json:"streetAddress"`
	ExtendedAddress *string `json:"extendedAddress"`
	City            *string `json:"city"`
	PostalCode      *string `json:"postalCode"`
	Country         *string `json:"country"`
	StateProvince   *string `json:"stateProvince"`
}

type ContactInfo struct {
	Tel   *string `json:"tel"`
	Email *string `json:"email"`
}

// IntermediaryBank carries the correspondent bank used to route a transfer.
type IntermediaryBank struct {
	Name        string       `json:"name"`
	Address     *Address     `json:"address"`
	ABA         *string      `json:"ABA"`
	BIC         *string      `json:"BIC"`
	SWIFT       *string      `json:"SWIFT"`
	AccountNum  string       `json:"accountNum"`
	AccountType *AccountType `json:"accountType"`
	Beneficiary *string      `json:"beneficiary"`
	Memo        *string      `json:"memo"`
}

type Bank struct {
	Name             string            `json:"name"`
	Address          *Address          `json:"address"`
	ABA              *string           `json:"ABA"`
	BIC              *string           `json:"BIC"`
	SWIFT            *string           `json:"SWIFT"`
	AccountNum       string            `json:"accountNum"`
	AccountType      *AccountType      `json:"accountType"`
	Beneficiary      *string           `json:"beneficiary"`
	Memo             *string           `json:"memo"`
	IntermediaryBank *IntermediaryBank `json:"intermediaryBank"`
}

// EffectiveBIC returns the BIC, falling back to the SWIFT code.
func (b *Bank) EffectiveBIC() string {
	if b == nil {
		return ""
	}
	if b.BIC != nil && *b.BIC != "" {
		return *b.BIC
	}
	if b.SWIFT != nil {
		return *b.SWIFT
	}
	return ""
}

type Wallet struct {
	Rpc       *string `json:"rpc"`
	ChainName *string `json:"chainName"`
	ChainID   *string `json:"chainId"`
	Address   *string `json:"address"`
}

type PaymentRouting struct {
	Bank   *Bank   `json:"bank"`
	Wallet *Wallet `json:"wallet"`
}

type LegalEntity struct {
	ID             *LegalEntityID  `json:"id"`
	Name           string          `json:"name"`
	Address        *Address        `json:"address"`
	ContactInfo    *ContactInfo    `json:"contactInfo"`
	Country        *string         `json:"country"`
	PaymentRouting *PaymentRouting `json:"paymentRouting"`
}

// CountryCode returns the entity country, falling back to the postal address country.
func (e LegalEntity) CountryCode() string {
	if e.Country != nil && *e.Country != "" {
		return *e.Country
	}
	if e.Address != nil && e.Address.Country != nil {
		return *e.Address.Country
	}
	return ""
}

func (e LegalEntity) Bank() *Bank {
	if e.PaymentRouting == nil {
		return nil
	}
	return e.PaymentRouting.Bank
}

func (e LegalEntity) Wallet() *Wallet {
	if e.PaymentRouting == nil {
		return nil
	}
	return e.PaymentRouting.Wallet
}

type Ref struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// LineItemTag classifies a line item along a dimension such as cost center.
type LineItemTag struct {
	Dimension string  `json:"dimension"`
	Value     string  `json:"value"`
	Label     *string `json:"label"`
}

type LineItem struct {
	ID                string        `json:"id"`
	Description       string        `json:"description"`
	Quantity          float64       `json:"quantity"`
	TaxPercent        float64       `json:"taxPercent"`
	Currency          string        `json:"currency"`
	UnitPriceTaxExcl  float64       `json:"unitPriceTaxExcl"`
	UnitPriceTaxIncl  float64       `json:"unitPriceTaxIncl"`
	TotalPriceTaxExcl float64       `json:"totalPriceTaxExcl"`
	TotalPriceTaxIncl float64       `json:"totalPriceTaxIncl"`
	Tags              []LineItemTag `json:"lineItemTag"`
}

// Invoice is the root aggregate. Totals are derived from line items.
type Invoice struct {
	InvoiceNo         string      `json:"invoiceNo"`
	DateIssued        string      `json:"dateIssued"`
	DateDue           string      `json:"dateDue"`
	DateDelivered     *string     `json:"dateDelivered"`
	Status            Status      `json:"status"`
	Refs              []Ref       `json:"refs"`
	Issuer            LegalEntity `json:"issuer"`
	Payer             LegalEntity `json:"payer"`
	Currency          string      `json:"currency"`
	LineItems         []LineItem  `json:"lineItems"`
	TotalPriceTaxExcl float64     `json:"totalPriceTaxExcl"`
	TotalPriceTaxIncl float64     `json:"totalPriceTaxIncl"`
	PaymentAccount    *string     `json:"paymentAccount"`
}

// NewInvoice returns the initial invoice shape.
func NewInvoice() Invoice {
	return Invoice{
		Status:    StatusDraft,
		Refs:      []Ref{},
		LineItems: []LineItem{},
		Issuer:    LegalEntity{},
		Payer:     LegalEntity{},
	}
}

// LineItemIndex returns the index of the item with the given id, or -1.
func (inv Invoice) LineItemIndex(id string) int {
	for i, item := range inv.LineItems {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (inv Invoice) RefIndex(id string) int {
	for i, ref := range inv.Refs {
		if ref.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy sharing no mutable memory with inv.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.DateDelivered = clonePtr(inv.DateDelivered)
	out.PaymentAccount = clonePtr(inv.PaymentAccount)
	out.Refs = append([]Ref{}, inv.Refs...)
	out.Issuer = inv.Issuer.Clone()
	out.Payer = inv.Payer.Clone()
	out.LineItems = make([]LineItem, len(inv.LineItems))
	for i, item := range inv.LineItems {
		out.LineItems[i] = item.Clone()
	}
	return out
}

func (item LineItem) Clone() LineItem {
	out := item
	if item.Tags != nil {
		out.Tags = make([]LineItemTag, len(item.Tags))
		for i, tag := range item.Tags {
			out.Tags[i] = LineItemTag{Dimension: tag.Dimension, Value: tag.Value, Label: clonePtr(tag.Label)}
		}
	}
	return out
}

func (e LegalEntity) Clone() LegalEntity {
	out := e
	if e.ID != nil {
		id := *e.ID
		out.ID = &id
	}
	out.Address = e.Address.Clone()
	if e.ContactInfo != nil {
		out.ContactInfo = &ContactInfo{Tel: clonePtr(e.ContactInfo.Tel), Email: clonePtr(e.ContactInfo.Email)}
	}
	out.Country = clonePtr(e.Country)
	if e.PaymentRouting != nil {
		out.PaymentRouting = &PaymentRouting{
			Bank:   e.PaymentRouting.Bank.Clone(),
			Wallet: e.PaymentRouting.Wallet.Clone(),
		}
	}
	return out
}

func (a *Address) Clone() *Address {
	if a == nil {
		return nil
	}
	return &Address{
		StreetAddress:   clonePtr(a.StreetAddress),
		ExtendedAddress: clonePtr(a.ExtendedAddress),
		City:            clonePtr(a.City),
		PostalCode:      clonePtr(a.PostalCode),
		Country:         clonePtr(a.Country),
		StateProvince:   clonePtr(a.StateProvince),
	}
}

func (b *Bank) Clone() *Bank {
	if b == nil {
		return nil
	}
	out := *b
	out.Address = b.Address.Clone()
	out.ABA = clonePtr(b.ABA)
	out.BIC = clonePtr(b.BIC)
	out.SWIFT = clonePtr(b.SWIFT)
	out.AccountType = clonePtr(b.AccountType)
	out.Beneficiary = clonePtr(b.Beneficiary)
	out.Memo = clonePtr(b.Memo)
	out.IntermediaryBank = b.IntermediaryBank.Clone()
	return &out
}

func (b *IntermediaryBank) Clone() *IntermediaryBank {
	if b == nil {
		return nil
	}
	out := *b
	out.Address = b.Address.Clone()
	out.ABA = clonePtr(b.ABA)
	out.BIC = clonePtr(b.BIC)
	out.SWIFT = clonePtr(b.SWIFT)
	out.AccountType = clonePtr(b.AccountType)
	out.Beneficiary = clonePtr(b.Beneficiary)
	out.Memo = clonePtr(b.Memo)
	return &out
}

func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	return &Wallet{
		Rpc:       clonePtr(w.Rpc),
		ChainName: clonePtr(w.ChainName),
		ChainID:   clonePtr(w.ChainID),
		Address:   clonePtr(w.Address),
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
