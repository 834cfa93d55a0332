package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionType tags an invoice mutation.
type ActionType string

const (
	ActionEditInvoice      ActionType = "EDIT_INVOICE"
	ActionEditStatus       ActionType = "EDIT_STATUS"
	ActionAddRef           ActionType = "ADD_REF"
	ActionEditRef          ActionType = "EDIT_REF"
	ActionDeleteRef        ActionType = "DELETE_REF"
	ActionEditIssuer       ActionType = "EDIT_ISSUER"
	ActionEditIssuerBank   ActionType = "EDIT_ISSUER_BANK"
	ActionEditIssuerWallet ActionType = "EDIT_ISSUER_WALLET"
	ActionEditPayer        ActionType = "EDIT_PAYER"
	ActionEditPayerBank    ActionType = "EDIT_PAYER_BANK"
	ActionEditPayerWallet  ActionType = "EDIT_PAYER_WALLET"
	ActionAddLineItem      ActionType = "ADD_LINE_ITEM"
	ActionEditLineItem     ActionType = "EDIT_LINE_ITEM"
	ActionDeleteLineItem   ActionType = "DELETE_LINE_ITEM"
	ActionSetLineItemTag   ActionType = "SET_LINE_ITEM_TAG"
)

// ScopeGlobal is the only state partition actions currently target.
const ScopeGlobal = "global"

// Action is a tagged mutation request. Input holds the payload struct
// matching Type, e.g. AddLineItemInput for ADD_LINE_ITEM.
type Action struct {
	Type  ActionType `json:"type"`
	Scope string     `json:"scope"`
	Input any        `json:"input"`
}

type EditInvoiceInput struct {
	InvoiceNo      *string `json:"invoiceNo,omitempty" validate:"omitempty,max=128"`
	DateIssued     *string `json:"dateIssued,omitempty" validate:"omitempty,isodate"`
	DateDue        *string `json:"dateDue,omitempty" validate:"omitempty,isodate"`
	DateDelivered  *string `json:"dateDelivered,omitempty" validate:"omitempty,isodate"`
	Currency       *string `json:"currency,omitempty" validate:"omitempty,currency_code"`
	PaymentAccount *string `json:"paymentAccount,omitempty"`
}

type EditStatusInput struct {
	Status Status `json:"status" validate:"required,invoice_status"`
}

type AddRefInput struct {
	ID    string `json:"id" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type EditRefInput struct {
	ID    string `json:"id" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type DeleteRefInput struct {
	ID string `json:"id" validate:"required"`
}

// EditLegalEntityInput is the payload of EDIT_ISSUER and EDIT_PAYER.
// ID sets the tax-id variant, CorpRegID the corporate registration variant.
type EditLegalEntityInput struct {
	ID              *string `json:"id,omitempty" validate:"omitempty,excluded_with=CorpRegID"`
	CorpRegID       *string `json:"corpRegId,omitempty"`
	Name            *string `json:"name,omitempty"`
	StreetAddress   *string `json:"streetAddress,omitempty"`
	ExtendedAddress *string `json:"extendedAddress,omitempty"`
	City            *string `json:"city,omitempty"`
	PostalCode      *string `json:"postalCode,omitempty"`
	Country         *string `json:"country,omitempty"`
	StateProvince   *string `json:"stateProvince,omitempty"`
	Tel             *string `json:"tel,omitempty"`
	Email           *string `json:"email,omitempty" validate:"omitempty,email"`
}

// EditBankInput is the payload of EDIT_ISSUER_BANK and EDIT_PAYER_BANK.
// Fields suffixed with Intermediary target the nested intermediary bank.
type EditBankInput struct {
	Name            *string      `json:"name,omitempty"`
	StreetAddress   *string      `json:"streetAddress,omitempty"`
	ExtendedAddress *string      `json:"extendedAddress,omitempty"`
	City            *string      `json:"city,omitempty"`
	PostalCode      *string      `json:"postalCode,omitempty"`
	Country         *string      `json:"country,omitempty"`
	StateProvince   *string      `json:"stateProvince,omitempty"`
	ABA             *string      `json:"ABA,omitempty"`
	BIC             *string      `json:"BIC,omitempty"`
	SWIFT           *string      `json:"SWIFT,omitempty"`
	AccountNum      *string      `json:"accountNum,omitempty"`
	AccountType     *AccountType `json:"accountType,omitempty" validate:"omitempty,oneof=CHECKING SAVINGS TRUST WALLET"`
	Beneficiary     *string      `json:"beneficiary,omitempty"`
	Memo            *string      `json:"memo,omitempty"`

	NameIntermediary            *string      `json:"nameIntermediary,omitempty"`
	StreetAddressIntermediary   *string      `json:"streetAddressIntermediary,omitempty"`
	ExtendedAddressIntermediary *string      `json:"extendedAddressIntermediary,omitempty"`
	CityIntermediary            *string      `json:"cityIntermediary,omitempty"`
	PostalCodeIntermediary      *string      `json:"postalCodeIntermediary,omitempty"`
	CountryIntermediary         *string      `json:"countryIntermediary,omitempty"`
	StateProvinceIntermediary   *string      `json:"stateProvinceIntermediary,omitempty"`
	ABAIntermediary             *string      `json:"ABAIntermediary,omitempty"`
	BICIntermediary             *string      `json:"BICIntermediary,omitempty"`
	SWIFTIntermediary           *string      `json:"SWIFTIntermediary,omitempty"`
	AccountNumIntermediary      *string      `json:"accountNumIntermediary,omitempty"`
	AccountTypeIntermediary     *AccountType `json:"accountTypeIntermediary,omitempty" validate:"omitempty,oneof=CHECKING SAVINGS TRUST WALLET"`
	BeneficiaryIntermediary     *string      `json:"beneficiaryIntermediary,omitempty"`
	MemoIntermediary            *string      `json:"memoIntermediary,omitempty"`
}

// HasIntermediary reports whether any intermediary field was supplied.
func (in EditBankInput) HasIntermediary() bool {
	for _, v := range []*string{
		in.NameIntermediary, in.StreetAddressIntermediary, in.ExtendedAddressIntermediary,
		in.CityIntermediary, in.PostalCodeIntermediary, in.CountryIntermediary,
		in.StateProvinceIntermediary, in.ABAIntermediary, in.BICIntermediary,
		in.SWIFTIntermediary, in.AccountNumIntermediary, in.BeneficiaryIntermediary,
		in.MemoIntermediary,
	} {
		if v != nil {
			return true
		}
	}
	return in.AccountTypeIntermediary != nil
}

type EditWalletInput struct {
	Rpc       *string `json:"rpc,omitempty"`
	ChainName *string `json:"chainName,omitempty"`
	ChainID   *string `json:"chainId,omitempty"`
	Address   *string `json:"address,omitempty"`
}

type AddLineItemInput struct {
	ID                string   `json:"id" validate:"required"`
	Description       string   `json:"description" validate:"required"`
	TaxPercent        *float64 `json:"taxPercent" validate:"required,gte=0"`
	Quantity          *float64 `json:"quantity" validate:"required,gte=0"`
	Currency          string   `json:"currency" validate:"required,currency_code"`
	UnitPriceTaxExcl  *float64 `json:"unitPriceTaxExcl" validate:"required"`
	UnitPriceTaxIncl  *float64 `json:"unitPriceTaxIncl" validate:"required"`
	TotalPriceTaxExcl *float64 `json:"totalPriceTaxExcl" validate:"required"`
	TotalPriceTaxIncl *float64 `json:"totalPriceTaxIncl" validate:"required"`
}

// EditLineItemInput merges every non-null field into the existing item.
type EditLineItemInput struct {
	ID                string   `json:"id" validate:"required"`
	Description       *string  `json:"description,omitempty"`
	TaxPercent        *float64 `json:"taxPercent,omitempty" validate:"omitempty,gte=0"`
	Quantity          *float64 `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Currency          *string  `json:"currency,omitempty" validate:"omitempty,currency_code"`
	UnitPriceTaxExcl  *float64 `json:"unitPriceTaxExcl,omitempty"`
	UnitPriceTaxIncl  *float64 `json:"unitPriceTaxIncl,omitempty"`
	TotalPriceTaxExcl *float64 `json:"totalPriceTaxExcl,omitempty"`
	TotalPriceTaxIncl *float64 `json:"totalPriceTaxIncl,omitempty"`
}

type DeleteLineItemInput struct {
	ID string `json:"id" validate:"required"`
}

// SetLineItemTagInput upserts the tag for Dimension. An empty Value removes it.
type SetLineItemTagInput struct {
	LineItemID string  `json:"lineItemId" validate:"required"`
	Dimension  string  `json:"dimension" validate:"required"`
	Value      string  `json:"value"`
	Label      *string `json:"label,omitempty"`
}

func newAction(t ActionType, input any) Action {
	return Action{Type: t, Scope: ScopeGlobal, Input: input}
}

func EditInvoice(in EditInvoiceInput) Action { return newAction(ActionEditInvoice, in) }

func EditStatus(status Status) Action {
	return newAction(ActionEditStatus, EditStatusInput{Status: status})
}

func AddRef(in AddRefInput) Action       { return newAction(ActionAddRef, in) }
func EditRef(in EditRefInput) Action     { return newAction(ActionEditRef, in) }
func DeleteRef(in DeleteRefInput) Action { return newAction(ActionDeleteRef, in) }

func EditIssuer(in EditLegalEntityInput) Action { return newAction(ActionEditIssuer, in) }
func EditIssuerBank(in EditBankInput) Action    { return newAction(ActionEditIssuerBank, in) }
func EditIssuerWallet(in EditWalletInput) Action {
	return newAction(ActionEditIssuerWallet, in)
}

func EditPayer(in EditLegalEntityInput) Action { return newAction(ActionEditPayer, in) }
func EditPayerBank(in EditBankInput) Action    { return newAction(ActionEditPayerBank, in) }
func EditPayerWallet(in EditWalletInput) Action {
	return newAction(ActionEditPayerWallet, in)
}

func AddLineItem(in AddLineItemInput) Action       { return newAction(ActionAddLineItem, in) }
func EditLineItem(in EditLineItemInput) Action     { return newAction(ActionEditLineItem, in) }
func DeleteLineItem(in DeleteLineItemInput) Action { return newAction(ActionDeleteLineItem, in) }
func SetLineItemTag(in SetLineItemTagInput) Action { return newAction(ActionSetLineItemTag, in) }

// DecodeAction builds an Action from its tag and raw JSON payload.
func DecodeAction(t ActionType, raw json.RawMessage) (Action, error) {
	switch t {
	case ActionEditInvoice:
		return decodeInput[EditInvoiceInput](t, raw)
	case ActionEditStatus:
		return decodeInput[EditStatusInput](t, raw)
	case ActionAddRef:
		return decodeInput[AddRefInput](t, raw)
	case ActionEditRef:
		return decodeInput[EditRefInput](t, raw)
	case ActionDeleteRef:
		return decodeInput[DeleteRefInput](t, raw)
	case ActionEditIssuer, ActionEditPayer:
		return decodeInput[EditLegalEntityInput](t, raw)
	case ActionEditIssuerBank, ActionEditPayerBank:
		return decodeInput[EditBankInput](t, raw)
	case ActionEditIssuerWallet, ActionEditPayerWallet:
		return decodeInput[EditWalletInput](t, raw)
	case ActionAddLineItem:
		return decodeInput[AddLineItemInput](t, raw)
	case ActionEditLineItem:
		return decodeInput[EditLineItemInput](t, raw)
	case ActionDeleteLineItem:
		return decodeInput[DeleteLineItemInput](t, raw)
	case ActionSetLineItemTag:
		return decodeInput[SetLineItemTagInput](t, raw)
	default:
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, t)
	}
}

func decodeInput[T any](t ActionType, raw json.RawMessage) (Action, error) {
	var input T
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return Action{}, &SchemaError{
			Action:     t,
			Violations: []FieldViolation{{Field: "input", Code: "malformed", Message: err.Error()}},
		}
	}
	return newAction(t, input), nil
}

// RawAction is the wire form of an action, as stored in operation files.
type RawAction struct {
	Type  ActionType      `json:"type"`
	Scope string          `json:"scope,omitempty"`
	Input json.RawMessage `json:"input"`
}

func (r RawAction) Decode() (Action, error) {
	action, err := DecodeAction(r.Type, r.Input)
	if err != nil {
		return Action{}, err
	}
	if r.Scope != "" {
		action.Scope = r.Scope
	}
	return action, nil
}

// Encode returns the wire form of a.
func (a Action) Encode() (RawAction, error) {
	raw, err := json.Marshal(a.Input)
	if err != nil {
		return RawAction{}, err
	}
	return RawAction{Type: a.Type, Scope: a.Scope, Input: raw}, nil
}
