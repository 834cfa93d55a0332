package ubl

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
	"github.com/smallbiznis/invoicedoc/internal/invoice/reducer"
)

// Imported is the result of reading a UBL document: the actions that rebuild
// the invoice and the embedded PDF, if any.
type Imported struct {
	Actions []domain.Action
	PDF     []byte
}

// Import parses a UBL Invoice and returns the action sequence an editor would
// dispatch to reach the same state. No action is produced for a document that
// fails to parse.
func Import(r io.Reader) (Imported, error) {
	dec := xml.NewDecoder(r)
	start, err := invoiceRoot(dec)
	if err != nil {
		return Imported{}, err
	}

	var doc docInvoice
	if err := dec.DecodeElement(&doc, &start); err != nil {
		return Imported{}, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
	}

	lines, err := importLines(doc)
	if err != nil {
		return Imported{}, err
	}

	actions := []domain.Action{
		domain.EditInvoice(domain.EditInvoiceInput{
			InvoiceNo:     merge.NonEmpty(strings.TrimSpace(doc.ID)),
			DateIssued:    merge.NonEmpty(strings.TrimSpace(doc.IssueDate)),
			DateDue:       merge.NonEmpty(strings.TrimSpace(doc.DueDate)),
			DateDelivered: merge.NonEmpty(strings.TrimSpace(doc.DeliveryDate)),
			Currency:      merge.NonEmpty(strings.TrimSpace(doc.DocumentCurrency)),
		}),
		domain.EditIssuer(importParty(doc.Supplier)),
	}
	actions = append(actions, importRouting(doc.PaymentMeans, payeeAccount, domain.EditIssuerBank, domain.EditIssuerWallet)...)
	actions = append(actions, domain.EditPayer(importParty(doc.Customer)))
	actions = append(actions, importRouting(doc.PaymentMeans, payerAccount, domain.EditPayerBank, domain.EditPayerWallet)...)
	actions = append(actions, lines...)

	return Imported{Actions: actions, PDF: importPDF(doc.AdditionalDocuments)}, nil
}

// Apply imports src and dispatches the resulting actions against doc. Either
// every action applies or doc is returned unchanged.
func Apply(r *reducer.Reducer, doc domain.Document, src io.Reader) (domain.Document, error) {
	imported, err := Import(src)
	if err != nil {
		return doc, err
	}
	next, err := r.ApplyAll(doc, imported.Actions)
	if err != nil {
		return doc, err
	}
	return next, nil
}

// invoiceRoot returns the first element, which must be an Invoice in any namespace.
func invoiceRoot(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, fmt.Errorf("%w: document has no root element", domain.ErrMissingInvoiceRoot)
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "Invoice" {
			return xml.StartElement{}, fmt.Errorf("%w: root element is %q", domain.ErrMissingInvoiceRoot, start.Name.Local)
		}
		return start, nil
	}
}

func importParty(p docParty) domain.EditLegalEntityInput {
	in := domain.EditLegalEntityInput{
		Name:  merge.NonEmpty(strings.TrimSpace(firstNonEmpty(p.RegistrationName, p.Name))),
		Tel:   merge.NonEmpty(strings.TrimSpace(p.Telephone)),
		Email: merge.NonEmpty(strings.TrimSpace(p.ElectronicMail)),
	}
	switch {
	case p.TaxCompanyID != "":
		in.ID = merge.NonEmpty(strings.TrimSpace(p.TaxCompanyID))
	case p.LegalCompanyID != "":
		in.CorpRegID = merge.NonEmpty(strings.TrimSpace(p.LegalCompanyID))
	case p.EndpointID != "":
		in.ID = merge.NonEmpty(strings.TrimSpace(p.EndpointID))
	}
	if a := p.PostalAddress; a != nil {
		in.StreetAddress = merge.NonEmpty(a.StreetName)
		in.ExtendedAddress = merge.NonEmpty(a.AdditionalStreetName)
		in.City = merge.NonEmpty(a.CityName)
		in.PostalCode = merge.NonEmpty(a.PostalZone)
		in.StateProvince = merge.NonEmpty(a.CountrySubentity)
		in.Country = merge.NonEmpty(a.Country)
	}
	return in
}

func payeeAccount(m docPaymentMeans) *docAccount { return m.Payee }
func payerAccount(m docPaymentMeans) *docAccount { return m.Payer }

// importRouting yields at most one bank and one wallet action for a party. A
// walletAddress scheme id marks a wallet, anything else is a bank account.
func importRouting(
	means []docPaymentMeans,
	account func(docPaymentMeans) *docAccount,
	bank func(domain.EditBankInput) domain.Action,
	wallet func(domain.EditWalletInput) domain.Action,
) []domain.Action {
	var bankAction, walletAction *domain.Action
	for _, m := range means {
		acc := account(m)
		if acc == nil {
			continue
		}
		if strings.EqualFold(acc.ID.SchemeID, walletScheme) {
			if walletAction == nil {
				a := wallet(importWallet(acc))
				walletAction = &a
			}
			continue
		}
		if bankAction == nil {
			a := bank(importBank(acc))
			bankAction = &a
		}
	}

	var out []domain.Action
	if bankAction != nil {
		out = append(out, *bankAction)
	}
	if walletAction != nil {
		out = append(out, *walletAction)
	}
	return out
}

func importBank(acc *docAccount) domain.EditBankInput {
	in := domain.EditBankInput{
		AccountNum:  merge.Ptr(strings.TrimSpace(acc.ID.Value)),
		Beneficiary: merge.NonEmpty(strings.TrimSpace(acc.Name)),
	}
	if t := domain.AccountType(strings.ToUpper(strings.TrimSpace(acc.AccountTypeCode))); validAccountType(t) {
		in.AccountType = &t
	}
	if b := acc.Branch; b != nil {
		in.BIC = merge.NonEmpty(strings.TrimSpace(b.ID))
		in.Name = merge.NonEmpty(strings.TrimSpace(b.Name))
		if a := b.Address; a != nil {
			in.StreetAddress = merge.NonEmpty(a.StreetName)
			in.ExtendedAddress = merge.NonEmpty(a.AdditionalStreetName)
			in.City = merge.NonEmpty(a.CityName)
			in.PostalCode = merge.NonEmpty(a.PostalZone)
			in.StateProvince = merge.NonEmpty(a.CountrySubentity)
			in.Country = merge.NonEmpty(a.Country)
		}
	}
	return in
}

func importWallet(acc *docAccount) domain.EditWalletInput {
	in := domain.EditWalletInput{
		Address:   merge.NonEmpty(strings.TrimSpace(acc.ID.Value)),
		ChainName: merge.NonEmpty(strings.TrimSpace(acc.Name)),
	}
	if b := acc.Branch; b != nil {
		in.ChainID = merge.NonEmpty(strings.TrimSpace(b.ID))
		in.Rpc = merge.NonEmpty(strings.TrimSpace(b.Name))
	}
	return in
}

func validAccountType(t domain.AccountType) bool {
	switch t {
	case domain.AccountTypeChecking, domain.AccountTypeSavings, domain.AccountTypeTrust, domain.AccountTypeWallet:
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

func importLines(doc docInvoice) ([]domain.Action, error) {
	explicit := make([]string, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		explicit = append(explicit, line.ID)
	}
	ids := domain.NewLineIDs(explicit)

	actions := make([]domain.Action, 0, len(doc.Lines))
	for i, line := range doc.Lines {
		id := ids.Next(line.ID, i+1)

		qty, err := parseNumber(line.Quantity, "InvoicedQuantity", id)
		if err != nil {
			return nil, err
		}
		unitExcl, err := parseNumber(line.Price.Value, "PriceAmount", id)
		if err != nil {
			return nil, err
		}
		pct, err := parseNumber(line.Percent, "Percent", id)
		if err != nil {
			return nil, err
		}
		unitIncl := unitExcl.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred)))

		currency := strings.TrimSpace(firstNonEmpty(line.Price.CurrencyID, doc.DocumentCurrency))
		actions = append(actions, domain.AddLineItem(domain.AddLineItemInput{
			ID:                id,
			Description:       strings.TrimSpace(firstNonEmpty(line.Description, line.Name)),
			TaxPercent:        merge.Ptr(pct.InexactFloat64()),
			Quantity:          merge.Ptr(qty.InexactFloat64()),
			Currency:          currency,
			UnitPriceTaxExcl:  merge.Ptr(unitExcl.InexactFloat64()),
			UnitPriceTaxIncl:  merge.Ptr(unitIncl.InexactFloat64()),
			TotalPriceTaxExcl: merge.Ptr(qty.Mul(unitExcl).InexactFloat64()),
			TotalPriceTaxIncl: merge.Ptr(qty.Mul(unitIncl).InexactFloat64()),
		}))
	}
	return actions, nil
}

// parseNumber treats a missing value as zero.
func parseNumber(raw, element, lineID string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: line %s: %s %q is not a number", domain.ErrMalformedDocument, lineID, element, raw)
	}
	return d, nil
}

func importPDF(refs []docDocumentRef) []byte {
	for _, ref := range refs {
		if !strings.EqualFold(ref.Binary.MimeCode, pdfMimeCode) {
			continue
		}
		payload := strings.Join(strings.Fields(ref.Binary.Value), "")
		pdf, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			continue
		}
		return pdf
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
