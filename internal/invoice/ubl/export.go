// Package ubl converts invoices to and from UBL 2.1 XML.
package ubl

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicedoc/internal/invoice/checkdigit"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"go.uber.org/zap"
)

const (
	ublVersion      = "2.1"
	invoiceTypeCode = "380"
	unitCodePiece   = "C62"
	pdfMimeCode     = "application/pdf"

	meansCreditTransfer  = "30"
	meansMutuallyDefined = "ZZZ"

	taxSchemeVAT        = "VAT"
	taxCategoryStandard = "S"
	taxCategoryZero     = "Z"
)

type exportOptions struct {
	pdf    []byte
	pdfB64 string
	log    *zap.Logger
}

type Option func(*exportOptions)

// WithPDF embeds pdf as an additional document reference.
func WithPDF(pdf []byte) Option {
	return func(o *exportOptions) { o.pdf = pdf }
}

// WithPDFBase64 embeds an already encoded PDF. An invalid payload omits the
// attachment instead of failing the export.
func WithPDFBase64(encoded string) Option {
	return func(o *exportOptions) { o.pdfB64 = encoded }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *exportOptions) { o.log = log.Named("invoice.ubl") }
}

// Export renders inv as a UBL Invoice document.
func Export(inv domain.Invoice, opts ...Option) (string, error) {
	o := exportOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	currency := documentCurrency(inv)
	ref := checkdigit.CreditorReference(inv.InvoiceNo)

	doc := xmlInvoice{
		Xmlns:            nsInvoice,
		Cac:              nsCAC,
		Cbc:              nsCBC,
		UBLVersionID:     ublVersion,
		ID:               inv.InvoiceNo,
		IssueDate:        inv.DateIssued,
		DueDate:          inv.DateDue,
		InvoiceTypeCode:  invoiceTypeCode,
		DocumentCurrency: currency,
		BuyerReference:   buyerReference(inv),
		SupplierParty:    xmlPartyWrapper{Party: exportParty(inv.Issuer, true)},
		CustomerParty:    xmlPartyWrapper{Party: exportParty(inv.Payer, false)},
		PaymentMeans:     exportPaymentMeans(inv, ref),
		TaxTotal:         exportTaxTotal(inv.LineItems, currency),
		LegalMonetaryTotal: xmlMonetaryTotal{
			LineExtensionAmount:  amount(inv.TotalPriceTaxExcl, currency),
			TaxExclusiveAmount:   amount(inv.TotalPriceTaxExcl, currency),
			TaxInclusiveAmount:   amount(inv.TotalPriceTaxIncl, currency),
			AllowanceTotalAmount: amount(0, currency),
			PayableAmount:        amount(inv.TotalPriceTaxIncl, currency),
		},
	}

	if att, err := attachment(inv, o); err != nil {
		o.log.Warn("pdf attachment omitted", zap.String("invoice_no", inv.InvoiceNo), zap.Error(err))
	} else {
		doc.AdditionalDocumentReference = att
	}
	if inv.DateDelivered != nil && *inv.DateDelivered != "" {
		doc.Delivery = &xmlDelivery{ActualDeliveryDate: *inv.DateDelivered}
	}
	if inv.DateDue != "" {
		note := fmt.Sprintf("Payment of %s %s is due by %s.", FormatAmount(inv.TotalPriceTaxIncl), currency, inv.DateDue)
		if ref != "" {
			note += " Reference: " + ref + "."
		}
		doc.PaymentTerms = &xmlPaymentTerms{Note: note}
	}
	for i, item := range inv.LineItems {
		doc.InvoiceLines = append(doc.InvoiceLines, exportLine(i, item, currency))
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal ubl invoice: %w", err)
	}
	return xml.Header + string(out), nil
}

func documentCurrency(inv domain.Invoice) string {
	if inv.Currency != "" {
		return inv.Currency
	}
	if len(inv.LineItems) > 0 {
		return inv.LineItems[0].Currency
	}
	return ""
}

func buyerReference(inv domain.Invoice) string {
	for _, ref := range inv.Refs {
		if ref.Value != "" {
			return ref.Value
		}
	}
	return inv.InvoiceNo
}

func attachment(inv domain.Invoice, o exportOptions) (*xmlDocumentReference, error) {
	var encoded string
	switch {
	case len(o.pdf) > 0:
		encoded = base64.StdEncoding.EncodeToString(o.pdf)
	case o.pdfB64 != "":
		if _, err := base64.StdEncoding.DecodeString(o.pdfB64); err != nil {
			return nil, fmt.Errorf("decode pdf: %w", err)
		}
		encoded = o.pdfB64
	default:
		return nil, nil
	}

	name := slug.Make(inv.InvoiceNo)
	if name == "" {
		name = "invoice"
	}
	return &xmlDocumentReference{
		ID: inv.InvoiceNo,
		Attachment: xmlAttachment{EmbeddedDocumentBinaryObject: xmlBinaryObject{
			Value:    encoded,
			MimeCode: pdfMimeCode,
			Filename: name + ".pdf",
		}},
	}, nil
}

func exportParty(e domain.LegalEntity, supplier bool) xmlParty {
	p := xmlParty{
		PartyName:        e.Name,
		PostalAddress:    exportAddress(e.Address, e.CountryCode()),
		PartyLegalEntity: xmlPartyLegalEntity{RegistrationName: e.Name},
	}
	if e.ID != nil {
		p.EndpointID = e.ID.Value
		switch e.ID.Kind {
		case domain.IDKindTaxID:
			if supplier && e.CountryCode() != "" {
				p.PartyTaxScheme = &xmlPartyTaxScheme{CompanyID: e.ID.Value, TaxScheme: xmlTaxScheme{ID: taxSchemeVAT}}
			}
		case domain.IDKindCorpRegID:
			p.PartyLegalEntity.CompanyID = e.ID.Value
		}
	}
	if c := e.ContactInfo; c != nil && (deref(c.Tel) != "" || deref(c.Email) != "") {
		p.Contact = &xmlContact{Telephone: deref(c.Tel), ElectronicMail: deref(c.Email)}
	}
	return p
}

func exportAddress(a *domain.Address, country string) *xmlPostalAddress {
	if a == nil && country == "" {
		return nil
	}
	out := &xmlPostalAddress{}
	if a != nil {
		out.StreetName = deref(a.StreetAddress)
		out.AdditionalStreetName = deref(a.ExtendedAddress)
		out.CityName = deref(a.City)
		out.PostalZone = deref(a.PostalCode)
		out.CountrySubentity = deref(a.StateProvince)
		if country == "" {
			country = deref(a.Country)
		}
	}
	if country != "" {
		out.Country = &xmlCountry{IdentificationCode: country}
	}
	return out
}

// exportPaymentMeans emits one credit transfer means when either party has a
// bank and one mutually defined means when either party has a wallet.
func exportPaymentMeans(inv domain.Invoice, ref string) []xmlPaymentMeans {
	var means []xmlPaymentMeans
	issuerBank, payerBank := inv.Issuer.Bank(), inv.Payer.Bank()
	if issuerBank != nil || payerBank != nil {
		means = append(means, xmlPaymentMeans{
			PaymentMeansCode:      meansCreditTransfer,
			PaymentID:             ref,
			PayeeFinancialAccount: bankAccount(issuerBank),
			PayerFinancialAccount: bankAccount(payerBank),
		})
	}
	issuerWallet, payerWallet := inv.Issuer.Wallet(), inv.Payer.Wallet()
	if issuerWallet != nil || payerWallet != nil {
		means = append(means, xmlPaymentMeans{
			PaymentMeansCode:      meansMutuallyDefined,
			PaymentID:             ref,
			PayeeFinancialAccount: walletAccount(issuerWallet),
			PayerFinancialAccount: walletAccount(payerWallet),
		})
	}
	return means
}

func bankAccount(b *domain.Bank) *xmlFinancialAccount {
	if b == nil {
		return nil
	}
	acc := &xmlFinancialAccount{
		ID:   xmlIdentifier{Value: b.AccountNum},
		Name: deref(b.Beneficiary),
	}
	if b.AccountType != nil {
		acc.AccountTypeCode = string(*b.AccountType)
	}
	if bic := b.EffectiveBIC(); bic != "" || b.Name != "" || b.Address != nil {
		acc.FinancialInstitutionBranch = &xmlBranch{
			ID:      bic,
			Name:    b.Name,
			Address: exportAddress(b.Address, ""),
		}
	}
	return acc
}

func walletAccount(w *domain.Wallet) *xmlFinancialAccount {
	if w == nil {
		return nil
	}
	acc := &xmlFinancialAccount{
		ID:   xmlIdentifier{Value: deref(w.Address), SchemeID: walletScheme},
		Name: deref(w.ChainName),
	}
	if deref(w.ChainID) != "" || deref(w.Rpc) != "" {
		acc.FinancialInstitutionBranch = &xmlBranch{ID: deref(w.ChainID), Name: deref(w.Rpc)}
	}
	return acc
}

func exportTaxTotal(items []domain.LineItem, currency string) xmlTaxTotal {
	type bucket struct {
		taxable decimal.Decimal
		tax     decimal.Decimal
	}
	buckets := map[string]*bucket{}
	rates := map[string]decimal.Decimal{}
	for _, item := range items {
		rate := decimal.NewFromFloat(item.TaxPercent)
		key := rate.String()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			rates[key] = rate
		}
		excl := decimal.NewFromFloat(item.TotalPriceTaxExcl)
		incl := decimal.NewFromFloat(item.TotalPriceTaxIncl)
		b.taxable = b.taxable.Add(excl)
		b.tax = b.tax.Add(incl.Sub(excl))
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return rates[keys[i]].LessThan(rates[keys[j]]) })

	total := decimal.Zero
	out := xmlTaxTotal{}
	for _, k := range keys {
		b := buckets[k]
		total = total.Add(b.tax)
		out.TaxSubtotals = append(out.TaxSubtotals, xmlTaxSubtotal{
			TaxableAmount: decimalAmount(b.taxable, currency),
			TaxAmount:     decimalAmount(b.tax, currency),
			TaxCategory:   taxCategory(rates[k]),
		})
	}
	out.TaxAmount = decimalAmount(total, currency)
	return out
}

func taxCategory(rate decimal.Decimal) xmlTaxCategory {
	id := taxCategoryStandard
	if rate.IsZero() {
		id = taxCategoryZero
	}
	return xmlTaxCategory{ID: id, Percent: rate.String(), TaxScheme: xmlTaxScheme{ID: taxSchemeVAT}}
}

func exportLine(i int, item domain.LineItem, currency string) xmlInvoiceLine {
	id := item.ID
	if id == "" {
		id = fmt.Sprintf("line-%d", i+1)
	}
	if item.Currency != "" {
		currency = item.Currency
	}
	return xmlInvoiceLine{
		ID:                  id,
		InvoicedQuantity:    xmlQuantity{Value: formatQuantity(item.Quantity), UnitCode: unitCodePiece},
		LineExtensionAmount: amount(item.TotalPriceTaxExcl, currency),
		Item: xmlItem{
			Description:           item.Description,
			Name:                  item.Description,
			ClassifiedTaxCategory: taxCategory(decimal.NewFromFloat(item.TaxPercent)),
		},
		Price: xmlPrice{PriceAmount: amount(item.UnitPriceTaxExcl, currency)},
	}
}

func amount(v float64, currency string) xmlAmount {
	return xmlAmount{Value: FormatAmount(v), CurrencyID: currency}
}

func decimalAmount(d decimal.Decimal, currency string) xmlAmount {
	return xmlAmount{Value: formatDecimal(d), CurrencyID: currency}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
