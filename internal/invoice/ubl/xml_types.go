package ubl

import "encoding/xml"

const (
	nsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"

	walletScheme = "walletAddress"
)

// Export side. Prefixed tags keep the cac/cbc prefixes in the output.

type xmlInvoice struct {
	XMLName                     xml.Name              `xml:"Invoice"`
	Xmlns                       string                `xml:"xmlns,attr"`
	Cac                         string                `xml:"xmlns:cac,attr"`
	Cbc                         string                `xml:"xmlns:cbc,attr"`
	UBLVersionID                string                `xml:"cbc:UBLVersionID"`
	ID                          string                `xml:"cbc:ID"`
	IssueDate                   string                `xml:"cbc:IssueDate"`
	DueDate                     string                `xml:"cbc:DueDate,omitempty"`
	InvoiceTypeCode             string                `xml:"cbc:InvoiceTypeCode"`
	DocumentCurrency            string                `xml:"cbc:DocumentCurrencyCode"`
	BuyerReference              string                `xml:"cbc:BuyerReference,omitempty"`
	AdditionalDocumentReference *xmlDocumentReference `xml:"cac:AdditionalDocumentReference,omitempty"`
	SupplierParty               xmlPartyWrapper       `xml:"cac:AccountingSupplierParty"`
	CustomerParty               xmlPartyWrapper       `xml:"cac:AccountingCustomerParty"`
	Delivery                    *xmlDelivery          `xml:"cac:Delivery,omitempty"`
	PaymentMeans                []xmlPaymentMeans     `xml:"cac:PaymentMeans"`
	PaymentTerms                *xmlPaymentTerms      `xml:"cac:PaymentTerms,omitempty"`
	TaxTotal                    xmlTaxTotal           `xml:"cac:TaxTotal"`
	LegalMonetaryTotal          xmlMonetaryTotal      `xml:"cac:LegalMonetaryTotal"`
	InvoiceLines                []xmlInvoiceLine      `xml:"cac:InvoiceLine"`
}

type xmlDocumentReference struct {
	ID         string        `xml:"cbc:ID"`
	Attachment xmlAttachment `xml:"cac:Attachment"`
}

type xmlAttachment struct {
	EmbeddedDocumentBinaryObject xmlBinaryObject `xml:"cbc:EmbeddedDocumentBinaryObject"`
}

type xmlBinaryObject struct {
	Value    string `xml:",chardata"`
	MimeCode string `xml:"mimeCode,attr"`
	Filename string `xml:"filename,attr,omitempty"`
}

type xmlPartyWrapper struct {
	Party xmlParty `xml:"cac:Party"`
}

type xmlParty struct {
	EndpointID       string              `xml:"cbc:EndpointID,omitempty"`
	PartyName        string              `xml:"cac:PartyName>cbc:Name"`
	PostalAddress    *xmlPostalAddress   `xml:"cac:PostalAddress,omitempty"`
	PartyTaxScheme   *xmlPartyTaxScheme  `xml:"cac:PartyTaxScheme,omitempty"`
	PartyLegalEntity xmlPartyLegalEntity `xml:"cac:PartyLegalEntity"`
	Contact          *xmlContact         `xml:"cac:Contact,omitempty"`
}

type xmlPostalAddress struct {
	StreetName           string      `xml:"cbc:StreetName,omitempty"`
	AdditionalStreetName string      `xml:"cbc:AdditionalStreetName,omitempty"`
	CityName             string      `xml:"cbc:CityName,omitempty"`
	PostalZone           string      `xml:"cbc:PostalZone,omitempty"`
	CountrySubentity     string      `xml:"cbc:CountrySubentity,omitempty"`
	Country              *xmlCountry `xml:"cac:Country,omitempty"`
}

type xmlCountry struct {
	IdentificationCode string `xml:"cbc:IdentificationCode"`
}

type xmlPartyTaxScheme struct {
	CompanyID string       `xml:"cbc:CompanyID"`
	TaxScheme xmlTaxScheme `xml:"cac:TaxScheme"`
}

type xmlTaxScheme struct {
	ID string `xml:"cbc:ID"`
}

type xmlPartyLegalEntity struct {
	RegistrationName string `xml:"cbc:RegistrationName"`
	CompanyID        string `xml:"cbc:CompanyID,omitempty"`
}

type xmlContact struct {
	Telephone      string `xml:"cbc:Telephone,omitempty"`
	ElectronicMail string `xml:"cbc:ElectronicMail,omitempty"`
}

type xmlDelivery struct {
	ActualDeliveryDate string `xml:"cbc:ActualDeliveryDate"`
}

type xmlPaymentMeans struct {
	PaymentMeansCode      string               `xml:"cbc:PaymentMeansCode"`
	PaymentID             string               `xml:"cbc:PaymentID,omitempty"`
	PayerFinancialAccount *xmlFinancialAccount `xml:"cac:PayerFinancialAccount,omitempty"`
	PayeeFinancialAccount *xmlFinancialAccount `xml:"cac:PayeeFinancialAccount,omitempty"`
}

type xmlFinancialAccount struct {
	ID                         xmlIdentifier `xml:"cbc:ID"`
	Name                       string        `xml:"cbc:Name,omitempty"`
	AccountTypeCode            string        `xml:"cbc:AccountTypeCode,omitempty"`
	FinancialInstitutionBranch *xmlBranch    `xml:"cac:FinancialInstitutionBranch,omitempty"`
}

type xmlIdentifier struct {
	Value    string `xml:",chardata"`
	SchemeID string `xml:"schemeID,attr,omitempty"`
}

type xmlBranch struct {
	ID      string            `xml:"cbc:ID,omitempty"`
	Name    string            `xml:"cbc:Name,omitempty"`
	Address *xmlPostalAddress `xml:"cac:Address,omitempty"`
}

type xmlPaymentTerms struct {
	Note string `xml:"cbc:Note"`
}

type xmlAmount struct {
	Value      string `xml:",chardata"`
	CurrencyID string `xml:"currencyID,attr"`
}

type xmlTaxTotal struct {
	TaxAmount    xmlAmount        `xml:"cbc:TaxAmount"`
	TaxSubtotals []xmlTaxSubtotal `xml:"cac:TaxSubtotal"`
}

type xmlTaxSubtotal struct {
	TaxableAmount xmlAmount      `xml:"cbc:TaxableAmount"`
	TaxAmount     xmlAmount      `xml:"cbc:TaxAmount"`
	TaxCategory   xmlTaxCategory `xml:"cac:TaxCategory"`
}

type xmlTaxCategory struct {
	ID        string       `xml:"cbc:ID"`
	Percent   string       `xml:"cbc:Percent"`
	TaxScheme xmlTaxScheme `xml:"cac:TaxScheme"`
}

type xmlMonetaryTotal struct {
	LineExtensionAmount  xmlAmount `xml:"cbc:LineExtensionAmount"`
	TaxExclusiveAmount   xmlAmount `xml:"cbc:TaxExclusiveAmount"`
	TaxInclusiveAmount   xmlAmount `xml:"cbc:TaxInclusiveAmount"`
	AllowanceTotalAmount xmlAmount `xml:"cbc:AllowanceTotalAmount"`
	PayableAmount        xmlAmount `xml:"cbc:PayableAmount"`
}

type xmlInvoiceLine struct {
	ID                  string      `xml:"cbc:ID"`
	InvoicedQuantity    xmlQuantity `xml:"cbc:InvoicedQuantity"`
	LineExtensionAmount xmlAmount   `xml:"cbc:LineExtensionAmount"`
	Item                xmlItem     `xml:"cac:Item"`
	Price               xmlPrice    `xml:"cac:Price"`
}

type xmlQuantity struct {
	Value    string `xml:",chardata"`
	UnitCode string `xml:"unitCode,attr"`
}

type xmlItem struct {
	Description           string         `xml:"cbc:Description,omitempty"`
	Name                  string         `xml:"cbc:Name"`
	ClassifiedTaxCategory xmlTaxCategory `xml:"cac:ClassifiedTaxCategory"`
}

type xmlPrice struct {
	PriceAmount xmlAmount `xml:"cbc:PriceAmount"`
}

// Import side. Local names only, so any namespace prefix matches.

type docInvoice struct {
	ID                  string            `xml:"ID"`
	IssueDate           string            `xml:"IssueDate"`
	DueDate             string            `xml:"DueDate"`
	DocumentCurrency    string            `xml:"DocumentCurrencyCode"`
	AdditionalDocuments []docDocumentRef  `xml:"AdditionalDocumentReference"`
	Supplier            docParty          `xml:"AccountingSupplierParty>Party"`
	Customer            docParty          `xml:"AccountingCustomerParty>Party"`
	DeliveryDate        string            `xml:"Delivery>ActualDeliveryDate"`
	PaymentMeans        []docPaymentMeans `xml:"PaymentMeans"`
	Lines               []docLine         `xml:"InvoiceLine"`
}

type docDocumentRef struct {
	ID     string    `xml:"ID"`
	Binary docBinary `xml:"Attachment>EmbeddedDocumentBinaryObject"`
}

type docBinary struct {
	Value    string `xml:",chardata"`
	MimeCode string `xml:"mimeCode,attr"`
	Filename string `xml:"filename,attr"`
}

type docParty struct {
	EndpointID       string      `xml:"EndpointID"`
	Name             string      `xml:"PartyName>Name"`
	PostalAddress    *docAddress `xml:"PostalAddress"`
	TaxCompanyID     string      `xml:"PartyTaxScheme>CompanyID"`
	RegistrationName string      `xml:"PartyLegalEntity>RegistrationName"`
	LegalCompanyID   string      `xml:"PartyLegalEntity>CompanyID"`
	Telephone        string      `xml:"Contact>Telephone"`
	ElectronicMail   string      `xml:"Contact>ElectronicMail"`
}

type docAddress struct {
	StreetName           string `xml:"StreetName"`
	AdditionalStreetName string `xml:"AdditionalStreetName"`
	CityName             string `xml:"CityName"`
	PostalZone           string `xml:"PostalZone"`
	CountrySubentity     string `xml:"CountrySubentity"`
	Country              string `xml:"Country>IdentificationCode"`
}

type docPaymentMeans struct {
	Code  string      `xml:"PaymentMeansCode"`
	Payer *docAccount `xml:"PayerFinancialAccount"`
	Payee *docAccount `xml:"PayeeFinancialAccount"`
}

type docAccount struct {
	ID              docIdentifier `xml:"ID"`
	Name            string        `xml:"Name"`
	AccountTypeCode string        `xml:"AccountTypeCode"`
	Branch          *docBranch    `xml:"FinancialInstitutionBranch"`
}

type docIdentifier struct {
	Value    string `xml:",chardata"`
	SchemeID string `xml:"schemeID,attr"`
}

type docBranch struct {
	ID      string      `xml:"ID"`
	Name    string      `xml:"Name"`
	Address *docAddress `xml:"Address"`
}

type docLine struct {
	ID          string    `xml:"ID"`
	Quantity    string    `xml:"InvoicedQuantity"`
	Description string    `xml:"Item>Description"`
	Name        string    `xml:"Item>Name"`
	Percent     string    `xml:"Item>ClassifiedTaxCategory>Percent"`
	Price       docAmount `xml:"Price>PriceAmount"`
}

type docAmount struct {
	Value      string `xml:",chardata"`
	CurrencyID string `xml:"currencyID,attr"`
}
