package engine

import (
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/merge"
)

// Party selects the legal entity a party edit targets.
type Party string

const (
	Issuer Party = "issuer"
	Payer  Party = "payer"
)

func entityOf(inv *domain.Invoice, party Party) *domain.LegalEntity {
	if party == Payer {
		return &inv.Payer
	}
	return &inv.Issuer
}

// EditLegalEntity merges basic info into the party. A plain id is stored as
// the tax-id variant.
func EditLegalEntity(inv domain.Invoice, party Party, in domain.EditLegalEntityInput) (domain.Invoice, error) {
	next := inv.Clone()
	entity := entityOf(&next, party)

	switch {
	case in.CorpRegID != nil:
		entity.ID = domain.CorpRegID(*in.CorpRegID)
	case in.ID != nil:
		entity.ID = domain.TaxID(*in.ID)
	}
	entity.Name = merge.Value(in.Name, entity.Name)
	entity.Country = merge.Pick(in.Country, entity.Country)

	if merge.Any(in.StreetAddress, in.ExtendedAddress, in.City, in.PostalCode, in.Country, in.StateProvince) || entity.Address != nil {
		current := entity.Address
		if current == nil {
			current = &domain.Address{}
		}
		entity.Address = mergeAddress(current, in.StreetAddress, in.ExtendedAddress, in.City, in.PostalCode, in.Country, in.StateProvince)
	}

	if merge.Any(in.Tel, in.Email) || entity.ContactInfo != nil {
		current := entity.ContactInfo
		if current == nil {
			current = &domain.ContactInfo{}
		}
		entity.ContactInfo = &domain.ContactInfo{
			Tel:   merge.Pick(in.Tel, current.Tel),
			Email: merge.Pick(in.Email, current.Email),
		}
	}
	return next, nil
}

// EditBank merges bank fields into the party's routing. The intermediary bank
// keeps its own fallback chain and is only created once one of its fields is
// supplied.
func EditBank(inv domain.Invoice, party Party, in domain.EditBankInput) (domain.Invoice, error) {
	next := inv.Clone()
	entity := entityOf(&next, party)
	if entity.PaymentRouting == nil {
		entity.PaymentRouting = &domain.PaymentRouting{}
	}

	current := entity.PaymentRouting.Bank
	if current == nil {
		current = &domain.Bank{}
	}

	bank := &domain.Bank{
		Name:        merge.Value(in.Name, current.Name),
		ABA:         merge.Pick(in.ABA, current.ABA),
		BIC:         merge.Pick(in.BIC, current.BIC),
		SWIFT:       merge.Pick(in.SWIFT, current.SWIFT),
		AccountNum:  merge.Value(in.AccountNum, current.AccountNum),
		AccountType: merge.Pick(in.AccountType, current.AccountType),
		Beneficiary: merge.Pick(in.Beneficiary, current.Beneficiary),
		Memo:        merge.Pick(in.Memo, current.Memo),
	}
	if merge.Any(in.StreetAddress, in.ExtendedAddress, in.City, in.PostalCode, in.Country, in.StateProvince) || current.Address != nil {
		address := current.Address
		if address == nil {
			address = &domain.Address{}
		}
		bank.Address = mergeAddress(address, in.StreetAddress, in.ExtendedAddress, in.City, in.PostalCode, in.Country, in.StateProvince)
	}

	if in.HasIntermediary() || current.IntermediaryBank != nil {
		bank.IntermediaryBank = mergeIntermediary(current.IntermediaryBank, in)
	}

	entity.PaymentRouting.Bank = bank
	return next, nil
}

func mergeIntermediary(current *domain.IntermediaryBank, in domain.EditBankInput) *domain.IntermediaryBank {
	if current == nil {
		current = &domain.IntermediaryBank{}
	}
	out := &domain.IntermediaryBank{
		Name:        merge.Value(in.NameIntermediary, current.Name),
		ABA:         merge.Pick(in.ABAIntermediary, current.ABA),
		BIC:         merge.Pick(in.BICIntermediary, current.BIC),
		SWIFT:       merge.Pick(in.SWIFTIntermediary, current.SWIFT),
		AccountNum:  merge.Value(in.AccountNumIntermediary, current.AccountNum),
		AccountType: merge.Pick(in.AccountTypeIntermediary, current.AccountType),
		Beneficiary: merge.Pick(in.BeneficiaryIntermediary, current.Beneficiary),
		Memo:        merge.Pick(in.MemoIntermediary, current.Memo),
	}
	if merge.Any(in.StreetAddressIntermediary, in.ExtendedAddressIntermediary, in.CityIntermediary,
		in.PostalCodeIntermediary, in.CountryIntermediary, in.StateProvinceIntermediary) || current.Address != nil {
		address := current.Address
		if address == nil {
			address = &domain.Address{}
		}
		out.Address = mergeAddress(address,
			in.StreetAddressIntermediary,
			in.ExtendedAddressIntermediary,
			in.CityIntermediary,
			in.PostalCodeIntermediary,
			in.CountryIntermediary,
			in.StateProvinceIntermediary,
		)
	}
	return out
}

func EditWallet(inv domain.Invoice, party Party, in domain.EditWalletInput) (domain.Invoice, error) {
	next := inv.Clone()
	entity := entityOf(&next, party)
	if entity.PaymentRouting == nil {
		entity.PaymentRouting = &domain.PaymentRouting{}
	}

	current := entity.PaymentRouting.Wallet
	if current == nil {
		current = &domain.Wallet{}
	}
	entity.PaymentRouting.Wallet = &domain.Wallet{
		Rpc:       merge.Pick(in.Rpc, current.Rpc),
		ChainName: merge.Pick(in.ChainName, current.ChainName),
		ChainID:   merge.Pick(in.ChainID, current.ChainID),
		Address:   merge.Pick(in.Address, current.Address),
	}
	return next, nil
}

func mergeAddress(current *domain.Address, street, extended, city, postal, country, state *string) *domain.Address {
	return &domain.Address{
		StreetAddress:   merge.Pick(street, current.StreetAddress),
		ExtendedAddress: merge.Pick(extended, current.ExtendedAddress),
		City:            merge.Pick(city, current.City),
		PostalCode:      merge.Pick(postal, current.PostalCode),
		Country:         merge.Pick(country, current.Country),
		StateProvince:   merge.Pick(state, current.StateProvince),
	}
}
