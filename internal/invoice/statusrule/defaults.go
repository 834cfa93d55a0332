package statusrule

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicedoc/internal/invoice/checkdigit"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
)

// Options selects which currencies the bank and wallet rules apply to.
type Options struct {
	IBANCurrencies   []string
	FiatCurrencies   []string
	CryptoCurrencies []string
}

func DefaultOptions() Options {
	return Options{
		IBANCurrencies:   []string{"EUR", "GBP"},
		FiatCurrencies:   []string{"EUR", "GBP", "USD", "CHF", "JPY"},
		CryptoCurrencies: []string{"USDS", "USDC", "DAI", "ETH"},
	}
}

var (
	issueTransition = Transitions{
		From: []domain.Status{domain.StatusDraft},
		To:   []domain.Status{domain.StatusIssued},
	}
	scheduleTransition = Transitions{
		From: []domain.Status{domain.StatusIssued, domain.StatusAccepted, domain.StatusAwaitingPayment},
		To:   []domain.Status{domain.StatusPaymentScheduled},
	}
)

// DefaultRules builds the rule table gating DRAFT -> ISSUED and wallet payouts.
func DefaultRules(opts Options) []Rule {
	v := validator.New()
	all := []string{AllCurrencies}

	rules := []Rule{
		{
			Field:       "invoiceNo",
			Currencies:  all,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return inv.InvoiceNo },
			Validate:    nonEmpty("invoiceNo", "Invoice number is required", SeverityWarning),
		},
		{
			Field:       "country",
			Currencies:  all,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return inv.Issuer.CountryCode() },
			Validate: func(value any) Result {
				country := strings.ToUpper(str(value))
				if v.Var(country, "required,iso3166_1_alpha2") != nil {
					return fail("country", "Issuer country must be a valid ISO 3166 country code", SeverityWarning)
				}
				return pass("country")
			},
		},
		{
			Field:       "accountNum",
			Currencies:  opts.IBANCurrencies,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return bankOf(inv).AccountNum },
			Validate: func(value any) Result {
				if !checkdigit.ValidIBAN(str(value)) {
					return fail("accountNum", "Account number must be a valid IBAN", SeverityWarning)
				}
				return pass("accountNum")
			},
		},
		{
			Field:       "BIC",
			Currencies:  opts.IBANCurrencies,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return bankOf(inv).EffectiveBIC() },
			Validate: func(value any) Result {
				if v.Var(strings.ToUpper(str(value)), "required,bic") != nil {
					return fail("BIC", "BIC/SWIFT code must be 8 or 11 characters", SeverityWarning)
				}
				return pass("BIC")
			},
		},
		{
			Field:       "bankName",
			Currencies:  opts.FiatCurrencies,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return bankOf(inv).Name },
			Validate:    nonEmpty("bankName", "Bank name is required", SeverityWarning),
		},
		{
			Field:       "streetAddress",
			Currencies:  opts.FiatCurrencies,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return bankAddress(inv).StreetAddress },
			Validate:    nonEmpty("streetAddress", "Bank street address is required", SeverityWarning),
		},
		{
			Field:       "city",
			Currencies:  opts.FiatCurrencies,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return bankAddress(inv).City },
			Validate:    nonEmpty("city", "Bank city is required", SeverityWarning),
		},
		{
			Field:       "postalCode",
			Currencies:  opts.FiatCurrencies,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return bankAddress(inv).PostalCode },
			Validate:    nonEmpty("postalCode", "Bank postal code is required", SeverityWarning),
		},
		{
			Field:       "email",
			Currencies:  all,
			Transitions: issueTransition,
			Value: func(inv domain.Invoice) any {
				if inv.Payer.ContactInfo == nil {
					return ""
				}
				return inv.Payer.ContactInfo.Email
			},
			Validate: func(value any) Result {
				if v.Var(str(value), "required,email") != nil {
					return fail("email", "Payer email must be a valid email address", SeverityWarning)
				}
				return pass("email")
			},
		},
		{
			Field:       "lineItems",
			Currencies:  all,
			Transitions: issueTransition,
			Value:       func(inv domain.Invoice) any { return len(inv.LineItems) },
			Validate: func(value any) Result {
				if n, _ := value.(int); n == 0 {
					return fail("lineItems", "At least one line item is required", SeverityError)
				}
				return pass("lineItems")
			},
		},
	}

	walletRule := func(t Transitions) Rule {
		return Rule{
			Field:       "address",
			Currencies:  opts.CryptoCurrencies,
			Transitions: t,
			Value: func(inv domain.Invoice) any {
				if w := inv.Issuer.Wallet(); w != nil {
					return w.Address
				}
				return ""
			},
			Validate: func(value any) Result {
				if v.Var(str(value), "required,eth_addr") != nil {
					return fail("address", "Wallet address must be a valid 0x account address", SeverityWarning)
				}
				return pass("address")
			},
		}
	}
	return append(rules, walletRule(issueTransition), walletRule(scheduleTransition))
}

func nonEmpty(field, message string, severity Severity) func(any) Result {
	return func(value any) Result {
		if strings.TrimSpace(str(value)) == "" {
			return fail(field, message, severity)
		}
		return pass(field)
	}
}

func pass(field string) Result {
	return Result{Field: field, IsValid: true}
}

func fail(field, message string, severity Severity) Result {
	return Result{Field: field, IsValid: false, Message: message, Severity: severity}
}

func str(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	default:
		return ""
	}
}

func bankOf(inv domain.Invoice) *domain.Bank {
	if bank := inv.Issuer.Bank(); bank != nil {
		return bank
	}
	return &domain.Bank{}
}

func bankAddress(inv domain.Invoice) *domain.Address {
	if addr := bankOf(inv).Address; addr != nil {
		return addr
	}
	return &domain.Address{}
}
