// Package statusrule decides whether a proposed status transition is
// well-formed given the current invoice fields.
package statusrule

import (
	"fmt"
	"slices"
	"strings"

	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// AllCurrencies matches every invoice currency.
const AllCurrencies = "ALL"

type Result struct {
	Field    string   `json:"field"`
	IsValid  bool     `json:"isValid"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

type Transitions struct {
	From []domain.Status
	To   []domain.Status
}

func (t Transitions) Matches(from, to domain.Status) bool {
	return slices.Contains(t.From, from) && slices.Contains(t.To, to)
}

// Rule pulls one value out of the invoice and validates it.
type Rule struct {
	Field       string
	Currencies  []string
	Transitions Transitions
	Value       func(domain.Invoice) any
	Validate    func(any) Result
}

func (r Rule) appliesTo(currency string, from, to domain.Status) bool {
	if !r.Transitions.Matches(from, to) {
		return false
	}
	for _, c := range r.Currencies {
		if c == AllCurrencies || strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}

func (r Rule) evaluate(inv domain.Invoice) Result {
	res := r.Validate(r.Value(inv))
	if res.Field == "" {
		res.Field = r.Field
	}
	return res
}

// Engine evaluates an explicitly constructed rule table.
type Engine struct {
	rules []Rule
}

func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Rules returns the rules that apply to moving inv to target.
func (e *Engine) Rules(inv domain.Invoice, target domain.Status) []Rule {
	var out []Rule
	for _, rule := range e.rules {
		if rule.appliesTo(inv.Currency, inv.Status, target) {
			out = append(out, rule)
		}
	}
	return out
}

// Validate stops at the first failing rule. With no failures it returns the
// last passing result, or a valid result when no rule applies.
func (e *Engine) Validate(inv domain.Invoice, target domain.Status) Result {
	last := Result{IsValid: true}
	for _, rule := range e.Rules(inv, target) {
		res := rule.evaluate(inv)
		if !res.IsValid {
			return res
		}
		last = res
	}
	return last
}

// ValidateAll returns every failing result so callers can report them together.
func (e *Engine) ValidateAll(inv domain.Invoice, target domain.Status) []Result {
	var failed []Result
	for _, rule := range e.Rules(inv, target) {
		if res := rule.evaluate(inv); !res.IsValid {
			failed = append(failed, res)
		}
	}
	return failed
}

// Blocking filters results down to those that prevent the transition.
func Blocking(results []Result, blockOnWarning bool) []Result {
	var out []Result
	for _, res := range results {
		if res.IsValid {
			continue
		}
		if res.Severity == SeverityWarning && !blockOnWarning {
			continue
		}
		out = append(out, res)
	}
	return out
}

// TransitionError lists the rule failures that blocked a status change.
type TransitionError struct {
	From    domain.Status
	To      domain.Status
	Results []Result
}

func (e *TransitionError) Error() string {
	fields := make([]string, 0, len(e.Results))
	for _, res := range e.Results {
		fields = append(fields, res.Field)
	}
	return fmt.Sprintf("%s: %s -> %s: %s", domain.ErrTransitionBlocked, e.From, e.To, strings.Join(fields, ", "))
}

func (e *TransitionError) Unwrap() error { return domain.ErrTransitionBlocked }
