// Package reducer validates, routes and records invoice actions.
package reducer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicedoc/internal/clock"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/engine"
	"github.com/smallbiznis/invoicedoc/internal/invoice/statusrule"
	"go.uber.org/zap"
)

type Reducer struct {
	validate    *validator.Validate
	clock       clock.Clock
	log         *zap.Logger
	transitions statusrule.TransitionTable
}

type Option func(*Reducer)

func WithClock(c clock.Clock) Option {
	return func(r *Reducer) { r.clock = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Reducer) { r.log = log.Named("invoice.reducer") }
}

// WithTransitionTable makes EDIT_STATUS reject moves the table does not allow.
func WithTransitionTable(t statusrule.TransitionTable) Option {
	return func(r *Reducer) { r.transitions = t }
}

func New(opts ...Option) *Reducer {
	r := &Reducer{
		validate: domain.NewValidator(),
		clock:    clock.New(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply validates and applies action. On any error the returned document is
// doc unchanged and no operation is appended.
func (r *Reducer) Apply(doc domain.Document, action domain.Action) (domain.Document, error) {
	state, op, err := r.Step(doc.State, len(doc.Operations), action)
	if err != nil {
		return doc, err
	}
	ops := make([]domain.Operation, len(doc.Operations), len(doc.Operations)+1)
	copy(ops, doc.Operations)
	return domain.Document{State: state, Operations: append(ops, op)}, nil
}

// ApplyAll applies actions in order and stops at the first failure, returning
// the document as it was after the last successful action.
func (r *Reducer) ApplyAll(doc domain.Document, actions []domain.Action) (domain.Document, error) {
	for i, action := range actions {
		next, err := r.Apply(doc, action)
		if err != nil {
			return doc, fmt.Errorf("action %d (%s): %w", i, action.Type, err)
		}
		doc = next
	}
	return doc, nil
}

// Step computes the next state and the operation recording it at index.
func (r *Reducer) Step(state domain.Invoice, index int, action domain.Action) (domain.Invoice, domain.Operation, error) {
	return r.step(state, index, action, r.clock.Now())
}

func (r *Reducer) step(state domain.Invoice, index int, action domain.Action, ts time.Time) (domain.Invoice, domain.Operation, error) {
	if err := domain.ValidateInput(r.validate, action); err != nil {
		r.log.Debug("action rejected by schema", zap.String("action_type", string(action.Type)), zap.Error(err))
		return state, domain.Operation{}, err
	}

	next, err := r.route(state, action)
	if err != nil {
		r.log.Warn("action rejected",
			zap.String("action_type", string(action.Type)),
			zap.Int("index", index),
			zap.Error(err),
		)
		return state, domain.Operation{}, err
	}

	input, err := json.Marshal(action.Input)
	if err != nil {
		return state, domain.Operation{}, err
	}
	hash, err := Hash(next)
	if err != nil {
		return state, domain.Operation{}, err
	}
	scope := action.Scope
	if scope == "" {
		scope = domain.ScopeGlobal
	}

	return next, domain.Operation{
		Index:     index,
		Type:      action.Type,
		Scope:     scope,
		Input:     input,
		Timestamp: ts.UTC(),
		Hash:      hash,
	}, nil
}

func (r *Reducer) route(state domain.Invoice, action domain.Action) (domain.Invoice, error) {
	switch action.Type {
	case domain.ActionEditInvoice:
		return run(state, action, engine.EditInvoice)
	case domain.ActionEditStatus:
		return run(state, action, r.editStatus)
	case domain.ActionAddRef:
		return run(state, action, engine.AddRef)
	case domain.ActionEditRef:
		return run(state, action, engine.EditRef)
	case domain.ActionDeleteRef:
		return run(state, action, engine.DeleteRef)
	case domain.ActionEditIssuer:
		return run(state, action, party(engine.Issuer, engine.EditLegalEntity))
	case domain.ActionEditPayer:
		return run(state, action, party(engine.Payer, engine.EditLegalEntity))
	case domain.ActionEditIssuerBank:
		return run(state, action, party(engine.Issuer, engine.EditBank))
	case domain.ActionEditPayerBank:
		return run(state, action, party(engine.Payer, engine.EditBank))
	case domain.ActionEditIssuerWallet:
		return run(state, action, party(engine.Issuer, engine.EditWallet))
	case domain.ActionEditPayerWallet:
		return run(state, action, party(engine.Payer, engine.EditWallet))
	case domain.ActionAddLineItem:
		return run(state, action, engine.AddLineItem)
	case domain.ActionEditLineItem:
		return run(state, action, engine.EditLineItem)
	case domain.ActionDeleteLineItem:
		return run(state, action, engine.DeleteLineItem)
	case domain.ActionSetLineItemTag:
		return run(state, action, engine.SetLineItemTag)
	default:
		return state, fmt.Errorf("%w: %q", domain.ErrUnknownAction, action.Type)
	}
}

func (r *Reducer) editStatus(state domain.Invoice, in domain.EditStatusInput) (domain.Invoice, error) {
	if r.transitions != nil && !r.transitions.Allows(state.Status, in.Status) {
		return state, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, state.Status, in.Status)
	}
	return engine.EditStatus(state, in)
}

func run[T any](state domain.Invoice, action domain.Action, fn func(domain.Invoice, T) (domain.Invoice, error)) (domain.Invoice, error) {
	var input T
	switch in := action.Input.(type) {
	case T:
		input = in
	case *T:
		if in == nil {
			return state, schemaMismatch(action)
		}
		input = *in
	default:
		return state, schemaMismatch(action)
	}
	return fn(state, input)
}

func party[T any](p engine.Party, fn func(domain.Invoice, engine.Party, T) (domain.Invoice, error)) func(domain.Invoice, T) (domain.Invoice, error) {
	return func(state domain.Invoice, in T) (domain.Invoice, error) {
		return fn(state, p, in)
	}
}

func schemaMismatch(action domain.Action) error {
	return &domain.SchemaError{
		Action: action.Type,
		Violations: []domain.FieldViolation{{
			Field:   "input",
			Code:    "type",
			Message: fmt.Sprintf("input %T does not match %s", action.Input, action.Type),
		}},
	}
}

// Replay rebuilds a document from an ordered log, keeping the recorded
// timestamps. It fails if any operation no longer applies or its hash differs.
func (r *Reducer) Replay(ops []domain.Operation) (domain.Document, error) {
	doc := domain.NewDocument()
	for _, op := range ops {
		action, err := op.Action()
		if err != nil {
			return doc, fmt.Errorf("operation %d: %w", op.Index, err)
		}
		state, replayed, err := r.step(doc.State, len(doc.Operations), action, op.Timestamp)
		if err != nil {
			return doc, fmt.Errorf("operation %d: %w", op.Index, err)
		}
		if op.Hash != "" && op.Hash != replayed.Hash {
			return doc, fmt.Errorf("operation %d: %w", op.Index, ErrHashMismatch)
		}
		doc.State = state
		doc.Operations = append(doc.Operations, replayed)
	}
	return doc, nil
}

var ErrHashMismatch = errors.New("hash_mismatch")

// Hash fingerprints an invoice state.
func Hash(state domain.Invoice) (string, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
