package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedoc/internal/clock"
	"github.com/smallbiznis/invoicedoc/internal/config"
	"github.com/smallbiznis/invoicedoc/internal/document/domain"
	"github.com/smallbiznis/invoicedoc/internal/document/lock"
	invoicedomain "github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/reducer"
	"github.com/smallbiznis/invoicedoc/internal/invoice/statusrule"
	"github.com/smallbiznis/invoicedoc/internal/invoice/ubl"
	"github.com/smallbiznis/invoicedoc/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicedoc/internal/observability/metrics"
	"github.com/smallbiznis/invoicedoc/pkg/db/pagination"
	"github.com/smallbiznis/invoicedoc/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Locker    lock.Locker
	Clock     clock.Clock
	Cfg       config.Config
	Rules     *config.RulesHolder
	Metrics   *obsmetrics.Metrics `optional:"true"`
	Telemetry *telemetry.Metrics  `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	locker    lock.Locker
	clock     clock.Clock
	rules     *config.RulesHolder
	reducer   *reducer.Reducer
	metrics   *obsmetrics.Metrics
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	log := p.Log.Named("document.service")
	opts := []reducer.Option{
		reducer.WithClock(p.Clock),
		reducer.WithLogger(p.Log),
	}
	if p.Cfg.StrictTransitions {
		opts = append(opts, reducer.WithTransitionTable(statusrule.DefaultTransitions()))
	}
	rules := p.Rules
	if rules == nil {
		rules = config.NewStaticRulesHolder(config.DefaultRulesConfig())
	}

	return &Service{
		db:        p.DB,
		log:       log,
		genID:     p.GenID,
		repo:      p.Repo,
		locker:    p.Locker,
		clock:     p.Clock,
		rules:     rules,
		reducer:   reducer.New(opts...),
		metrics:   p.Metrics,
		telemetry: p.Telemetry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Snapshot, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) > 255 {
		return domain.Snapshot{}, domain.ErrInvalidName
	}

	state := invoicedomain.NewInvoice()
	raw, hash, err := encodeState(state)
	if err != nil {
		return domain.Snapshot{}, err
	}

	now := s.clock.Now()
	doc := domain.Document{
		ID:        s.genID.Generate(),
		Name:      name,
		Status:    string(state.Status),
		State:     raw,
		Revision:  0,
		Hash:      hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &doc); err != nil {
		return domain.Snapshot{}, err
	}

	s.telemetry.IncDocumentsCreated()
	logger.WithDocument(logger.WithContext(ctx, s.log), doc.ID.String()).Info("document created")
	return snapshot(&doc, state), nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Snapshot, error) {
	doc, state, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snapshot(doc, state), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status != "" && !invoicedomain.Status(status).Valid() {
		return domain.ListResponse{}, domain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{Status: status}, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, info := pagination.BuildCursorPageInfo(items, page.Size(), func(doc *domain.Document) pagination.Cursor {
		return pagination.Cursor{
			ID:        doc.ID.String(),
			CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		}
	})

	resp := domain.ListResponse{PageInfo: *info, Documents: make([]domain.Summary, 0, len(items))}
	for _, doc := range items {
		resp.Documents = append(resp.Documents, domain.Summary{
			ID:        doc.ID.String(),
			Name:      doc.Name,
			Status:    doc.Status,
			InvoiceNo: doc.InvoiceNo,
			Currency:  doc.Currency,
			Revision:  doc.Revision,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	return resp, nil
}

func (s *Service) Operations(ctx context.Context, id string) ([]invoicedomain.Operation, error) {
	docID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, s.db, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return s.operations(ctx, s.db, docID)
}

func (s *Service) Apply(ctx context.Context, id string, action invoicedomain.Action) (domain.Snapshot, error) {
	return s.commit(ctx, id, func(invoicedomain.Invoice) ([]invoicedomain.Action, error) {
		return []invoicedomain.Action{action}, nil
	}, nil)
}

// ChangeStatus runs the status rules against the locked snapshot and
// dispatches EDIT_STATUS only when nothing blocks the move.
func (s *Service) ChangeStatus(ctx context.Context, id string, target invoicedomain.Status) (domain.Snapshot, error) {
	if !target.Valid() {
		return domain.Snapshot{}, domain.ErrInvalidStatus
	}

	var from invoicedomain.Status
	snap, err := s.commit(ctx, id, func(state invoicedomain.Invoice) ([]invoicedomain.Action, error) {
		from = state.Status
		rules := s.rules.Get()
		blocking := statusrule.Blocking(s.engine(rules).ValidateAll(state, target), rules.BlockOnWarning)
		if len(blocking) > 0 {
			for _, res := range blocking {
				s.metrics.RecordTransitionBlocked(ctx, string(target), res.Field)
			}
			return nil, &statusrule.TransitionError{From: state.Status, To: target, Results: blocking}
		}
		return []invoicedomain.Action{invoicedomain.EditStatus(target)}, nil
	}, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}

	s.metrics.RecordStatusTransition(ctx, string(from), string(target))
	return snap, nil
}

func (s *Service) ValidateTransition(ctx context.Context, id string, target invoicedomain.Status) (domain.TransitionReport, error) {
	if !target.Valid() {
		return domain.TransitionReport{}, domain.ErrInvalidStatus
	}
	_, state, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.TransitionReport{}, err
	}
	return s.evaluate(state, target), nil
}

// ImportUBL parses src before touching the document, so a malformed file
// leaves it unchanged.
func (s *Service) ImportUBL(ctx context.Context, id string, src io.Reader) (domain.Snapshot, error) {
	imported, err := ubl.Import(src)
	if err != nil {
		s.metrics.RecordUBL(ctx, "import", false)
		return domain.Snapshot{}, err
	}

	snap, err := s.commit(ctx, id, func(invoicedomain.Invoice) ([]invoicedomain.Action, error) {
		return imported.Actions, nil
	}, imported.PDF)
	s.metrics.RecordUBL(ctx, "import", err == nil)
	return snap, err
}

func (s *Service) ExportUBL(ctx context.Context, id string, req domain.ExportRequest) (string, error) {
	doc, state, err := s.load(ctx, s.db, id)
	if err != nil {
		return "", err
	}

	pdf := req.PDF
	if len(pdf) == 0 {
		pdf = doc.Attachment
	}
	out, err := ubl.Export(state, ubl.WithPDF(pdf), ubl.WithLogger(logger.WithContext(ctx, s.log)))
	s.metrics.RecordUBL(ctx, "export", err == nil)
	if err != nil {
		return "", err
	}
	s.telemetry.ObserveInvoiceAmount(state.Currency, state.TotalPriceTaxIncl)
	return out, nil
}

// Verify replays the stored log from an empty invoice and compares the
// result with the stored snapshot.
func (s *Service) Verify(ctx context.Context, id string) (domain.VerifyResult, error) {
	doc, state, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	ops, err := s.operations(ctx, s.db, doc.ID)
	if err != nil {
		return domain.VerifyResult{}, err
	}

	result := domain.VerifyResult{Revision: doc.Revision, Stored: doc.Hash}
	replayed, err := s.reducer.Replay(ops)
	if err != nil {
		result.Reason = err.Error()
		return result, nil
	}
	if result.Replayed, err = reducer.Hash(replayed.State); err != nil {
		return domain.VerifyResult{}, err
	}
	stateHash, err := reducer.Hash(state)
	if err != nil {
		return domain.VerifyResult{}, err
	}

	switch {
	case len(ops) != doc.Revision:
		result.Reason = fmt.Sprintf("log holds %d operations, snapshot is at revision %d", len(ops), doc.Revision)
	case stateHash != doc.Hash:
		result.Reason = "snapshot state does not match its hash"
	case result.Replayed != doc.Hash:
		result.Reason = reducer.ErrHashMismatch.Error()
	default:
		result.Valid = true
	}
	if !result.Valid {
		logger.WithDocument(logger.WithContext(ctx, s.log), doc.ID.String()).Warn("document verification failed",
			zap.String("reason", result.Reason),
		)
	}
	return result, nil
}

// commit locks the document, plans actions against its current state and
// applies them in order. Either every action is stored with the new
// snapshot or, on the first rejection, nothing is.
func (s *Service) commit(
	ctx context.Context,
	id string,
	plan func(invoicedomain.Invoice) ([]invoicedomain.Action, error),
	attachment []byte,
) (domain.Snapshot, error) {
	docID, err := parseID(id)
	if err != nil {
		return domain.Snapshot{}, err
	}

	release, err := s.locker.Acquire(ctx, docID.String())
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer release()

	log := logger.WithDocument(logger.WithContext(ctx, s.log), docID.String())
	start := time.Now()

	var (
		doc     *domain.Document
		state   invoicedomain.Invoice
		applied []invoicedomain.Operation
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, state, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		actions, err := plan(state)
		if err != nil {
			return err
		}

		for i, action := range actions {
			next, op, err := s.reducer.Step(state, doc.Revision+i, action)
			if err != nil {
				s.metrics.RecordActionRejected(ctx, string(action.Type), rejectionReason(err))
				if len(actions) > 1 {
					return fmt.Errorf("action %d (%s): %w", i, action.Type, err)
				}
				return err
			}
			state = next
			applied = append(applied, op)
		}
		if len(applied) == 0 {
			return nil
		}

		rows := make([]*domain.Operation, 0, len(applied))
		for _, op := range applied {
			row := domain.NewOperation(s.genID.Generate(), doc.ID, op)
			rows = append(rows, &row)
		}
		if err := s.repo.AppendOperations(ctx, tx, rows); err != nil {
			return err
		}

		raw, hash, err := encodeState(state)
		if err != nil {
			return err
		}
		expected := doc.Revision
		doc.State = raw
		doc.Hash = hash
		doc.Revision += len(applied)
		doc.Status = string(state.Status)
		doc.InvoiceNo = state.InvoiceNo
		doc.Currency = state.Currency
		doc.UpdatedAt = s.clock.Now()
		if len(attachment) > 0 {
			doc.Attachment = attachment
		}
		ok, err := s.repo.SaveSnapshot(ctx, tx, doc, expected)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentEdit
		}
		return nil
	})
	if err != nil {
		log.Debug("document unchanged", zap.Error(err))
		return domain.Snapshot{}, err
	}

	elapsed := time.Since(start)
	for _, op := range applied {
		s.metrics.RecordActionApplied(ctx, string(op.Type), elapsed)
		s.telemetry.IncOperationsStored(string(op.Type))
	}
	log.Info("document updated",
		zap.Int("revision", doc.Revision),
		zap.Int("operations", len(applied)),
		zap.Duration("elapsed", elapsed),
	)
	return snapshot(doc, state), nil
}

func (s *Service) evaluate(state invoicedomain.Invoice, target invoicedomain.Status) domain.TransitionReport {
	rules := s.rules.Get()
	results := s.engine(rules).ValidateAll(state, target)
	if results == nil {
		results = []statusrule.Result{}
	}
	return domain.TransitionReport{
		From:    state.Status,
		To:      target,
		Results: results,
		Blocked: len(statusrule.Blocking(results, rules.BlockOnWarning)) > 0,
	}
}

// engine is rebuilt per call so reloaded currency lists take effect.
func (s *Service) engine(rules config.RulesConfig) *statusrule.Engine {
	return statusrule.NewEngine(statusrule.DefaultRules(statusrule.Options{
		IBANCurrencies:   rules.IBANCurrencies,
		FiatCurrencies:   rules.FiatCurrencies,
		CryptoCurrencies: rules.CryptoCurrencies,
	}))
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id string) (*domain.Document, invoicedomain.Invoice, error) {
	docID, err := parseID(id)
	if err != nil {
		return nil, invoicedomain.Invoice{}, err
	}
	doc, err := s.repo.FindByID(ctx, db, docID)
	if err != nil {
		return nil, invoicedomain.Invoice{}, err
	}
	if doc == nil {
		return nil, invoicedomain.Invoice{}, domain.ErrNotFound
	}

	state := invoicedomain.NewInvoice()
	if err := json.Unmarshal(doc.State, &state); err != nil {
		return nil, invoicedomain.Invoice{}, fmt.Errorf("decode document %s state: %w", doc.ID, err)
	}
	return doc, state, nil
}

func (s *Service) operations(ctx context.Context, db *gorm.DB, docID snowflake.ID) ([]invoicedomain.Operation, error) {
	rows, err := s.repo.ListOperations(ctx, db, docID)
	if err != nil {
		return nil, err
	}
	ops := make([]invoicedomain.Operation, 0, len(rows))
	for _, row := range rows {
		ops = append(ops, row.ToInvoice())
	}
	return ops, nil
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed <= 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed, nil
}

func encodeState(state invoicedomain.Invoice) (datatypes.JSON, string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, "", err
	}
	hash, err := reducer.Hash(state)
	if err != nil {
		return nil, "", err
	}
	return datatypes.JSON(raw), hash, nil
}

func snapshot(doc *domain.Document, state invoicedomain.Invoice) domain.Snapshot {
	return domain.Snapshot{
		ID:        doc.ID.String(),
		Name:      doc.Name,
		Revision:  doc.Revision,
		Hash:      doc.Hash,
		State:     state,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func rejectionReason(err error) string {
	for _, sentinel := range []error{
		invoicedomain.ErrSchemaValidation,
		invoicedomain.ErrUnknownAction,
		invoicedomain.ErrDuplicateID,
		invoicedomain.ErrNotFound,
		invoicedomain.ErrPriceInconsistent,
		invoicedomain.ErrInvalidTransition,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal"
}
