package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedoc/internal/clock"
	documentdomain "github.com/smallbiznis/invoicedoc/internal/document/domain"
	obsmetrics "github.com/smallbiznis/invoicedoc/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobVerifyDocuments = "verify_documents"

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log         *zap.Logger
	DocumentSvc documentdomain.Service
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      Config              `optional:"true"`
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	documentSvc documentdomain.Service
	metrics     *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.DocumentSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		documentSvc: p.DocumentSvc,
		metrics:     p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		s.metrics.RecordJobRun(ctx, name, "ok", elapsed)
		return nil
	}

	// a timed out sweep resumes from the start on the next tick
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordJobRun(ctx, name, "timeout", elapsed)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordJobRun(ctx, name, "error", elapsed)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{jobVerifyDocuments, func(ctx context.Context) error {
			return s.runJob(ctx, jobVerifyDocuments, s.cfg.BatchSize, s.cfg.JobTimeout, s.VerifyDocumentsJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// VerifyDocumentsJob replays the stored log of every document, newest first,
// and reports those whose snapshot no longer matches.
func (s *Scheduler) VerifyDocumentsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	var jobErr error
	pageToken := ""

	for {
		page, err := s.documentSvc.List(ctx, documentdomain.ListRequest{
			PageToken: pageToken,
			PageSize:  s.cfg.BatchSize,
		})
		if err != nil {
			return errors.Join(jobErr, err)
		}

		for _, doc := range page.Documents {
			if err := ctx.Err(); err != nil {
				return errors.Join(jobErr, err)
			}
			result, err := s.documentSvc.Verify(ctx, doc.ID)
			if err != nil {
				s.logDocumentError(ctx, run, "document verification failed", doc.ID, err)
				jobErr = errors.Join(jobErr, fmt.Errorf("document %s: %w", doc.ID, err))
				continue
			}
			run.AddProcessed(1)
			s.metrics.RecordVerification(ctx, result.Valid)
			if !result.Valid {
				run.AddMismatch()
				s.logMismatch(ctx, doc.ID, result)
			}
		}

		if !page.HasMore || page.NextPageToken == "" {
			return jobErr
		}
		pageToken = page.NextPageToken
	}
}
