package scheduler

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedoc/internal/clock"
	documentdomain "github.com/smallbiznis/invoicedoc/internal/document/domain"
	obsmetrics "github.com/smallbiznis/invoicedoc/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// fakeDocuments pages through ids in descending order, like the real listing.
type fakeDocuments struct {
	documentdomain.Service

	ids      []string
	invalid  map[string]bool
	failing  map[string]bool
	verified []string
	lists    int
}

func (f *fakeDocuments) List(_ context.Context, req documentdomain.ListRequest) (documentdomain.ListResponse, error) {
	f.lists++
	start := 0
	if req.PageToken != "" {
		start, _ = strconv.Atoi(req.PageToken)
	}
	end := start + req.PageSize
	if end > len(f.ids) {
		end = len(f.ids)
	}
	resp := documentdomain.ListResponse{}
	for _, id := range f.ids[start:end] {
		resp.Documents = append(resp.Documents, documentdomain.Summary{ID: id})
	}
	if end < len(f.ids) {
		resp.HasMore = true
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

func (f *fakeDocuments) Verify(_ context.Context, id string) (documentdomain.VerifyResult, error) {
	f.verified = append(f.verified, id)
	if f.failing[id] {
		return documentdomain.VerifyResult{}, errors.New("database is closed")
	}
	if f.invalid[id] {
		return documentdomain.VerifyResult{Valid: false, Reason: "snapshot hash differs from replayed log"}, nil
	}
	return documentdomain.VerifyResult{Valid: true}, nil
}

func newTestScheduler(t *testing.T, docs documentdomain.Service, cfg Config) (*Scheduler, *sdkmetric.ManualReader) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	metrics, err := obsmetrics.New(obsmetrics.Config{ServiceName: "invoicedoc"}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	s, err := New(Params{
		Log:         zap.NewNop(),
		DocumentSvc: docs,
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		Config:      cfg,
		Metrics:     metrics,
	})
	require.NoError(t, err)
	return s, reader
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	want := attribute.NewSet(attrs...)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if dp.Attributes.Equals(&want) {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BatchSize: 10}.withDefaults()
	assert.Equal(t, 15*time.Minute, cfg.RunInterval)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
}

func TestRunJobTimeoutIsNotAnError(t *testing.T) {
	s, reader := newTestScheduler(t, &fakeDocuments{}, Config{})

	err := s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counterValue(t, reader, "invoicedoc_scheduler_job_runs_total",
		attribute.String("job", "timeout_job"),
		attribute.String("result", "timeout"),
	))
}

func TestRunJobWrapsFailures(t *testing.T) {
	s, reader := newTestScheduler(t, &fakeDocuments{}, Config{})
	boom := errors.New("boom")

	err := s.runJob(context.Background(), "failing_job", 1, time.Second, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failing_job")
	assert.Equal(t, int64(1), counterValue(t, reader, "invoicedoc_scheduler_job_runs_total",
		attribute.String("job", "failing_job"),
		attribute.String("result", "error"),
	))
}

func TestVerifyDocumentsJobReportsMismatches(t *testing.T) {
	docs := &fakeDocuments{
		ids:     []string{"5", "4", "3", "2", "1"},
		invalid: map[string]bool{"4": true},
		failing: map[string]bool{"2": true},
	}
	s, reader := newTestScheduler(t, docs, Config{BatchSize: 2})

	ctx, run, owner := s.ensureJobRun(context.Background(), jobVerifyDocuments, 2)
	require.True(t, owner)

	err := s.VerifyDocumentsJob(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "document 2")

	assert.Equal(t, []string{"5", "4", "3", "2", "1"}, docs.verified)
	assert.Equal(t, 3, docs.lists)
	assert.Equal(t, 4, run.processedCount)
	assert.Equal(t, 1, run.mismatchCount)
	assert.Equal(t, 1, run.errorCount)

	assert.Equal(t, int64(3), counterValue(t, reader, "invoicedoc_document_verifications_total", attribute.String("result", "valid")))
	assert.Equal(t, int64(1), counterValue(t, reader, "invoicedoc_document_verifications_total", attribute.String("result", "mismatch")))
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	docs := &fakeDocuments{ids: []string{"1"}}

	s, _ := newTestScheduler(t, docs, Config{EnabledJobs: []string{"something_else"}})
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, docs.lists)

	s, _ = newTestScheduler(t, docs, Config{EnabledJobs: []string{"VERIFY_DOCUMENTS"}})
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"1"}, docs.verified)
}
