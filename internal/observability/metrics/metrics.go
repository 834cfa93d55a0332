package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes invoice document instruments.
type Metrics struct {
	actionsApplied     metric.Int64Counter
	actionsRejected    metric.Int64Counter
	statusTransitions  metric.Int64Counter
	transitionsBlocked metric.Int64Counter
	ublDocuments       metric.Int64Counter
	applyDuration      metric.Float64Histogram
	jobRuns            metric.Int64Counter
	jobDuration        metric.Float64Histogram
	verifications      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "invoicedoc"
	}
	meter := provider.Meter(name)

	actionsApplied, err := meter.Int64Counter("invoicedoc_actions_applied_total")
	if err != nil {
		return nil, err
	}
	actionsRejected, err := meter.Int64Counter("invoicedoc_actions_rejected_total")
	if err != nil {
		return nil, err
	}
	statusTransitions, err := meter.Int64Counter("invoicedoc_status_transitions_total")
	if err != nil {
		return nil, err
	}
	transitionsBlocked, err := meter.Int64Counter("invoicedoc_status_transitions_blocked_total")
	if err != nil {
		return nil, err
	}
	ublDocuments, err := meter.Int64Counter("invoicedoc_ubl_documents_total")
	if err != nil {
		return nil, err
	}
	applyDuration, err := meter.Float64Histogram("invoicedoc_apply_duration_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	jobRuns, err := meter.Int64Counter("invoicedoc_scheduler_job_runs_total")
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("invoicedoc_scheduler_job_duration_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("invoicedoc_document_verifications_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		actionsApplied:     actionsApplied,
		actionsRejected:    actionsRejected,
		statusTransitions:  statusTransitions,
		transitionsBlocked: transitionsBlocked,
		ublDocuments:       ublDocuments,
		applyDuration:      applyDuration,
		jobRuns:            jobRuns,
		jobDuration:        jobDuration,
		verifications:      verifications,
	}, nil
}

// RecordActionApplied counts a committed action and its latency.
func (m *Metrics) RecordActionApplied(ctx context.Context, actionType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action_type", strings.TrimSpace(actionType)))
	m.actionsApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.applyDuration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
}

// RecordActionRejected counts an action that left the document unchanged.
func (m *Metrics) RecordActionRejected(ctx context.Context, actionType, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action_type", strings.TrimSpace(actionType)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.actionsRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordStatusTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("status", strings.TrimSpace(to)),
	)
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTransitionBlocked(ctx context.Context, to, field string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("status", strings.TrimSpace(to)),
		attribute.String("field", strings.TrimSpace(field)),
	)
	m.transitionsBlocked.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUBL counts UBL documents by direction (import or export) and outcome.
func (m *Metrics) RecordUBL(ctx context.Context, direction string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	attrs := FilterAttributes(
		attribute.String("direction", direction),
		attribute.String("result", result),
	)
	m.ublDocuments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobRun counts a scheduler job run by outcome: ok, timeout or error.
func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("job", job),
		attribute.String("result", outcome),
	)
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.jobDuration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs[:1]...))
}

// RecordVerification counts a replayed document log by outcome.
func (m *Metrics) RecordVerification(ctx context.Context, valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "mismatch"
	}
	m.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"action_type": {},
	"reason":      {},
	"from_status": {},
	"status":      {},
	"field":       {},
	"direction":   {},
	"result":      {},
	"job":         {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
