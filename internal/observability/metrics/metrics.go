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

// Metrics exposes application-level instruments.
type Metrics struct {
	creditDeducts     metric.Int64Counter
	creditDenials     metric.Int64Counter
	creditRefunds     metric.Int64Counter
	quotaIncrements   metric.Int64Counter
	quotaDenials      metric.Int64Counter
	weightAdjusts     metric.Int64Counter
	outcomeWrites     metric.Int64Counter
	outcomeLockDenied metric.Int64Counter
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
		name = "leadrail"
	}
	meter := provider.Meter(name)

	creditDeducts, err := meter.Int64Counter("leadrail_credit_deductions_total")
	if err != nil {
		return nil, err
	}
	creditDenials, err := meter.Int64Counter("leadrail_credit_denials_total")
	if err != nil {
		return nil, err
	}
	creditRefunds, err := meter.Int64Counter("leadrail_credit_refunds_total")
	if err != nil {
		return nil, err
	}
	quotaIncrements, err := meter.Int64Counter("leadrail_quota_increments_total")
	if err != nil {
		return nil, err
	}
	quotaDenials, err := meter.Int64Counter("leadrail_quota_denials_total")
	if err != nil {
		return nil, err
	}
	weightAdjusts, err := meter.Int64Counter("leadrail_weight_adjustments_total")
	if err != nil {
		return nil, err
	}
	outcomeWrites, err := meter.Int64Counter("leadrail_outcome_writes_total")
	if err != nil {
		return nil, err
	}
	outcomeLockDenied, err := meter.Int64Counter("leadrail_outcome_lock_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		creditDeducts:     creditDeducts,
		creditDenials:     creditDenials,
		creditRefunds:     creditRefunds,
		quotaIncrements:   quotaIncrements,
		quotaDenials:      quotaDenials,
		weightAdjusts:     weightAdjusts,
		outcomeWrites:     outcomeWrites,
		outcomeLockDenied: outcomeLockDenied,
	}, nil
}

// RecordCreditDeduct increments successful deduction counts.
func (m *Metrics) RecordCreditDeduct(ctx context.Context, actionKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action_kind", strings.TrimSpace(actionKind)))
	m.creditDeducts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCreditDenial increments insufficient-credit rejection counts.
func (m *Metrics) RecordCreditDenial(ctx context.Context, actionKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action_kind", strings.TrimSpace(actionKind)))
	m.creditDenials.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCreditRefund increments refund counts.
func (m *Metrics) RecordCreditRefund(ctx context.Context) {
	if m == nil {
		return
	}
	m.creditRefunds.Add(ctx, 1)
}

// RecordQuotaIncrement increments successful quota increment counts.
func (m *Metrics) RecordQuotaIncrement(ctx context.Context, window string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("window", strings.TrimSpace(window)))
	m.quotaIncrements.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordQuotaDenial increments quota rejection counts.
func (m *Metrics) RecordQuotaDenial(ctx context.Context, window string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("window", strings.TrimSpace(window)))
	m.quotaDenials.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWeightAdjust increments weight adjustment counts.
func (m *Metrics) RecordWeightAdjust(ctx context.Context, actionType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action_type", strings.TrimSpace(actionType)))
	m.weightAdjusts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOutcomeWrite increments outcome write counts.
func (m *Metrics) RecordOutcomeWrite(ctx context.Context, outcome string, locked bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.Bool("locked", locked),
	)
	m.outcomeWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOutcomeLockDenied increments rejected writes against locked records.
func (m *Metrics) RecordOutcomeLockDenied(ctx context.Context) {
	if m == nil {
		return
	}
	m.outcomeLockDenied.Add(ctx, 1)
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
	"action_kind": {},
	"action_type": {},
	"window":      {},
	"outcome":     {},
	"locked":      {},
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
