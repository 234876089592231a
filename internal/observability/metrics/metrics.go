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

// Metrics exposes command-pipeline instruments.
type Metrics struct {
	commandsAccepted  metric.Int64Counter
	commandsRejected  metric.Int64Counter
	versionConflicts  metric.Int64Counter
	idempotentReplays metric.Int64Counter
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
		name = "catalog"
	}
	meter := provider.Meter(name)

	commandsAccepted, err := meter.Int64Counter("catalog_commands_accepted_total")
	if err != nil {
		return nil, err
	}
	commandsRejected, err := meter.Int64Counter("catalog_commands_rejected_total")
	if err != nil {
		return nil, err
	}
	versionConflicts, err := meter.Int64Counter("catalog_version_conflicts_total")
	if err != nil {
		return nil, err
	}
	idempotentReplays, err := meter.Int64Counter("catalog_idempotent_replays_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		commandsAccepted:  commandsAccepted,
		commandsRejected:  commandsRejected,
		versionConflicts:  versionConflicts,
		idempotentReplays: idempotentReplays,
	}, nil
}

// RecordCommandAccepted increments accepted command counts.
func (m *Metrics) RecordCommandAccepted(ctx context.Context, command string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("command", strings.TrimSpace(command)))
	m.commandsAccepted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCommandRejected increments rejected command counts.
func (m *Metrics) RecordCommandRejected(ctx context.Context, command, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("command", strings.TrimSpace(command)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.commandsRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordVersionConflict increments optimistic-concurrency conflict counts.
func (m *Metrics) RecordVersionConflict(ctx context.Context, command string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("command", strings.TrimSpace(command)))
	m.versionConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordIdempotentReplay increments replay-served command counts.
func (m *Metrics) RecordIdempotentReplay(ctx context.Context, command string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("command", strings.TrimSpace(command)))
	m.idempotentReplays.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"command": {},
	"reason":  {},
}

// FilterAttributes drops any label not on the allow list so cardinality stays
// bounded.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}
