// Package telemetry exports pipeline counters to an OpenTelemetry
// collector. It is optional; without an endpoint the noop recorder is
// used and nothing is emitted.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "observatory"
	serviceVersion = "1.0.0"
)

// Recorder counts pipeline activity.
type Recorder interface {
	EventsIngested(ctx context.Context, n int64, gatewayID string)
	AlertFired(ctx context.Context, severity string)
	Shutdown(ctx context.Context) error
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) EventsIngested(context.Context, int64, string) {}
func (Noop) AlertFired(context.Context, string)            {}
func (Noop) Shutdown(context.Context) error                { return nil }

// Exporter pushes counters to an OTEL collector over OTLP/gRPC.
type Exporter struct {
	provider       *sdkmetric.MeterProvider
	eventsIngested metric.Int64Counter
	alertsFired    metric.Int64Counter
}

// NewExporter connects to the collector at endpoint.
func NewExporter(ctx context.Context, endpoint string, insecureConn bool) (*Exporter, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("telemetry endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(endpoint),
	}
	if insecureConn {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(30*time.Second))),
	)

	meter := provider.Meter(serviceName)

	eventsIngested, err := meter.Int64Counter("observatory.events.ingested",
		metric.WithDescription("Events accepted at the ingestion boundary"))
	if err != nil {
		return nil, err
	}
	alertsFired, err := meter.Int64Counter("observatory.alerts.fired",
		metric.WithDescription("Alerts fired by the rule engine"))
	if err != nil {
		return nil, err
	}

	return &Exporter{
		provider:       provider,
		eventsIngested: eventsIngested,
		alertsFired:    alertsFired,
	}, nil
}

func (e *Exporter) EventsIngested(ctx context.Context, n int64, gatewayID string) {
	e.eventsIngested.Add(ctx, n, metric.WithAttributes(attribute.String("gateway.id", gatewayID)))
}

func (e *Exporter) AlertFired(ctx context.Context, severity string) {
	e.alertsFired.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", severity)))
}

func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
