// Package tracing exports pipeline spans over OTLP gRPC.
package tracing

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"auspex/internal/config"
	"auspex/internal/logging"
)

// Provider wraps the OpenTelemetry tracer provider behind the component
// lifecycle. A disabled provider hands out no-op tracers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	log            *logging.Logger
	enabled        bool
}

// New builds the provider. Disabled tracing still yields a usable
// Provider so callers never branch on configuration.
func New(cfg config.TracingConfig) (*Provider, error) {
	log := logging.GetLogger("tracing")

	if !cfg.Enabled {
		log.Info("tracing disabled")
		return &Provider{log: log}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var dialOptions []grpc.DialOption
	var otlpOptions []otlptracegrpc.Option
	if cfg.Insecure {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
		otlpOptions = append(otlpOptions, otlptracegrpc.WithInsecure())
	} else {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(creds))
	}
	otlpOptions = append(otlpOptions,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dialOptions...),
	)

	exporter, err := otlptracegrpc.New(ctx, otlpOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName("auspex"),
			semconv.ServiceVersion("0.1.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	log.Info("tracing initialized with endpoint: %s", cfg.Endpoint)
	return &Provider{
		tracerProvider: tracerProvider,
		log:            log,
		enabled:        true,
	}, nil
}

// Start implements the component lifecycle.
func (p *Provider) Start(ctx context.Context) error {
	return nil
}

// Stop flushes remaining spans.
func (p *Provider) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		p.log.Error("error shutting down tracer provider: %v", err)
		return err
	}
	p.log.Info("tracing provider stopped")
	return nil
}

// Name implements the component lifecycle.
func (p *Provider) Name() string {
	return "tracing"
}

// Tracer returns a tracer for instrumenting code. Until a real provider
// is installed the global default hands back no-op tracers, so this is
// safe to call on a disabled Provider too.
func (p *Provider) Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p.enabled
}
