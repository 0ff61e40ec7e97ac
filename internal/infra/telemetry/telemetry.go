package telemetry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/infra/config"
)

// Provider bundles the telemetry subsystems attached at startup.
type Provider struct {
	tracer *TracerProvider
}

// Attach initializes distributed tracing from the telemetry settings.
// Tracing is optional: with no OTLP endpoint configured the provider is
// inert and Prometheus metrics still work.
func Attach(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Provider{}

	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err := NewTracerProvider(ctx, cfg.Telemetry, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracer provider: %w", err)
		}
		p.tracer = tracer
	}

	return p, nil
}

// Shutdown flushes and stops the attached subsystems.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracer == nil {
		return nil
	}
	return p.tracer.Shutdown(ctx)
}
