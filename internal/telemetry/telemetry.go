// Package telemetry 提供 OpenTelemetry 指标，通过 Prometheus 导出
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const meterName = "codeinject-go-server"

// Telemetry 持有全局 MeterProvider
type Telemetry struct {
	Meter    metric.Meter
	provider *sdkmetric.MeterProvider
}

func NewTelemetry(logger *zap.Logger) (*Telemetry, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	logger.Named("telemetry").Info("telemetry initialized", zap.String("meter", meterName))
	return &Telemetry{
		Meter:    provider.Meter(meterName),
		provider: provider,
	}, nil
}

// Handler 暴露 /metrics
func (t *Telemetry) Handler() http.Handler {
	return promhttp.Handler()
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
