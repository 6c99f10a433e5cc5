package exporters

import (
	"context"
	"time"

	"licensing-controlplane/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
)

func ProvideGrpc(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithCompressor("gzip"),
	}
	if cfg.Otel.Addr != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Otel.Addr))
	}

	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}
