package main

import (
	"context"
	"log"

	"licensing-controlplane/internal/httpapi"
	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/db"
	"licensing-controlplane/pkg/gen"
	"licensing-controlplane/pkg/health"
	"licensing-controlplane/pkg/logger"
	"licensing-controlplane/pkg/otelcol"
	"licensing-controlplane/pkg/otelcol/exporters"
	"licensing-controlplane/pkg/redis"
	"licensing-controlplane/pkg/server"
	"licensing-controlplane/pkg/task"
	"licensing-controlplane/services/catalog"
	"licensing-controlplane/services/entitlement"
	"licensing-controlplane/services/permission"
	"licensing-controlplane/services/profile"
	"licensing-controlplane/services/token"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Client,
		health.Module,
		catalog.ServiceModule,
		profile.Module,
		entitlement.Module,
		permission.Module,
		token.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fx.Provide(
			provideTraceExporter,
			provideTracerProvider,
		),
		fx.Invoke(
			registerTracing,
			registerDBPlugins,
			migrate,
		),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTraceExporter(cfg *config.Config) (*otlptrace.Exporter, error) {
	if cfg.Otel.Protocol == "grpc" {
		return exporters.ProvideGrpc(cfg)
	}
	return exporters.ProvideHttp(cfg)
}

func provideTracerProvider(exporter *otlptrace.Exporter) *sdktrace.TracerProvider {
	return otelcol.ProvideTrace(exporter)
}

func registerTracing(lc fx.Lifecycle, tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}

func registerDBPlugins(gdb *gorm.DB, cfg *config.Config) {
	if err := db.Otel(gdb); err != nil {
		zap.L().Warn("db telemetry disabled", zap.Error(err))
	}
	if err := db.Metric(gdb, cfg); err != nil {
		zap.L().Warn("db metrics disabled", zap.Error(err))
	}
}

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&catalog.Application{},
		&catalog.Module{},
		&catalog.Feature{},
		&catalog.User{},
		&catalog.License{},
		&profile.Profile{},
		&profile.FeatureGrant{},
		&entitlement.LicenseModule{},
		&entitlement.LicenseFeature{},
		&entitlement.LicenseUser{},
		&entitlement.ProfileUser{},
		&entitlement.EntitlementEvent{},
	)
}
