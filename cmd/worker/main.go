package main

import (
	"log"

	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/logger"
	"licensing-controlplane/pkg/redis"
	"licensing-controlplane/pkg/task"
	"licensing-controlplane/services/entitlement"
	"licensing-controlplane/services/permission"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		redis.Module,
		permission.CacheModule,
		entitlement.TaskModule,
		task.Server,
		fx.Invoke(registerHandlers),
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

func registerHandlers(mux *asynq.ServeMux, handler *entitlement.TaskHandler) {
	mux.HandleFunc(entitlement.TaskEntitlementChanged, handler.HandleChanged)
}
