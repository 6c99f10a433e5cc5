package entitlement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TaskHandler consumes entitlement change notifications out of band. It
// re-invalidates derived permission state so a worker replica with a live
// cache converges even when the in-request invalidation was lost.
type TaskHandler struct {
	invalidator CacheInvalidator
}

type TaskHandlerParams struct {
	fx.In
	Invalidator CacheInvalidator `optional:"true"`
}

func NewTaskHandler(p TaskHandlerParams) *TaskHandler {
	return &TaskHandler{invalidator: p.Invalidator}
}

var TaskModule = fx.Module("entitlement.task",
	fx.Provide(NewTaskHandler),
)

func (h *TaskHandler) HandleChanged(ctx context.Context, t *asynq.Task) error {
	var payload ChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed payload: %v: %w", err, asynq.SkipRetry)
	}

	if h.invalidator != nil {
		if err := h.invalidator.InvalidateLicense(ctx, payload.LicenseID); err != nil {
			return err
		}
	}

	zap.L().Info("entitlement graph changed",
		zap.String("license_id", payload.LicenseID),
		zap.String("kind", payload.Kind),
		zap.String("target_id", payload.TargetID),
	)

	return nil
}
