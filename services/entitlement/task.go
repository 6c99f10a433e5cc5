package entitlement

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskEntitlementChanged = "entitlement:changed"

// ChangedPayload notifies downstream consumers that a license's entitlement
// graph mutated and derived state should be refreshed.
type ChangedPayload struct {
	LicenseID string `json:"license_id"`
	Kind      string `json:"kind"`
	TargetID  string `json:"target_id"`
}

func NewChangedTask(p ChangedPayload) *asynq.Task {
	payload, _ := json.Marshal(p)
	return asynq.NewTask(TaskEntitlementChanged, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.Queue("default"))
}
