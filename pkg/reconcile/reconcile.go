package reconcile

// Package reconcile implements the set-diff algorithm shared by every
// "replace the whole association set" operation. The diff itself is pure so
// cascade and capacity behaviour can be tested without a store; applying the
// plan is the caller's job, item by item, collecting failures instead of
// aborting.

// Status is the aggregate outcome of applying a plan.
type Status string

const (
	// NoOp means the desired set already matched current state and nothing
	// was written.
	NoOp Status = "NO_OP"
	// Success means every attempted add and remove went through.
	Success Status = "SUCCESS"
	// PartialSuccess means some items succeeded and some failed.
	PartialSuccess Status = "PARTIAL_SUCCESS"
	// Failure means every attempted item failed.
	Failure Status = "FAILURE"
)

// Op names the direction of a per-item mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Plan is the pure diff of desired against current.
type Plan[ID comparable] struct {
	Add    []ID
	Keep   []ID
	Remove []ID
}

func (p Plan[ID]) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// Diff computes kept = current ∩ desired, remove = current − desired and
// add = desired − current. Duplicate ids in either input collapse; order of
// first appearance is preserved.
func Diff[ID comparable](current, desired []ID) Plan[ID] {
	currentSet := make(map[ID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	desiredSet := make(map[ID]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	plan := Plan[ID]{}

	seen := make(map[ID]struct{}, len(desired))
	for _, id := range desired {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := currentSet[id]; ok {
			plan.Keep = append(plan.Keep, id)
		} else {
			plan.Add = append(plan.Add, id)
		}
	}

	seen = make(map[ID]struct{}, len(current))
	for _, id := range current {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := desiredSet[id]; !ok {
			plan.Remove = append(plan.Remove, id)
		}
	}

	return plan
}

// ItemOutcome records how one item of a plan fared.
type ItemOutcome[ID comparable] struct {
	ID  ID     `json:"id"`
	Op  Op     `json:"op"`
	Err error  `json:"-"`
	Msg string `json:"message,omitempty"`
}

// Result aggregates per-item outcomes of applying a plan.
type Result[ID comparable] struct {
	Applied []ItemOutcome[ID] `json:"applied"`
	Failed  []ItemOutcome[ID] `json:"failed"`
	Kept    []ID              `json:"kept"`
	// Warnings carries non-fatal notes, e.g. capacity downgrades.
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Result[ID]) RecordApplied(id ID, op Op) {
	r.Applied = append(r.Applied, ItemOutcome[ID]{ID: id, Op: op})
}

func (r *Result[ID]) RecordFailed(id ID, op Op, err error) {
	out := ItemOutcome[ID]{ID: id, Op: op, Err: err}
	if err != nil {
		out.Msg = err.Error()
	}
	r.Failed = append(r.Failed, out)
}

func (r *Result[ID]) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Status collapses the per-item outcomes into the aggregate status.
func (r *Result[ID]) Status() Status {
	switch {
	case len(r.Applied) == 0 && len(r.Failed) == 0:
		return NoOp
	case len(r.Failed) == 0:
		return Success
	case len(r.Applied) == 0:
		return Failure
	default:
		return PartialSuccess
	}
}
