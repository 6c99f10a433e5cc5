package entitlement

import (
	"time"
)

// LicenseModule associates a license with a module of its application.
type LicenseModule struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	LicenseID string    `gorm:"column:license_id;uniqueIndex:idx_license_module;not null"`
	ModuleID  string    `gorm:"column:module_id;uniqueIndex:idx_license_module;not null"`
}

// LicenseFeature associates a license with a feature. ModuleID mirrors the
// feature's owning module so cascade and pruning queries stay on this table.
type LicenseFeature struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	LicenseID string    `gorm:"column:license_id;uniqueIndex:idx_license_feature;not null"`
	FeatureID string    `gorm:"column:feature_id;uniqueIndex:idx_license_feature;not null"`
	ModuleID  string    `gorm:"column:module_id;index;not null"`
}

// LicenseUser is a seat: a user enrolled on a license. Only rows with
// Active=true count against the license's MaxActiveUsers cap. TenantID
// mirrors the license's tenant so the single-license rule can query seats
// without joining licenses.
type LicenseUser struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	LicenseID string    `gorm:"column:license_id;uniqueIndex:idx_license_user;not null"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:idx_license_user;not null"`
	TenantID  string    `gorm:"column:tenant_id;index;not null"`
	Active    bool      `gorm:"column:active"`
}

// ProfileUser binds a user to a profile. At most one row may exist per
// (license, user) pair.
type ProfileUser struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	LicenseID string    `gorm:"column:license_id;uniqueIndex:idx_license_profile_user;not null"`
	ProfileID string    `gorm:"column:profile_id;index;not null"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:idx_license_profile_user;not null"`
}

// EntitlementEvent is the audit trail of graph mutations, written in the
// same transaction as the mutation itself.
type EntitlementEvent struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	LicenseID string    `gorm:"column:license_id;index;not null"`
	Kind      string    `gorm:"column:kind;not null"`
	TargetID  string    `gorm:"column:target_id"`
	Actor     string    `gorm:"column:actor"`
}

// Event kinds.
const (
	EventModuleAdded    = "module.added"
	EventModuleRemoved  = "module.removed"
	EventFeatureAdded   = "feature.added"
	EventFeatureRemoved = "feature.removed"
	EventUserAdded      = "user.added"
	EventUserUpdated    = "user.updated"
	EventUserRemoved    = "user.removed"
	EventProfileBound   = "profile.bound"
	EventProfileUnbound = "profile.unbound"
)

// CapacityPolicy decides what happens when activating a seat would push the
// active count past the license cap.
type CapacityPolicy string

const (
	// StrictReject fails the operation with CapacityExceeded.
	StrictReject CapacityPolicy = "strict"
	// DowngradeToInactive enrolls the user without an active seat and
	// reports a warning instead of failing.
	DowngradeToInactive CapacityPolicy = "downgrade"
	// BypassForPrivileged skips the capacity check. Callers must request
	// this explicitly; it is never inferred from the caller's role.
	BypassForPrivileged CapacityPolicy = "bypass"
)

// ParseCapacityPolicy maps a config or request string to a policy, falling
// back to StrictReject.
func ParseCapacityPolicy(s string) CapacityPolicy {
	switch CapacityPolicy(s) {
	case DowngradeToInactive, BypassForPrivileged, StrictReject:
		return CapacityPolicy(s)
	default:
		return StrictReject
	}
}
