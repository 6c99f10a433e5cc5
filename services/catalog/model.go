package catalog

import (
	"time"
)

// Application is a sellable product; modules and features hang off it.
type Application struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	Name      string    `gorm:"column:name"`
	Slug      string    `gorm:"column:slug;uniqueIndex"`
}

// Module is a coarse-grained product area within one application.
type Module struct {
	ID            string    `gorm:"column:id;primaryKey"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	ApplicationID string    `gorm:"column:application_id;index;not null"`
	Code          string    `gorm:"column:code"`
	Name          string    `gorm:"column:name"`
}

// Feature is a fine-grained capability within one module.
type Feature struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	ModuleID  string    `gorm:"column:module_id;index;not null"`
	Code      string    `gorm:"column:code"`
	Name      string    `gorm:"column:name"`
}

// User belongs to exactly one tenant.
type User struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	TenantID  string    `gorm:"column:tenant_id;index;not null"`
	Email     string    `gorm:"column:email"`
	Name      string    `gorm:"column:name"`
}

// License grants a tenant the use of one application, capped at
// MaxActiveUsers concurrently active seats.
type License struct {
	ID             string     `gorm:"column:id;primaryKey"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	TenantID       string     `gorm:"column:tenant_id;index;not null"`
	ApplicationID  string     `gorm:"column:application_id;index;not null"`
	LicenseKey     string     `gorm:"column:license_key;uniqueIndex"`
	MaxActiveUsers int        `gorm:"column:max_active_users"`
	Active         bool       `gorm:"column:active"`
	ValidFrom      time.Time  `gorm:"column:valid_from"`
	ValidUntil     time.Time  `gorm:"column:valid_until"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
}

// Valid reports whether the license may be consumed at the given instant.
func (l *License) Valid(now time.Time) bool {
	if !l.Active || l.RevokedAt != nil {
		return false
	}
	if !l.ValidFrom.IsZero() && now.Before(l.ValidFrom) {
		return false
	}
	if !l.ValidUntil.IsZero() && now.After(l.ValidUntil) {
		return false
	}
	return true
}
