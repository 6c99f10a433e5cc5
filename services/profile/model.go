package profile

import (
	"time"
)

// Rights is the packed permission bitmask for one feature: bits 0-4 carry
// view/add/change/delete/print.
type Rights uint8

const (
	RightView Rights = 1 << iota
	RightAdd
	RightChange
	RightDelete
	RightPrint
)

func (r Rights) Has(right Rights) bool {
	return r&right != 0
}

// Profile is a named bundle of feature grants scoped to one license.
type Profile struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	LicenseID string    `gorm:"column:license_id;index;not null"`
	Name      string    `gorm:"column:name"`
	Slug      string    `gorm:"column:slug;index"`
}

// FeatureGrant stores the five rights a profile holds on one feature.
type FeatureGrant struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	ProfileID string    `gorm:"column:profile_id;index;not null"`
	LicenseID string    `gorm:"column:license_id;index;not null"`
	FeatureID string    `gorm:"column:feature_id;index;not null"`
	CanView   bool      `gorm:"column:can_view"`
	CanAdd    bool      `gorm:"column:can_add"`
	CanChange bool      `gorm:"column:can_change"`
	CanDelete bool      `gorm:"column:can_delete"`
	CanPrint  bool      `gorm:"column:can_print"`
}

// Rights packs the grant's booleans into the wire bitmask.
func (g *FeatureGrant) Rights() Rights {
	var r Rights
	if g.CanView {
		r |= RightView
	}
	if g.CanAdd {
		r |= RightAdd
	}
	if g.CanChange {
		r |= RightChange
	}
	if g.CanDelete {
		r |= RightDelete
	}
	if g.CanPrint {
		r |= RightPrint
	}
	return r
}

// SetRights unpacks a bitmask into the boolean columns.
func (g *FeatureGrant) SetRights(r Rights) {
	g.CanView = r.Has(RightView)
	g.CanAdd = r.Has(RightAdd)
	g.CanChange = r.Has(RightChange)
	g.CanDelete = r.Has(RightDelete)
	g.CanPrint = r.Has(RightPrint)
}
