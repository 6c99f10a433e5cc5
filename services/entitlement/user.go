package entitlement

import (
	"context"
	"errors"
	"time"

	"licensing-controlplane/pkg/errutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeatResult reports the outcome of enrolling or activating a user.
// Downgraded is set when the capacity policy turned a requested active seat
// into an inactive one instead of failing.
type SeatResult struct {
	Seat       *LicenseUser
	Downgraded bool
}

// AddUser enrolls a user on a license. The user must belong to the license's
// tenant. Enrolling on one license removes the user's seats (and profile
// bindings) under every other license of the same tenant.
func (s *Service) AddUser(ctx context.Context, licenseID, userID string, active bool, policy CapacityPolicy) (*SeatResult, error) {
	zapLog := requestLogger(ctx)

	license, err := s.catalog.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	user, err := s.catalog.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.TenantID != license.TenantID {
		return nil, errutil.CrossTenantMismatch("user belongs to a different tenant than the license")
	}

	if policy == "" {
		policy = s.defaultPolicy
	}

	result := &SeatResult{}
	var migrated []string

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockLicenseRow(tx, licenseID); err != nil {
			return err
		}

		exist, err := s.seats.WithTrx(tx).FindOne(ctx, &LicenseUser{LicenseID: licenseID, UserID: userID})
		if err != nil {
			return err
		}
		if exist != nil {
			return errutil.AlreadyAssociated("user already associated with license")
		}

		migrated, err = s.migrateSeatsTx(ctx, tx, license.TenantID, licenseID, userID)
		if err != nil {
			return err
		}

		grantActive := active
		if active {
			count, err := countActiveTx(tx, licenseID)
			if err != nil {
				return err
			}
			if count >= int64(license.MaxActiveUsers) {
				switch policy {
				case BypassForPrivileged:
					// explicit bypass keeps the seat active
				case DowngradeToInactive:
					grantActive = false
					result.Downgraded = true
				default:
					return errutil.CapacityExceeded("license has no free active seats")
				}
			}
		}

		now := time.Now()
		seat := &LicenseUser{
			ID:        s.node.Generate().String(),
			CreatedAt: now,
			UpdatedAt: now,
			LicenseID: licenseID,
			UserID:    userID,
			TenantID:  license.TenantID,
			Active:    grantActive,
		}

		if err := s.seats.WithTrx(tx).Create(ctx, seat); err != nil {
			return err
		}
		result.Seat = seat

		return s.recordEvent(ctx, tx, licenseID, EventUserAdded, userID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.AlreadyAssociated("user already associated with license")
		}
		if errutil.StatusOf(err) != errutil.StatusUnknown {
			return nil, err
		}
		zapLog.Error("failed to enroll user", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to enroll user", errutil.WithErr(err))
	}

	if result.Downgraded {
		zapLog.Warn("seat capacity reached, user enrolled inactive",
			zap.String("license_id", licenseID), zap.String("user_id", userID))
	}

	// Licenses the seat migrated away from changed too: their cached
	// permission sets for this user are stale.
	for _, strippedID := range migrated {
		s.afterMutation(ctx, strippedID, EventUserRemoved, userID)
	}
	s.afterMutation(ctx, licenseID, EventUserAdded, userID)
	return result, nil
}

// UpdateUserStatus flips a seat between active and inactive. Deactivation is
// always permitted; activation re-runs the capacity check under the policy.
func (s *Service) UpdateUserStatus(ctx context.Context, licenseID, userID string, active bool, policy CapacityPolicy) (*SeatResult, error) {
	zapLog := requestLogger(ctx)

	license, err := s.catalog.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	seat, err := s.seats.FindOne(ctx, &LicenseUser{LicenseID: licenseID, UserID: userID})
	if err != nil {
		zapLog.Error("failed query license user", zap.Error(err))
		return nil, errutil.Internal("failed to check user association", errutil.WithErr(err))
	}
	if seat == nil {
		return nil, errutil.NotAssociated("user not associated with license")
	}

	if seat.Active == active {
		return &SeatResult{Seat: seat}, nil
	}

	if policy == "" {
		policy = s.defaultPolicy
	}

	result := &SeatResult{Seat: seat}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockLicenseRow(tx, licenseID); err != nil {
			return err
		}

		if active {
			count, err := countActiveTx(tx, licenseID)
			if err != nil {
				return err
			}
			if count >= int64(license.MaxActiveUsers) {
				switch policy {
				case BypassForPrivileged:
					// explicit bypass
				case DowngradeToInactive:
					// seat stays inactive; report it instead of failing
					result.Downgraded = true
					return nil
				default:
					return errutil.CapacityExceeded("license has no free active seats")
				}
			}
		}

		if err := tx.Model(&LicenseUser{}).
			Where("license_id = ? AND user_id = ?", licenseID, userID).
			Updates(map[string]any{"active": active, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		seat.Active = active

		return s.recordEvent(ctx, tx, licenseID, EventUserUpdated, userID)
	})
	if err != nil {
		if errutil.StatusOf(err) != errutil.StatusUnknown {
			return nil, err
		}
		zapLog.Error("failed to update seat status", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to update seat status", errutil.WithErr(err))
	}

	if result.Downgraded {
		zapLog.Warn("seat capacity reached, activation skipped",
			zap.String("license_id", licenseID), zap.String("user_id", userID))
		return result, nil
	}

	s.afterMutation(ctx, licenseID, EventUserUpdated, userID)
	return result, nil
}

// RemoveUser dissolves a user's seat, cascading the removal of any profile
// binding the user held under this license.
func (s *Service) RemoveUser(ctx context.Context, licenseID, userID string) error {
	zapLog := requestLogger(ctx)

	seat, err := s.seats.FindOne(ctx, &LicenseUser{LicenseID: licenseID, UserID: userID})
	if err != nil {
		zapLog.Error("failed query license user", zap.Error(err))
		return errutil.Internal("failed to check user association", errutil.WithErr(err))
	}
	if seat == nil {
		return errutil.NotAssociated("user not associated with license")
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bindings.WithTrx(tx).Delete(ctx, &ProfileUser{LicenseID: licenseID, UserID: userID}); err != nil {
			return err
		}
		if _, err := s.seats.WithTrx(tx).Delete(ctx, &LicenseUser{LicenseID: licenseID, UserID: userID}); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, licenseID, EventUserRemoved, userID)
	}); err != nil {
		zapLog.Error("failed to remove user association", zap.String("user_id", userID), zap.Error(err))
		return errutil.Internal("failed to remove user association", errutil.WithErr(err))
	}

	s.afterMutation(ctx, licenseID, EventUserRemoved, userID)
	return nil
}

// CountActiveUsers returns how many seats on the license are active.
func (s *Service) CountActiveUsers(ctx context.Context, licenseID string) (int64, error) {
	return countActiveTx(s.db.WithContext(ctx), licenseID)
}

// ListUsers returns every seat on the license, active or not.
func (s *Service) ListUsers(ctx context.Context, licenseID string) ([]*LicenseUser, error) {
	rows, err := s.seats.Find(ctx, &LicenseUser{LicenseID: licenseID})
	if err != nil {
		return nil, errutil.Internal("failed to list user associations", errutil.WithErr(err))
	}
	return rows, nil
}

func countActiveTx(tx *gorm.DB, licenseID string) (int64, error) {
	var count int64
	err := tx.Model(&LicenseUser{}).
		Where("license_id = ? AND active = ?", licenseID, true).
		Count(&count).Error
	return count, err
}

// migrateSeatsTx enforces the single-license rule: enrolling a user on one
// license of a tenant removes their seats, and any profile bindings, under
// that tenant's other licenses. It returns the license ids the user was
// stripped from so the caller can invalidate them after commit.
func (s *Service) migrateSeatsTx(ctx context.Context, tx *gorm.DB, tenantID, licenseID, userID string) ([]string, error) {
	var others []*LicenseUser
	if err := tx.Model(&LicenseUser{}).
		Where("tenant_id = ? AND user_id = ? AND license_id <> ?", tenantID, userID, licenseID).
		Find(&others).Error; err != nil {
		return nil, err
	}

	stripped := make([]string, 0, len(others))
	for _, other := range others {
		if _, err := s.bindings.WithTrx(tx).Delete(ctx, &ProfileUser{LicenseID: other.LicenseID, UserID: userID}); err != nil {
			return nil, err
		}
		if _, err := s.seats.WithTrx(tx).Delete(ctx, &LicenseUser{LicenseID: other.LicenseID, UserID: userID}); err != nil {
			return nil, err
		}
		if err := s.recordEvent(ctx, tx, other.LicenseID, EventUserRemoved, userID); err != nil {
			return nil, err
		}
		stripped = append(stripped, other.LicenseID)
	}

	return stripped, nil
}
