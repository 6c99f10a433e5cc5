package entitlement

import (
	"context"
	"errors"
	"time"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/services/profile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// resolveProfile loads the profile and the user's seat on its license. A
// missing or inactive seat fails the bind precondition.
func (s *Service) resolveProfile(ctx context.Context, profileID, userID string) (*profile.Profile, error) {
	prof, err := s.profiles.FindOne(ctx, &profile.Profile{ID: profileID})
	if err != nil {
		requestLogger(ctx).Error("failed query profile", zap.Error(err))
		return nil, errutil.Internal("failed to get profile", errutil.WithErr(err))
	}
	if prof == nil {
		return nil, errutil.NotFound("profile not found")
	}

	seat, err := s.seats.FindOne(ctx, &LicenseUser{LicenseID: prof.LicenseID, UserID: userID})
	if err != nil {
		requestLogger(ctx).Error("failed query license user", zap.Error(err))
		return nil, errutil.Internal("failed to check user association", errutil.WithErr(err))
	}
	if seat == nil || !seat.Active {
		return nil, errutil.UserNotLicensed("user holds no active seat on the profile's license")
	}

	return prof, nil
}

// BindUserToProfile attaches a user to a profile. The user must hold an
// active seat on the profile's license and no other profile under it; the
// replace-whatever-is-there operation is RebindUserToSingleProfile.
func (s *Service) BindUserToProfile(ctx context.Context, profileID, userID string) (*ProfileUser, error) {
	zapLog := requestLogger(ctx)

	prof, err := s.resolveProfile(ctx, profileID, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.bindings.FindOne(ctx, &ProfileUser{LicenseID: prof.LicenseID, UserID: userID})
	if err != nil {
		zapLog.Error("failed query profile binding", zap.Error(err))
		return nil, errutil.Internal("failed to check profile binding", errutil.WithErr(err))
	}
	if existing != nil {
		if existing.ProfileID == profileID {
			return nil, errutil.AlreadyAssociated("user already bound to this profile")
		}
		return nil, errutil.Conflict("user already holds a different profile for this license")
	}

	binding := &ProfileUser{
		ID:        s.node.Generate().String(),
		CreatedAt: time.Now(),
		LicenseID: prof.LicenseID,
		ProfileID: profileID,
		UserID:    userID,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.bindings.WithTrx(tx).Create(ctx, binding); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, prof.LicenseID, EventProfileBound, userID)
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("user already holds a profile for this license")
		}
		zapLog.Error("failed to bind profile", zap.String("profile_id", profileID), zap.Error(err))
		return nil, errutil.Internal("failed to bind profile", errutil.WithErr(err))
	}

	s.afterMutation(ctx, prof.LicenseID, EventProfileBound, userID)
	return binding, nil
}

// UnbindUserFromProfile detaches a user from a profile.
func (s *Service) UnbindUserFromProfile(ctx context.Context, profileID, userID string) error {
	zapLog := requestLogger(ctx)

	binding, err := s.bindings.FindOne(ctx, &ProfileUser{ProfileID: profileID, UserID: userID})
	if err != nil {
		zapLog.Error("failed query profile binding", zap.Error(err))
		return errutil.Internal("failed to check profile binding", errutil.WithErr(err))
	}
	if binding == nil {
		return errutil.NotAssociated("user not bound to profile")
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bindings.WithTrx(tx).Delete(ctx, &ProfileUser{ProfileID: profileID, UserID: userID}); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, binding.LicenseID, EventProfileUnbound, userID)
	}); err != nil {
		zapLog.Error("failed to unbind profile", zap.String("profile_id", profileID), zap.Error(err))
		return errutil.Internal("failed to unbind profile", errutil.WithErr(err))
	}

	s.afterMutation(ctx, binding.LicenseID, EventProfileUnbound, userID)
	return nil
}

// RebindUserToSingleProfile makes the target profile the user's only one:
// every other binding the user holds, on any license, is removed and the
// target binding is created if absent. The whole swap is one transaction so
// a failure cannot strand the user with no profile where they had one.
func (s *Service) RebindUserToSingleProfile(ctx context.Context, profileID, userID string) (*ProfileUser, error) {
	zapLog := requestLogger(ctx)

	prof, err := s.resolveProfile(ctx, profileID, userID)
	if err != nil {
		return nil, err
	}

	var binding *ProfileUser
	var removed []*ProfileUser
	var created bool

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var others []*ProfileUser
		if err := tx.Where("user_id = ? AND profile_id <> ?", userID, profileID).Find(&others).Error; err != nil {
			return err
		}

		// Each foreign binding is unbound against its own license so the
		// audit trail and cache invalidation land where the change happened.
		for _, other := range others {
			if _, err := s.bindings.WithTrx(tx).Delete(ctx, &ProfileUser{ID: other.ID}); err != nil {
				return err
			}
			if err := s.recordEvent(ctx, tx, other.LicenseID, EventProfileUnbound, userID); err != nil {
				return err
			}
		}
		removed = others

		existing, err := s.bindings.WithTrx(tx).FindOne(ctx, &ProfileUser{ProfileID: profileID, UserID: userID})
		if err != nil {
			return err
		}
		if existing != nil {
			binding = existing
			return nil
		}

		binding = &ProfileUser{
			ID:        s.node.Generate().String(),
			CreatedAt: time.Now(),
			LicenseID: prof.LicenseID,
			ProfileID: profileID,
			UserID:    userID,
		}
		if err := s.bindings.WithTrx(tx).Create(ctx, binding); err != nil {
			return err
		}
		created = true
		return s.recordEvent(ctx, tx, prof.LicenseID, EventProfileBound, userID)
	}); err != nil {
		zapLog.Error("failed to rebind profile", zap.String("profile_id", profileID), zap.Error(err))
		return nil, errutil.Internal("failed to rebind profile", errutil.WithErr(err))
	}

	for _, other := range removed {
		s.afterMutation(ctx, other.LicenseID, EventProfileUnbound, userID)
	}
	if created {
		s.afterMutation(ctx, prof.LicenseID, EventProfileBound, userID)
	}
	return binding, nil
}

// BoundProfile returns the user's binding under a license, or nil.
func (s *Service) BoundProfile(ctx context.Context, licenseID, userID string) (*ProfileUser, error) {
	binding, err := s.bindings.FindOne(ctx, &ProfileUser{LicenseID: licenseID, UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to check profile binding", errutil.WithErr(err))
	}
	return binding, nil
}

// ListProfileMembers returns every binding attached to a profile.
func (s *Service) ListProfileMembers(ctx context.Context, profileID string) ([]*ProfileUser, error) {
	rows, err := s.bindings.Find(ctx, &ProfileUser{ProfileID: profileID})
	if err != nil {
		return nil, errutil.Internal("failed to list profile members", errutil.WithErr(err))
	}
	return rows, nil
}
