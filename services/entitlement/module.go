package entitlement

import (
	"context"
	"errors"
	"time"

	"licensing-controlplane/pkg/errutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddModule associates a module with a license. The module must belong to
// the license's application.
func (s *Service) AddModule(ctx context.Context, licenseID, moduleID string) (*LicenseModule, error) {
	zapLog := requestLogger(ctx)

	license, err := s.catalog.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	module, err := s.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	if module.ApplicationID != license.ApplicationID {
		return nil, errutil.CrossTenantMismatch("module belongs to a different application than the license")
	}

	row := &LicenseModule{
		ID:        s.node.Generate().String(),
		CreatedAt: time.Now(),
		LicenseID: licenseID,
		ModuleID:  moduleID,
	}

	// The duplicate guard runs under the license row lock so a racing add
	// surfaces here, not as a unique-index violation.
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockLicenseRow(tx, licenseID); err != nil {
			return err
		}

		exist, err := s.modules.WithTrx(tx).FindOne(ctx, &LicenseModule{LicenseID: licenseID, ModuleID: moduleID})
		if err != nil {
			return err
		}
		if exist != nil {
			return errutil.AlreadyAssociated("module already associated with license")
		}

		if err := s.modules.WithTrx(tx).Create(ctx, row); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, licenseID, EventModuleAdded, moduleID)
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.AlreadyAssociated("module already associated with license")
		}
		if errutil.StatusOf(err) != errutil.StatusUnknown {
			return nil, err
		}
		zapLog.Error("failed to associate module", zap.String("module_id", moduleID), zap.Error(err))
		return nil, errutil.Internal("failed to associate module", errutil.WithErr(err))
	}

	s.afterMutation(ctx, licenseID, EventModuleAdded, moduleID)
	return row, nil
}

// RemoveModule dissolves a module association. Every feature association the
// module owns under this license is taken down with it, along with any
// profile grants referencing those features; removal never fails because
// features still hang off the module.
func (s *Service) RemoveModule(ctx context.Context, licenseID, moduleID string) error {
	zapLog := requestLogger(ctx)

	if _, err := s.catalog.GetLicense(ctx, licenseID); err != nil {
		return err
	}

	// The cascade plan is computed from a read taken under the license row
	// lock, so a feature added by a concurrent writer cannot escape it.
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockLicenseRow(tx, licenseID); err != nil {
			return err
		}

		row, err := s.modules.WithTrx(tx).FindOne(ctx, &LicenseModule{LicenseID: licenseID, ModuleID: moduleID})
		if err != nil {
			return err
		}
		if row == nil {
			return errutil.NotAssociated("module not associated with license")
		}

		all, err := s.features.WithTrx(tx).Find(ctx, &LicenseFeature{LicenseID: licenseID})
		if err != nil {
			return err
		}
		plan := PlanModuleRemoval(all, moduleID)

		for _, featureID := range plan.FeatureIDs {
			if err := s.dropFeatureRow(ctx, tx, licenseID, featureID); err != nil {
				return err
			}
		}

		if _, err := s.modules.WithTrx(tx).Delete(ctx, &LicenseModule{LicenseID: licenseID, ModuleID: moduleID}); err != nil {
			return err
		}

		return s.recordEvent(ctx, tx, licenseID, EventModuleRemoved, moduleID)
	}); err != nil {
		if errutil.StatusOf(err) != errutil.StatusUnknown {
			return err
		}
		zapLog.Error("failed to remove module association", zap.String("module_id", moduleID), zap.Error(err))
		return errutil.Internal("failed to remove module association", errutil.WithErr(err))
	}

	s.afterMutation(ctx, licenseID, EventModuleRemoved, moduleID)
	return nil
}

// ModuleEntitled reports whether the (license, module) association exists.
func (s *Service) ModuleEntitled(ctx context.Context, licenseID, moduleID string) (bool, error) {
	row, err := s.modules.FindOne(ctx, &LicenseModule{LicenseID: licenseID, ModuleID: moduleID})
	if err != nil {
		return false, errutil.Internal("failed to check module association", errutil.WithErr(err))
	}
	return row != nil, nil
}

// ListModules returns the license's module associations.
func (s *Service) ListModules(ctx context.Context, licenseID string) ([]*LicenseModule, error) {
	rows, err := s.modules.Find(ctx, &LicenseModule{LicenseID: licenseID})
	if err != nil {
		return nil, errutil.Internal("failed to list module associations", errutil.WithErr(err))
	}
	return rows, nil
}
