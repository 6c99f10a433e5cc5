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

// AddFeature associates a feature with a license. The owning module must
// already be entitled; single-item adds never create the module association
// implicitly, that is the bulk reconciler's contract.
func (s *Service) AddFeature(ctx context.Context, licenseID, featureID string) (*LicenseFeature, error) {
	zapLog := requestLogger(ctx)

	license, err := s.catalog.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	feature, err := s.catalog.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}

	module, err := s.catalog.GetModule(ctx, feature.ModuleID)
	if err != nil {
		return nil, err
	}

	if module.ApplicationID != license.ApplicationID {
		return nil, errutil.CrossTenantMismatch("feature belongs to a different application than the license")
	}

	row := &LicenseFeature{
		ID:        s.node.Generate().String(),
		CreatedAt: time.Now(),
		LicenseID: licenseID,
		FeatureID: featureID,
		ModuleID:  feature.ModuleID,
	}

	// Duplicate and module-entitled guards run under the license row lock so
	// they cannot race a concurrent add or module removal.
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockLicenseRow(tx, licenseID); err != nil {
			return err
		}

		exist, err := s.features.WithTrx(tx).FindOne(ctx, &LicenseFeature{LicenseID: licenseID, FeatureID: featureID})
		if err != nil {
			return err
		}
		if exist != nil {
			return errutil.AlreadyAssociated("feature already associated with license")
		}

		owner, err := s.modules.WithTrx(tx).FindOne(ctx, &LicenseModule{LicenseID: licenseID, ModuleID: feature.ModuleID})
		if err != nil {
			return err
		}
		if owner == nil {
			return errutil.ModuleNotEntitled("feature's module is not associated with license")
		}

		if err := s.features.WithTrx(tx).Create(ctx, row); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, licenseID, EventFeatureAdded, featureID)
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.AlreadyAssociated("feature already associated with license")
		}
		if errutil.StatusOf(err) != errutil.StatusUnknown {
			return nil, err
		}
		zapLog.Error("failed to associate feature", zap.String("feature_id", featureID), zap.Error(err))
		return nil, errutil.Internal("failed to associate feature", errutil.WithErr(err))
	}

	s.afterMutation(ctx, licenseID, EventFeatureAdded, featureID)
	return row, nil
}

// RemoveFeature dissolves a feature association, cascading every profile
// grant that referenced it. When the feature was its module's last
// association under the license, the module association is pruned too.
func (s *Service) RemoveFeature(ctx context.Context, licenseID, featureID string) error {
	zapLog := requestLogger(ctx)

	// Existence check and prune plan are read under the license row lock so
	// a concurrently added sibling keeps the module alive.
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockLicenseRow(tx, licenseID); err != nil {
			return err
		}

		row, err := s.features.WithTrx(tx).FindOne(ctx, &LicenseFeature{LicenseID: licenseID, FeatureID: featureID})
		if err != nil {
			return err
		}
		if row == nil {
			return errutil.NotAssociated("feature not associated with license")
		}

		all, err := s.features.WithTrx(tx).Find(ctx, &LicenseFeature{LicenseID: licenseID})
		if err != nil {
			return err
		}
		plan := PlanFeatureRemoval(all, featureID)

		if err := s.dropFeatureRow(ctx, tx, licenseID, featureID); err != nil {
			return err
		}

		if plan.PruneModuleID != "" {
			if _, err := s.modules.WithTrx(tx).Delete(ctx, &LicenseModule{LicenseID: licenseID, ModuleID: plan.PruneModuleID}); err != nil {
				return err
			}
			if err := s.recordEvent(ctx, tx, licenseID, EventModuleRemoved, plan.PruneModuleID); err != nil {
				return err
			}
		}

		return s.recordEvent(ctx, tx, licenseID, EventFeatureRemoved, featureID)
	}); err != nil {
		if errutil.StatusOf(err) != errutil.StatusUnknown {
			return err
		}
		zapLog.Error("failed to remove feature association", zap.String("feature_id", featureID), zap.Error(err))
		return errutil.Internal("failed to remove feature association", errutil.WithErr(err))
	}

	s.afterMutation(ctx, licenseID, EventFeatureRemoved, featureID)
	return nil
}

// dropFeatureRow deletes one feature association and its profile grants
// inside the caller's transaction.
func (s *Service) dropFeatureRow(ctx context.Context, tx *gorm.DB, licenseID, featureID string) error {
	if _, err := s.grants.WithTrx(tx).Delete(ctx, &profile.FeatureGrant{LicenseID: licenseID, FeatureID: featureID}); err != nil {
		return err
	}
	_, err := s.features.WithTrx(tx).Delete(ctx, &LicenseFeature{LicenseID: licenseID, FeatureID: featureID})
	return err
}

// FeatureEntitled reports whether the (license, feature) association exists.
func (s *Service) FeatureEntitled(ctx context.Context, licenseID, featureID string) (bool, error) {
	row, err := s.features.FindOne(ctx, &LicenseFeature{LicenseID: licenseID, FeatureID: featureID})
	if err != nil {
		return false, errutil.Internal("failed to check feature association", errutil.WithErr(err))
	}
	return row != nil, nil
}

// ListFeatures returns the license's feature associations.
func (s *Service) ListFeatures(ctx context.Context, licenseID string) ([]*LicenseFeature, error) {
	rows, err := s.features.Find(ctx, &LicenseFeature{LicenseID: licenseID})
	if err != nil {
		return nil, errutil.Internal("failed to list feature associations", errutil.WithErr(err))
	}
	return rows, nil
}
