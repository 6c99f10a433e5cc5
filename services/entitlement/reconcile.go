package entitlement

import (
	"context"
	"fmt"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/reconcile"
)

// ReconcileModules replaces the license's module association set with the
// desired ids. Removals cascade owned features; per-item failures are
// collected, not fatal.
func (s *Service) ReconcileModules(ctx context.Context, licenseID string, desired []string) (*reconcile.Result[string], error) {
	if _, err := s.catalog.GetLicense(ctx, licenseID); err != nil {
		return nil, err
	}

	current, err := s.ListModules(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	currentIDs := make([]string, 0, len(current))
	for _, row := range current {
		currentIDs = append(currentIDs, row.ModuleID)
	}

	plan := reconcile.Diff(currentIDs, desired)
	result := &reconcile.Result[string]{Kept: plan.Keep}
	if plan.Empty() {
		return result, nil
	}

	for _, moduleID := range plan.Remove {
		if err := s.RemoveModule(ctx, licenseID, moduleID); err != nil {
			result.RecordFailed(moduleID, reconcile.OpRemove, err)
			continue
		}
		result.RecordApplied(moduleID, reconcile.OpRemove)
	}

	for _, moduleID := range plan.Add {
		if _, err := s.AddModule(ctx, licenseID, moduleID); err != nil {
			result.RecordFailed(moduleID, reconcile.OpAdd, err)
			continue
		}
		result.RecordApplied(moduleID, reconcile.OpAdd)
	}

	return result, nil
}

// ReconcileFeatures replaces the license's feature association set with the
// desired ids. Unlike single-item AddFeature, a feature whose module is not
// yet associated auto-creates the module association first: the bulk
// contract is "make the graph match this shape". Removals prune modules
// whose last feature went away.
func (s *Service) ReconcileFeatures(ctx context.Context, licenseID string, desired []string) (*reconcile.Result[string], error) {
	if _, err := s.catalog.GetLicense(ctx, licenseID); err != nil {
		return nil, err
	}

	current, err := s.ListFeatures(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	currentIDs := make([]string, 0, len(current))
	for _, row := range current {
		currentIDs = append(currentIDs, row.FeatureID)
	}

	plan := reconcile.Diff(currentIDs, desired)
	result := &reconcile.Result[string]{Kept: plan.Keep}
	if plan.Empty() {
		return result, nil
	}

	for _, featureID := range plan.Remove {
		if err := s.RemoveFeature(ctx, licenseID, featureID); err != nil {
			result.RecordFailed(featureID, reconcile.OpRemove, err)
			continue
		}
		result.RecordApplied(featureID, reconcile.OpRemove)
	}

	for _, featureID := range plan.Add {
		if err := s.addFeatureAutoModule(ctx, licenseID, featureID); err != nil {
			result.RecordFailed(featureID, reconcile.OpAdd, err)
			continue
		}
		result.RecordApplied(featureID, reconcile.OpAdd)
	}

	return result, nil
}

func (s *Service) addFeatureAutoModule(ctx context.Context, licenseID, featureID string) error {
	feature, err := s.catalog.GetFeature(ctx, featureID)
	if err != nil {
		return err
	}

	entitled, err := s.ModuleEntitled(ctx, licenseID, feature.ModuleID)
	if err != nil {
		return err
	}
	if !entitled {
		if _, err := s.AddModule(ctx, licenseID, feature.ModuleID); err != nil {
			// another item of the batch may have added it meanwhile
			if !errutil.HasStatus(err, errutil.StatusAlreadyAssociated) {
				return err
			}
		}
	}

	_, err = s.AddFeature(ctx, licenseID, featureID)
	return err
}

// ReconcileUsers replaces the license's enrolled-user set with the desired
// ids; added users ask for active seats under the given policy. Kept seats
// are left untouched, including seats previously downgraded to inactive.
func (s *Service) ReconcileUsers(ctx context.Context, licenseID string, desired []string, policy CapacityPolicy) (*reconcile.Result[string], error) {
	if _, err := s.catalog.GetLicense(ctx, licenseID); err != nil {
		return nil, err
	}

	current, err := s.ListUsers(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	currentIDs := make([]string, 0, len(current))
	for _, row := range current {
		currentIDs = append(currentIDs, row.UserID)
	}

	plan := reconcile.Diff(currentIDs, desired)
	result := &reconcile.Result[string]{Kept: plan.Keep}
	if plan.Empty() {
		return result, nil
	}

	for _, userID := range plan.Remove {
		if err := s.RemoveUser(ctx, licenseID, userID); err != nil {
			result.RecordFailed(userID, reconcile.OpRemove, err)
			continue
		}
		result.RecordApplied(userID, reconcile.OpRemove)
	}

	for _, userID := range plan.Add {
		seat, err := s.AddUser(ctx, licenseID, userID, true, policy)
		if err != nil {
			result.RecordFailed(userID, reconcile.OpAdd, err)
			continue
		}
		result.RecordApplied(userID, reconcile.OpAdd)
		if seat.Downgraded {
			result.Warn(fmt.Sprintf("user %s enrolled inactive: license has no free active seats", userID))
		}
	}

	return result, nil
}

// ReconcileProfileMembers replaces a profile's member set with the desired
// user ids. Adds fail per-item for users without an active seat on the
// profile's license.
func (s *Service) ReconcileProfileMembers(ctx context.Context, profileID string, desired []string) (*reconcile.Result[string], error) {
	current, err := s.ListProfileMembers(ctx, profileID)
	if err != nil {
		return nil, err
	}

	currentIDs := make([]string, 0, len(current))
	for _, row := range current {
		currentIDs = append(currentIDs, row.UserID)
	}

	plan := reconcile.Diff(currentIDs, desired)
	result := &reconcile.Result[string]{Kept: plan.Keep}
	if plan.Empty() {
		return result, nil
	}

	for _, userID := range plan.Remove {
		if err := s.UnbindUserFromProfile(ctx, profileID, userID); err != nil {
			result.RecordFailed(userID, reconcile.OpRemove, err)
			continue
		}
		result.RecordApplied(userID, reconcile.OpRemove)
	}

	for _, userID := range plan.Add {
		if _, err := s.BindUserToProfile(ctx, profileID, userID); err != nil {
			result.RecordFailed(userID, reconcile.OpAdd, err)
			continue
		}
		result.RecordApplied(userID, reconcile.OpAdd)
	}

	return result, nil
}
