package entitlement

// Cascade planning is pure: given the license's current feature associations
// it computes which rows must go, without touching the store. The service
// applies the plan inside one transaction.

// FeatureRemovalPlan describes the side effects of removing one feature
// association.
type FeatureRemovalPlan struct {
	FeatureID string
	// PruneModuleID is set when the removed feature was the module's last
	// association under this license, so the module association goes too.
	PruneModuleID string
}

// PlanFeatureRemoval computes the plan for removing featureID. all must hold
// every LicenseFeature row of the license, including the one being removed.
func PlanFeatureRemoval(all []*LicenseFeature, featureID string) FeatureRemovalPlan {
	plan := FeatureRemovalPlan{FeatureID: featureID}

	var moduleID string
	for _, f := range all {
		if f.FeatureID == featureID {
			moduleID = f.ModuleID
			break
		}
	}
	if moduleID == "" {
		return plan
	}

	for _, f := range all {
		if f.ModuleID == moduleID && f.FeatureID != featureID {
			// a sibling survives, module stays entitled
			return plan
		}
	}

	plan.PruneModuleID = moduleID
	return plan
}

// ModuleRemovalPlan describes the side effects of removing one module
// association: every owned feature association is taken down with it.
type ModuleRemovalPlan struct {
	ModuleID   string
	FeatureIDs []string
}

// PlanModuleRemoval computes the cascade for removing moduleID. all must
// hold every LicenseFeature row of the license.
func PlanModuleRemoval(all []*LicenseFeature, moduleID string) ModuleRemovalPlan {
	plan := ModuleRemovalPlan{ModuleID: moduleID}
	for _, f := range all {
		if f.ModuleID == moduleID {
			plan.FeatureIDs = append(plan.FeatureIDs, f.FeatureID)
		}
	}
	return plan
}
