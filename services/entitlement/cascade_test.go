package entitlement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanFeatureRemovalLastFeaturePrunesModule(t *testing.T) {
	all := []*LicenseFeature{
		{FeatureID: "feat-1", ModuleID: "mod-1"},
		{FeatureID: "feat-3", ModuleID: "mod-2"},
	}

	plan := PlanFeatureRemoval(all, "feat-1")
	require.Equal(t, "feat-1", plan.FeatureID)
	require.Equal(t, "mod-1", plan.PruneModuleID)
}

func TestPlanFeatureRemovalSiblingSurvives(t *testing.T) {
	all := []*LicenseFeature{
		{FeatureID: "feat-1", ModuleID: "mod-1"},
		{FeatureID: "feat-2", ModuleID: "mod-1"},
	}

	plan := PlanFeatureRemoval(all, "feat-1")
	require.Empty(t, plan.PruneModuleID)
}

func TestPlanFeatureRemovalUnknownFeature(t *testing.T) {
	all := []*LicenseFeature{
		{FeatureID: "feat-1", ModuleID: "mod-1"},
	}

	plan := PlanFeatureRemoval(all, "feat-9")
	require.Equal(t, "feat-9", plan.FeatureID)
	require.Empty(t, plan.PruneModuleID)
}

func TestPlanModuleRemovalCollectsOwnedFeatures(t *testing.T) {
	all := []*LicenseFeature{
		{FeatureID: "feat-1", ModuleID: "mod-1"},
		{FeatureID: "feat-2", ModuleID: "mod-1"},
		{FeatureID: "feat-3", ModuleID: "mod-2"},
	}

	plan := PlanModuleRemoval(all, "mod-1")
	require.Equal(t, "mod-1", plan.ModuleID)
	require.ElementsMatch(t, []string{"feat-1", "feat-2"}, plan.FeatureIDs)
}

func TestPlanModuleRemovalNoFeatures(t *testing.T) {
	plan := PlanModuleRemoval(nil, "mod-1")
	require.Empty(t, plan.FeatureIDs)
}
