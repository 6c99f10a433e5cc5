package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"licensing-controlplane/pkg/reconcile"
)

func TestReconcileModulesFromEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.ReconcileModules(ctx, "lic-1", []string{"mod-1", "mod-2"})
	require.NoError(t, err)
	require.Equal(t, reconcile.Success, result.Status())
	require.Len(t, result.Applied, 2)

	rows, err := f.svc.ListModules(ctx, "lic-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestReconcileModulesNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReconcileModules(ctx, "lic-1", []string{"mod-1"})
	require.NoError(t, err)

	before := len(f.eventKinds(t, "lic-1"))

	result, err := f.svc.ReconcileModules(ctx, "lic-1", []string{"mod-1"})
	require.NoError(t, err)
	require.Equal(t, reconcile.NoOp, result.Status())
	require.Equal(t, []string{"mod-1"}, result.Kept)

	// a no-op writes nothing, not even audit rows
	require.Equal(t, before, len(f.eventKinds(t, "lic-1")))
}

func TestReconcileModulesReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReconcileModules(ctx, "lic-1", []string{"mod-1"})
	require.NoError(t, err)

	result, err := f.svc.ReconcileModules(ctx, "lic-1", []string{"mod-2"})
	require.NoError(t, err)
	require.Equal(t, reconcile.Success, result.Status())

	entitled, err := f.svc.ModuleEntitled(ctx, "lic-1", "mod-1")
	require.NoError(t, err)
	require.False(t, entitled)
	entitled, err = f.svc.ModuleEntitled(ctx, "lic-1", "mod-2")
	require.NoError(t, err)
	require.True(t, entitled)
}

func TestReconcileModulesPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.ReconcileModules(ctx, "lic-1", []string{"mod-1", "mod-missing"})
	require.NoError(t, err)
	require.Equal(t, reconcile.PartialSuccess, result.Status())
	require.Len(t, result.Applied, 1)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "mod-missing", result.Failed[0].ID)
}

func TestReconcileFeaturesAutoAddsModule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.ReconcileFeatures(ctx, "lic-1", []string{"feat-1", "feat-2", "feat-3"})
	require.NoError(t, err)
	require.Equal(t, reconcile.Success, result.Status())

	for _, moduleID := range []string{"mod-1", "mod-2"} {
		entitled, err := f.svc.ModuleEntitled(ctx, "lic-1", moduleID)
		require.NoError(t, err)
		require.True(t, entitled, moduleID)
	}
}

func TestReconcileFeaturesRemovalPrunesModule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReconcileFeatures(ctx, "lic-1", []string{"feat-1", "feat-3"})
	require.NoError(t, err)

	result, err := f.svc.ReconcileFeatures(ctx, "lic-1", []string{"feat-1"})
	require.NoError(t, err)
	require.Equal(t, reconcile.Success, result.Status())

	entitled, err := f.svc.ModuleEntitled(ctx, "lic-1", "mod-2")
	require.NoError(t, err)
	require.False(t, entitled)
}

func TestReconcileUsersDowngradeWarns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.ReconcileUsers(ctx, "lic-1", []string{"user-1", "user-2", "user-3"}, DowngradeToInactive)
	require.NoError(t, err)
	require.Equal(t, reconcile.Success, result.Status())
	require.Len(t, result.Warnings, 1)

	count, err := f.svc.CountActiveUsers(ctx, "lic-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestReconcileUsersStrictPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.ReconcileUsers(ctx, "lic-1", []string{"user-1", "user-2", "user-3"}, StrictReject)
	require.NoError(t, err)
	require.Equal(t, reconcile.PartialSuccess, result.Status())
	require.Len(t, result.Applied, 2)
	require.Len(t, result.Failed, 1)
}

func TestReconcileUsersRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReconcileUsers(ctx, "lic-1", []string{"user-1", "user-2"}, StrictReject)
	require.NoError(t, err)

	result, err := f.svc.ReconcileUsers(ctx, "lic-1", []string{"user-2"}, StrictReject)
	require.NoError(t, err)
	require.Equal(t, reconcile.Success, result.Status())

	seats, err := f.svc.ListUsers(ctx, "lic-1")
	require.NoError(t, err)
	require.Len(t, seats, 1)
	require.Equal(t, "user-2", seats[0].UserID)
}

func TestReconcileProfileMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "prof-1", "lic-1")
	f.enroll(t, "lic-1", "user-1")
	f.enroll(t, "lic-1", "user-2")

	result, err := f.svc.ReconcileProfileMembers(ctx, "prof-1", []string{"user-1", "user-2"})
	require.NoError(t, err)
	require.Equal(t, reconcile.Success, result.Status())

	// user-3 holds no seat, so only the removal of user-1 applies cleanly
	result, err = f.svc.ReconcileProfileMembers(ctx, "prof-1", []string{"user-2", "user-3"})
	require.NoError(t, err)
	require.Equal(t, reconcile.PartialSuccess, result.Status())
	require.Len(t, result.Failed, 1)
	require.Equal(t, "user-3", result.Failed[0].ID)

	members, err := f.svc.ListProfileMembers(ctx, "prof-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "user-2", members[0].UserID)
}
