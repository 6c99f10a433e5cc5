package entitlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/services/catalog"
)

func TestAddModule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	row, err := f.svc.AddModule(ctx, "lic-1", "mod-1")
	require.NoError(t, err)
	require.Equal(t, "lic-1", row.LicenseID)
	require.Equal(t, "mod-1", row.ModuleID)

	entitled, err := f.svc.ModuleEntitled(ctx, "lic-1", "mod-1")
	require.NoError(t, err)
	require.True(t, entitled)
}

func TestAddModuleTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddModule(ctx, "lic-1", "mod-1")
	require.NoError(t, err)

	_, err = f.svc.AddModule(ctx, "lic-1", "mod-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusAlreadyAssociated))
}

func TestAddModuleUnknownLicense(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddModule(context.Background(), "lic-missing", "mod-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestAddModuleUnknownModule(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddModule(context.Background(), "lic-1", "mod-missing")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestAddModuleDifferentApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, f.svc.db.Create(&catalog.Application{ID: "app-2", Slug: "crm", CreatedAt: now}).Error)
	require.NoError(t, f.svc.db.Create(&catalog.Module{ID: "mod-foreign", ApplicationID: "app-2", CreatedAt: now}).Error)

	_, err := f.svc.AddModule(ctx, "lic-1", "mod-foreign")
	require.True(t, errutil.HasStatus(err, errutil.StatusCrossTenantMismatch))
}

func TestRemoveModuleNotAssociated(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RemoveModule(context.Background(), "lic-1", "mod-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotAssociated))
}

func TestRemoveModuleCascadesOwnedFeatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddModule(ctx, "lic-1", "mod-1")
	require.NoError(t, err)
	_, err = f.svc.AddModule(ctx, "lic-1", "mod-2")
	require.NoError(t, err)
	_, err = f.svc.AddFeature(ctx, "lic-1", "feat-1")
	require.NoError(t, err)
	_, err = f.svc.AddFeature(ctx, "lic-1", "feat-2")
	require.NoError(t, err)
	_, err = f.svc.AddFeature(ctx, "lic-1", "feat-3")
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveModule(ctx, "lic-1", "mod-1"))

	// mod-1's features went with it, mod-2's feature survives
	for featureID, want := range map[string]bool{"feat-1": false, "feat-2": false, "feat-3": true} {
		got, err := f.svc.FeatureEntitled(ctx, "lic-1", featureID)
		require.NoError(t, err)
		require.Equal(t, want, got, featureID)
	}

	entitled, err := f.svc.ModuleEntitled(ctx, "lic-1", "mod-2")
	require.NoError(t, err)
	require.True(t, entitled)
}

func TestRemoveModuleCascadesProfileGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddModule(ctx, "lic-1", "mod-1")
	require.NoError(t, err)
	_, err = f.svc.AddFeature(ctx, "lic-1", "feat-1")
	require.NoError(t, err)

	f.addProfile(t, "prof-1", "lic-1")
	require.NoError(t, f.svc.db.Exec(
		"INSERT INTO feature_grants (id, profile_id, license_id, feature_id, can_view, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		"grant-1", "prof-1", "lic-1", "feat-1", true, time.Now(), time.Now(),
	).Error)

	require.NoError(t, f.svc.RemoveModule(ctx, "lic-1", "mod-1"))

	var count int64
	require.NoError(t, f.svc.db.Table("feature_grants").Where("profile_id = ?", "prof-1").Count(&count).Error)
	require.Zero(t, count)
}

func TestListModules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddModule(ctx, "lic-1", "mod-1")
	require.NoError(t, err)
	_, err = f.svc.AddModule(ctx, "lic-1", "mod-2")
	require.NoError(t, err)

	rows, err := f.svc.ListModules(ctx, "lic-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

// TestConcurrentAddModule races duplicate adds; exactly one may win and the
// losers must surface the idempotency code, never an internal error.
func TestConcurrentAddModule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.AddModule(ctx, "lic-1", "mod-1")
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.True(t, errutil.HasStatus(err, errutil.StatusAlreadyAssociated))
	}
	require.Equal(t, 1, won)

	rows, err := f.svc.ListModules(ctx, "lic-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

// TestRemoveModuleRacingFeatureAdd interleaves a feature add with the module
// removal. Whichever order the row lock serialises them into, no feature
// association may outlive its module association.
func TestRemoveModuleRacingFeatureAdd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddModule(ctx, "lic-1", "mod-1")
	require.NoError(t, err)
	_, err = f.svc.AddFeature(ctx, "lic-1", "feat-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var addErr, removeErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, addErr = f.svc.AddFeature(ctx, "lic-1", "feat-2")
	}()
	go func() {
		defer wg.Done()
		removeErr = f.svc.RemoveModule(ctx, "lic-1", "mod-1")
	}()
	wg.Wait()

	require.NoError(t, removeErr)
	if addErr != nil {
		require.True(t, errutil.HasStatus(addErr, errutil.StatusModuleNotEntitled))
	}

	modules, err := f.svc.ListModules(ctx, "lic-1")
	require.NoError(t, err)
	require.Empty(t, modules)

	features, err := f.svc.ListFeatures(ctx, "lic-1")
	require.NoError(t, err)
	require.Empty(t, features)
}
