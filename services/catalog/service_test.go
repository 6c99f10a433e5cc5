package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newReader(t *testing.T) *Reader {
	t.Helper()

	db := testutil.NewTestDB(t, &Application{}, &Module{}, &Feature{}, &User{}, &License{})
	now := time.Now()

	require.NoError(t, db.Create(&Module{ID: "mod-1", ApplicationID: "app-1", CreatedAt: now}).Error)
	require.NoError(t, db.Create([]*Feature{
		{ID: "feat-1", ModuleID: "mod-1", CreatedAt: now},
		{ID: "feat-2", ModuleID: "mod-1", CreatedAt: now},
	}).Error)
	require.NoError(t, db.Create(&License{
		ID: "lic-1", TenantID: "tenant-1", ApplicationID: "app-1",
		LicenseKey: "key-1", MaxActiveUsers: 2, Active: true,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	return NewReader(ReaderParams{DB: db})
}

func TestGetLicense(t *testing.T) {
	r := newReader(t)

	license, err := r.GetLicense(context.Background(), "lic-1")
	require.NoError(t, err)
	require.Equal(t, "tenant-1", license.TenantID)

	_, err = r.GetLicense(context.Background(), "lic-missing")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestRequireValidLicense(t *testing.T) {
	r := newReader(t)
	ctx := context.Background()

	license, err := r.RequireValidLicense(ctx, "key-1")
	require.NoError(t, err)
	require.Equal(t, "lic-1", license.ID)

	_, err = r.RequireValidLicense(ctx, "key-missing")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestRequireValidLicenseRejectsInactive(t *testing.T) {
	r := newReader(t)
	ctx := context.Background()

	require.NoError(t, r.db.Model(&License{}).Where("id = ?", "lic-1").
		Update("active", false).Error)

	_, err := r.RequireValidLicense(ctx, "key-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusForbidden))
}

func TestLicenseValidWindow(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Hour)

	cases := []struct {
		name    string
		license License
		want    bool
	}{
		{"active no window", License{Active: true}, true},
		{"inactive", License{Active: false}, false},
		{"revoked", License{Active: true, RevokedAt: &revoked}, false},
		{"before window", License{Active: true, ValidFrom: now.Add(time.Hour)}, false},
		{"after window", License{Active: true, ValidUntil: now.Add(-time.Hour)}, false},
		{"inside window", License{Active: true, ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.license.Valid(now))
		})
	}
}

func TestListFeatures(t *testing.T) {
	r := newReader(t)
	ctx := context.Background()

	features, err := r.ListFeatures(ctx, []string{"feat-1", "feat-2", "feat-missing"})
	require.NoError(t, err)
	require.Len(t, features, 2)

	features, err = r.ListFeatures(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, features)
}

func TestListModuleFeatures(t *testing.T) {
	r := newReader(t)

	features, err := r.ListModuleFeatures(context.Background(), "mod-1")
	require.NoError(t, err)
	require.Len(t, features, 2)
}
