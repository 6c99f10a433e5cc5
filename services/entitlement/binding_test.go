package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"licensing-controlplane/pkg/errutil"
)

func (f *fixture) enroll(t *testing.T, licenseID, userID string) {
	t.Helper()
	_, err := f.svc.AddUser(context.Background(), licenseID, userID, true, StrictReject)
	require.NoError(t, err)
}

func TestBindUserToProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "prof-1", "lic-1")
	f.enroll(t, "lic-1", "user-1")

	binding, err := f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "lic-1", binding.LicenseID)

	got, err := f.svc.BoundProfile(ctx, "lic-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "prof-1", got.ProfileID)
}

func TestBindUserWithoutSeat(t *testing.T) {
	f := newFixture(t)
	f.addProfile(t, "prof-1", "lic-1")

	_, err := f.svc.BindUserToProfile(context.Background(), "prof-1", "user-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusUserNotLicensed))
}

func TestBindUserWithInactiveSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "prof-1", "lic-1")

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", false, StrictReject)
	require.NoError(t, err)

	_, err = f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusUserNotLicensed))
}

func TestBindUserUnknownProfile(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "lic-1", "user-1")

	_, err := f.svc.BindUserToProfile(context.Background(), "prof-missing", "user-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestBindUserExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "prof-1", "lic-1")
	f.addProfile(t, "prof-2", "lic-1")
	f.enroll(t, "lic-1", "user-1")

	_, err := f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)

	_, err = f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusAlreadyAssociated))

	_, err = f.svc.BindUserToProfile(ctx, "prof-2", "user-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusConflict))
}

func TestRebindMovesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "prof-1", "lic-1")
	f.addProfile(t, "prof-2", "lic-1")
	f.enroll(t, "lic-1", "user-1")

	_, err := f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)

	binding, err := f.svc.RebindUserToSingleProfile(ctx, "prof-2", "user-1")
	require.NoError(t, err)
	require.Equal(t, "prof-2", binding.ProfileID)

	members, err := f.svc.ListProfileMembers(ctx, "prof-1")
	require.NoError(t, err)
	require.Empty(t, members)

	got, err := f.svc.BoundProfile(ctx, "lic-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "prof-2", got.ProfileID)

	// the displaced binding is audited against the license it lived on
	kinds := f.eventKinds(t, "lic-1")
	require.Contains(t, kinds, EventProfileUnbound)
	require.Contains(t, kinds, EventProfileBound)
	require.Contains(t, f.invalidator.licenses, "lic-1")
}

func TestRebindIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "prof-1", "lic-1")
	f.enroll(t, "lic-1", "user-1")

	first, err := f.svc.RebindUserToSingleProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)

	kindsBefore := f.eventKinds(t, "lic-1")
	f.invalidator.licenses = nil
	f.enqueuer.tasks = nil

	second, err := f.svc.RebindUserToSingleProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	members, err := f.svc.ListProfileMembers(ctx, "prof-1")
	require.NoError(t, err)
	require.Len(t, members, 1)

	// nothing changed, so no audit row, no cache bump, no task
	require.Equal(t, kindsBefore, f.eventKinds(t, "lic-1"))
	require.Empty(t, f.invalidator.licenses)
	require.Empty(t, f.enqueuer.tasks)
}

func TestUnbindUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "prof-1", "lic-1")
	f.enroll(t, "lic-1", "user-1")

	_, err := f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.UnbindUserFromProfile(ctx, "prof-1", "user-1"))

	err = f.svc.UnbindUserFromProfile(ctx, "prof-1", "user-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotAssociated))
}
