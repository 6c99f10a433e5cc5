package entitlement

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/services/catalog"
)

func TestAddUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)
	require.True(t, result.Seat.Active)
	require.False(t, result.Downgraded)
	require.Equal(t, "tenant-1", result.Seat.TenantID)

	_, err = f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.True(t, errutil.HasStatus(err, errutil.StatusAlreadyAssociated))
}

func TestAddUserCrossTenant(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.db.Create(&catalog.User{
		ID: "user-foreign", TenantID: "tenant-2", CreatedAt: time.Now(),
	}).Error)

	_, err := f.svc.AddUser(context.Background(), "lic-1", "user-foreign", true, StrictReject)
	require.True(t, errutil.HasStatus(err, errutil.StatusCrossTenantMismatch))
}

func TestAddUserCapacityStrict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)
	_, err = f.svc.AddUser(ctx, "lic-1", "user-2", true, StrictReject)
	require.NoError(t, err)

	_, err = f.svc.AddUser(ctx, "lic-1", "user-3", true, StrictReject)
	require.True(t, errutil.HasStatus(err, errutil.StatusCapacityExceeded))

	// inactive enrollment is always allowed
	result, err := f.svc.AddUser(ctx, "lic-1", "user-3", false, StrictReject)
	require.NoError(t, err)
	require.False(t, result.Seat.Active)
}

func TestAddUserCapacityDowngrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)
	_, err = f.svc.AddUser(ctx, "lic-1", "user-2", true, StrictReject)
	require.NoError(t, err)

	result, err := f.svc.AddUser(ctx, "lic-1", "user-3", true, DowngradeToInactive)
	require.NoError(t, err)
	require.False(t, result.Seat.Active)
	require.True(t, result.Downgraded)
}

func TestAddUserCapacityBypass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)
	_, err = f.svc.AddUser(ctx, "lic-1", "user-2", true, StrictReject)
	require.NoError(t, err)

	result, err := f.svc.AddUser(ctx, "lic-1", "user-3", true, BypassForPrivileged)
	require.NoError(t, err)
	require.True(t, result.Seat.Active)

	count, err := f.svc.CountActiveUsers(ctx, "lic-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestUpdateUserStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)

	// deactivation always goes through
	result, err := f.svc.UpdateUserStatus(ctx, "lic-1", "user-1", false, StrictReject)
	require.NoError(t, err)
	require.False(t, result.Seat.Active)

	result, err = f.svc.UpdateUserStatus(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)
	require.True(t, result.Seat.Active)

	// no-op flip
	result, err = f.svc.UpdateUserStatus(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)
	require.True(t, result.Seat.Active)
}

func TestUpdateUserStatusActivationChecksCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)
	_, err = f.svc.AddUser(ctx, "lic-1", "user-2", true, StrictReject)
	require.NoError(t, err)
	_, err = f.svc.AddUser(ctx, "lic-1", "user-3", false, StrictReject)
	require.NoError(t, err)

	_, err = f.svc.UpdateUserStatus(ctx, "lic-1", "user-3", true, StrictReject)
	require.True(t, errutil.HasStatus(err, errutil.StatusCapacityExceeded))

	// downgrade policy reports instead of failing, seat stays inactive
	result, err := f.svc.UpdateUserStatus(ctx, "lic-1", "user-3", true, DowngradeToInactive)
	require.NoError(t, err)
	require.True(t, result.Downgraded)
	require.False(t, result.Seat.Active)
}

func TestUpdateUserStatusUnknownSeat(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateUserStatus(context.Background(), "lic-1", "user-1", true, StrictReject)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotAssociated))
}

func TestRemoveUserCascadesBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)

	f.addProfile(t, "prof-1", "lic-1")
	_, err = f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveUser(ctx, "lic-1", "user-1"))

	binding, err := f.svc.BoundProfile(ctx, "lic-1", "user-1")
	require.NoError(t, err)
	require.Nil(t, binding)

	err = f.svc.RemoveUser(ctx, "lic-1", "user-1")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotAssociated))
}

func TestAddUserMigratesSeatWithinTenant(t *testing.T) {
	f := newFixture(t)
	f.addSecondLicense(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)

	f.addProfile(t, "prof-1", "lic-1")
	_, err = f.svc.BindUserToProfile(ctx, "prof-1", "user-1")
	require.NoError(t, err)

	// enrolling on lic-2 moves the user off lic-1 entirely
	_, err = f.svc.AddUser(ctx, "lic-2", "user-1", true, StrictReject)
	require.NoError(t, err)

	seats, err := f.svc.ListUsers(ctx, "lic-1")
	require.NoError(t, err)
	require.Empty(t, seats)

	binding, err := f.svc.BoundProfile(ctx, "lic-1", "user-1")
	require.NoError(t, err)
	require.Nil(t, binding)

	seats, err = f.svc.ListUsers(ctx, "lic-2")
	require.NoError(t, err)
	require.Len(t, seats, 1)
}

func TestAddUserMigrationInvalidatesOldLicense(t *testing.T) {
	f := newFixture(t)
	f.addSecondLicense(t)
	ctx := context.Background()

	_, err := f.svc.AddUser(ctx, "lic-1", "user-1", true, StrictReject)
	require.NoError(t, err)

	f.invalidator.licenses = nil
	f.enqueuer.tasks = nil

	// the license the seat moved away from must be invalidated and
	// notified too, or stale permission sets outlive the migration
	_, err = f.svc.AddUser(ctx, "lic-2", "user-1", true, StrictReject)
	require.NoError(t, err)

	require.Contains(t, f.invalidator.licenses, "lic-1")
	require.Contains(t, f.invalidator.licenses, "lic-2")
	require.Len(t, f.enqueuer.tasks, 2)
}

// TestActiveSeatsNeverExceedCap hammers one license with a random sequence of
// enrollments, removals and status flips and checks the cap invariant after
// every step.
func TestActiveSeatsNeverExceedCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	users := []string{"user-1", "user-2", "user-3"}

	for i := 0; i < 200; i++ {
		userID := users[rng.Intn(len(users))]
		switch rng.Intn(4) {
		case 0:
			_, _ = f.svc.AddUser(ctx, "lic-1", userID, true, StrictReject)
		case 1:
			_, _ = f.svc.AddUser(ctx, "lic-1", userID, false, StrictReject)
		case 2:
			_, _ = f.svc.UpdateUserStatus(ctx, "lic-1", userID, rng.Intn(2) == 0, StrictReject)
		default:
			_ = f.svc.RemoveUser(ctx, "lic-1", userID)
		}

		count, err := f.svc.CountActiveUsers(ctx, "lic-1")
		require.NoError(t, err)
		require.LessOrEqual(t, count, int64(2), "step %d", i)
	}
}
