package core_test

import (
	"context"
	"sync"
	"testing"

	"github.com/cleanmap/waste-engine/core"
	"github.com/cleanmap/waste-engine/core/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*core.Service, *store.TxMemory) {
	t.Helper()
	st := store.NewTxMemory()
	return core.NewService(st), st
}

func mustCreateUser(t *testing.T, svc *core.Service, id, role string) *core.User {
	t.Helper()
	u, err := svc.CreateUser(context.Background(), core.UserID(id), id, id+"@example.com", role)
	require.NoError(t, err)
	return u
}

func mustSubmit(t *testing.T, svc *core.Service, reporter string) *core.SubmitResult {
	t.Helper()
	res, err := svc.Submit(context.Background(), core.SubmitInput{
		ReporterID:  core.UserID(reporter),
		Title:       "Overflowing bin at the park",
		Description: "Trash scattered around the main entrance.",
		Location:    core.Location{Lat: 51.5, Lng: -0.12},
		ImageURL:    "https://img.example.com/bin.jpg",
	})
	require.NoError(t, err)
	return res
}

// balanceEquals asserts the cached balance matches the ledger sum.
func balanceEquals(t *testing.T, st core.Store, id string, want int) {
	t.Helper()
	ctx := context.Background()

	u, err := st.GetUser(ctx, core.UserID(id))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, want, u.Points, "cached balance")

	entries, err := st.AwardsByUser(ctx, core.UserID(id), 0)
	require.NoError(t, err)
	sum := 0
	for _, e := range entries {
		sum += e.Points
	}
	assert.Equal(t, want, sum, "ledger sum must match cached balance")
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_AwardsSubmissionPoints(t *testing.T) {
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)

	res := mustSubmit(t, svc, "alice")

	assert.Equal(t, core.StatusReported, res.Report.Status)
	assert.Equal(t, 0, res.Report.VerificationCount)
	assert.Equal(t, core.PointsReported, res.PointsAwarded)
	assert.Equal(t, core.PointsReported, res.NewTotalPoints)
	balanceEquals(t, st, "alice", core.PointsReported)
}

func TestSubmit_UnknownReporter_Rejected(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.Submit(context.Background(), core.SubmitInput{
		ReporterID:  "ghost",
		Title:       "Overflowing bin at the park",
		Description: "Trash scattered around the main entrance.",
		Location:    core.Location{Lat: 51.5, Lng: -0.12},
		ImageURL:    "https://img.example.com/bin.jpg",
	})
	require.ErrorIs(t, err, core.ErrUserNotFound)

	// Nothing persisted
	reports, err := st.ListReports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSubmit_InvalidInput_Rejected(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)

	cases := []struct {
		name string
		in   core.SubmitInput
	}{
		{"short title", core.SubmitInput{
			ReporterID: "alice", Title: "Bin",
			Description: "Trash scattered around the main entrance.",
			Location:    core.Location{Lat: 51.5, Lng: -0.12},
			ImageURL:    "https://img.example.com/bin.jpg",
		}},
		{"short description", core.SubmitInput{
			ReporterID: "alice", Title: "Overflowing bin",
			Description: "Trash",
			Location:    core.Location{Lat: 51.5, Lng: -0.12},
			ImageURL:    "https://img.example.com/bin.jpg",
		}},
		{"latitude out of range", core.SubmitInput{
			ReporterID: "alice", Title: "Overflowing bin",
			Description: "Trash scattered around the main entrance.",
			Location:    core.Location{Lat: 91, Lng: -0.12},
			ImageURL:    "https://img.example.com/bin.jpg",
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), c.in)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

// =============================================================================
// VERIFICATION
// =============================================================================

func TestVerify_ThresholdAwardsReporterExactlyOnce(t *testing.T) {
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	for _, v := range []string{"bob", "carol", "dave", "erin"} {
		mustCreateUser(t, svc, v, core.RoleUser)
	}
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()

	// First two verifications: progress only
	r1, err := svc.Verify(ctx, rep.Report.ID, "bob")
	require.NoError(t, err)
	assert.False(t, r1.ThresholdReached)
	assert.Equal(t, 2, r1.VerificationsNeeded)

	r2, err := svc.Verify(ctx, rep.Report.ID, "carol")
	require.NoError(t, err)
	assert.False(t, r2.ThresholdReached)
	assert.Equal(t, 1, r2.VerificationsNeeded)
	balanceEquals(t, st, "alice", core.PointsReported)

	// Third verification crosses the threshold
	r3, err := svc.Verify(ctx, rep.Report.ID, "dave")
	require.NoError(t, err)
	assert.True(t, r3.ThresholdReached)
	assert.Equal(t, core.PointsVerified, r3.PointsAwardedToReporter)
	assert.Equal(t, core.StatusVerified, r3.Report.Status)
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsVerified)

	// Fourth verification records but never re-awards
	r4, err := svc.Verify(ctx, rep.Report.ID, "erin")
	require.NoError(t, err)
	assert.False(t, r4.ThresholdReached)
	assert.Equal(t, 4, r4.Report.VerificationCount)
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsVerified)
}

func TestVerify_SelfAndRepeat_Rejected(t *testing.T) {
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	mustCreateUser(t, svc, "bob", core.RoleUser)
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.Verify(ctx, rep.Report.ID, "alice")
	assert.ErrorIs(t, err, core.ErrSelfVerification)

	_, err = svc.Verify(ctx, rep.Report.ID, "bob")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, rep.Report.ID, "bob")
	assert.ErrorIs(t, err, core.ErrAlreadyVerified)

	// Failed attempts leave the count alone
	r, err := svc.GetByID(ctx, rep.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, r.VerificationCount)
	balanceEquals(t, st, "alice", core.PointsReported)
}

func TestVerify_UnknownReportOrVerifier_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.Verify(ctx, "rep-missing", "alice")
	assert.ErrorIs(t, err, core.ErrReportNotFound)

	_, err = svc.Verify(ctx, rep.Report.ID, "ghost")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestVerify_ConcurrentThresholdRace_SingleAward(t *testing.T) {
	// Many members verify a report sitting at two verifications at once.
	// Exactly one caller crosses the threshold; the reporter is credited
	// exactly once.
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	mustCreateUser(t, svc, "bob", core.RoleUser)
	mustCreateUser(t, svc, "carol", core.RoleUser)
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.Verify(ctx, rep.Report.ID, "bob")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, rep.Report.ID, "carol")
	require.NoError(t, err)

	const racers = 8
	verifiers := make([]string, racers)
	for i := range verifiers {
		id := string(rune('m'+i)) + "-racer"
		verifiers[i] = id
		mustCreateUser(t, svc, id, core.RoleUser)
	}

	var wg sync.WaitGroup
	crossed := make(chan int, racers)
	for _, v := range verifiers {
		wg.Add(1)
		go func(verifier string) {
			defer wg.Done()
			res, err := svc.Verify(ctx, rep.Report.ID, core.UserID(verifier))
			if err == nil && res.ThresholdReached {
				crossed <- res.PointsAwardedToReporter
			}
		}(v)
	}
	wg.Wait()
	close(crossed)

	var crossings []int
	for p := range crossed {
		crossings = append(crossings, p)
	}
	require.Len(t, crossings, 1, "exactly one verification may cross the threshold")
	assert.Equal(t, core.PointsVerified, crossings[0])

	// One verified-type ledger entry, balance consistent
	exists, err := st.AwardExists(ctx, rep.Report.ID, core.RewardVerified)
	require.NoError(t, err)
	assert.True(t, exists)
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsVerified)

	r, err := svc.GetByID(ctx, rep.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusVerified, r.Status)
	assert.Equal(t, 2+racers, r.VerificationCount)
}

// =============================================================================
// COLLECTION
// =============================================================================

func TestCollect_AdminOnly(t *testing.T) {
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.Collect(ctx, rep.Report.ID, core.Actor{ID: "alice", Admin: false})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	balanceEquals(t, st, "alice", core.PointsReported)

	res, err := svc.Collect(ctx, rep.Report.ID, core.Actor{ID: "root", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, core.StatusCollected, res.Report.Status)
	assert.Equal(t, core.PointsCollected, res.PointsAwarded)
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsCollected)
}

func TestCollect_SkipsVerificationLegally(t *testing.T) {
	// Collection straight from the reported state is legal; the
	// verification reward for that report simply never happens.
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.Collect(ctx, rep.Report.ID, core.Actor{ID: "root", Admin: true})
	require.NoError(t, err)

	exists, err := st.AwardExists(ctx, rep.Report.ID, core.RewardVerified)
	require.NoError(t, err)
	assert.False(t, exists)
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsCollected)
}

func TestCollect_Repeat_Rejected(t *testing.T) {
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()
	admin := core.Actor{ID: "root", Admin: true}

	_, err := svc.Collect(ctx, rep.Report.ID, admin)
	require.NoError(t, err)

	_, err = svc.Collect(ctx, rep.Report.ID, admin)
	assert.ErrorIs(t, err, core.ErrAlreadyCollected)
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsCollected)
}

func TestCollect_ConcurrentRace_SingleAward(t *testing.T) {
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()
	admin := core.Actor{ID: "root", Admin: true}

	var wg sync.WaitGroup
	var okCount int32
	var mu sync.Mutex
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Collect(ctx, rep.Report.ID, admin); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), okCount, "exactly one collection may succeed")
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsCollected)
}

// =============================================================================
// FULL LIFECYCLE
// =============================================================================

func TestFullLifecycle_BalanceAndLedgerConsistent(t *testing.T) {
	svc, st := newTestService(t)
	mustCreateUser(t, svc, "alice", core.RoleUser)
	for _, v := range []string{"bob", "carol", "dave"} {
		mustCreateUser(t, svc, v, core.RoleUser)
	}
	rep := mustSubmit(t, svc, "alice")
	ctx := context.Background()

	for _, v := range []string{"bob", "carol", "dave"} {
		_, err := svc.Verify(ctx, rep.Report.ID, core.UserID(v))
		require.NoError(t, err)
	}
	_, err := svc.Collect(ctx, rep.Report.ID, core.Actor{ID: "root", Admin: true})
	require.NoError(t, err)

	// 25 + 50 + 100 across three entries
	balanceEquals(t, st, "alice", core.PointsReported+core.PointsVerified+core.PointsCollected)

	entries, err := st.AwardsByUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first
	assert.Equal(t, core.RewardCollected, entries[0].Type)
	assert.Equal(t, core.RewardVerified, entries[1].Type)
	assert.Equal(t, core.RewardReported, entries[2].Type)
}

// =============================================================================
// USERS
// =============================================================================

func TestCreateUser_Defaults(t *testing.T) {
	svc, _ := newTestService(t)

	u, err := svc.CreateUser(context.Background(), "", "alice", "alice@example.com", "")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, core.RoleUser, u.Role)
	assert.Equal(t, 0, u.Points)
}

func TestCreateUser_InvalidRole_Rejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), "", "alice", "", "superuser")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestGetUser_Missing_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}
