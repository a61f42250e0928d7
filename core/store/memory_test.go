package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cleanmap/waste-engine/core"
	"github.com/cleanmap/waste-engine/core/store"
)

// =============================================================================
// TRANSACTION SEMANTICS
// =============================================================================

func TestTxMemory_RollbackRestoresEverything(t *testing.T) {
	// GIVEN: A store with one user
	// WHEN: A transaction writes a report, a verifier, points and an award,
	//       then fails
	// THEN: None of the writes survive

	ctx := context.Background()
	st := store.NewTxMemory()
	if err := st.SaveUser(ctx, core.User{ID: "alice", Username: "alice", Role: core.RoleUser}); err != nil {
		t.Fatalf("save user: %v", err)
	}

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx core.Store) error {
		if err := tx.SaveReport(ctx, core.Report{ID: "rep-1", ReporterID: "alice", Status: core.StatusReported}); err != nil {
			return err
		}
		if err := tx.AddVerifier(ctx, "rep-1", "bob"); err != nil {
			return err
		}
		if err := tx.AddPoints(ctx, "alice", 25); err != nil {
			return err
		}
		if err := tx.AppendAward(ctx, core.RewardEntry{
			ID: "rw-1", UserID: "alice", Type: core.RewardReported,
			Points: 25, ReportID: "rep-1", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the transaction error back, got %v", err)
	}

	if r, _ := st.GetReport(ctx, "rep-1"); r != nil {
		t.Errorf("report survived rollback: %+v", r)
	}
	u, _ := st.GetUser(ctx, "alice")
	if u == nil || u.Points != 0 {
		t.Errorf("points survived rollback: %+v", u)
	}
	if exists, _ := st.AwardExists(ctx, "rep-1", core.RewardReported); exists {
		t.Error("award survived rollback")
	}

	// The award key must be free again for a later legitimate attempt
	err = st.AppendAward(ctx, core.RewardEntry{
		ID: "rw-2", UserID: "alice", Type: core.RewardReported,
		Points: 25, ReportID: "rep-1", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Errorf("award key still held after rollback: %v", err)
	}
}

func TestTxMemory_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewTxMemory()
	if err := st.SaveUser(ctx, core.User{ID: "alice", Username: "alice", Role: core.RoleUser}); err != nil {
		t.Fatalf("save user: %v", err)
	}

	err := st.WithTx(ctx, func(tx core.Store) error {
		if err := tx.SaveReport(ctx, core.Report{ID: "rep-1", ReporterID: "alice", Status: core.StatusReported}); err != nil {
			return err
		}
		return tx.AddPoints(ctx, "alice", 25)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r, _ := st.GetReport(ctx, "rep-1"); r == nil {
		t.Error("report lost after commit")
	}
	if u, _ := st.GetUser(ctx, "alice"); u.Points != 25 {
		t.Errorf("expected 25 points, got %d", u.Points)
	}
}

func TestTxMemory_CancelledContextRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := store.NewTxMemory()
	if err := st.SaveUser(ctx, core.User{ID: "alice", Username: "alice", Role: core.RoleUser}); err != nil {
		t.Fatalf("save user: %v", err)
	}

	err := st.WithTx(ctx, func(tx core.Store) error {
		if err := tx.AddPoints(ctx, "alice", 25); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if err == nil {
		t.Fatal("expected a context error")
	}

	u, _ := st.GetUser(context.Background(), "alice")
	if u.Points != 0 {
		t.Errorf("write survived a cancelled transaction: %d", u.Points)
	}
}

// =============================================================================
// STORE BEHAVIOR
// =============================================================================

func TestMemory_SaveUserPreservesBalance(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	if err := st.SaveUser(ctx, core.User{ID: "alice", Username: "alice", Role: core.RoleUser}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := st.AddPoints(ctx, "alice", 75); err != nil {
		t.Fatalf("add points: %v", err)
	}
	if err := st.SaveUser(ctx, core.User{ID: "alice", Username: "renamed", Role: core.RoleAdmin}); err != nil {
		t.Fatalf("update user: %v", err)
	}

	u, _ := st.GetUser(ctx, "alice")
	if u.Username != "renamed" || u.Role != core.RoleAdmin {
		t.Errorf("profile update lost: %+v", u)
	}
	if u.Points != 75 {
		t.Errorf("balance must survive profile updates, got %d", u.Points)
	}
}

func TestMemory_GetReportCopiesVerifiers(t *testing.T) {
	// Mutating a returned report must not leak into the store
	ctx := context.Background()
	st := store.NewMemory()

	if err := st.SaveReport(ctx, core.Report{ID: "rep-1", ReporterID: "alice", Status: core.StatusReported}); err != nil {
		t.Fatalf("save report: %v", err)
	}
	if err := st.AddVerifier(ctx, "rep-1", "bob"); err != nil {
		t.Fatalf("add verifier: %v", err)
	}

	r, _ := st.GetReport(ctx, "rep-1")
	r.VerifierIDs[0] = "mallory"

	again, _ := st.GetReport(ctx, "rep-1")
	if again.VerifierIDs[0] != "bob" {
		t.Errorf("verifier set aliased out of the store: %v", again.VerifierIDs)
	}
}

func TestMemory_AddVerifierRepeat_Rejected(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	if err := st.SaveReport(ctx, core.Report{ID: "rep-1", ReporterID: "alice", Status: core.StatusReported}); err != nil {
		t.Fatalf("save report: %v", err)
	}
	if err := st.AddVerifier(ctx, "rep-1", "bob"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := st.AddVerifier(ctx, "rep-1", "bob"); !errors.Is(err, core.ErrAlreadyVerified) {
		t.Errorf("expected ErrAlreadyVerified, got %v", err)
	}
}
