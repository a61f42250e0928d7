/*
lifecycle.go - The report lifecycle state machine

PURPOSE:
  Orchestrates Submit, Verify, and Collect. Each operation loads the
  pre-state inside a transaction, asks the pure functions in transition.go
  for the post-state and any reward event, then applies the report write,
  the ledger append, and the balance increment as one atomic unit.

OPERATION FLOW:
  Submit   validate → create report → award {Reported, 25} to reporter
  Verify   preconditions → add verifier → maybe flip to Verified and
           award {Verified, 50} to reporter
  Collect  capability check → flip to Collected from any non-terminal
           state → award {Collected, 100} to reporter

ATOMICITY:
  A transition either fully applies (status + verifier set + ledger entry
  + balance) or not at all. Concurrent verifies on one report serialize
  inside WithTx, so the count never loses an increment and the threshold
  reward fires exactly once.

OWNERSHIP:
  This Service is the only writer of report status, the verifier set,
  the ledger, and user balances. Nothing else touches those fields.
*/
package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq atomic.Int64

// newID builds a unique identifier. The sequence suffix keeps IDs distinct
// even when two transactions land on the same clock tick.
func newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idSeq.Add(1))
}

// Service is the lifecycle state machine over a transactional store.
type Service struct {
	Store TxStore

	// now is swappable for tests.
	now func() time.Time
}

func NewService(store TxStore) *Service {
	return &Service{Store: store, now: time.Now}
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput carries the fields of a new report. The request layer has
// already validated shape; the core re-checks bounds defensively.
type SubmitInput struct {
	ReporterID  UserID
	Title       string
	Description string
	Location    Location
	ImageURL    string
}

// SubmitResult is the success payload: the created report, the fixed
// award, and the reporter's new cached total.
type SubmitResult struct {
	Report         Report
	PointsAwarded  int
	NewTotalPoints int
}

// Submit creates a report in the Reported state and credits the reporter
// 25 points, atomically with report creation.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := ValidateSubmission(in.Title, in.Description, in.Location, in.ImageURL, in.ReporterID); err != nil {
		return nil, err
	}

	var result SubmitResult
	err := s.Store.WithTx(ctx, func(st Store) error {
		reporter, err := st.GetUser(ctx, in.ReporterID)
		if err != nil {
			return err
		}
		if reporter == nil {
			return ErrUserNotFound
		}

		report := Report{
			ID:          ReportID(newID("rep")),
			Title:       in.Title,
			Description: in.Description,
			Location:    in.Location,
			ImageURL:    in.ImageURL,
			ReporterID:  in.ReporterID,
			Status:      StatusReported,
			CreatedAt:   s.now().UTC(),
		}
		if err := st.SaveReport(ctx, report); err != nil {
			return err
		}

		if _, err := recordAward(ctx, st, SubmissionReward(report), s.now().UTC()); err != nil {
			return err
		}

		result = SubmitResult{
			Report:         report,
			PointsAwarded:  PointsReported,
			NewTotalPoints: reporter.Points + PointsReported,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// VERIFY
// =============================================================================

// VerifyResult is the success payload. Exactly one of the two trailing
// fields is meaningful: PointsAwardedToReporter when this call crossed the
// threshold, VerificationsNeeded otherwise.
type VerifyResult struct {
	Report                  Report
	ThresholdReached        bool
	PointsAwardedToReporter int
	VerificationsNeeded     int
}

// Verify records one distinct community verification. The third distinct
// verification of a still-Reported report flips it to Verified and awards
// the reporter 50 points in the same atomic unit.
func (s *Service) Verify(ctx context.Context, reportID ReportID, verifierID UserID) (*VerifyResult, error) {
	var result VerifyResult
	err := s.Store.WithTx(ctx, func(st Store) error {
		report, err := st.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return ErrReportNotFound
		}

		verifier, err := st.GetUser(ctx, verifierID)
		if err != nil {
			return err
		}
		if verifier == nil {
			return ErrUserNotFound
		}

		updated, event, err := ApplyVerification(*report, verifierID)
		if err != nil {
			return err
		}

		if err := st.AddVerifier(ctx, reportID, verifierID); err != nil {
			return err
		}
		if err := st.SaveReport(ctx, updated); err != nil {
			return err
		}

		result = VerifyResult{Report: updated, VerificationsNeeded: updated.VerificationsNeeded()}
		if event != nil {
			if _, err := recordAward(ctx, st, *event, s.now().UTC()); err != nil {
				return err
			}
			result.ThresholdReached = true
			result.PointsAwardedToReporter = event.Points
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// COLLECT
// =============================================================================

// CollectResult is the success payload for an administrative collection.
type CollectResult struct {
	Report        Report
	PointsAwarded int
}

// Collect marks a report Collected and awards the reporter 100 points.
// Legal from Reported or Verified; verification is not a prerequisite.
// The actor's admin capability is resolved upstream, but enforced here.
func (s *Service) Collect(ctx context.Context, reportID ReportID, actor Actor) (*CollectResult, error) {
	if !actor.Admin {
		return nil, ErrUnauthorized
	}

	var result CollectResult
	err := s.Store.WithTx(ctx, func(st Store) error {
		report, err := st.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return ErrReportNotFound
		}

		updated, event, err := ApplyCollection(*report)
		if err != nil {
			return err
		}
		if err := st.SaveReport(ctx, updated); err != nil {
			return err
		}
		if _, err := recordAward(ctx, st, *event, s.now().UTC()); err != nil {
			return err
		}

		result = CollectResult{Report: updated, PointsAwarded: event.Points}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

// GetByID returns a report or ErrReportNotFound.
func (s *Service) GetByID(ctx context.Context, id ReportID) (*Report, error) {
	report, err := s.Store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// ListForUser returns one reporter's reports, newest first.
func (s *Service) ListForUser(ctx context.Context, reporter UserID) ([]Report, error) {
	return s.Store.ListReportsByReporter(ctx, reporter)
}

// ListAll returns every report, newest first. Intended for the admin view.
func (s *Service) ListAll(ctx context.Context) ([]Report, error) {
	return s.Store.ListReports(ctx)
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser registers a point-bearing user with a zero balance.
func (s *Service) CreateUser(ctx context.Context, id UserID, username, email, role string) (*User, error) {
	if id == "" {
		id = UserID(newID("usr"))
	}
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "username is required"}
	}
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, &ValidationError{Field: "role", Message: "role must be user or admin"}
	}

	u := User{
		ID:        id,
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns a user or ErrUserNotFound.
func (s *Service) GetUser(ctx context.Context, id UserID) (*User, error) {
	u, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
