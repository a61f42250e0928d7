/*
store.go - Persistence interface for reports, users, and the reward ledger

PURPOSE:
  Defines the interface between the domain logic and the database. The
  lifecycle Service only ever mutates state through a transactional view
  obtained from WithTx, which is what makes each Submit/Verify/Collect an
  all-or-nothing unit.

APPEND-ONLY CONTRACT:
  The reward ledger has a single write operation, AppendAward. No update
  or delete exists. Implementations must reject a second entry for the
  same (report_id, award_type) pair with ErrDuplicateAward.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (WAL, unique indexes)
  - core/store:   In-memory store for tests and dev
*/
package core

import "context"

// Store is the persistence surface the engine operates on. Reads outside
// a transaction see committed state; all lifecycle writes happen on the
// Store handed to a WithTx callback.
type Store interface {
	// --- Reports ---

	// GetReport returns the report with its verifier set, or nil if absent.
	GetReport(ctx context.Context, id ReportID) (*Report, error)

	// SaveReport inserts or updates the report row (status, count, fields).
	// The verifier set is owned separately; see AddVerifier.
	SaveReport(ctx context.Context, r Report) error

	// ListReports returns all reports, newest first.
	ListReports(ctx context.Context) ([]Report, error)

	// ListReportsByReporter returns one user's reports, newest first.
	ListReportsByReporter(ctx context.Context, reporter UserID) ([]Report, error)

	// CountReportsByReporter returns how many reports a user has submitted.
	CountReportsByReporter(ctx context.Context, reporter UserID) (int, error)

	// AddVerifier records a distinct verification. A repeat insert for the
	// same (report, user) pair returns ErrAlreadyVerified.
	AddVerifier(ctx context.Context, reportID ReportID, userID UserID) error

	// --- Users ---

	// GetUser returns the user, or nil if absent.
	GetUser(ctx context.Context, id UserID) (*User, error)

	// SaveUser inserts or updates a user profile. Balance mutation goes
	// through AddPoints only.
	SaveUser(ctx context.Context, u User) error

	// AddPoints increments a user's cached balance. Called exclusively by
	// the lifecycle, always in the same transaction as AppendAward.
	AddPoints(ctx context.Context, id UserID, delta int) error

	// ListUsers returns all users in insertion order.
	ListUsers(ctx context.Context) ([]User, error)

	// --- Reward ledger (append-only) ---

	// AppendAward appends a ledger entry. Returns ErrDuplicateAward if an
	// entry for the same (report, type) already exists.
	AppendAward(ctx context.Context, e RewardEntry) error

	// AwardExists checks whether a (report, type) award was already given.
	AwardExists(ctx context.Context, reportID ReportID, t RewardType) (bool, error)

	// AwardsByUser returns a user's entries, most recent first. A positive
	// limit caps the result; limit <= 0 returns everything.
	AwardsByUser(ctx context.Context, id UserID, limit int) ([]RewardEntry, error)
}

// TxStore wraps Store with transaction support. Every lifecycle operation
// runs inside WithTx: if fn returns an error the transaction is rolled
// back and no partial state is visible, including when the caller's
// context is cancelled mid-operation.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
