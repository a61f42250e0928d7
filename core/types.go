/*
Package core implements the report lifecycle and reward-accrual engine.

PURPOSE:
  This package contains the domain types and algorithms for community waste
  reports: the report entity with its verification set, the append-only
  reward ledger, cached user point balances, and the state machine that
  moves a report through Reported → Verified → Collected while awarding
  points exactly once per triggering event.

KEY CONCEPTS IN THIS FILE (types.go):
  - Report: A geotagged waste report with status and verifier set
  - RewardEntry: An immutable ledger row recording a point award
  - User: The point-bearing entity (cached balance + profile subset)
  - Reward constants: 25 (submit) / 50 (verified) / 100 (collected)

DESIGN PRINCIPLES:
  1. Immutability: Ledger entries are never modified or deleted
  2. Single writer: Only the lifecycle Service mutates status, verifiers,
     balances, or the ledger
  3. Type Safety: Strong typing for IDs prevents mixing report/user IDs
  4. Derivability: VerificationCount is a materialized view of the verifier
     set, updated in the same transaction, never recomputed lazily

SEE ALSO:
  - transition.go: Pure guarded transition decisions
  - lifecycle.go: Atomic orchestration over the Store
  - ledger.go: Award writes and reward queries
*/
package core

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ReportID string
type UserID string
type EntryID string

// =============================================================================
// REPORT STATUS - Monotonic lifecycle
// =============================================================================

type ReportStatus string

const (
	StatusReported  ReportStatus = "Reported"  // Initial state on submit
	StatusVerified  ReportStatus = "Verified"  // Reached via verification threshold
	StatusCollected ReportStatus = "Collected" // Terminal, set by an administrator
)

// VerificationThreshold is the number of distinct community verifications
// that auto-promotes a report from Reported to Verified.
const VerificationThreshold = 3

// =============================================================================
// REWARD TYPES AND POINT AMOUNTS
// =============================================================================

// RewardType matches the transition that triggered the award.
type RewardType string

const (
	RewardReported  RewardType = "Reported"
	RewardVerified  RewardType = "Verified"
	RewardCollected RewardType = "Collected"
)

// Point amounts are fixed per reward type and owned by the lifecycle
// state machine. The ledger never computes amounts itself.
const (
	PointsReported  = 25
	PointsVerified  = 50
	PointsCollected = 100
)

// PointsFor returns the fixed award amount for a reward type.
func PointsFor(t RewardType) int {
	switch t {
	case RewardReported:
		return PointsReported
	case RewardVerified:
		return PointsVerified
	case RewardCollected:
		return PointsCollected
	}
	return 0
}

// =============================================================================
// LOCATION
// =============================================================================

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// =============================================================================
// REPORT - The report entity and its verification set
// =============================================================================

// Report is a user-submitted record of a waste issue at a location.
//
// INVARIANTS (maintained by the lifecycle Service, the only writer):
//   - Status never regresses
//   - VerifierIDs holds distinct users; the reporter never appears
//   - VerificationCount == len(VerifierIDs) at all times
type Report struct {
	ID          ReportID
	Title       string
	Description string
	Location    Location
	ImageURL    string
	ReporterID  UserID
	Status      ReportStatus
	VerifierIDs []UserID
	// Materialized count of VerifierIDs, updated in the same transaction
	// as the set itself.
	VerificationCount int
	CreatedAt         time.Time
}

// HasVerifier reports whether the given user already verified this report.
func (r *Report) HasVerifier(id UserID) bool {
	for _, v := range r.VerifierIDs {
		if v == id {
			return true
		}
	}
	return false
}

// VerificationsNeeded returns how many more distinct verifications are
// required to reach the threshold. Never negative.
func (r *Report) VerificationsNeeded() int {
	n := VerificationThreshold - r.VerificationCount
	if n < 0 {
		return 0
	}
	return n
}

// =============================================================================
// REWARD ENTRY - Append-only ledger row
// =============================================================================

// RewardEntry records a single point award. Entries are append-only:
// never mutated, never deleted. For a given (ReportID, Type) pair at most
// one entry exists — this is the no-double-award guarantee, enforced both
// here and by a uniqueness constraint at the store boundary.
type RewardEntry struct {
	ID          EntryID
	UserID      UserID
	Type        RewardType
	Points      int
	ReportID    ReportID
	Description string
	CreatedAt   time.Time
}

// AwardKey is the uniqueness key for a reward entry. One award per
// (report, type), regardless of how the triggering call raced.
func AwardKey(reportID ReportID, t RewardType) string {
	return string(reportID) + ":" + string(t)
}

// =============================================================================
// REWARD EVENT - Output of a transition decision, not yet applied
// =============================================================================

// RewardEvent is produced by the pure transition functions when a state
// change earns the reporter points. The lifecycle Service applies it by
// appending a ledger entry and incrementing the balance in the same
// atomic unit as the report write.
type RewardEvent struct {
	UserID      UserID
	Type        RewardType
	Points      int
	ReportID    ReportID
	Description string
}

// =============================================================================
// USER - Point-bearing subset
// =============================================================================

// User holds the cached point balance plus the profile fields the
// leaderboard exposes. Points equals the sum of ledger entries for this
// user at all times; only the lifecycle Service increments it, always
// paired with the corresponding ledger append.
type User struct {
	ID        UserID
	Username  string
	Email     string
	Role      string // "user" or "admin"
	Points    int
	CreatedAt time.Time
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IsAdmin reports whether this user holds the administrative capability.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// =============================================================================
// ACTOR - Resolved caller identity
// =============================================================================

// Actor is the authenticated caller as resolved by the request layer.
// The core trusts the Admin capability decision; it never interprets
// credentials itself.
type Actor struct {
	ID    UserID
	Admin bool
}
