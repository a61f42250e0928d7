/*
transition.go - Pure guarded state-machine transitions

PURPOSE:
  Each transition is a pure function from the pre-state to the post-state
  plus an optional RewardEvent. No store access, no clocks beyond what the
  caller supplies — so the "exactly once" reward guarantee is testable in
  isolation.

THE THRESHOLD GUARD:
  The Verified reward fires on the exact verification that moves the count
  from 2 to 3, and only while the status is still Reported. The pre-state
  status guard is what prevents a re-award on later verifications: once the
  status has flipped, `status == Reported` can never hold again.

STATES:
  Reported → Verified    via the third distinct verification
  Reported → Collected   via admin action (verification not required)
  Verified → Collected   via admin action
  No transition ever moves backward.
*/
package core

// reward descriptions carried into the ledger, matching the triggering
// transition.
const (
	descReported  = "Points awarded for reporting waste issue"
	descVerified  = "Points awarded for report verification by community"
	descCollected = "Points awarded for waste collection completion"
)

// ApplyVerification decides the outcome of one verification attempt.
//
// Rejections, each a distinct error:
//   - verifier is the reporter        → ErrSelfVerification
//   - verifier already in the set     → ErrAlreadyVerified
//
// On success the returned report has the verifier added and the count
// incremented. If this verification crosses the threshold while the status
// is still Reported, the status flips to Verified and a RewardEvent for
// the reporter is returned; otherwise the event is nil. Verifications past
// the threshold are still recorded but never transition or reward.
func ApplyVerification(r Report, verifier UserID) (Report, *RewardEvent, error) {
	if verifier == r.ReporterID {
		return r, nil, ErrSelfVerification
	}
	if r.HasVerifier(verifier) {
		return r, nil, ErrAlreadyVerified
	}

	// Copy-on-write so the caller's pre-state stays untouched.
	verifiers := make([]UserID, len(r.VerifierIDs), len(r.VerifierIDs)+1)
	copy(verifiers, r.VerifierIDs)
	r.VerifierIDs = append(verifiers, verifier)
	r.VerificationCount++

	if r.VerificationCount == VerificationThreshold && r.Status == StatusReported {
		r.Status = StatusVerified
		return r, &RewardEvent{
			UserID:      r.ReporterID,
			Type:        RewardVerified,
			Points:      PointsVerified,
			ReportID:    r.ID,
			Description: descVerified,
		}, nil
	}

	return r, nil, nil
}

// ApplyCollection decides the outcome of an administrative collect.
// Collection is legal from Reported or Verified — prior verification is
// intentionally not required. Repeat collection is rejected.
//
// The caller is responsible for the capability check; this function only
// guards the state machine.
func ApplyCollection(r Report) (Report, *RewardEvent, error) {
	if r.Status == StatusCollected {
		return r, nil, ErrAlreadyCollected
	}

	r.Status = StatusCollected
	return r, &RewardEvent{
		UserID:      r.ReporterID,
		Type:        RewardCollected,
		Points:      PointsCollected,
		ReportID:    r.ID,
		Description: descCollected,
	}, nil
}

// SubmissionReward is the award event for a newly created report.
func SubmissionReward(r Report) RewardEvent {
	return RewardEvent{
		UserID:      r.ReporterID,
		Type:        RewardReported,
		Points:      PointsReported,
		ReportID:    r.ID,
		Description: descReported,
	}
}
