/*
ledger.go - Reward ledger queries and the award write path

PURPOSE:
  The ledger is the immutable source of truth for point awards. This file
  holds the read API (history, per-type stats) and the single write path,
  recordAward, which is private to the package: only the lifecycle Service
  may append entries, and it always pairs the append with the matching
  balance increment inside one transaction.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no delete. Ever.
  2. ONE AWARD PER (REPORT, TYPE): checked here and again by the store's
     uniqueness constraint, so a racing double-write loses at commit.
  3. BALANCE CONSISTENCY: user.Points always equals the sum of the user's
     entries, because the two writes share a transaction.
*/
package core

import (
	"context"
	"time"
)

// HistoryLimit caps reward history responses to the most recent entries.
const HistoryLimit = 50

// Ledger exposes read access to the reward log. Writes go through the
// lifecycle Service only.
type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// History returns a user's award entries, most recent first, bounded to
// the last HistoryLimit entries.
func (l *Ledger) History(ctx context.Context, userID UserID) ([]RewardEntry, error) {
	return l.Store.AwardsByUser(ctx, userID, HistoryLimit)
}

// TypeStats aggregates a user's awards of one type.
type TypeStats struct {
	Count       int
	TotalPoints int
}

// RewardStats is the per-type breakdown plus the grand total.
type RewardStats struct {
	ByType      map[RewardType]TypeStats
	TotalPoints int
}

// StatsByType aggregates all of a user's ledger entries. Computed from
// the ledger, not the cached balance, so it doubles as a drift check.
func (l *Ledger) StatsByType(ctx context.Context, userID UserID) (RewardStats, error) {
	entries, err := l.Store.AwardsByUser(ctx, userID, 0)
	if err != nil {
		return RewardStats{}, err
	}

	stats := RewardStats{ByType: make(map[RewardType]TypeStats)}
	for _, e := range entries {
		s := stats.ByType[e.Type]
		s.Count++
		s.TotalPoints += e.Points
		stats.ByType[e.Type] = s
		stats.TotalPoints += e.Points
	}
	return stats, nil
}

// recordAward appends the ledger entry for a reward event and increments
// the recipient's cached balance. Must be called on a transactional Store
// view, in the same unit as the report write that triggered the event.
//
// The AwardExists pre-check keeps the common duplicate path cheap; the
// store's unique constraint is what makes the guarantee hold under races.
func recordAward(ctx context.Context, st Store, ev RewardEvent, at time.Time) (RewardEntry, error) {
	exists, err := st.AwardExists(ctx, ev.ReportID, ev.Type)
	if err != nil {
		return RewardEntry{}, err
	}
	if exists {
		return RewardEntry{}, ErrDuplicateAward
	}

	entry := RewardEntry{
		ID:          EntryID(newID("rw")),
		UserID:      ev.UserID,
		Type:        ev.Type,
		Points:      ev.Points,
		ReportID:    ev.ReportID,
		Description: ev.Description,
		CreatedAt:   at,
	}
	if err := st.AppendAward(ctx, entry); err != nil {
		return RewardEntry{}, err
	}
	if err := st.AddPoints(ctx, ev.UserID, ev.Points); err != nil {
		return RewardEntry{}, err
	}
	return entry, nil
}
