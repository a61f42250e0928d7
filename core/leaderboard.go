/*
leaderboard.go - Ranked projection over user balances

A pure read transformation: not materialized, not cached, recomputed per
call from current balances and report ownership counts. Ties keep the
store's insertion order, so equal scores rank deterministically.
*/
package core

import (
	"context"
	"sort"
)

// LeaderboardLimit caps how many rows a single call may request.
const LeaderboardLimit = 50

// LeaderboardRow is one ranked user.
type LeaderboardRow struct {
	Rank         int
	UserID       UserID
	Username     string
	Role         string
	Points       int
	ReportsCount int
}

// Leaderboard projects users into a points ranking.
type Leaderboard struct {
	Store Store
}

func NewLeaderboard(store Store) *Leaderboard {
	return &Leaderboard{Store: store}
}

// TopUsers returns up to limit users ordered by points descending, rank
// assigned by 1-based position. A non-positive or oversized limit is
// clamped to LeaderboardLimit.
func (lb *Leaderboard) TopUsers(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > LeaderboardLimit {
		limit = LeaderboardLimit
	}

	users, err := lb.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	// Stable sort preserves insertion order between equal scores.
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Points > users[j].Points
	})
	if len(users) > limit {
		users = users[:limit]
	}

	rows := make([]LeaderboardRow, 0, len(users))
	for i, u := range users {
		count, err := lb.Store.CountReportsByReporter(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, LeaderboardRow{
			Rank:         i + 1,
			UserID:       u.ID,
			Username:     u.Username,
			Role:         u.Role,
			Points:       u.Points,
			ReportsCount: count,
		})
	}
	return rows, nil
}
