/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

Field names are camelCase, matching the contract the existing clients of
this system already consume (success/message envelopes, pointsAwarded,
newTotalPoints, verificationsNeeded).
*/
package api

import (
	"time"

	"github.com/cleanmap/waste-engine/core"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateUserRequest registers a point-bearing user.
type CreateUserRequest struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// CreateReportRequest is the submit payload.
type CreateReportRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    LocationDTO `json:"location"`
	ImageURL    string      `json:"imageUrl"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ReportDTO represents a report in API responses.
type ReportDTO struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Location          LocationDTO `json:"location"`
	ImageURL          string      `json:"imageUrl"`
	ReporterID        string      `json:"reporterId"`
	Status            string      `json:"status"`
	VerificationCount int         `json:"verificationCount"`
	VerifiedBy        []string    `json:"verifiedBy"`
	CreatedAt         string      `json:"createdAt"`
}

func toReportDTO(r core.Report) ReportDTO {
	verifiedBy := make([]string, len(r.VerifierIDs))
	for i, v := range r.VerifierIDs {
		verifiedBy[i] = string(v)
	}
	return ReportDTO{
		ID:                string(r.ID),
		Title:             r.Title,
		Description:       r.Description,
		Location:          LocationDTO{Lat: r.Location.Lat, Lng: r.Location.Lng},
		ImageURL:          r.ImageURL,
		ReporterID:        string(r.ReporterID),
		Status:            string(r.Status),
		VerificationCount: r.VerificationCount,
		VerifiedBy:        verifiedBy,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
	}
}

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	Points    int    `json:"points"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func toUserDTO(u core.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Points:    u.Points,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// RewardDTO represents a ledger entry in API responses.
type RewardDTO struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	PointsAwarded int    `json:"pointsAwarded"`
	ReportID      string `json:"reportId"`
	Description   string `json:"description,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func toRewardDTO(e core.RewardEntry) RewardDTO {
	return RewardDTO{
		ID:            string(e.ID),
		Type:          string(e.Type),
		PointsAwarded: e.Points,
		ReportID:      string(e.ReportID),
		Description:   e.Description,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// RESPONSE WRAPPERS
// =============================================================================

// SubmitResponse is the payload for a successful report submission.
type SubmitResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Report         ReportDTO `json:"report"`
	PointsAwarded  int       `json:"pointsAwarded"`
	NewTotalPoints int       `json:"newTotalPoints"`
}

// VerifyResponse is the payload for a successful verification. Exactly one
// of PointsAwardedToReporter / VerificationsNeeded is present, depending on
// whether this call crossed the threshold.
type VerifyResponse struct {
	Success                 bool      `json:"success"`
	Message                 string    `json:"message"`
	Report                  ReportDTO `json:"report"`
	PointsAwardedToReporter *int      `json:"pointsAwardedToReporter,omitempty"`
	VerificationsNeeded     *int      `json:"verificationsNeeded,omitempty"`
}

// CollectResponse is the payload for a successful collection.
type CollectResponse struct {
	Success                 bool      `json:"success"`
	Message                 string    `json:"message"`
	Report                  ReportDTO `json:"report"`
	PointsAwardedToReporter int       `json:"pointsAwardedToReporter"`
}

// ReportListResponse wraps list reads.
type ReportListResponse struct {
	Success bool        `json:"success"`
	Reports []ReportDTO `json:"reports"`
	Count   int         `json:"count"`
}

// ReportResponse wraps a single report read.
type ReportResponse struct {
	Success bool      `json:"success"`
	Report  ReportDTO `json:"report"`
}

// HistoryResponse wraps the caller's reward history.
type HistoryResponse struct {
	Success      bool        `json:"success"`
	Rewards      []RewardDTO `json:"rewards"`
	TotalRewards int         `json:"totalRewards"`
}

// TypeStatsDTO is one per-type aggregate in the stats response.
type TypeStatsDTO struct {
	Type        string `json:"type"`
	Count       int    `json:"count"`
	TotalPoints int    `json:"totalPoints"`
}

// StatsResponse wraps the caller's per-type reward statistics.
type StatsResponse struct {
	Success     bool           `json:"success"`
	Stats       []TypeStatsDTO `json:"stats"`
	TotalPoints int            `json:"totalPoints"`
}

// LeaderboardRowDTO is one ranked user.
type LeaderboardRowDTO struct {
	Rank         int    `json:"rank"`
	ID           string `json:"id"`
	Username     string `json:"username"`
	Points       int    `json:"points"`
	ReportsCount int    `json:"reportsCount"`
	Role         string `json:"role"`
}

// LeaderboardResponse wraps the ranking.
type LeaderboardResponse struct {
	Success     bool                `json:"success"`
	Leaderboard []LeaderboardRowDTO `json:"leaderboard"`
}

// UserResponse wraps user reads and creation.
type UserResponse struct {
	Success bool    `json:"success"`
	User    UserDTO `json:"user"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
