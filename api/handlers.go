/*
handlers.go - HTTP API handlers for the waste reporting system

PURPOSE:
  Exposes the waste report lifecycle and reward engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    POST   /api/users                  Register a user
    GET    /api/users/{id}             Get user details

  Reports:
    POST   /api/reports                Submit a waste report (+25 pts)
    GET    /api/reports                List caller's reports (admin: all)
    GET    /api/reports/{id}           Get report details
    PUT    /api/reports/{id}/verify    Community verification
    PUT    /api/reports/{id}/collect   Mark collected (admin only)

  Rewards:
    GET    /api/rewards/history        Caller's reward ledger (last 50)
    GET    /api/rewards/stats          Caller's per-type reward aggregates
    GET    /api/rewards/leaderboard    Top users by points

ARCHITECTURE:
  Handler struct holds all dependencies:
  - service: Report lifecycle orchestration (transactional)
  - ledger: Reward history and statistics reads
  - leaderboard: Points ranking projection

REQUEST FLOW:
  1. Resolve caller identity (RequireIdentity middleware)
  2. Parse HTTP request
  3. Call domain logic
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as a JSON envelope with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing caller identity
  - 403: Self-verification, non-admin collection
  - 404: Report or user not found
  - 409: Conflict (repeat verification, repeat collection, duplicate award)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - identity.go: Caller resolution middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cleanmap/waste-engine/core"
	"github.com/go-chi/chi/v5"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	service     *core.Service
	ledger      *core.Ledger
	leaderboard *core.Leaderboard
}

// NewHandler creates a new handler backed by the given store.
func NewHandler(store core.TxStore) *Handler {
	return &Handler{
		service:     core.NewService(store),
		ledger:      core.NewLedger(store),
		leaderboard: core.NewLeaderboard(store),
	}
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

// CreateUser registers a user.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), core.UserID(req.ID), req.Username, req.Email, req.Role)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{Success: true, User: toUserDTO(*user)})
}

// GetUser returns a user's profile and current balance.
// GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.service.GetUser(r.Context(), core.UserID(id))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: toUserDTO(*user)})
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// SubmitReport creates a waste report and awards the submission reward.
// POST /api/reports
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.service.Submit(r.Context(), core.SubmitInput{
		ReporterID:  caller.ID,
		Title:       req.Title,
		Description: req.Description,
		Location:    core.Location{Lat: req.Location.Lat, Lng: req.Location.Lng},
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{
		Success:        true,
		Message:        fmt.Sprintf("Report submitted successfully! You earned %d points.", result.PointsAwarded),
		Report:         toReportDTO(result.Report),
		PointsAwarded:  result.PointsAwarded,
		NewTotalPoints: result.NewTotalPoints,
	})
}

// ListReports returns the caller's reports, newest first. Admins see all
// reports in the system.
// GET /api/reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var (
		reports []core.Report
		err     error
	)
	if caller.IsAdmin() {
		reports, err = h.service.ListAll(r.Context())
	} else {
		reports, err = h.service.ListForUser(r.Context(), caller.ID)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]ReportDTO, len(reports))
	for i, rep := range reports {
		dtos[i] = toReportDTO(rep)
	}

	writeJSON(w, http.StatusOK, ReportListResponse{Success: true, Reports: dtos, Count: len(dtos)})
}

// GetReport returns one report. Visible to its reporter and to admins.
// GET /api/reports/{id}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	id := core.ReportID(chi.URLParam(r, "id"))
	report, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if report.ReporterID != caller.ID && !caller.IsAdmin() {
		writeError(w, http.StatusForbidden, "Not authorized to view this report", nil)
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{Success: true, Report: toReportDTO(*report)})
}

// VerifyReport records a community verification. When the third distinct
// verifier confirms the report, the reporter earns the verification reward
// and the report moves to the verified status.
// PUT /api/reports/{id}/verify
func (h *Handler) VerifyReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	id := core.ReportID(chi.URLParam(r, "id"))
	result, err := h.service.Verify(r.Context(), id, caller.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := VerifyResponse{
		Success: true,
		Report:  toReportDTO(result.Report),
	}
	if result.ThresholdReached {
		resp.Message = "Report verified! The reporter has been awarded points."
		resp.PointsAwardedToReporter = intPtr(result.PointsAwardedToReporter)
	} else {
		resp.Message = fmt.Sprintf("Verification recorded. %d more needed.", result.VerificationsNeeded)
		resp.VerificationsNeeded = intPtr(result.VerificationsNeeded)
	}

	writeJSON(w, http.StatusOK, resp)
}

// CollectReport marks a report as collected and awards the collection
// reward to the reporter. Admin only.
// PUT /api/reports/{id}/collect
func (h *Handler) CollectReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	id := core.ReportID(chi.URLParam(r, "id"))
	result, err := h.service.Collect(r.Context(), id, core.Actor{ID: caller.ID, Admin: caller.IsAdmin()})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CollectResponse{
		Success:                 true,
		Message:                 fmt.Sprintf("Report marked as collected. Reporter awarded %d points.", result.PointsAwarded),
		Report:                  toReportDTO(result.Report),
		PointsAwardedToReporter: result.PointsAwarded,
	})
}

// =============================================================================
// REWARD ENDPOINTS
// =============================================================================

// RewardHistory returns the caller's most recent ledger entries.
// GET /api/rewards/history
func (h *Handler) RewardHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	entries, err := h.ledger.History(r.Context(), caller.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]RewardDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toRewardDTO(e)
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, Rewards: dtos, TotalRewards: len(dtos)})
}

// RewardStats returns the caller's per-type reward aggregates.
// GET /api/rewards/stats
func (h *Handler) RewardStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	stats, err := h.ledger.StatsByType(r.Context(), caller.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Stable output order: one row per known reward type.
	order := []core.RewardType{core.RewardReported, core.RewardVerified, core.RewardCollected}
	dtos := make([]TypeStatsDTO, 0, len(order))
	for _, t := range order {
		s, present := stats.ByType[t]
		if !present {
			continue
		}
		dtos = append(dtos, TypeStatsDTO{Type: string(t), Count: s.Count, TotalPoints: s.TotalPoints})
	}

	writeJSON(w, http.StatusOK, StatsResponse{Success: true, Stats: dtos, TotalPoints: stats.TotalPoints})
}

// Leaderboard returns the top users by points.
// GET /api/rewards/leaderboard?limit=N
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := core.LeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
			return
		}
		limit = n
	}

	rows, err := h.leaderboard.TopUsers(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]LeaderboardRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = LeaderboardRowDTO{
			Rank:         row.Rank,
			ID:           string(row.UserID),
			Username:     row.Username,
			Points:       row.Points,
			ReportsCount: row.ReportsCount,
			Role:         row.Role,
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Success: true, Leaderboard: dtos})
}

// =============================================================================
// ERROR MAPPING AND RESPONSE HELPERS
// =============================================================================

// writeServiceError translates a domain error into an HTTP response.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrSelfVerification):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, core.ErrAlreadyVerified),
		errors.Is(err, core.ErrAlreadyCollected),
		errors.Is(err, core.ErrDuplicateAward):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// writeJSON writes data as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes the uniform error envelope.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func intPtr(n int) *int {
	return &n
}
