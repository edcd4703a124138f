package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/innerlight-app/innerlight-progress/internal/application/ledger"
	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
)

const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// ROOT & HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"service": "innerlight-progress",
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, r, http.StatusOK, map[string]bool{"healthy": true})
		return
	}

	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]bool{"alive": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS READS
// ══════════════════════════════════════════════════════════════════════════════

// progressView is the read model served for a user's progress.
type progressView struct {
	UserID          string  `json:"user_id"`
	TotalXP         int64   `json:"total_xp"`
	Level           int     `json:"level"`
	CurrentLevelXP  int64   `json:"current_level_xp"`
	NextLevelXP     int64   `json:"next_level_xp"`
	ProgressPercent float64 `json:"progress_percent"`
	Rank            string  `json:"rank"`
	RankIcon        string  `json:"rank_icon"`
	StreakCount     int     `json:"streak_count"`
	LongestStreak   int     `json:"longest_streak"`
	Achievements    int     `json:"achievements"`
	SectionsVisited int     `json:"sections_visited"`
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}

	record, err := s.deps.Ledger.Snapshot(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err, "failed to load progress")
		return
	}

	writeJSON(w, r, http.StatusOK, progressView{
		UserID:          record.UserID.String(),
		TotalXP:         record.TotalXP.Int64(),
		Level:           record.Level.Int(),
		CurrentLevelXP:  record.CurrentLevelXP.Int64(),
		NextLevelXP:     record.NextLevelXP().Int64(),
		ProgressPercent: record.LevelProgressPercent(),
		Rank:            record.Rank().String(),
		RankIcon:        record.Rank().Icon(),
		StreakCount:     record.Streak.Count,
		LongestStreak:   record.Streak.Longest,
		Achievements:    len(record.Achievements),
		SectionsVisited: record.SectionsExplored(),
	})
}

func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}

	unlocked, err := s.deps.Ledger.Achievements(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err, "failed to load achievements")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"achievements": unlocked})
}

func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}

	streak, err := s.deps.Ledger.Streak(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err, "failed to load streak")
		return
	}
	writeJSON(w, r, http.StatusOK, streak)
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}
	section := progress.SectionKey(r.PathValue("section"))

	sp, err := s.deps.Ledger.SectionProgress(r.Context(), userID, section)
	if err != nil {
		s.writeServiceError(w, err, "failed to load section progress")
		return
	}
	writeJSON(w, r, http.StatusOK, sp)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"achievements": s.deps.Ledger.Catalog()})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Leaderboard == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard not configured")
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	entries, err := s.deps.Leaderboard.Top(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to get leaderboard", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get leaderboard")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	if s.deps.Leaderboard == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard not configured")
		return
	}
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}

	position, err := s.deps.Leaderboard.Position(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "User not on the leaderboard")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"user_id":  userID.String(),
		"position": position,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITES
// ══════════════════════════════════════════════════════════════════════════════

type awardXPRequest struct {
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason"`
	Section string `json:"section,omitempty"`
}

type awardXPResponse struct {
	Amount               int64    `json:"amount"`
	LeveledUp            bool     `json:"leveled_up"`
	Level                int      `json:"level"`
	Rank                 string   `json:"rank"`
	RankIcon             string   `json:"rank_icon"`
	UnlockedAchievements []string `json:"unlocked_achievements,omitempty"`
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}
	var req awardXPRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Ledger.AwardXP(r.Context(), userID, req.Amount, req.Reason, progress.SectionKey(req.Section))
	if err != nil && !shared.IsRetryable(err) {
		s.writeServiceError(w, err, "failed to award XP")
		return
	}

	status := http.StatusOK
	if err != nil {
		// Persisted state is behind; the award itself is applied.
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, awardResponse(result))
}

func awardResponse(result ledger.AwardResult) awardXPResponse {
	return awardXPResponse{
		Amount:               result.Amount.Int64(),
		LeveledUp:            result.LeveledUp,
		Level:                result.NewLevel.Int(),
		Rank:                 result.NewRank.String(),
		RankIcon:             result.NewRank.Icon(),
		UnlockedAchievements: result.UnlockedAchievements,
	}
}

type logActivityRequest struct {
	Type    string         `json:"type"`
	Section string         `json:"section"`
	Data    map[string]any `json:"data,omitempty"`
}

func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}
	var req logActivityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Ledger.LogActivity(r.Context(), userID, progress.ActivityType(req.Type), progress.SectionKey(req.Section), req.Data)
	if err != nil && !shared.IsRetryable(err) {
		s.writeServiceError(w, err, "failed to log activity")
		return
	}

	status := http.StatusCreated
	if err != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, map[string]any{
		"entry_id": result.EntryID,
		"award":    awardResponse(result.Award),
	})
}

type checkInResponse struct {
	Started       bool   `json:"started"`
	Continued     bool   `json:"continued"`
	Broken        bool   `json:"broken"`
	PreviousCount int    `json:"previous_count,omitempty"`
	Count         int    `json:"count"`
	BonusXP       int64  `json:"bonus_xp"`
	Rank          string `json:"rank,omitempty"`
	RankIcon      string `json:"rank_icon,omitempty"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Ledger.RecordDailyCheckIn(r.Context(), userID)
	if err != nil && !shared.IsRetryable(err) {
		s.writeServiceError(w, err, "failed to record check-in")
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, checkInResponse{
		Started:       result.Update.Started,
		Continued:     result.Update.Continued,
		Broken:        result.Update.Broken,
		PreviousCount: result.Update.PreviousCount,
		Count:         result.Count,
		BonusXP:       result.Update.BonusXP.Int64(),
		Rank:          result.Award.NewRank.String(),
		RankIcon:      result.Award.NewRank.Icon(),
	})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}
	contentID := r.PathValue("content")

	if err := s.deps.Ledger.AddFavorite(r.Context(), userID, contentID); err != nil && !shared.IsRetryable(err) {
		s.writeServiceError(w, err, "failed to add favorite")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"content_id": contentID})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}
	contentID := r.PathValue("content")

	if err := s.deps.Ledger.RemoveFavorite(r.Context(), userID, contentID); err != nil && !shared.IsRetryable(err) {
		s.writeServiceError(w, err, "failed to remove favorite")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"content_id": contentID})
}

type setPreferenceRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	var req setPreferenceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.deps.Ledger.SetPreference(r.Context(), userID, key, req.Value); err != nil && !shared.IsRetryable(err) {
		s.writeServiceError(w, err, "failed to set preference")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}

	if err := s.deps.Ledger.LoadUser(r.Context(), userID); err != nil {
		s.writeServiceError(w, err, "failed to load user")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"user_id": userID.String()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromPath(w, r)
	if !ok {
		return
	}

	if err := s.deps.Ledger.LogoutUser(r.Context(), userID); err != nil {
		s.writeServiceError(w, err, "failed to log out user")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"user_id": userID.String()})
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HANDLER HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) userIDFromPath(w http.ResponseWriter, r *http.Request) (shared.UserID, bool) {
	userID, err := shared.NewUserID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return "", false
	}
	return userID, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return false
	}
	return true
}

// writeServiceError maps ledger errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case shared.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", message)
	case shared.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", "Concurrent modification, retry the request")
	case errors.Is(err, shared.ErrInvalidState):
		writeError(w, http.StatusServiceUnavailable, "shutting_down", "Service is shutting down")
	case shared.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "Persistence temporarily unavailable")
	default:
		s.logger.Error(message, logger.Err(err))
		writeError(w, http.StatusInternalServerError, "internal_error", message)
	}
}
