package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusd/go/internal/focusday"
	"github.com/mcdev12/focusd/go/internal/ledger"
	"github.com/mcdev12/focusd/go/internal/models"
)

// FocusApp defines what the service layer needs from the focusday application
type FocusApp interface {
	GetTodayProgress(ctx context.Context, userID uuid.UUID) (*focusday.TodayProgress, error)
	SaveActiveProgress(ctx context.Context, userID uuid.UUID, req focusday.SaveActiveProgressRequest) (*focusday.SaveActiveProgressResult, error)
	CompleteSession(ctx context.Context, userID uuid.UUID, req focusday.CompleteSessionRequest) (*focusday.CompleteSessionResult, error)
}

// PointsApp defines what the service layer needs from the ledger application
type PointsApp interface {
	GetPointsSummary(ctx context.Context, userID uuid.UUID) (*models.PointsSummary, error)
	GetLedgerHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error)
	AwardTaskCompletion(ctx context.Context, userID uuid.UUID, taskID string) (*models.PointTransaction, bool, error)
	ReverseTaskCompletion(ctx context.Context, userID uuid.UUID, taskID string) (*models.PointTransaction, error)
}

// Service exposes the engine's operations as a JSON HTTP API.
type Service struct {
	focus  FocusApp
	points PointsApp
}

// NewService creates a new gateway service
func NewService(focus FocusApp, points PointsApp) *Service {
	return &Service{
		focus:  focus,
		points: points,
	}
}

// RegisterRoutes registers API routes with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/focus/today", s.handleGetTodayProgress)
	mux.HandleFunc("PUT /api/focus/active", s.handleSaveActiveProgress)
	mux.HandleFunc("POST /api/focus/complete", s.handleCompleteSession)
	mux.HandleFunc("GET /api/points/summary", s.handleGetPointsSummary)
	mux.HandleFunc("GET /api/points/history", s.handleGetLedgerHistory)
	mux.HandleFunc("POST /api/points/task-completed", s.handleTaskCompleted)
	mux.HandleFunc("POST /api/points/task-uncompleted", s.handleTaskUncompleted)
}

func (s *Service) handleGetTodayProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	progress, err := s.focus.GetTodayProgress(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Service) handleSaveActiveProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req focusday.SaveActiveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.focus.SaveActiveProgress(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req focusday.CompleteSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.focus.CompleteSession(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleGetPointsSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := s.points.GetPointsSummary(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Service) handleGetLedgerHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	history, err := s.points.GetLedgerHistory(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": history})
}

type taskRequest struct {
	TaskID string `json:"task_id"`
}

func (s *Service) handleTaskCompleted(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	tx, already, err := s.points.AwardTaskCompletion(r.Context(), userID, req.TaskID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction":     tx,
		"already_awarded": already,
	})
}

func (s *Service) handleTaskUncompleted(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	tx, err := s.points.ReverseTaskCompletion(r.Context(), userID, req.TaskID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": tx})
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, focusday.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrCooldownActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrTransactionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
