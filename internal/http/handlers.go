package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"gmscanner/internal/backend"
	"gmscanner/internal/core"
	applog "gmscanner/internal/log"
)

type scanRequest struct {
	TeamID  string `json:"teamId"`
	TokenID string `json:"tokenId"`
}

type scanResponse struct {
	Transaction core.Transaction      `json:"transaction"`
	Status      core.Status           `json:"status"`
	TeamScore   core.TeamScore        `json:"teamScore"`
	NewGroups   []core.CompletedGroup `json:"newGroups,omitempty"`
}

type adjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type sessionRequest struct {
	Name  string   `json:"name"`
	Teams []string `json:"teams"`
}

type modeBody struct {
	Mode core.Mode `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports 503 until the strategy can serve authoritative state.
// A networked station is not ready before its first full sync.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	backendCheck := "ok"
	if !s.strategy.IsReady() {
		status, code = "not_ready", http.StatusServiceUnavailable
		backendCheck = "waiting for state"
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks": map[string]any{
			"backend": backendCheck,
			"rate_limiter": map[string]any{
				"active_clients": s.limiter.activeClients(),
				"rejected":       s.limiter.rejected(),
			},
		},
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.scans.ProcessScan(r.Context(), req.TeamID, req.TokenID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scanResponse{
		Transaction: res.Transaction,
		Status:      res.Status,
		TeamScore:   res.TeamScore,
		NewGroups:   res.NewGroups,
	})
}

// handleListTransactions returns the session history, newest last. An
// optional teamId query parameter filters to one team.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := s.strategy.Transactions()
	if team := strings.TrimSpace(r.URL.Query().Get("teamId")); team != "" {
		filtered := txs[:0:0]
		for _, tx := range txs {
			if tx.TeamID == team {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.strategy.RemoveTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		applog.NewFields().
			WithOperation(applog.OpDelete).
			WithTransaction(removed.ID, removed.TeamID, removed.TokenID).
			ToSlice()...)
	writeJSON(w, http.StatusOK, removed)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	scores := s.scores.TeamScores()
	if scores == nil {
		scores = []core.TeamScore{}
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.strategy.Stats())
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	teamID := r.PathValue("id")
	score, err := s.strategy.AdjustTeamScore(r.Context(), teamID, req.Delta, strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Team score adjusted",
		applog.FieldOperation, applog.OpAdjust,
		applog.FieldTeamID, teamID,
		"delta", req.Delta,
		applog.FieldScore, score.Score)
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.strategy.Session()
	if sess == nil {
		writeError(w, r, backend.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.strategy.CreateSession(r.Context(), strings.TrimSpace(req.Name), req.Teams)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Session created",
		applog.FieldOperation, applog.OpSession,
		applog.FieldSessionID, sess.ID,
		"teams", len(sess.Teams))
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSessionMove(move func(ctx context.Context) (*core.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := move(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Session status changed",
			applog.FieldOperation, applog.OpSession,
			applog.FieldSessionID, sess.ID,
			"status", sess.Status)
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modeBody{Mode: s.scans.Mode()})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.scans.SetMode(req.Mode); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modeBody{Mode: s.scans.Mode()})
}
