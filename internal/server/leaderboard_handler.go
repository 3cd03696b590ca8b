package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// LeaderboardProvider is what the handler needs from the score store.
type LeaderboardProvider interface {
	Enabled() bool
	Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves GET /v1/leaderboard.
type LeaderboardHandler struct {
	lb   LeaderboardProvider
	topN int
	log  *zap.Logger
}

func NewLeaderboardHandler(lb LeaderboardProvider, topN int, logger *zap.Logger) *LeaderboardHandler {
	if topN <= 0 {
		topN = 10
	}
	return &LeaderboardHandler{lb: lb, topN: topN, log: logger.Named("leaderboard-api")}
}

func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.lb == nil || !h.lb.Enabled() {
		http.Error(w, "leaderboard not configured", http.StatusNotFound)
		return
	}

	entries, err := h.lb.Top(r.Context(), h.topN)
	if err != nil {
		h.log.Error("failed to fetch leaderboard", zap.Error(err))
		http.Error(w, "failed to fetch leaderboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}
