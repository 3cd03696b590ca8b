package domain

// GameStats is the per-session score sheet. Score never goes below zero;
// the counters only grow.
type GameStats struct {
	Score             int   `json:"score"`
	Deployments       int   `json:"deployments"`
	FailedDeployments int   `json:"failed_deployments"`
	Sabotages         int   `json:"sabotages"`
	Streak            int   `json:"streak"`
	TimeSpentSec      int64 `json:"time_spent_sec"`
}

// LeaderboardEntry is one row of the high-score table.
type LeaderboardEntry struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}
