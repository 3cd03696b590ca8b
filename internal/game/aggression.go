package game

import "time"

const (
	minAggression = 1
	maxAggression = 5
	// One level of aggression per minute of session time.
	aggressionRamp = time.Minute
)

// aggressionAt maps elapsed session time to a level in [1,5]. The level is
// computed on read, never ticked, so it costs no timer.
func aggressionAt(elapsed time.Duration) int {
	if elapsed < 0 {
		return minAggression
	}
	lvl := minAggression + int(elapsed/aggressionRamp)
	if lvl > maxAggression {
		return maxAggression
	}
	return lvl
}
