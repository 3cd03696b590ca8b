package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// Failure-chance curve. The outcome is decided here, before the narrator
// ever hears about the run; the narrator only plays the matching script.
const (
	failBase          = 0.15
	failPerAggression = 0.05
	failPerFailed     = 0.02
	failPerShaking    = 0.10
	failPerDeployment = 0.01
	failFloor         = 0.05
	failCeiling       = 0.40
)

// RequestDeployment starts a deployment session. Preconditions: all three
// slots filled, no session live. A violation is a local rejection with no
// state change and nothing sent.
func (e *Engine) RequestDeployment() error {
	e.mu.Lock()
	if e.deployLive {
		e.mu.Unlock()
		e.log.Info("deployment rejected: session already live")
		return ErrDeploymentInFlight
	}
	if !e.allFilledLocked() {
		e.mu.Unlock()
		e.log.Info("deployment rejected: pipeline incomplete")
		return ErrPipelineNotReady
	}

	p := e.failureChanceLocked()
	willFail := e.dice.Float64() < p
	req := domain.StartDeployment{
		Timestamp:     e.clock.Now(),
		ForceFailure:  willFail,
		FailureChance: p,
	}
	e.deployLive = true
	e.log.Info("deployment requested",
		zap.Float64("failure_chance", p), zap.Bool("force_failure", willFail))
	e.mu.Unlock()

	if err := e.narrator.StartDeployment(req); err != nil {
		// The request never reached the narrator, so no session ran: unwind
		// instead of charging the player with a failure.
		e.mu.Lock()
		e.deployLive = false
		e.mu.Unlock()
		e.log.Warn("deployment request failed", zap.Error(err))
		return fmt.Errorf("start deployment: %w", err)
	}
	return nil
}

func (e *Engine) failureChanceLocked() float64 {
	agg := e.aggressionLocked()
	p := failBase +
		float64(agg-1)*failPerAggression +
		float64(e.stats.FailedDeployments)*failPerFailed +
		float64(e.warnedCountLocked())*failPerShaking -
		float64(e.stats.Deployments)*failPerDeployment
	if p < failFloor {
		p = failFloor
	}
	if p > failCeiling {
		p = failCeiling
	}
	return p
}

// HandleLog consumes one streamed narrator line. Display only; no game
// state moves.
func (e *Engine) HandleLog(entry domain.DeploymentLog) {
	e.mu.Lock()
	e.displayLog = append(e.displayLog, entry)
	if len(e.displayLog) > displayLogCap {
		e.displayLog = e.displayLog[len(e.displayLog)-displayLogCap:]
	}
	e.mu.Unlock()

	e.listener.DeploymentLog(entry)
}

// HandleComplete consumes the terminal event of the live session: scores
// it, re-opens scheduling, and schedules the delayed pipeline reset.
func (e *Engine) HandleComplete(outcome domain.DeploymentComplete) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.deployLive {
		e.log.Warn("completion event with no live session; dropped")
		return
	}
	e.applyOutcomeLocked(outcome)
}

// HandleDisconnect reports a connection loss. Mid-session it counts as a
// failed deployment so the game never hangs on a dead narrator; outside a
// session it is just noise.
func (e *Engine) HandleDisconnect(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.deployLive {
		e.log.Debug("narrator connection lost while idle", zap.Error(err))
		return
	}
	e.log.Warn("narrator connection lost mid-deployment; treating as failure",
		zap.Error(err))
	e.applyOutcomeLocked(domain.DeploymentComplete{
		Success:   false,
		Timestamp: e.clock.Now(),
	})
}

func (e *Engine) applyOutcomeLocked(outcome domain.DeploymentComplete) {
	e.deployLive = false

	if outcome.Success {
		bonus := 0
		if e.stats.Streak >= streakBonusAt {
			bonus = scoreStreakBonus
		}
		e.stats.Score += scoreDeploySuccess + bonus
		e.stats.Deployments++
		e.stats.Streak++
		e.metrics.Deployments.WithLabelValues("success").Inc()
	} else {
		e.stats.FailedDeployments++
		e.stats.Score -= scoreDeployPenalty
		if e.stats.Score < 0 {
			e.stats.Score = 0
		}
		e.stats.Streak = 0
		e.metrics.Deployments.WithLabelValues("failure").Inc()
	}
	e.metrics.Score.Set(float64(e.stats.Score))

	e.log.Info("deployment finished",
		zap.Bool("success", outcome.Success),
		zap.Int("score", e.stats.Score),
		zap.Int("streak", e.stats.Streak))
	e.listener.DeploymentFinished(outcome, e.statsLocked())

	e.clock.AfterFunc(postDeployReset, e.resetPipeline)
}

// resetPipeline empties every slot and clears any leftover warnings. The
// score sheet is untouched; scheduling re-arms itself once slots fill
// again.
func (e *Engine) resetPipeline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.slots {
		s.filled = false
		s.phase = domain.PhaseStable
		s.warnGen++
	}
	e.log.Info("pipeline reset")
	e.listener.PipelineReset()
}
