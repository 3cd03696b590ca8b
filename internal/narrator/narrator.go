// Package narrator plays canned deployment scripts over an event sink at a
// fixed cadence. It is stateless between runs: each Run is independent, and
// the outcome is dictated entirely by the request's ForceFailure flag.
package narrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// DefaultCadence is the spacing between streamed log lines.
const DefaultCadence = 800 * time.Millisecond

// Sink receives the streamed events of one run.
type Sink interface {
	Log(entry domain.DeploymentLog) error
	Complete(outcome domain.DeploymentComplete) error
}

// Narrator reads deployment scripts aloud.
type Narrator struct {
	log     *zap.Logger
	cadence time.Duration
}

// New builds a narrator. A cadence of 0 streams without pauses (useful in
// tests); negative values fall back to the default.
func New(logger *zap.Logger, cadence time.Duration) *Narrator {
	if cadence < 0 {
		cadence = DefaultCadence
	}
	return &Narrator{log: logger.Named("narrator"), cadence: cadence}
}

// Run streams one scripted deployment into sink: every line of the chosen
// script, then exactly one completion event, which is also returned to the
// caller. It returns early only when the context ends or the sink errors,
// in which case no completion is emitted (the transport is gone anyway).
func (n *Narrator) Run(ctx context.Context, req domain.StartDeployment, sink Sink) (domain.DeploymentComplete, error) {
	script := successScript
	if req.ForceFailure {
		script = failureScripts[rand.IntN(len(failureScripts))]
	}

	n.log.Info("playing deployment script",
		zap.String("script", script.Name),
		zap.Bool("force_failure", req.ForceFailure),
		zap.Float64("failure_chance", req.FailureChance))

	start := time.Now()
	total := len(script.Lines)
	for i, line := range script.Lines {
		if i > 0 && n.cadence > 0 {
			select {
			case <-time.After(n.cadence):
			case <-ctx.Done():
				return domain.DeploymentComplete{}, ctx.Err()
			}
		}
		entry := domain.DeploymentLog{
			Message:    line.Message,
			Timestamp:  time.Now(),
			Level:      line.Level,
			Step:       i + 1,
			TotalSteps: total,
		}
		if err := sink.Log(entry); err != nil {
			return domain.DeploymentComplete{}, fmt.Errorf("emit log line %d: %w", i+1, err)
		}
	}

	outcome := domain.DeploymentComplete{
		Success:    !req.ForceFailure,
		Timestamp:  time.Now(),
		TotalSteps: total,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err := sink.Complete(outcome); err != nil {
		return domain.DeploymentComplete{}, fmt.Errorf("emit completion: %w", err)
	}
	return outcome, nil
}
