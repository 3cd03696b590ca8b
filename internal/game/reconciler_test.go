package game

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

func TestDeploymentRejectedUntilPipelineFull(t *testing.T) {
	eng, _, nar := newTestEngine(t, newScriptDice(0.9))

	require.NoError(t, eng.Drop("BUILD", domain.SlotBuild))
	require.NoError(t, eng.Drop("TEST", domain.SlotTest))

	err := eng.RequestDeployment()
	assert.ErrorIs(t, err, ErrPipelineNotReady)
	assert.Empty(t, nar.requests(), "rejected request must not reach the narrator")
	assert.False(t, eng.Snapshot().DeployLive)
}

func TestDeploymentRejectedWhileSessionLive(t *testing.T) {
	eng, _, nar := newTestEngine(t, newScriptDice(0.9))
	fillAll(t, eng)

	require.NoError(t, eng.RequestDeployment())
	err := eng.RequestDeployment()
	assert.ErrorIs(t, err, ErrDeploymentInFlight)
	assert.Len(t, nar.requests(), 1)
}

func TestSuccessfulDeploymentScoresAndResets(t *testing.T) {
	eng, clock, nar := newTestEngine(t, newScriptDice(0.9))
	fillAll(t, eng)

	require.NoError(t, eng.RequestDeployment())

	reqs := nar.requests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].ForceFailure, "0.9 roll against a 0.15 chance succeeds")
	assert.InDelta(t, 0.15, reqs[0].FailureChance, 1e-9,
		"base chance at aggression 1 with a clean sheet")

	eng.HandleLog(domain.DeploymentLog{Message: "Compiling...", Step: 1, TotalSteps: 9})
	eng.HandleLog(domain.DeploymentLog{Message: "All tests passed", Step: 2, TotalSteps: 9})
	assert.Len(t, eng.DisplayLog(), 2)

	eng.HandleComplete(domain.DeploymentComplete{Success: true, TotalSteps: 9})

	st := eng.Stats()
	assert.Equal(t, 100, st.Score)
	assert.Equal(t, 1, st.Deployments)
	assert.Equal(t, 1, st.Streak)
	assert.False(t, eng.Snapshot().DeployLive)

	// Slots stay put for the reset delay, then all clear.
	assert.True(t, eng.Snapshot().Slots[domain.SlotBuild].Filled)
	clock.Advance(postDeployReset)
	for _, slot := range domain.AllSlots {
		assert.False(t, eng.Snapshot().Slots[slot].Filled)
	}
	assert.Equal(t, 100, eng.Stats().Score, "reset must not touch the score sheet")
}

func TestStreakBonus(t *testing.T) {
	eng, _, _ := newTestEngine(t, newScriptDice(0.9))
	fillAll(t, eng)

	eng.mu.Lock()
	eng.stats.Streak = 3
	eng.mu.Unlock()

	require.NoError(t, eng.RequestDeployment())
	eng.HandleComplete(domain.DeploymentComplete{Success: true})

	st := eng.Stats()
	assert.Equal(t, 150, st.Score)
	assert.Equal(t, 4, st.Streak)
}

func TestFailedDeploymentPenalizesWithFloor(t *testing.T) {
	// Outcome roll 0.0 always fails.
	eng, clock, nar := newTestEngine(t, newScriptDice(0.9, 0.0))
	fillAll(t, eng)

	eng.mu.Lock()
	eng.stats.Score = 10
	eng.stats.Streak = 2
	eng.mu.Unlock()

	require.NoError(t, eng.RequestDeployment())
	require.True(t, nar.requests()[0].ForceFailure)

	eng.HandleComplete(domain.DeploymentComplete{Success: false, TotalSteps: 4})

	st := eng.Stats()
	assert.Equal(t, 0, st.Score, "penalty floors at zero")
	assert.Equal(t, 1, st.FailedDeployments)
	assert.Equal(t, 0, st.Streak)

	clock.Advance(postDeployReset)
	for _, slot := range domain.AllSlots {
		assert.False(t, eng.Snapshot().Slots[slot].Filled)
	}
}

func TestFailureChanceClamps(t *testing.T) {
	eng, _, _ := newTestEngine(t, newScriptDice(0.9))

	eng.mu.Lock()
	eng.stats.FailedDeployments = 20
	high := eng.failureChanceLocked()
	eng.stats.FailedDeployments = 0
	eng.stats.Deployments = 50
	low := eng.failureChanceLocked()
	eng.mu.Unlock()

	assert.InDelta(t, failCeiling, high, 1e-9)
	assert.InDelta(t, failFloor, low, 1e-9)
}

func TestStartRequestFailureUnwindsSession(t *testing.T) {
	eng, _, nar := newTestEngine(t, newScriptDice(0.9))
	nar.err = errors.New("narrator unreachable")
	fillAll(t, eng)

	err := eng.RequestDeployment()
	require.Error(t, err)
	assert.False(t, eng.Snapshot().DeployLive)

	st := eng.Stats()
	assert.Equal(t, 0, st.FailedDeployments, "an unsent request is not a failed deployment")

	// The pipeline is still intact; a retry goes through.
	nar.err = nil
	assert.NoError(t, eng.RequestDeployment())
}

func TestDisconnectMidSessionCountsAsFailure(t *testing.T) {
	eng, clock, _ := newTestEngine(t, newScriptDice(0.9))
	fillAll(t, eng)

	require.NoError(t, eng.RequestDeployment())
	eng.HandleDisconnect(io.ErrUnexpectedEOF)

	st := eng.Stats()
	assert.Equal(t, 1, st.FailedDeployments)
	assert.Equal(t, 0, st.Streak)
	assert.False(t, eng.Snapshot().DeployLive, "session must not hang on a dead narrator")

	clock.Advance(postDeployReset)
	for _, slot := range domain.AllSlots {
		assert.False(t, eng.Snapshot().Slots[slot].Filled)
	}
}

func TestStrayCompletionIsDropped(t *testing.T) {
	eng, _, _ := newTestEngine(t, newScriptDice(0.9))

	eng.HandleComplete(domain.DeploymentComplete{Success: true})
	st := eng.Stats()
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 0, st.Deployments)
}
