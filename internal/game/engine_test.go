package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

func newTestEngine(t *testing.T, dice Dice) (*Engine, *fakeClock, *stubNarrator) {
	t.Helper()
	clock := newFakeClock()
	nar := &stubNarrator{}
	eng := NewEngine(zaptest.NewLogger(t), nar, Options{Clock: clock, Dice: dice})
	return eng, clock, nar
}

func fillAll(t *testing.T, eng *Engine) {
	t.Helper()
	for _, slot := range domain.AllSlots {
		require.NoError(t, eng.Drop(string(slot), slot))
	}
}

func TestDropFillsMatchingSlot(t *testing.T) {
	eng, _, _ := newTestEngine(t, newScriptDice(0.9))

	require.NoError(t, eng.Drop("build", domain.SlotBuild))
	assert.True(t, eng.Snapshot().Slots[domain.SlotBuild].Filled)

	err := eng.Drop("BUILD", domain.SlotBuild)
	assert.ErrorIs(t, err, ErrSlotOccupied)
}

func TestDropWrongComponentIsCosmetic(t *testing.T) {
	eng, _, _ := newTestEngine(t, newScriptDice(0.9))

	err := eng.Drop("TEST", domain.SlotBuild)
	assert.ErrorIs(t, err, ErrWrongComponent)
	assert.False(t, eng.Snapshot().Slots[domain.SlotBuild].Filled)

	err = eng.Drop("BUILD", domain.Slot("CACHE"))
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestEmergencyFixWithNothingPendingIsRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t, newScriptDice(0.9))
	eng.mu.Lock()
	eng.stats.Score = 100
	eng.mu.Unlock()

	err := eng.EmergencyFix()
	assert.ErrorIs(t, err, ErrNothingPending)
	assert.Equal(t, 100, eng.Stats().Score, "rejection must not charge the player")
}

func TestStatsCountersNeverNegative(t *testing.T) {
	eng, clock, _ := newTestEngine(t, newScriptDice(0.9))
	fillAll(t, eng)

	// Lose three deployments in a row from a zero score.
	for i := 0; i < 3; i++ {
		require.NoError(t, eng.RequestDeployment())
		eng.HandleComplete(domain.DeploymentComplete{Success: false})
		clock.Advance(postDeployReset)
		fillAll(t, eng)
	}

	st := eng.Stats()
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 3, st.FailedDeployments)
	assert.Equal(t, 0, st.Streak)
	assert.GreaterOrEqual(t, st.Deployments, 0)
	assert.GreaterOrEqual(t, st.Sabotages, 0)
}
