package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

func TestAttackDelayNeverBelowFloor(t *testing.T) {
	for agg := 1; agg <= 5; agg++ {
		eng, clock, _ := newTestEngine(t, NewDice())
		eng.Start()

		eng.mu.Lock()
		eng.sessionStart = clock.Now().Add(-time.Duration(agg-1) * aggressionRamp)
		require.Equal(t, agg, eng.aggressionLocked())
		for i := 0; i < 500; i++ {
			d := eng.attackDelayLocked()
			assert.GreaterOrEqual(t, d, minAttackDelay,
				"aggression %d produced a delay under the floor", agg)
		}
		eng.mu.Unlock()
	}
}

func TestUnresolvedWarningKnocksSlotOff(t *testing.T) {
	eng, clock, _ := newTestEngine(t, newScriptDice(0.9))
	eng.Start()
	require.NoError(t, eng.Drop("BUILD", domain.SlotBuild))

	// Idle poll arms the schedule; jitter 0.9 puts the attack 39s out.
	clock.Advance(idlePollDelay)
	require.False(t, eng.Snapshot().NextAttackAt.IsZero(), "countdown must be published")

	clock.Advance(39 * time.Second)
	snap := eng.Snapshot()
	assert.Equal(t, domain.PhaseWarned, snap.Slots[domain.SlotBuild].Phase)
	assert.True(t, snap.Slots[domain.SlotBuild].Filled)
	assert.Equal(t, 1, snap.Stats.Sabotages, "sabotage counts at launch, not at resolution")

	clock.Advance(warningGrace)
	snap = eng.Snapshot()
	assert.False(t, snap.Slots[domain.SlotBuild].Filled)
	assert.Equal(t, domain.PhaseStable, snap.Slots[domain.SlotBuild].Phase)
}

func TestEmergencyFixSavesWarnedSlot(t *testing.T) {
	eng, clock, _ := newTestEngine(t, newScriptDice(0.9))
	eng.Start()
	require.NoError(t, eng.Drop("BUILD", domain.SlotBuild))

	clock.Advance(idlePollDelay)
	clock.Advance(39 * time.Second)
	require.Equal(t, domain.PhaseWarned, eng.Snapshot().Slots[domain.SlotBuild].Phase)

	eng.mu.Lock()
	eng.stats.Score = 50
	eng.mu.Unlock()
	require.NoError(t, eng.EmergencyFix())
	assert.Equal(t, 40, eng.Stats().Score)

	// The old grace timer still fires; it must not knock the slot off.
	clock.Advance(warningGrace)
	snap := eng.Snapshot()
	assert.True(t, snap.Slots[domain.SlotBuild].Filled, "cancelled warning must never knock off")
	assert.Equal(t, domain.PhaseStable, snap.Slots[domain.SlotBuild].Phase)
}

func TestEmergencyFixRequiresScore(t *testing.T) {
	eng, clock, _ := newTestEngine(t, newScriptDice(0.9))
	eng.Start()
	require.NoError(t, eng.Drop("BUILD", domain.SlotBuild))

	clock.Advance(idlePollDelay)
	clock.Advance(39 * time.Second)
	require.Equal(t, domain.PhaseWarned, eng.Snapshot().Slots[domain.SlotBuild].Phase)

	err := eng.EmergencyFix()
	assert.ErrorIs(t, err, ErrInsufficientScore)
	assert.Equal(t, domain.PhaseWarned, eng.Snapshot().Slots[domain.SlotBuild].Phase,
		"rejection must not cancel the warning")
}

func TestRampageStaggersWarnings(t *testing.T) {
	// Jitter 0.0 then a winning 0.05 rampage roll; everything later uses
	// the 0.9 fallback (no accidental multi-target follow-ups).
	eng, clock, _ := newTestEngine(t, newScriptDice(0.9, 0.0, 0.05))
	eng.Start()

	// Ride the idle polls out to aggression 5.
	clock.Advance(4 * aggressionRamp)
	fillAll(t, eng)

	// Poll arms the schedule: 30s - 4*4s + 0 jitter clamps to the 15s floor.
	clock.Advance(idlePollDelay)
	clock.Advance(minAttackDelay)

	snap := eng.Snapshot()
	assert.Equal(t, 3, snap.Stats.Sabotages, "rampage counts all targets immediately")
	assert.Equal(t, domain.PhaseWarned, snap.Slots[domain.SlotBuild].Phase)
	assert.Equal(t, domain.PhaseStable, snap.Slots[domain.SlotTest].Phase)
	assert.Equal(t, domain.PhaseStable, snap.Slots[domain.SlotDeploy].Phase)

	clock.Advance(warningStagger)
	snap = eng.Snapshot()
	assert.Equal(t, domain.PhaseWarned, snap.Slots[domain.SlotTest].Phase)
	assert.Equal(t, domain.PhaseStable, snap.Slots[domain.SlotDeploy].Phase)

	clock.Advance(warningStagger)
	assert.Equal(t, domain.PhaseWarned, eng.Snapshot().Slots[domain.SlotDeploy].Phase)

	// First warning started 3s ago; its grace runs out 2s from now.
	clock.Advance(2 * time.Second)
	assert.False(t, eng.Snapshot().Slots[domain.SlotBuild].Filled)
}

func TestWarningOnEmptySlotIsNoOp(t *testing.T) {
	eng, _, _ := newTestEngine(t, newScriptDice(0.9))

	eng.mu.Lock()
	eng.beginWarningLocked(domain.SlotTest)
	phase := eng.slots[domain.SlotTest].phase
	eng.mu.Unlock()

	assert.Equal(t, domain.PhaseStable, phase)
}

func TestLiveDeploymentFreezesWarnings(t *testing.T) {
	eng, clock, nar := newTestEngine(t, newScriptDice(0.9))
	eng.Start()
	require.NoError(t, eng.Drop("BUILD", domain.SlotBuild))

	clock.Advance(idlePollDelay)
	clock.Advance(39 * time.Second)
	require.Equal(t, domain.PhaseWarned, eng.Snapshot().Slots[domain.SlotBuild].Phase)

	require.NoError(t, eng.Drop("TEST", domain.SlotTest))
	require.NoError(t, eng.Drop("DEPLOY", domain.SlotDeploy))
	require.NoError(t, eng.RequestDeployment())
	require.Len(t, nar.requests(), 1)

	// The grace period elapses mid-session: the shake clears but the slot
	// survives, because no slot state may change while a session is live.
	clock.Advance(warningGrace)
	snap := eng.Snapshot()
	assert.True(t, snap.Slots[domain.SlotBuild].Filled)
	assert.Equal(t, domain.PhaseStable, snap.Slots[domain.SlotBuild].Phase)

	// Filling is frozen too.
	err := eng.Drop("BUILD", domain.SlotBuild)
	assert.ErrorIs(t, err, ErrDeploymentInFlight)
}
