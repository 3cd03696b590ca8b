package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// Multi-target attack odds.
const (
	rampageChance     = 0.10 // three targets, aggression 5 only
	doubleChance      = 0.20 // two targets, aggression 3+
	rampageAggression = 5
	doubleAggression  = 3
)

// schedulingActiveLocked: attacks may fire iff at least one slot is filled
// and no deployment session is live.
func (e *Engine) schedulingActiveLocked() bool {
	return !e.deployLive && len(e.filledSlotsLocked()) > 0
}

// scheduleNextLocked replaces the outstanding next-attack timer with a new
// one. While scheduling is inactive it polls instead of computing an attack
// delay, so an emptied or deploying pipeline costs a short re-check rather
// than a stuck timer.
func (e *Engine) scheduleNextLocked() {
	if e.stopped {
		return
	}
	if e.attackTimer != nil {
		e.attackTimer.Stop()
	}
	e.attackGen++
	gen := e.attackGen

	// A poll timer only re-arms; an attack timer attacks. The distinction
	// matters: a slot filled moments before a poll fires must still wait a
	// full attack delay.
	var d time.Duration
	attack := e.schedulingActiveLocked()
	if attack {
		d = e.attackDelayLocked()
		e.nextAttackAt = e.clock.Now().Add(d)
		e.listener.AttackScheduled(e.nextAttackAt)
		e.log.Debug("next attack scheduled", zap.Duration("in", d))
	} else {
		d = idlePollDelay
		e.nextAttackAt = time.Time{}
	}
	e.attackTimer = e.clock.AfterFunc(d, func() { e.onAttackFire(gen, attack) })
}

// attackDelayLocked draws the inter-attack delay: shorter as aggression
// rises, jittered, never below the floor.
func (e *Engine) attackDelayLocked() time.Duration {
	agg := e.aggressionLocked()
	d := baseAttackDelay - time.Duration(agg-1)*attackDelayPerLevel
	d += time.Duration(e.dice.Float64() * float64(attackJitterMax))
	if d < minAttackDelay {
		d = minAttackDelay
	}
	return d
}

func (e *Engine) onAttackFire(gen uint64, attack bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || gen != e.attackGen {
		return
	}
	if attack && e.schedulingActiveLocked() {
		e.launchAttackLocked()
	}
	e.scheduleNextLocked()
}

// launchAttackLocked picks how many filled slots the cat goes for, then
// staggers each target's warning so a multi-slot attack never warns all at
// once. The sabotage counter moves at launch, not at resolution.
func (e *Engine) launchAttackLocked() {
	filled := e.filledSlotsLocked()
	if len(filled) == 0 {
		return
	}

	agg := e.aggressionLocked()
	k := 1
	if agg >= rampageAggression && e.dice.Float64() < rampageChance && len(filled) >= 3 {
		k = 3
	} else if agg >= doubleAggression && e.dice.Float64() < doubleChance && len(filled) >= 2 {
		k = 2
	}

	perm := e.dice.Perm(len(filled))
	targets := make([]domain.Slot, 0, k)
	for _, idx := range perm[:k] {
		targets = append(targets, filled[idx])
	}

	e.stats.Sabotages += k
	e.metrics.Sabotages.Add(float64(k))
	e.metrics.Attacks.WithLabelValues(targetLabel(k)).Inc()
	e.log.Info("sabotage attack launched",
		zap.Int("targets", k), zap.Int("aggression", agg))

	for i, slot := range targets {
		if i == 0 {
			e.beginWarningLocked(slot)
			continue
		}
		s := slot
		e.clock.AfterFunc(time.Duration(i)*warningStagger, func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.beginWarningLocked(s)
		})
	}
}

// beginWarningLocked starts a slot's grace window. A target that is no
// longer filled, already warned, or frozen by a live deployment is left
// alone.
func (e *Engine) beginWarningLocked(slot domain.Slot) {
	s := e.slots[slot]
	if e.stopped || e.deployLive || !s.filled || s.phase == domain.PhaseWarned {
		return
	}
	s.phase = domain.PhaseWarned
	s.warnGen++
	gen := s.warnGen

	e.listener.SlotWarned(slot)
	e.log.Info("slot under attack", zap.String("slot", string(slot)))

	e.clock.AfterFunc(warningGrace, func() { e.resolveWarning(slot, gen) })
}

// resolveWarning ends a slot's grace window. The shaking mark always
// clears; the knockoff only happens when the warning is still current, the
// slot still filled, and no deployment froze the pipeline in between.
func (e *Engine) resolveWarning(slot domain.Slot, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.slots[slot]
	if gen != s.warnGen || s.phase != domain.PhaseWarned {
		// Cancelled (or re-warned) in the meantime; nothing to resolve.
		return
	}
	s.phase = domain.PhaseStable

	if e.deployLive {
		e.log.Debug("warning fizzled during deployment", zap.String("slot", string(slot)))
		return
	}
	if !s.filled {
		// The slot emptied some other way while the warning ran; no-op.
		return
	}

	s.filled = false
	e.metrics.Knockoffs.Inc()
	e.listener.SlotKnockedOff(slot)
	e.log.Info("slot knocked off the pipeline", zap.String("slot", string(slot)))
}

func targetLabel(k int) string {
	switch k {
	case 3:
		return "3"
	case 2:
		return "2"
	default:
		return "1"
	}
}
