package game

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// Tuning constants of the sabotage game. These are game balance, not
// configuration: changing them changes the game.
const (
	baseAttackDelay     = 30 * time.Second
	attackDelayPerLevel = 4 * time.Second
	attackJitterMax     = 10 * time.Second
	minAttackDelay      = 15 * time.Second
	idlePollDelay       = 5 * time.Second
	warningGrace        = 5 * time.Second
	warningStagger      = 1500 * time.Millisecond
	postDeployReset     = 2 * time.Second

	emergencyFixCost = 10

	scoreDeploySuccess = 100
	scoreStreakBonus   = 50
	scoreDeployPenalty = 25
	streakBonusAt      = 3

	displayLogCap = 200
)

// Narrator starts a scripted deployment run on the counterpart service.
// The stream comes back through the engine's HandleLog / HandleComplete /
// HandleDisconnect callbacks.
type Narrator interface {
	StartDeployment(req domain.StartDeployment) error
}

type slotState struct {
	filled bool
	phase  domain.SlotPhase
	// warnGen invalidates grace-period timers: a timer resolves its warning
	// only if the generation it captured is still current.
	warnGen uint64
}

// Engine is the client-resident game core: it owns the three pipeline
// slots, schedules sabotage attacks against them, runs the two-phase
// warning/knockoff per targeted slot, and reconciles deployment outcomes
// streamed back by the narrator into the score sheet.
//
// All state is guarded by one mutex; timer callbacks re-acquire it. That
// preserves the single-writer model: a slot can only be mutated by one
// timer or player action at a time.
type Engine struct {
	mu       sync.Mutex
	log      *zap.Logger
	clock    Clock
	dice     Dice
	metrics  *Metrics
	narrator Narrator
	listener Listener

	sessionStart time.Time
	slots        map[domain.Slot]*slotState
	stats        domain.GameStats
	deployLive   bool

	// At most one next-attack timer exists; attackGen invalidates the old
	// one whenever the schedule is replaced.
	attackTimer  Timer
	attackGen    uint64
	nextAttackAt time.Time

	displayLog []domain.DeploymentLog
	stopped    bool
}

// Options carries the engine's optional collaborators; zero values get
// real-world defaults.
type Options struct {
	Clock    Clock
	Dice     Dice
	Metrics  *Metrics
	Listener Listener
}

// NewEngine builds an engine talking to the given narrator. Call Start to
// begin attack scheduling.
func NewEngine(logger *zap.Logger, narrator Narrator, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.Dice == nil {
		opts.Dice = NewDice()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}

	slots := make(map[domain.Slot]*slotState, len(domain.AllSlots))
	for _, s := range domain.AllSlots {
		slots[s] = &slotState{}
	}

	return &Engine{
		log:      logger.Named("engine"),
		clock:    opts.Clock,
		dice:     opts.Dice,
		metrics:  opts.Metrics,
		narrator: narrator,
		listener: opts.Listener,
		slots:    slots,
	}
}

// Start arms the scheduler. The first attack can only fire once a slot is
// filled; until then the scheduler polls for work.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sessionStart.IsZero() {
		return
	}
	e.sessionStart = e.clock.Now()
	e.scheduleNextLocked()
	e.log.Info("sabotage scheduler armed")
}

// Stop tears scheduling down permanently.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.attackTimer != nil {
		e.attackTimer.Stop()
		e.attackTimer = nil
	}
}

// Drop places a component into a slot. The component name must match the
// slot; anything else is the cosmetic wrong-target rejection.
func (e *Engine) Drop(component string, slot domain.Slot) error {
	if !slot.Valid() {
		return ErrUnknownSlot
	}
	if !strings.EqualFold(component, string(slot)) {
		e.log.Debug("component dropped on wrong slot",
			zap.String("component", component), zap.String("slot", string(slot)))
		return ErrWrongComponent
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deployLive {
		return ErrDeploymentInFlight
	}
	s := e.slots[slot]
	if s.filled {
		return ErrSlotOccupied
	}
	s.filled = true
	e.log.Info("slot filled", zap.String("slot", string(slot)))
	return nil
}

// EmergencyFix cancels every pending sabotage warning at once, for a score
// cost. Rejected, with no state change, when nothing is pending or the
// player cannot afford it.
func (e *Engine) EmergencyFix() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := 0
	for _, s := range e.slots {
		if s.phase == domain.PhaseWarned {
			pending++
		}
	}
	if pending == 0 {
		e.log.Info("emergency fix rejected: nothing pending")
		return ErrNothingPending
	}
	if e.stats.Score < emergencyFixCost {
		e.log.Info("emergency fix rejected: insufficient score",
			zap.Int("score", e.stats.Score))
		return ErrInsufficientScore
	}

	// One atomic transition: every warned slot survives, and the grace
	// timers still in flight are invalidated by the generation bump.
	for _, s := range e.slots {
		if s.phase == domain.PhaseWarned {
			s.phase = domain.PhaseStable
			s.warnGen++
		}
	}
	e.stats.Score -= emergencyFixCost
	e.metrics.EmergencyFixes.Inc()
	e.metrics.Score.Set(float64(e.stats.Score))
	e.log.Info("emergency fix applied", zap.Int("cancelled", pending),
		zap.Int("score", e.stats.Score))
	return nil
}

// Stats returns a copy of the score sheet with the session time filled in.
func (e *Engine) Stats() domain.GameStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine) statsLocked() domain.GameStats {
	st := e.stats
	if !e.sessionStart.IsZero() {
		st.TimeSpentSec = int64(e.clock.Now().Sub(e.sessionStart) / time.Second)
	}
	return st
}

// Snapshot is a read-only view of the pipeline for display purposes.
type Snapshot struct {
	Slots        map[domain.Slot]SlotView
	Stats        domain.GameStats
	Aggression   int
	DeployLive   bool
	NextAttackAt time.Time
}

// SlotView is one slot's public state.
type SlotView struct {
	Filled bool
	Phase  domain.SlotPhase
}

// Snapshot returns the current pipeline view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make(map[domain.Slot]SlotView, len(e.slots))
	for id, s := range e.slots {
		views[id] = SlotView{Filled: s.filled, Phase: s.phase}
	}
	return Snapshot{
		Slots:        views,
		Stats:        e.statsLocked(),
		Aggression:   e.aggressionLocked(),
		DeployLive:   e.deployLive,
		NextAttackAt: e.nextAttackAt,
	}
}

// DisplayLog returns the narrator lines received so far, oldest first.
func (e *Engine) DisplayLog() []domain.DeploymentLog {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.DeploymentLog, len(e.displayLog))
	copy(out, e.displayLog)
	return out
}

func (e *Engine) aggressionLocked() int {
	if e.sessionStart.IsZero() {
		return minAggression
	}
	return aggressionAt(e.clock.Now().Sub(e.sessionStart))
}

func (e *Engine) filledSlotsLocked() []domain.Slot {
	filled := make([]domain.Slot, 0, len(domain.AllSlots))
	for _, id := range domain.AllSlots {
		if e.slots[id].filled {
			filled = append(filled, id)
		}
	}
	return filled
}

func (e *Engine) allFilledLocked() bool {
	return len(e.filledSlotsLocked()) == len(domain.AllSlots)
}

func (e *Engine) warnedCountLocked() int {
	n := 0
	for _, s := range e.slots {
		if s.phase == domain.PhaseWarned {
			n++
		}
	}
	return n
}
