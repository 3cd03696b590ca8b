package game

import (
	"time"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// Listener receives UI-facing notifications from the engine. Callbacks run
// while the engine lock is held: implementations must return quickly and
// must not call engine methods synchronously (hand off to a goroutine or a
// channel instead).
type Listener interface {
	AttackScheduled(at time.Time)
	SlotWarned(slot domain.Slot)
	SlotKnockedOff(slot domain.Slot)
	DeploymentLog(entry domain.DeploymentLog)
	DeploymentFinished(outcome domain.DeploymentComplete, stats domain.GameStats)
	PipelineReset()
}

// NopListener discards every notification.
type NopListener struct{}

func (NopListener) AttackScheduled(time.Time)                                      {}
func (NopListener) SlotWarned(domain.Slot)                                         {}
func (NopListener) SlotKnockedOff(domain.Slot)                                     {}
func (NopListener) DeploymentLog(domain.DeploymentLog)                             {}
func (NopListener) DeploymentFinished(domain.DeploymentComplete, domain.GameStats) {}
func (NopListener) PipelineReset()                                                 {}
