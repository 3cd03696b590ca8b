package domain

// Slot identifies one of the three pipeline stages a component can occupy.
type Slot string

const (
	SlotBuild  Slot = "BUILD"
	SlotTest   Slot = "TEST"
	SlotDeploy Slot = "DEPLOY"
)

// AllSlots lists every slot in pipeline order.
var AllSlots = []Slot{SlotBuild, SlotTest, SlotDeploy}

// Valid reports whether s names a real pipeline stage.
func (s Slot) Valid() bool {
	switch s {
	case SlotBuild, SlotTest, SlotDeploy:
		return true
	}
	return false
}

// SlotPhase is the sabotage state of a single slot. A slot under warning is
// both "pending" and "shaking"; collapsing the two into one phase removes
// any chance of the markers drifting apart.
type SlotPhase int

const (
	PhaseStable SlotPhase = iota
	PhaseWarned
)

func (p SlotPhase) String() string {
	if p == PhaseWarned {
		return "warned"
	}
	return "stable"
}
