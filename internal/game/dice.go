package game

import "math/rand/v2"

// Dice abstracts the engine's randomness: attack delays, target counts,
// target shuffles and the pre-decided deployment outcome all roll through
// it, so tests can script exact sequences.
type Dice interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// Perm returns a random permutation of [0, n).
	Perm(n int) []int
}

type realDice struct{}

func (realDice) Float64() float64 { return rand.Float64() }
func (realDice) Perm(n int) []int { return rand.Perm(n) }

// NewDice returns a Dice backed by math/rand/v2.
func NewDice() Dice { return realDice{} }
