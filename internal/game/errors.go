package game

import "errors"

// Game-rule rejections. All are local and non-fatal: the engine's state is
// unchanged when one of these is returned.
var (
	ErrUnknownSlot        = errors.New("unknown pipeline slot")
	ErrWrongComponent     = errors.New("component does not belong in this slot")
	ErrSlotOccupied       = errors.New("slot is already filled")
	ErrDeploymentInFlight = errors.New("a deployment is already in flight")
	ErrPipelineNotReady   = errors.New("all three slots must be filled before deploying")
	ErrNothingPending     = errors.New("no sabotage warnings to fix")
	ErrInsufficientScore  = errors.New("not enough score for an emergency fix")
)
