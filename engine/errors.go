package engine

import "errors"

var (
	ErrInvalidCoordinate  = errors.New("coordinate out of bounds")
	ErrCellUnavailable    = errors.New("cell is occupied, blocked or destroyed")
	ErrUnknownSkill       = errors.New("unknown skill")
	ErrOnCooldown         = errors.New("skill on cooldown")
	ErrNothingToRepair    = errors.New("no destroyed cells to repair")
	ErrForcedBorder       = errors.New("you must place on the border")
	ErrGameOver           = errors.New("game is already over")
	ErrInteractionPending = errors.New("another skill interaction is pending")
	ErrNoInteraction      = errors.New("no matching skill interaction is pending")
	ErrMalformedSnapshot  = errors.New("malformed snapshot")
)
