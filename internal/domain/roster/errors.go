package roster

import "errors"

// Sentinel kinds for roster errors.
var (
	ErrNotGathering  = errors.New("event is not gathering")
	ErrNotRegistered = errors.New("player is not registered")
	ErrUnknownPlayer = errors.New("player has no rating")
)
