package vote

import "errors"

// Sentinel kinds for ballot errors.
var (
	ErrDecided       = errors.New("poll already decided")
	ErrNotEligible   = errors.New("voter is not seated in this room")
	ErrUnknownOption = errors.New("format is not on the ballot")
)
