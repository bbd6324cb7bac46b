package clock

import "errors"

// Sentinel kinds for schedule validation errors.
var (
	ErrPastTime      = errors.New("time is in the past")
	ErrUnknownFormat = errors.New("unknown format")
)
