package provision

import "errors"

// Sentinel kinds for provisioning failures. Both are recoverable through
// the fallback chain.
var (
	ErrNoFreeChannels   = errors.New("no free channels")
	ErrWrongChannelType = errors.New("wrong channel type")
)
