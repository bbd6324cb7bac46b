package ratings

import "errors"

// Sentinel kinds for the rating provider.
var (
	ErrNotReady      = errors.New("ratings not pulled yet")
	ErrRequestFailed = errors.New("rating request failed")
	ErrBadPayload    = errors.New("rating payload malformed")
)
