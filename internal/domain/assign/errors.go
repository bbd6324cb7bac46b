package assign

import "errors"

// ErrUnknownStrategy is returned for an unrecognized strategy name.
var ErrUnknownStrategy = errors.New("unknown assignment strategy")
