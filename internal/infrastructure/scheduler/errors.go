package scheduler

import "errors"

// ErrInvalidConfig is returned when a schedule cannot be parsed
var ErrInvalidConfig = errors.New("invalid scheduler configuration")
