package supervise

import "time"

// Policy allows you to predefine the scalar settings of an engine ahead of
// time and set them using [WithPolicy]. It can also be loaded from a file or
// the environment with the config package.
type Policy struct {
	// Time budget of a single attempt.
	// Default: (4 * time.Hour)
	Deadline time.Duration `mapstructure:"deadline" validate:"gte=0"`
	// Maximum number of attempts that may exceed the deadline.
	// Default: 1
	MaxTimeoutTries int `mapstructure:"max_timeout_tries" validate:"gte=0"`
	// Maximum number of attempts that may fail with an error.
	// Default: 1
	MaxErrorTries int `mapstructure:"max_error_tries" validate:"gte=0"`
	// Fixed pause before retrying after a timeout.
	// Default: none
	TimeoutDelay time.Duration `mapstructure:"timeout_delay" validate:"gte=0"`
	// Fixed pause before retrying after an error.
	// Default: none
	ErrorDelay time.Duration `mapstructure:"error_delay" validate:"gte=0"`
}

// DefaultPolicy returns a Policy holding the package defaults.
func DefaultPolicy() Policy {
	return Policy{
		Deadline:        DefaultDeadline,
		MaxTimeoutTries: DefaultMaxTries,
		MaxErrorTries:   DefaultMaxTries,
	}
}
