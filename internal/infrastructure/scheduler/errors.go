package scheduler

import "errors"

var (
	// ErrJobNotFound is returned when a job name is unknown
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobSkipped is recorded when another instance holds the job lock
	ErrJobSkipped = errors.New("job skipped, lock held elsewhere")
)
