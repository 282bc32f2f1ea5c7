package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Job lifecycle errors
	ErrQueueFull         = fmt.Errorf("job queue is full")
	ErrJobNotFound       = fmt.Errorf("job not found")
	ErrJobFinished       = fmt.Errorf("job already finished")
	ErrJobRunning        = fmt.Errorf("job is still running")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrTimeout           = fmt.Errorf("operation timed out")

	// Catalog and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrUnauthorized       = fmt.Errorf("catalog authentication failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
