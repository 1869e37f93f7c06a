package workers

import "context"

// Worker defines the interface for all scheduled workers
type Worker interface {
	// Name returns the worker name for logging
	Name() string

	// Run performs one execution. It must return when ctx is done.
	Run(ctx context.Context) error
}
