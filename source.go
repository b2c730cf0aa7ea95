package training

import "context"

// Minibatch is one unit of work consumed by a single training step: payload
// values keyed by model input name. An empty minibatch signals an exhausted
// sample budget or source.
type Minibatch map[string]any

// MinibatchSource produces minibatches and can snapshot and restore its own
// read position, so a restored session resumes reading where it left off.
type MinibatchSource interface {
	// NextBatch returns up to size samples partitioned for the given
	// worker, keyed by stream name. An exhausted source returns an empty
	// (or nil) map with no error.
	NextBatch(ctx context.Context, size, workerCount, workerRank int) (map[string]any, error)

	// CheckpointState returns an opaque snapshot of the read position,
	// suitable for embedding in a checkpoint.
	CheckpointState() (map[string]any, error)

	// RestoreFromState rewinds the source to a position previously
	// returned by CheckpointState.
	RestoreFromState(state map[string]any) error
}
