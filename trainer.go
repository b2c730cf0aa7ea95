package training

import "context"

// Trainer is the computation step driven by a Session. It owns the model and
// optimizer state, performs one training step per minibatch, and is the
// authority on when training is finished via the boolean returned from
// TrainMinibatch.
type Trainer interface {
	// TrainMinibatch consumes one minibatch and reports whether training
	// should continue. The batch may be empty once the sample budget is
	// exhausted or the source runs dry; the trainer decides what that
	// means for termination.
	TrainMinibatch(ctx context.Context, batch Minibatch) (bool, error)

	// TestMinibatch returns an error measurement for a minibatch without
	// updating model state.
	TestMinibatch(ctx context.Context, batch Minibatch) (float64, error)

	// SaveCheckpoint persists model and optimizer state at path, embedding
	// the session's external state alongside it. The trainer must also
	// write the sidecar marker (path + ".ckp"); its presence is the sole
	// signal that the checkpoint is complete and restorable.
	SaveCheckpoint(ctx context.Context, path string, externalState map[string]any) error

	// RestoreFromCheckpoint loads state from path and returns the external
	// state that was embedded at save time.
	RestoreFromCheckpoint(ctx context.Context, path string) (map[string]any, error)

	// TotalSamplesSeen reports the cumulative number of samples consumed
	// over the life of the model, including progress restored from a
	// checkpoint. All periodic scheduling is keyed off this counter.
	TotalSamplesSeen() uint64

	// ParameterLearners returns the learners updating model parameters.
	ParameterLearners() []Learner
}

// Learner updates a subset of model parameters during training.
type Learner interface {
	// Distributed returns the learner's distributed coordination facet.
	// Learners that do not coordinate across workers return false.
	Distributed() (DistributedFacet, bool)
}

// DistributedFacet describes a learner's position in a distributed worker
// group and the warm-up it requires before work is partitioned.
type DistributedFacet struct {
	// Rank is this worker's 0-based index within the group.
	Rank int

	// WorkerCount is the total size of the group.
	WorkerCount int

	// WarmupSamples is the cumulative sample count below which every
	// worker processes full, unpartitioned batches.
	WarmupSamples uint64
}
