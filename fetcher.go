package training

import (
	"context"
	"fmt"
)

// minibatchFetcher pulls batches from the data sources and remaps
// source-native streams onto the model's named inputs.
type minibatchFetcher struct {
	training   MinibatchSource
	validation MinibatchSource
	bindings   map[string]string // model input name -> source stream name
	schedule   MinibatchSizeSchedule
}

// FetchTraining requests the next training batch, partitioned for the given
// effective worker identity. The batch size comes from the schedule at the
// current sample count.
func (f *minibatchFetcher) FetchTraining(ctx context.Context, samplesSeen uint64, workerRank, workerCount int) (Minibatch, error) {
	size := f.schedule.MinibatchSize(samplesSeen)
	return f.fetch(ctx, f.training, size, workerCount, workerRank)
}

// FetchValidation requests the next validation batch. Validation is never
// distributed: every worker reads the full source.
func (f *minibatchFetcher) FetchValidation(ctx context.Context, size int) (Minibatch, error) {
	return f.fetch(ctx, f.validation, size, 1, 0)
}

func (f *minibatchFetcher) fetch(ctx context.Context, source MinibatchSource, size, workerCount, workerRank int) (Minibatch, error) {
	data, err := source.NextBatch(ctx, size, workerCount, workerRank)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch minibatch: %w", err)
	}
	// An exhausted source is not an error; the empty batch propagates to
	// the trainer, which decides what it means.
	if len(data) == 0 {
		return Minibatch{}, nil
	}
	batch := make(Minibatch, len(f.bindings))
	for input, stream := range f.bindings {
		payload, ok := data[stream]
		if !ok {
			return nil, fmt.Errorf("source result is missing stream %q bound to input %q", stream, input)
		}
		batch[input] = payload
	}
	return batch, nil
}
