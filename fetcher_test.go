package training

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// brokenSource returns a fixed payload or error, for exercising fetcher
// failure modes.
type brokenSource struct {
	data map[string]any
	err  error
}

func (s *brokenSource) NextBatch(ctx context.Context, size, workerCount, workerRank int) (map[string]any, error) {
	return s.data, s.err
}

func (s *brokenSource) CheckpointState() (map[string]any, error) {
	return map[string]any{}, nil
}

func (s *brokenSource) RestoreFromState(state map[string]any) error {
	return nil
}

func TestFetcherRemapsStreams(t *testing.T) {
	source, err := NewMemorySource(map[string][]any{
		"stream_x": sequentialStream(10),
		"stream_y": sequentialStream(10),
	})
	require.NoError(t, err)
	fetcher := &minibatchFetcher{
		training: source,
		bindings: map[string]string{"features": "stream_x", "labels": "stream_y"},
		schedule: ConstantSchedule(4),
	}

	batch, err := fetcher.FetchTraining(context.Background(), 0, 0, 1)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Len(t, batch["features"], 4)
	require.Len(t, batch["labels"], 4)
}

func TestFetcherPropagatesEmptyBatch(t *testing.T) {
	source := newTestSource(t, 4)
	fetcher := &minibatchFetcher{
		training: source,
		bindings: map[string]string{"features": "features"},
		schedule: ConstantSchedule(10),
	}

	batch, err := fetcher.FetchTraining(context.Background(), 0, 0, 1)
	require.NoError(t, err)
	require.Len(t, batch["features"], 4)

	// An exhausted source yields an empty batch, not an error.
	batch, err = fetcher.FetchTraining(context.Background(), 4, 0, 1)
	require.NoError(t, err)
	require.Empty(t, batch)
}

func TestFetcherMissingStreamFailsLoud(t *testing.T) {
	fetcher := &minibatchFetcher{
		training: &brokenSource{data: map[string]any{"stream_x": []any{1.0}}},
		bindings: map[string]string{"features": "stream_x", "labels": "stream_y"},
		schedule: ConstantSchedule(1),
	}

	_, err := fetcher.FetchTraining(context.Background(), 0, 0, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), `stream "stream_y"`)
	require.Contains(t, err.Error(), `input "labels"`)
}

func TestFetcherSourceErrorPropagates(t *testing.T) {
	sourceErr := errors.New("reader offline")
	fetcher := &minibatchFetcher{
		training: &brokenSource{err: sourceErr},
		bindings: map[string]string{"features": "stream_x"},
		schedule: ConstantSchedule(1),
	}

	_, err := fetcher.FetchTraining(context.Background(), 0, 0, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, sourceErr)
}

func TestFetchValidationIsNeverDistributed(t *testing.T) {
	source := &recordingSource{MemorySource: newTestSource(t, 10)}
	fetcher := &minibatchFetcher{
		validation: source,
		bindings:   map[string]string{"features": "features"},
		schedule:   ConstantSchedule(5),
	}

	_, err := fetcher.FetchValidation(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []int{1}, source.workerCounts)
	require.Equal(t, []int{0}, source.workerRanks)
}
