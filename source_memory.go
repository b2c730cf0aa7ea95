package training

import (
	"context"
	"fmt"
	"sync"
)

const memoryCursorKey = "Cursor"

// MemorySource is an in-memory MinibatchSource backed by parallel sample
// slices, one per stream. Batches are partitioned across workers by sample
// index, and the read cursor snapshots into checkpoints so a restored
// session resumes mid-pass.
type MemorySource struct {
	streams map[string][]any
	length  int
	cursor  int
	mutex   sync.Mutex
}

// NewMemorySource builds a source from per-stream sample slices. All
// streams must be the same length.
func NewMemorySource(streams map[string][]any) (*MemorySource, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("at least one stream is required")
	}
	length := -1
	for name, samples := range streams {
		if length < 0 {
			length = len(samples)
			continue
		}
		if len(samples) != length {
			return nil, fmt.Errorf("stream %q has %d samples, expected %d", name, len(samples), length)
		}
	}
	return &MemorySource{streams: streams, length: length}, nil
}

func (s *MemorySource) NextBatch(ctx context.Context, size, workerCount, workerRank int) (map[string]any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if size <= 0 {
		return nil, fmt.Errorf("minibatch size must be positive, got %d", size)
	}
	if workerCount < 1 || workerRank < 0 || workerRank >= workerCount {
		return nil, fmt.Errorf("invalid worker rank %d of %d", workerRank, workerCount)
	}
	if s.cursor >= s.length {
		return nil, nil
	}
	end := s.cursor + size
	if end > s.length {
		end = s.length
	}

	batch := make(map[string]any, len(s.streams))
	for name, samples := range s.streams {
		window := samples[s.cursor:end]
		if workerCount == 1 {
			batch[name] = append([]any(nil), window...)
			continue
		}
		var part []any
		for i, sample := range window {
			if (s.cursor+i)%workerCount == workerRank {
				part = append(part, sample)
			}
		}
		batch[name] = part
	}
	s.cursor = end
	return batch, nil
}

func (s *MemorySource) CheckpointState() (map[string]any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return map[string]any{memoryCursorKey: uint64(s.cursor)}, nil
}

func (s *MemorySource) RestoreFromState(state map[string]any) error {
	cursor, err := stateUint(state, memoryCursorKey)
	if err != nil {
		return err
	}
	if cursor > uint64(s.length) {
		return fmt.Errorf("restored cursor %d is beyond source length %d", cursor, s.length)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cursor = int(cursor)
	return nil
}

// Rewind resets the read cursor to the beginning. Useful for reusing a
// validation source across rounds.
func (s *MemorySource) Rewind() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cursor = 0
}

// Position returns the current read cursor.
func (s *MemorySource) Position() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.cursor
}
