package training

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CheckpointMarkerExt is the extension of the sidecar marker the trainer
// writes next to each checkpoint. Presence of the marker is the sole signal
// that the checkpoint file beside it is complete and restorable.
const CheckpointMarkerExt = ".ckp"

// Keys of the session's own metadata inside the external-state blob that is
// persisted alongside trainer-owned state.
const (
	checkpointIndexKey = "CheckpointIndex"
	trainingSourceKey  = "TrainingMinibatchSource"
)

// CheckpointStore persists and restores resumable session snapshots through
// the trainer collaborator, and discovers the most recent snapshot on disk
// when the canonical path is missing.
//
// The store does not gate writes by worker rank. If several workers share a
// checkpoint path, arranging that only one of them saves (typically rank 0)
// is the caller's obligation.
type CheckpointStore struct {
	trainer   Trainer
	source    MinibatchSource
	path      string // canonical ("last") checkpoint path
	saveAll   bool
	state     *SessionState
	callbacks SessionCallbacks
	logger    *slog.Logger
	sessionID string
}

// Save persists a checkpoint at the current checkpoint index. Intermediate
// saves with save-all enabled target the index-suffixed sibling path so
// history is preserved; the final save always targets the canonical path.
func (c *CheckpointStore) Save(ctx context.Context, last bool) error {
	index := c.state.CheckpointIndex()
	path := c.path
	if c.saveAll && !last {
		path = c.path + strconv.FormatUint(index, 10)
	}

	event := &CheckpointEvent{
		SessionID:   c.sessionID,
		Index:       index,
		Path:        path,
		Last:        last,
		SamplesSeen: c.trainer.TotalSamplesSeen(),
		StartTime:   time.Now(),
	}
	c.callbacks.OnCheckpointStart(ctx, event)

	sourceState, err := c.source.CheckpointState()
	if err != nil {
		return fmt.Errorf("failed to snapshot source position: %w", err)
	}
	externalState := map[string]any{
		checkpointIndexKey: index,
		trainingSourceKey:  sourceState,
	}
	if err := c.trainer.SaveCheckpoint(ctx, path, externalState); err != nil {
		return fmt.Errorf("failed to save checkpoint %d to %s: %w", index, path, err)
	}

	event.Duration = time.Since(event.StartTime)
	c.callbacks.OnCheckpointEnd(ctx, event)
	c.logger.Info("checkpoint saved", "index", index, "path", path, "last", last)
	return nil
}

// Restore loads the checkpoint at path, adopts its checkpoint index, and
// feeds the persisted read position back into the training source.
func (c *CheckpointStore) Restore(ctx context.Context, path string) error {
	externalState, err := c.trainer.RestoreFromCheckpoint(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to restore checkpoint from %s: %w", path, err)
	}
	index, err := stateUint(externalState, checkpointIndexKey)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}
	sourceState, err := stateMap(externalState, trainingSourceKey)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if err := c.source.RestoreFromState(sourceState); err != nil {
		return fmt.Errorf("failed to restore source position: %w", err)
	}
	c.state.SetCheckpointIndex(index)
	c.logger.Info("restored from checkpoint", "index", index, "path", path)
	return nil
}

// Discover restores from the canonical path if it exists, otherwise from
// the numbered on-disk candidate with the largest index that has a sidecar
// marker. Finding nothing is not an error: the session starts cold.
func (c *CheckpointStore) Discover(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if _, err := os.Stat(c.path); err == nil {
		return c.Restore(ctx, c.path)
	}
	candidate, found, err := c.latestCandidate()
	if err != nil {
		return err
	}
	if !found {
		c.logger.Info("no checkpoint found, starting cold", "path", c.path)
		return nil
	}
	return c.Restore(ctx, candidate)
}

// latestCandidate scans the canonical path's directory for regular files
// named <canonical><digits> with a matching sidecar marker, and returns the
// one with the numerically largest suffix.
func (c *CheckpointStore) latestCandidate() (string, bool, error) {
	dir := filepath.Dir(c.path)
	base := filepath.Base(c.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("failed to scan checkpoint directory: %w", err)
	}

	var (
		best      string
		bestIndex uint64
		found     bool
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, base) || name == base {
			continue
		}
		// A malformed suffix excludes the file from selection rather than
		// failing the scan. This also skips the sidecar files themselves.
		index, err := strconv.ParseUint(name[len(base):], 10, 64)
		if err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path + CheckpointMarkerExt); err != nil {
			continue
		}
		if !found || index > bestIndex {
			found = true
			bestIndex = index
			best = path
		}
	}
	return best, found, nil
}

// stateUint extracts an unsigned integer from an external-state map. The
// trainer owns checkpoint serialization, so the value may come back as any
// numeric type depending on the format it round-tripped through.
func stateUint(state map[string]any, key string) (uint64, error) {
	raw, ok := state[key]
	if !ok {
		return 0, fmt.Errorf("external state is missing %q", key)
	}
	switch v := raw.(type) {
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("external state %q is negative: %d", key, v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("external state %q is negative: %d", key, v)
		}
		return uint64(v), nil
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, fmt.Errorf("external state %q is not an unsigned integer: %v", key, v)
		}
		return uint64(v), nil
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("external state %q is not an unsigned integer: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("external state %q has unexpected type %T", key, raw)
	}
}

// stateMap extracts a nested state map from an external-state map.
func stateMap(state map[string]any, key string) (map[string]any, error) {
	raw, ok := state[key]
	if !ok {
		return nil, fmt.Errorf("external state is missing %q", key)
	}
	nested, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("external state %q has unexpected type %T", key, raw)
	}
	return nested, nil
}
