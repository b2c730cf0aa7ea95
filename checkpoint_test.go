package training

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, trainer Trainer, source MinibatchSource, path string, saveAll bool) *CheckpointStore {
	t.Helper()
	return &CheckpointStore{
		trainer:   trainer,
		source:    source,
		path:      path,
		saveAll:   saveAll,
		state:     newSessionState(),
		callbacks: &BaseSessionCallbacks{},
		logger:    discardLogger(),
		sessionID: "session_test",
	}
}

// writeStubCheckpoint creates a checkpoint on disk in the stubTrainer
// format, optionally without the sidecar marker.
func writeStubCheckpoint(t *testing.T, path string, index uint64, cursor int, withMarker bool) {
	t.Helper()
	model, err := json.Marshal(stubCheckpointFile{SamplesSeen: uint64(cursor)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, model, 0644))
	if !withMarker {
		return
	}
	state, err := json.Marshal(map[string]any{
		checkpointIndexKey: index,
		trainingSourceKey:  map[string]any{memoryCursorKey: cursor},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+CheckpointMarkerExt, state, 0644))
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model")

	trainer := &stubTrainer{}
	source := newTestSource(t, 100)
	_, err := source.NextBatch(ctx, 37, 1, 0)
	require.NoError(t, err)

	store := newTestStore(t, trainer, source, path, false)
	store.state.SetCheckpointIndex(3)
	require.NoError(t, store.Save(ctx, true))

	restoredSource := newTestSource(t, 100)
	restoredStore := newTestStore(t, &stubTrainer{}, restoredSource, path, false)
	require.NoError(t, restoredStore.Restore(ctx, path))

	require.Equal(t, uint64(3), restoredStore.state.CheckpointIndex())
	require.Equal(t, 37, restoredSource.Position())
}

func TestSaveAllWritesNumberedPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model")
	trainer := &stubTrainer{}
	store := newTestStore(t, trainer, newTestSource(t, 10), path, true)

	// Intermediate saves target the index-suffixed sibling, leaving the
	// canonical path untouched.
	store.state.SetCheckpointIndex(2)
	require.NoError(t, store.Save(ctx, false))
	require.FileExists(t, path+"2")
	require.FileExists(t, path+"2"+CheckpointMarkerExt)
	require.NoFileExists(t, path)

	// The final save always targets the canonical path.
	require.NoError(t, store.Save(ctx, true))
	require.FileExists(t, path)
	require.Equal(t, []string{path + "2", path}, trainer.savedPaths)
}

func TestSaveAllDisabledTargetsCanonicalPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model")
	trainer := &stubTrainer{}
	store := newTestStore(t, trainer, newTestSource(t, 10), path, false)

	store.state.SetCheckpointIndex(2)
	require.NoError(t, store.Save(ctx, false))
	require.Equal(t, []string{path}, trainer.savedPaths)
	require.NoFileExists(t, path+"2")
}

func TestDiscoverSelectsMaxCandidate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model")
	writeStubCheckpoint(t, path+"3", 3, 30, true)
	writeStubCheckpoint(t, path+"7", 7, 70, true)
	// No sidecar: must be ignored even though its index is larger.
	writeStubCheckpoint(t, path+"10", 10, 99, false)

	source := newTestSource(t, 100)
	store := newTestStore(t, &stubTrainer{}, source, path, true)
	require.NoError(t, store.Discover(ctx))

	require.Equal(t, uint64(7), store.state.CheckpointIndex())
	require.Equal(t, 70, source.Position())
}

func TestDiscoverPrefersCanonicalPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model")
	writeStubCheckpoint(t, path, 4, 40, true)
	writeStubCheckpoint(t, path+"9", 9, 90, true)

	source := newTestSource(t, 100)
	store := newTestStore(t, &stubTrainer{}, source, path, true)
	require.NoError(t, store.Discover(ctx))

	require.Equal(t, uint64(4), store.state.CheckpointIndex())
	require.Equal(t, 40, source.Position())
}

func TestDiscoverColdStart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model")
	trainer := &stubTrainer{}
	source := newTestSource(t, 100)
	store := newTestStore(t, trainer, source, path, true)

	require.NoError(t, store.Discover(ctx))
	require.Equal(t, uint64(0), store.state.CheckpointIndex())
	require.Equal(t, 0, source.Position())
	require.Zero(t, trainer.restoreCalls)
}

func TestDiscoverIgnoresMalformedSuffixes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "model")
	writeStubCheckpoint(t, path+"5", 5, 50, true)
	// Files with non-digit suffixes are skipped, not a failure.
	require.NoError(t, os.WriteFile(path+"5backup", []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path+"-old", []byte("x"), 0644))

	source := newTestSource(t, 100)
	store := newTestStore(t, &stubTrainer{}, source, path, true)
	require.NoError(t, store.Discover(ctx))
	require.Equal(t, uint64(5), store.state.CheckpointIndex())
}

func TestStateUint(t *testing.T) {
	t.Run("accepts common numeric types", func(t *testing.T) {
		for _, raw := range []any{uint64(7), int(7), int64(7), float64(7), json.Number("7")} {
			value, err := stateUint(map[string]any{"k": raw}, "k")
			require.NoError(t, err, "type %T", raw)
			require.Equal(t, uint64(7), value, "type %T", raw)
		}
	})

	t.Run("rejects negatives and fractions", func(t *testing.T) {
		for _, raw := range []any{int(-1), int64(-1), float64(-1), float64(2.5), "7"} {
			_, err := stateUint(map[string]any{"k": raw}, "k")
			require.Error(t, err, "type %T", raw)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := stateUint(map[string]any{}, "k")
		require.Error(t, err)
		require.Contains(t, err.Error(), `missing "k"`)
	})
}
