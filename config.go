package training

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SessionConfig holds the construction-time parameters of a training
// session. All fields are immutable once the session is created.
type SessionConfig struct {
	// MaxSamples is the total sample budget. Once the trainer has seen
	// this many samples, the session feeds it empty batches until it
	// signals completion. Zero means no training happens at all.
	MaxSamples uint64 `json:"max_samples" yaml:"max_samples"`

	// MinibatchSize is the target batch size when no explicit schedule is
	// given.
	MinibatchSize int `json:"minibatch_size" yaml:"minibatch_size"`

	// CheckpointFrequency is the checkpoint period in samples. Zero
	// disables checkpointing entirely, including the final save.
	CheckpointFrequency uint64 `json:"checkpoint_frequency" yaml:"checkpoint_frequency"`

	// CheckpointPath is the canonical checkpoint path. Required whenever
	// CheckpointFrequency is non-zero.
	CheckpointPath string `json:"checkpoint_path" yaml:"checkpoint_path"`

	// SaveAllCheckpoints preserves intermediate checkpoints at
	// index-suffixed sibling paths instead of overwriting the canonical
	// path on every save.
	SaveAllCheckpoints bool `json:"save_all_checkpoints" yaml:"save_all_checkpoints"`

	// RestoreFromCheckpoint makes Train discover and restore the most
	// recent checkpoint on disk before the first step.
	RestoreFromCheckpoint bool `json:"restore_from_checkpoint" yaml:"restore_from_checkpoint"`

	// CrossValidationFrequency is the cross-validation period in samples.
	// Zero disables cross validation.
	CrossValidationFrequency uint64 `json:"cross_validation_frequency" yaml:"cross_validation_frequency"`

	// CrossValidationBatchSize is the batch size for validation fetches.
	// Defaults to MinibatchSize.
	CrossValidationBatchSize int `json:"cross_validation_batch_size" yaml:"cross_validation_batch_size"`
}

// LoadConfigFile loads a session configuration from a YAML file.
func LoadConfigFile(path string) (SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadConfigString(string(data))
}

// LoadConfigString loads a session configuration from a YAML string.
func LoadConfigString(data string) (SessionConfig, error) {
	var config SessionConfig
	if err := yaml.Unmarshal([]byte(data), &config); err != nil {
		return SessionConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}
