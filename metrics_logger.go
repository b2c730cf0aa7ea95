package training

import (
	"context"
	"time"
)

// Record kinds emitted by a session.
const (
	RecordKindMinibatch       = "minibatch"
	RecordKindCheckpoint      = "checkpoint"
	RecordKindCrossValidation = "cross_validation"
)

// MetricsRecord represents one logged training event.
type MetricsRecord struct {
	SessionID       string    `json:"session_id"`
	Kind            string    `json:"kind"`
	SamplesSeen     uint64    `json:"samples_seen"`
	CheckpointIndex uint64    `json:"checkpoint_index,omitempty"`
	Round           uint64    `json:"round,omitempty"`
	MeanError       float64   `json:"mean_error,omitempty"`
	StartTime       time.Time `json:"start_time"`
	Duration        float64   `json:"duration"`
}

// MetricsLogger defines the training metrics logging interface.
type MetricsLogger interface {
	// LogRecord logs a completed training event.
	LogRecord(ctx context.Context, record *MetricsRecord) error

	// GetHistory retrieves the metrics log for a session.
	GetHistory(ctx context.Context, sessionID string) ([]*MetricsRecord, error)
}

// metricsCallbacks adapts a MetricsLogger into session callbacks so every
// minibatch, checkpoint, and validation round produces a record. Logging
// failures are reported through the session logger, not surfaced as
// training failures.
type metricsCallbacks struct {
	BaseSessionCallbacks
	metrics MetricsLogger
	logFail func(err error)
}

func (m *metricsCallbacks) OnMinibatchEnd(ctx context.Context, event *MinibatchEvent) {
	m.log(ctx, &MetricsRecord{
		SessionID:   event.SessionID,
		Kind:        RecordKindMinibatch,
		SamplesSeen: event.SamplesSeen,
		StartTime:   event.StartTime,
		Duration:    event.Duration.Seconds(),
	})
}

func (m *metricsCallbacks) OnCheckpointEnd(ctx context.Context, event *CheckpointEvent) {
	m.log(ctx, &MetricsRecord{
		SessionID:       event.SessionID,
		Kind:            RecordKindCheckpoint,
		SamplesSeen:     event.SamplesSeen,
		CheckpointIndex: event.Index,
		StartTime:       event.StartTime,
		Duration:        event.Duration.Seconds(),
	})
}

func (m *metricsCallbacks) OnCrossValidationEnd(ctx context.Context, event *CrossValidationEvent) {
	m.log(ctx, &MetricsRecord{
		SessionID:   event.SessionID,
		Kind:        RecordKindCrossValidation,
		SamplesSeen: event.SamplesSeen,
		Round:       event.Round,
		MeanError:   event.MeanError,
		StartTime:   event.StartTime,
		Duration:    event.Duration.Seconds(),
	})
}

func (m *metricsCallbacks) log(ctx context.Context, record *MetricsRecord) {
	if err := m.metrics.LogRecord(ctx, record); err != nil {
		m.logFail(err)
	}
}
