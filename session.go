package training

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewSessionID returns a new unique identifier for a training session.
func NewSessionID() string {
	id, err := typeid.WithPrefix("session")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Options configures a new training session.
type Options struct {
	// Config carries the immutable session parameters.
	Config SessionConfig

	// Trainer is the computation step. Required.
	Trainer Trainer

	// TrainingSource produces training minibatches. Required.
	TrainingSource MinibatchSource

	// CrossValidationSource produces validation minibatches. Required
	// when Config.CrossValidationFrequency is non-zero.
	CrossValidationSource MinibatchSource

	// InputBindings maps model input names to source stream names. Every
	// declared input must resolve on every non-empty fetch. Required.
	InputBindings map[string]string

	// Schedule overrides the constant minibatch size from Config.
	Schedule MinibatchSizeSchedule

	// Callbacks receives lifecycle events. Defaults to a no-op.
	Callbacks SessionCallbacks

	// MetricsLogger records per-event training metrics. Defaults to none.
	MetricsLogger MetricsLogger

	// Logger is the structured logger. Defaults to discard.
	Logger *slog.Logger

	// SessionID identifies this session in logs and metrics. Generated
	// when empty.
	SessionID string
}

// Session is the training-session orchestrator: a control loop that
// repeatedly pulls a minibatch, hands it to the trainer, and decides when to
// checkpoint, cross-validate, or stop. One independent Session runs per
// worker process; the only cross-process coordination happens inside the
// trainer collaborator.
type Session struct {
	id        string
	config    SessionConfig
	trainer   Trainer
	worker    WorkerIdentity
	fetcher   *minibatchFetcher
	store     *CheckpointStore
	validator *crossValidationRunner
	state     *SessionState
	callbacks SessionCallbacks
	logger    *slog.Logger

	mutex   sync.Mutex
	started bool
}

// NewSession validates the configuration and builds a session. Invalid
// configuration fails here with a ConfigError naming the offending
// parameter, never inside the training loop.
func NewSession(opts Options) (*Session, error) {
	if opts.Trainer == nil {
		return nil, newConfigError("trainer", "is not allowed to be nil")
	}
	if opts.TrainingSource == nil {
		return nil, newConfigError("training_source", "is not allowed to be nil")
	}
	if len(opts.InputBindings) == 0 {
		return nil, newConfigError("input_bindings", "is not allowed to be empty")
	}
	if opts.Config.CheckpointFrequency > 0 && opts.Config.CheckpointPath == "" {
		return nil, newConfigError("checkpoint_path", "is required when checkpoint_frequency is set")
	}
	if opts.Config.CrossValidationFrequency > 0 && opts.CrossValidationSource == nil {
		return nil, newConfigError("cross_validation_source", "is required when cross_validation_frequency is set")
	}
	if opts.Schedule == nil {
		if opts.Config.MinibatchSize <= 0 {
			return nil, newConfigError("minibatch_size", "must be positive, got %d", opts.Config.MinibatchSize)
		}
		opts.Schedule = ConstantSchedule(opts.Config.MinibatchSize)
	}
	if opts.Config.CrossValidationBatchSize <= 0 {
		opts.Config.CrossValidationBatchSize = opts.Config.MinibatchSize
	}
	if opts.Config.CrossValidationBatchSize <= 0 {
		opts.Config.CrossValidationBatchSize = opts.Schedule.MinibatchSize(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseSessionCallbacks{}
	}
	if opts.SessionID == "" {
		opts.SessionID = NewSessionID()
	}

	worker, err := resolveWorkerIdentity(opts.Trainer)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.With("session_id", opts.SessionID)

	callbacks := opts.Callbacks
	if opts.MetricsLogger != nil {
		callbacks = NewCallbackChain(opts.Callbacks, &metricsCallbacks{
			metrics: opts.MetricsLogger,
			logFail: func(err error) {
				logger.Error("failed to log metrics record", "error", err)
			},
		})
	}

	fetcher := &minibatchFetcher{
		training:   opts.TrainingSource,
		validation: opts.CrossValidationSource,
		bindings:   opts.InputBindings,
		schedule:   opts.Schedule,
	}
	state := newSessionState()

	session := &Session{
		id:        opts.SessionID,
		config:    opts.Config,
		trainer:   opts.Trainer,
		worker:    worker,
		fetcher:   fetcher,
		state:     state,
		callbacks: callbacks,
		logger:    logger,
	}
	session.store = &CheckpointStore{
		trainer:   opts.Trainer,
		source:    opts.TrainingSource,
		path:      opts.Config.CheckpointPath,
		saveAll:   opts.Config.SaveAllCheckpoints,
		state:     state,
		callbacks: callbacks,
		logger:    logger,
		sessionID: opts.SessionID,
	}
	session.validator = &crossValidationRunner{
		trainer:   opts.Trainer,
		fetcher:   fetcher,
		batchSize: opts.Config.CrossValidationBatchSize,
		callbacks: callbacks,
		logger:    logger,
		sessionID: opts.SessionID,
	}
	return session, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// WorkerIdentity returns the resolved distributed identity of this process.
func (s *Session) WorkerIdentity() WorkerIdentity {
	return s.worker
}

// CheckpointStore returns the session's checkpoint store.
func (s *Session) CheckpointStore() *CheckpointStore {
	return s.store
}

func (s *Session) start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started {
		return fmt.Errorf("session already started")
	}
	s.started = true
	return nil
}

// Train runs the session to completion. It optionally restores from the
// most recent checkpoint, then loops: partition work for this iteration,
// fetch the next batch (or pass an empty one once the sample budget is
// exhausted), step the trainer, and evaluate the checkpoint and
// cross-validation triggers. The loop exits when the trainer signals
// completion; collaborator failures are fatal and propagate without retry.
// A final checkpoint is always saved when checkpointing is enabled.
func (s *Session) Train(ctx context.Context) error {
	if err := s.start(); err != nil {
		return err
	}

	if s.config.RestoreFromCheckpoint {
		if err := s.store.Discover(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("training session starting",
		"max_samples", s.config.MaxSamples,
		"worker_rank", s.worker.Rank,
		"worker_count", s.worker.WorkerCount,
		"warmup_samples", s.worker.WarmupSamples)

	checkpointTrigger := PeriodicTrigger{Period: s.config.CheckpointFrequency}
	validationTrigger := PeriodicTrigger{Period: s.config.CrossValidationFrequency}

	shouldTrain := s.config.MaxSamples > 0
	for shouldTrain {
		seen := s.trainer.TotalSamplesSeen()
		rank, workerCount := s.effectivePartition(seen)

		batch := Minibatch{}
		if seen < s.config.MaxSamples {
			var err error
			batch, err = s.fetcher.FetchTraining(ctx, seen, rank, workerCount)
			if err != nil {
				return err
			}
		}

		event := &MinibatchEvent{
			SessionID:   s.id,
			SamplesSeen: seen,
			BatchEmpty:  len(batch) == 0,
			StartTime:   time.Now(),
		}
		s.callbacks.OnMinibatchStart(ctx, event)
		var err error
		shouldTrain, err = s.trainer.TrainMinibatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("training step failed: %w", err)
		}
		event.SamplesSeen = s.trainer.TotalSamplesSeen()
		event.Duration = time.Since(event.StartTime)
		s.callbacks.OnMinibatchEnd(ctx, event)

		seen = s.trainer.TotalSamplesSeen()
		if index, fired := checkpointTrigger.Crossed(seen, s.state.CheckpointIndex()); fired {
			s.state.SetCheckpointIndex(index)
			if err := s.store.Save(ctx, false); err != nil {
				return err
			}
		}
		if round, fired := validationTrigger.Crossed(seen, s.state.ValidationIndex()); fired {
			s.state.SetValidationIndex(round)
			if err := s.validator.Run(ctx, round); err != nil {
				return err
			}
		}
	}

	// Always save the last checkpoint, regardless of trigger alignment.
	if s.config.CheckpointFrequency > 0 {
		if err := s.store.Save(ctx, true); err != nil {
			return err
		}
	}

	s.logger.Info("training session complete",
		"samples_seen", s.trainer.TotalSamplesSeen(),
		"checkpoint_index", s.state.CheckpointIndex())
	return nil
}

// effectivePartition resolves the worker partitioning for one iteration.
// The switch from unpartitioned warm-up to the real rank and count is
// latched so it can never revert, even if the trainer's counter misbehaves.
func (s *Session) effectivePartition(samplesSeen uint64) (rank, workerCount int) {
	if !s.state.Distributed() && samplesSeen >= s.worker.WarmupSamples {
		s.state.LatchDistributed()
		if s.worker.WorkerCount > 1 {
			s.logger.Info("switching to distributed partitioning",
				"samples_seen", samplesSeen,
				"worker_rank", s.worker.Rank,
				"worker_count", s.worker.WorkerCount)
		}
	}
	if s.state.Distributed() {
		return s.worker.Rank, s.worker.WorkerCount
	}
	return 0, 1
}
