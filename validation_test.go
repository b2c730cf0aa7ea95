package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordedValidation captures cross-validation events.
type recordedValidation struct {
	BaseSessionCallbacks
	events []*CrossValidationEvent
}

func (r *recordedValidation) OnCrossValidationEnd(ctx context.Context, event *CrossValidationEvent) {
	r.events = append(r.events, event)
}

func newTestValidator(t *testing.T, trainer Trainer, source MinibatchSource, batchSize int, callbacks SessionCallbacks) *crossValidationRunner {
	t.Helper()
	return &crossValidationRunner{
		trainer: trainer,
		fetcher: &minibatchFetcher{
			validation: source,
			bindings:   map[string]string{"features": "features"},
			schedule:   ConstantSchedule(batchSize),
		},
		batchSize: batchSize,
		callbacks: callbacks,
		logger:    discardLogger(),
		sessionID: "session_test",
	}
}

func TestCrossValidationMeanError(t *testing.T) {
	// Three non-empty batches with errors 0.1, 0.2, 0.3 then exhaustion:
	// the reported mean is 0.2.
	trainer := &stubTrainer{testErrors: []float64{0.1, 0.2, 0.3}}
	callbacks := &recordedValidation{}
	validator := newTestValidator(t, trainer, newTestSource(t, 30), 10, callbacks)

	require.NoError(t, validator.Run(context.Background(), 1))
	require.Len(t, callbacks.events, 1)
	event := callbacks.events[0]
	require.Equal(t, uint64(1), event.Round)
	require.Equal(t, 3, event.Minibatches)
	require.InDelta(t, 0.2, event.MeanError, 1e-9)
}

func TestCrossValidationExhaustedSource(t *testing.T) {
	trainer := &stubTrainer{testErrors: []float64{0.5}}
	source := newTestSource(t, 10)
	// Drain the source up front; the round sees zero batches.
	_, err := source.NextBatch(context.Background(), 10, 1, 0)
	require.NoError(t, err)

	callbacks := &recordedValidation{}
	validator := newTestValidator(t, trainer, source, 10, callbacks)
	require.NoError(t, validator.Run(context.Background(), 2))

	require.Len(t, callbacks.events, 1)
	require.Zero(t, callbacks.events[0].Minibatches)
	require.Zero(t, callbacks.events[0].MeanError)
	require.Zero(t, trainer.testCalls)
}

func TestCrossValidationRoundsViaSession(t *testing.T) {
	trainer := &stubTrainer{
		learners:   []Learner{&stubLearner{}},
		testErrors: []float64{0.4},
	}
	callbacks := &recordedValidation{}
	session, err := NewSession(Options{
		Config: SessionConfig{
			MaxSamples:               90,
			MinibatchSize:            10,
			CrossValidationFrequency: 40,
		},
		Trainer:               trainer,
		TrainingSource:        newTestSource(t, 90),
		CrossValidationSource: newTestSource(t, 20),
		InputBindings:         map[string]string{"features": "features"},
		Callbacks:             callbacks,
		Logger:                discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, session.Train(context.Background()))

	// Boundaries at 40 and 80 samples: rounds 1 and 2, in order.
	require.Len(t, callbacks.events, 2)
	require.Equal(t, uint64(1), callbacks.events[0].Round)
	require.Equal(t, uint64(2), callbacks.events[1].Round)
	require.Equal(t, 2, callbacks.events[0].Minibatches)
	require.InDelta(t, 0.4, callbacks.events[0].MeanError, 1e-9)
}
