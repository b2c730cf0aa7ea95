package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/wqqgt/training"
)

// linearTrainer is a small SGD linear-regression trainer used to demonstrate
// a resumable session end to end. It fits y = w*x + b against the
// "features" and "labels" inputs.
type linearTrainer struct {
	weight       float64
	bias         float64
	learningRate float64
	samplesSeen  uint64
	learners     []training.Learner
}

// sgdLearner optionally advertises a distributed facet, letting the demo
// exercise the warm-up transition with simulated worker identities.
type sgdLearner struct {
	facet *training.DistributedFacet
}

func (l *sgdLearner) Distributed() (training.DistributedFacet, bool) {
	if l.facet == nil {
		return training.DistributedFacet{}, false
	}
	return *l.facet, true
}

func newLinearTrainer(learningRate float64, facet *training.DistributedFacet) *linearTrainer {
	return &linearTrainer{
		learningRate: learningRate,
		learners:     []training.Learner{&sgdLearner{facet: facet}},
	}
}

func (t *linearTrainer) TrainMinibatch(ctx context.Context, batch training.Minibatch) (bool, error) {
	features, labels, err := batchSamples(batch)
	if err != nil {
		return false, err
	}
	// An empty batch means the sample budget is exhausted: stop.
	if len(features) == 0 {
		return false, nil
	}

	var gradW, gradB float64
	for i, x := range features {
		predicted := t.weight*x + t.bias
		residual := predicted - labels[i]
		gradW += residual * x
		gradB += residual
	}
	n := float64(len(features))
	t.weight -= t.learningRate * gradW / n
	t.bias -= t.learningRate * gradB / n
	t.samplesSeen += uint64(len(features))
	return true, nil
}

func (t *linearTrainer) TestMinibatch(ctx context.Context, batch training.Minibatch) (float64, error) {
	features, labels, err := batchSamples(batch)
	if err != nil {
		return 0, err
	}
	if len(features) == 0 {
		return 0, nil
	}
	var sum float64
	for i, x := range features {
		residual := t.weight*x + t.bias - labels[i]
		sum += residual * residual
	}
	return sum / float64(len(features)), nil
}

// checkpointFile is the on-disk model format. The session's external state
// goes into the sidecar marker, whose presence signals a complete save.
type checkpointFile struct {
	Weight      float64 `json:"weight"`
	Bias        float64 `json:"bias"`
	SamplesSeen uint64  `json:"samples_seen"`
}

func (t *linearTrainer) SaveCheckpoint(ctx context.Context, path string, externalState map[string]any) error {
	model, err := json.Marshal(checkpointFile{
		Weight:      t.weight,
		Bias:        t.bias,
		SamplesSeen: t.samplesSeen,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, model, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	state, err := json.Marshal(externalState)
	if err != nil {
		return err
	}
	// The sidecar goes last: it marks the checkpoint as complete.
	if err := os.WriteFile(path+training.CheckpointMarkerExt, state, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint marker: %w", err)
	}
	return nil
}

func (t *linearTrainer) RestoreFromCheckpoint(ctx context.Context, path string) (map[string]any, error) {
	model, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp checkpointFile
	if err := json.Unmarshal(model, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	state, err := os.ReadFile(path + training.CheckpointMarkerExt)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint marker: %w", err)
	}
	var externalState map[string]any
	if err := json.Unmarshal(state, &externalState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint marker: %w", err)
	}
	t.weight = cp.Weight
	t.bias = cp.Bias
	t.samplesSeen = cp.SamplesSeen
	return externalState, nil
}

func (t *linearTrainer) TotalSamplesSeen() uint64 {
	return t.samplesSeen
}

func (t *linearTrainer) ParameterLearners() []training.Learner {
	return t.learners
}

func batchSamples(batch training.Minibatch) (features, labels []float64, err error) {
	if len(batch) == 0 {
		return nil, nil, nil
	}
	features, err = floatSamples(batch, "features")
	if err != nil {
		return nil, nil, err
	}
	labels, err = floatSamples(batch, "labels")
	if err != nil {
		return nil, nil, err
	}
	if len(features) != len(labels) {
		return nil, nil, fmt.Errorf("features and labels differ in length: %d vs %d", len(features), len(labels))
	}
	return features, labels, nil
}

func floatSamples(batch training.Minibatch, input string) ([]float64, error) {
	payload, ok := batch[input]
	if !ok {
		return nil, fmt.Errorf("batch is missing input %q", input)
	}
	samples, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("input %q has unexpected payload type %T", input, payload)
	}
	values := make([]float64, len(samples))
	for i, sample := range samples {
		value, ok := sample.(float64)
		if !ok {
			return nil, fmt.Errorf("input %q sample %d has unexpected type %T", input, i, sample)
		}
		values[i] = value
	}
	return values, nil
}
