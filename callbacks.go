package training

import (
	"context"
	"time"
)

// SessionCallbacks defines the callback interface for training session
// lifecycle events. Callbacks are invoked synchronously from the session
// loop; a slow callback stalls training.
type SessionCallbacks interface {
	// Minibatch callbacks bracket each training step, including the final
	// step that receives an empty batch.
	OnMinibatchStart(ctx context.Context, event *MinibatchEvent)
	OnMinibatchEnd(ctx context.Context, event *MinibatchEvent)

	// Checkpoint callbacks bracket each checkpoint save.
	OnCheckpointStart(ctx context.Context, event *CheckpointEvent)
	OnCheckpointEnd(ctx context.Context, event *CheckpointEvent)

	// OnCrossValidationEnd reports the outcome of one full pass over the
	// validation source.
	OnCrossValidationEnd(ctx context.Context, event *CrossValidationEvent)
}

// MinibatchEvent provides context for minibatch-level events.
type MinibatchEvent struct {
	SessionID   string
	SamplesSeen uint64
	BatchEmpty  bool
	StartTime   time.Time
	Duration    time.Duration
}

// CheckpointEvent provides context for checkpoint save events.
type CheckpointEvent struct {
	SessionID   string
	Index       uint64
	Path        string
	Last        bool
	SamplesSeen uint64
	StartTime   time.Time
	Duration    time.Duration
}

// CrossValidationEvent provides context for cross-validation round events.
type CrossValidationEvent struct {
	SessionID   string
	Round       uint64
	MeanError   float64
	Minibatches int
	SamplesSeen uint64
	StartTime   time.Time
	Duration    time.Duration
}

// BaseSessionCallbacks provides a default implementation that does nothing.
// Embed it to implement only the callbacks you care about.
type BaseSessionCallbacks struct{}

func (b *BaseSessionCallbacks) OnMinibatchStart(ctx context.Context, event *MinibatchEvent) {
	// noop
}

func (b *BaseSessionCallbacks) OnMinibatchEnd(ctx context.Context, event *MinibatchEvent) {
	// noop
}

func (b *BaseSessionCallbacks) OnCheckpointStart(ctx context.Context, event *CheckpointEvent) {
	// noop
}

func (b *BaseSessionCallbacks) OnCheckpointEnd(ctx context.Context, event *CheckpointEvent) {
	// noop
}

func (b *BaseSessionCallbacks) OnCrossValidationEnd(ctx context.Context, event *CrossValidationEvent) {
	// noop
}

// NewBaseSessionCallbacks creates a new no-op callbacks implementation.
func NewBaseSessionCallbacks() SessionCallbacks {
	return &BaseSessionCallbacks{}
}

// CallbackChain fans session events out to multiple callback
// implementations, invoked in order.
type CallbackChain struct {
	callbacks []SessionCallbacks
}

// NewCallbackChain creates a new callback chain.
func NewCallbackChain(callbacks ...SessionCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add appends a callback to the chain.
func (c *CallbackChain) Add(callback SessionCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) OnMinibatchStart(ctx context.Context, event *MinibatchEvent) {
	for _, callback := range c.callbacks {
		callback.OnMinibatchStart(ctx, event)
	}
}

func (c *CallbackChain) OnMinibatchEnd(ctx context.Context, event *MinibatchEvent) {
	for _, callback := range c.callbacks {
		callback.OnMinibatchEnd(ctx, event)
	}
}

func (c *CallbackChain) OnCheckpointStart(ctx context.Context, event *CheckpointEvent) {
	for _, callback := range c.callbacks {
		callback.OnCheckpointStart(ctx, event)
	}
}

func (c *CallbackChain) OnCheckpointEnd(ctx context.Context, event *CheckpointEvent) {
	for _, callback := range c.callbacks {
		callback.OnCheckpointEnd(ctx, event)
	}
}

func (c *CallbackChain) OnCrossValidationEnd(ctx context.Context, event *CrossValidationEvent) {
	for _, callback := range c.callbacks {
		callback.OnCrossValidationEnd(ctx, event)
	}
}
