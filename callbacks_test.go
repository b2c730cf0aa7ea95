package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// namedCallbacks records which implementation saw each event.
type namedCallbacks struct {
	BaseSessionCallbacks
	name string
	log  *[]string
}

func (c *namedCallbacks) OnMinibatchStart(ctx context.Context, event *MinibatchEvent) {
	*c.log = append(*c.log, c.name+":minibatch_start")
}

func (c *namedCallbacks) OnCheckpointEnd(ctx context.Context, event *CheckpointEvent) {
	*c.log = append(*c.log, c.name+":checkpoint_end")
}

func TestCallbackChainOrder(t *testing.T) {
	var log []string
	chain := NewCallbackChain(
		&namedCallbacks{name: "first", log: &log},
		&namedCallbacks{name: "second", log: &log},
	)
	chain.Add(&namedCallbacks{name: "third", log: &log})

	ctx := context.Background()
	chain.OnMinibatchStart(ctx, &MinibatchEvent{})
	chain.OnCheckpointEnd(ctx, &CheckpointEvent{})

	require.Equal(t, []string{
		"first:minibatch_start",
		"second:minibatch_start",
		"third:minibatch_start",
		"first:checkpoint_end",
		"second:checkpoint_end",
		"third:checkpoint_end",
	}, log)
}

func TestBaseSessionCallbacksIsNoop(t *testing.T) {
	// Base callbacks must be safely embeddable with no behavior.
	ctx := context.Background()
	base := NewBaseSessionCallbacks()
	base.OnMinibatchStart(ctx, &MinibatchEvent{})
	base.OnMinibatchEnd(ctx, &MinibatchEvent{})
	base.OnCheckpointStart(ctx, &CheckpointEvent{})
	base.OnCheckpointEnd(ctx, &CheckpointEvent{})
	base.OnCrossValidationEnd(ctx, &CrossValidationEvent{})
}
