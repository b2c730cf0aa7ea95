package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// crossValidationRunner drains the validation source to completion once per
// trigger, accumulating the mean error over all non-empty minibatches. A
// source that never returns an empty batch never terminates the pass; that
// is the source's contract to uphold.
type crossValidationRunner struct {
	trainer   Trainer
	fetcher   *minibatchFetcher
	batchSize int
	callbacks SessionCallbacks
	logger    *slog.Logger
	sessionID string
}

func (r *crossValidationRunner) Run(ctx context.Context, round uint64) error {
	startTime := time.Now()
	var (
		accumulated float64
		minibatches int
	)
	for {
		batch, err := r.fetcher.FetchValidation(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		errValue, err := r.trainer.TestMinibatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("cross validation step failed: %w", err)
		}
		accumulated += errValue
		minibatches++
	}

	var mean float64
	if minibatches > 0 {
		mean = accumulated / float64(minibatches)
	}
	r.callbacks.OnCrossValidationEnd(ctx, &CrossValidationEvent{
		SessionID:   r.sessionID,
		Round:       round,
		MeanError:   mean,
		Minibatches: minibatches,
		SamplesSeen: r.trainer.TotalSamplesSeen(),
		StartTime:   startTime,
		Duration:    time.Since(startTime),
	})
	r.logger.Info("cross validation complete",
		"round", round,
		"mean_error", mean,
		"minibatches", minibatches)
	return nil
}
