package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/wqqgt/training"
)

type cliConfig struct {
	ConfigFile    string
	MetricsDir    string
	DatasetSize   int
	LearningRate  float64
	WorkerRank    int
	WorkerCount   int
	WarmupSamples uint64
	Verbose       bool
	JSON          bool
}

func parseFlags() cliConfig {
	var config cliConfig
	flag.StringVar(&config.ConfigFile, "config", "", "session config YAML file (required)")
	flag.StringVar(&config.MetricsDir, "metrics-dir", "", "directory for JSONL metrics logs (optional)")
	flag.IntVar(&config.DatasetSize, "dataset-size", 10000, "number of synthetic samples to generate")
	flag.Float64Var(&config.LearningRate, "learning-rate", 0.1, "SGD learning rate")
	flag.IntVar(&config.WorkerRank, "rank", 0, "simulated worker rank")
	flag.IntVar(&config.WorkerCount, "workers", 1, "simulated worker count")
	flag.Uint64Var(&config.WarmupSamples, "warmup", 0, "samples before distributed partitioning begins")
	flag.BoolVar(&config.Verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&config.JSON, "json", false, "log in JSON format")
	flag.Parse()
	return config
}

func setupLogger(config cliConfig) *slog.Logger {
	if config.JSON {
		return training.NewJSONLogger()
	}
	if config.Verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return training.NewLogger()
}

// progressCallbacks prints checkpoint and validation progress to the
// terminal.
type progressCallbacks struct {
	training.BaseSessionCallbacks
	validationSource *training.MemorySource
}

func (p *progressCallbacks) OnCheckpointEnd(ctx context.Context, event *training.CheckpointEvent) {
	kind := "checkpoint"
	if event.Last {
		kind = "final checkpoint"
	}
	color.Green("%s %d saved to %s (%d samples seen)", kind, event.Index, event.Path, event.SamplesSeen)
}

func (p *progressCallbacks) OnCrossValidationEnd(ctx context.Context, event *training.CrossValidationEvent) {
	color.Cyan("cross validation round %d: mean error %.6f over %d minibatches",
		event.Round, event.MeanError, event.Minibatches)
	// Reuse the same in-memory source for the next round.
	p.validationSource.Rewind()
}

// syntheticDataset generates a deterministic noisy linear dataset.
func syntheticDataset(n int, seed int64) (features, labels []any) {
	rng := rand.New(rand.NewSource(seed))
	features = make([]any, n)
	labels = make([]any, n)
	for i := 0; i < n; i++ {
		x := rng.Float64()
		features[i] = x
		labels[i] = 3*x + 2 + rng.NormFloat64()*0.05
	}
	return features, labels
}

func run() error {
	config := parseFlags()
	if config.ConfigFile == "" {
		flag.Usage()
		return fmt.Errorf("-config is required")
	}
	logger := setupLogger(config)

	sessionConfig, err := training.LoadConfigFile(config.ConfigFile)
	if err != nil {
		return err
	}

	// The checkpoint path is shared state across workers and the session
	// core does not gate writes by rank. Only rank 0 checkpoints.
	if config.WorkerCount > 1 && config.WorkerRank != 0 {
		logger.Info("disabling checkpointing on non-zero rank", "rank", config.WorkerRank)
		sessionConfig.CheckpointFrequency = 0
		sessionConfig.RestoreFromCheckpoint = false
	}

	var facet *training.DistributedFacet
	if config.WorkerCount > 1 {
		facet = &training.DistributedFacet{
			Rank:          config.WorkerRank,
			WorkerCount:   config.WorkerCount,
			WarmupSamples: config.WarmupSamples,
		}
	}
	trainer := newLinearTrainer(config.LearningRate, facet)

	features, labels := syntheticDataset(config.DatasetSize, 1)
	trainingSource, err := training.NewMemorySource(map[string][]any{
		"x": features,
		"y": labels,
	})
	if err != nil {
		return err
	}
	cvFeatures, cvLabels := syntheticDataset(config.DatasetSize/10, 2)
	validationSource, err := training.NewMemorySource(map[string][]any{
		"x": cvFeatures,
		"y": cvLabels,
	})
	if err != nil {
		return err
	}

	var metrics training.MetricsLogger
	if config.MetricsDir != "" {
		metrics = training.NewFileMetricsLogger(config.MetricsDir)
	}

	session, err := training.NewSession(training.Options{
		Config:                sessionConfig,
		Trainer:               trainer,
		TrainingSource:        trainingSource,
		CrossValidationSource: validationSource,
		InputBindings: map[string]string{
			"features": "x",
			"labels":   "y",
		},
		Callbacks:     &progressCallbacks{validationSource: validationSource},
		MetricsLogger: metrics,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	if err := session.Train(context.Background()); err != nil {
		return err
	}

	color.Green("session %s finished in %s", session.ID(), time.Since(start).Round(time.Millisecond))
	fmt.Printf("model: y = %.4f*x + %.4f (%d samples)\n",
		trainer.weight, trainer.bias, trainer.TotalSamplesSeen())
	return nil
}

func main() {
	if err := run(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
