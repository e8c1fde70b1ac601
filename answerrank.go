package answerrank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/soundprediction/answerrank/pkg/checkpoint"
	"github.com/soundprediction/answerrank/pkg/config"
	"github.com/soundprediction/answerrank/pkg/dataset"
	"github.com/soundprediction/answerrank/pkg/evaluate"
	"github.com/soundprediction/answerrank/pkg/model"
	"github.com/soundprediction/answerrank/pkg/telemetry"
	"github.com/soundprediction/answerrank/pkg/trainer"
)

// Client wires a configuration to the dataset, model, trainer and evaluator
type Client struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewClient validates cfg and returns a client. A nil logger uses slog.Default().
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("answerrank: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}, nil
}

// Config returns the client configuration
func (c *Client) Config() *config.Config {
	return c.cfg
}

// OpenSource opens the configured dataset source. The returned close function
// must be called when done.
func (c *Client) OpenSource(ctx context.Context) (dataset.Source, func() error, error) {
	switch c.cfg.Data.Source {
	case config.SourceBadger:
		store, err := dataset.OpenBadgerStore(c.cfg.Data.BadgerPath, c.logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return dataset.NewFileSource(c.cfg.Data.Dir), func() error { return nil }, nil
	}
}

func (c *Client) closeSource(closeFn func() error) {
	if err := closeFn(); err != nil {
		c.logger.Warn("Failed to close dataset source", "error", err)
	}
}

// ResolveSeed returns seed, or a time-based seed when it is 0
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// Train loads the training split, builds a fresh model and runs the trainer.
// A checkpoint is written to checkpoint.path after every epoch.
func (c *Client) Train(ctx context.Context) (*trainer.Summary, error) {
	src, closeSource, err := c.OpenSource(ctx)
	if err != nil {
		return nil, err
	}
	defer c.closeSource(closeSource)

	corpus, err := dataset.Load(ctx, src, c.cfg.Data.TrainSplit)
	if err != nil {
		return nil, err
	}

	modelCfg := c.cfg.Model
	if modelCfg.VocabSize == 0 {
		modelCfg.VocabSize = corpus.Vocab.Size()
	}
	if err := dataset.ValidateTokens(corpus.Records, corpus.Answers, modelCfg.VocabSize); err != nil {
		return nil, fmt.Errorf("invalid training data: %w", err)
	}
	set, err := dataset.Flatten(corpus.Records, corpus.Answers, modelCfg.QuestionLen, modelCfg.AnswerLen)
	if err != nil {
		return nil, fmt.Errorf("invalid training data: %w", err)
	}

	seed := ResolveSeed(c.cfg.Training.Seed)
	c.logger.Info("Loaded training data",
		"split", c.cfg.Data.TrainSplit,
		"records", len(corpus.Records),
		"pairs", set.Len(),
		"answers", len(corpus.Answers),
		"vocab_size", modelCfg.VocabSize,
		"seed", seed)

	master := rand.New(rand.NewSource(seed))
	m, err := model.New(modelCfg, rand.New(rand.NewSource(master.Int63())))
	if err != nil {
		return nil, err
	}

	manager, err := checkpoint.NewManager(c.cfg.Checkpoint.Path)
	if err != nil {
		return nil, err
	}

	opts := trainer.Options{
		Training:    c.cfg.Training,
		Checkpoints: manager,
		Rng:         rand.New(rand.NewSource(master.Int63())),
		Logger:      c.logger,
	}
	if path := c.cfg.Telemetry.ParquetPath; path != "" {
		writer, err := telemetry.NewStepWriter(path, 0)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := writer.Close(); err != nil {
				c.logger.Warn("Failed to flush step telemetry", "error", err)
			}
		}()
		opts.Recorder = writer
	}

	tr, err := trainer.New(m, corpus.Answers, opts)
	if err != nil {
		return nil, err
	}
	return tr.Train(telemetry.WithRunID(ctx, tr.RunID()), set)
}

// LoadModel restores the model saved at checkpoint.path
func (c *Client) LoadModel(ctx context.Context) (*model.AnswerSelection, *checkpoint.ModelCheckpoint, error) {
	manager, err := checkpoint.NewManager(c.cfg.Checkpoint.Path)
	if err != nil {
		return nil, nil, err
	}
	ckpt, err := manager.MustLoad(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := model.FromCheckpoint(ckpt, rand.New(rand.NewSource(1)))
	if err != nil {
		return nil, nil, err
	}
	return m, ckpt, nil
}

// Evaluate scores the evaluation split with the saved model
func (c *Client) Evaluate(ctx context.Context) (*evaluate.Result, error) {
	m, ckpt, err := c.LoadModel(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Loaded checkpoint", "path", c.cfg.Checkpoint.Path, "run_id", ckpt.RunID, "epoch", ckpt.Epoch)

	src, closeSource, err := c.OpenSource(ctx)
	if err != nil {
		return nil, err
	}
	defer c.closeSource(closeSource)

	corpus, err := dataset.Load(ctx, src, c.cfg.Data.EvalSplit)
	if err != nil {
		return nil, err
	}
	arch := m.Config()
	if err := dataset.ValidateTokens(corpus.Records, corpus.Answers, arch.VocabSize); err != nil {
		return nil, fmt.Errorf("invalid evaluation data: %w", err)
	}

	e, err := evaluate.New(m, corpus.Answers, evaluate.Options{
		QuestionLen: arch.QuestionLen,
		AnswerLen:   arch.AnswerLen,
		Candidates:  c.cfg.Evaluation.Candidates,
		Rng:         rand.New(rand.NewSource(ResolveSeed(c.cfg.Training.Seed))),
		Logger:      c.logger,
		Vocab:       corpus.Vocab,
	})
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, corpus.Records)
}

// Import copies a file corpus from dir into the badger store at data.badger_path
func (c *Client) Import(ctx context.Context, dir string, splits []string) (*dataset.ImportStats, error) {
	store, err := dataset.OpenBadgerStore(c.cfg.Data.BadgerPath, c.logger)
	if err != nil {
		return nil, err
	}
	defer c.closeSource(store.Close)

	return store.Import(ctx, dataset.NewFileSource(dir), splits)
}
