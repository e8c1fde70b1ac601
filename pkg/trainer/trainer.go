// Package trainer runs the pairwise ranking training loop: per-epoch negative
// sampling, batching, hinge loss, Adam updates and an end-of-epoch checkpoint.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/soundprediction/answerrank/pkg/checkpoint"
	"github.com/soundprediction/answerrank/pkg/config"
	"github.com/soundprediction/answerrank/pkg/dataset"
	"github.com/soundprediction/answerrank/pkg/model"
	"github.com/soundprediction/answerrank/pkg/nn"
	"github.com/soundprediction/answerrank/pkg/optim"
	"github.com/soundprediction/answerrank/pkg/utils"
)

// ErrNoTrainingData is returned when the training set has no pairs
var ErrNoTrainingData = errors.New("training set is empty")

// Step is the progress report of one optimizer step
type Step struct {
	RunID string
	Epoch int
	Step  int
	Steps int
	Loss  float64
	Time  time.Time
}

// StepRecorder receives every step. Recording failures are logged, not fatal.
type StepRecorder interface {
	RecordStep(ctx context.Context, step Step) error
}

// Options configures a Trainer
type Options struct {
	Training    config.TrainingConfig
	Checkpoints *checkpoint.Manager

	// Rng drives negative sampling; nil seeds from Training.Seed
	Rng *rand.Rand

	// Optional
	Logger   *slog.Logger
	Recorder StepRecorder
	RunID    string
}

// Summary describes a finished run
type Summary struct {
	RunID          string
	Epochs         int
	Steps          int
	EpochLoss      []float64 // mean batch loss per epoch
	FinalLoss      float64
	BestLoss       float64
	CheckpointPath string
	Duration       time.Duration
}

// Trainer owns the model for the duration of training. The optimizer only holds
// references to the model parameters.
type Trainer struct {
	model       *model.AnswerSelection
	cfg         config.TrainingConfig
	layout      dataset.Layout
	optimizer   *optim.Adam
	sampler     *dataset.NegativeSampler
	checkpoints *checkpoint.Manager
	recorder    StepRecorder
	logger      *slog.Logger
	runID       string
	state       State

	// createdAt is the time of the run's first checkpoint
	createdAt time.Time
}

// New creates a trainer for m that samples negatives from pool
func New(m *model.AnswerSelection, pool dataset.AnswerPool, opts Options) (*Trainer, error) {
	if err := opts.Training.Validate(); err != nil {
		return nil, err
	}
	if opts.Checkpoints == nil {
		return nil, errors.New("trainer: checkpoint manager is required")
	}

	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(opts.Training.Seed))
	}
	arch := m.Config()
	sampler, err := dataset.NewNegativeSampler(pool, arch.AnswerLen, rng)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	return &Trainer{
		model:       m,
		cfg:         opts.Training,
		layout:      dataset.Layout{QuestionLen: arch.QuestionLen, AnswerLen: arch.AnswerLen},
		optimizer:   optim.NewAdam(m.Params(), optim.DefaultAdamConfig(opts.Training.LearningRate)),
		sampler:     sampler,
		checkpoints: opts.Checkpoints,
		recorder:    opts.Recorder,
		logger:      logger,
		runID:       runID,
		state:       StateIdle,
	}, nil
}

// State returns the current position in the training state machine
func (t *Trainer) State() State {
	return t.state
}

// RunID identifies this training run in logs, telemetry and checkpoints
func (t *Trainer) RunID() string {
	return t.runID
}

// Model returns the model being trained
func (t *Trainer) Model() *model.AnswerSelection {
	return t.model
}

// Train runs the configured number of epochs over set. The context is checked
// between steps; on cancellation the last fully written checkpoint is kept.
// Panics raised by the numeric code are returned as *utils.PanicError.
func (t *Trainer) Train(ctx context.Context, set *dataset.TrainingSet) (summary *Summary, err error) {
	defer func() {
		if err != nil {
			summary = nil
			t.state = StateIdle
		}
	}()
	defer utils.RecoverAsError(&err)

	if set == nil || set.Len() == 0 {
		return nil, ErrNoTrainingData
	}

	start := time.Now()
	t.createdAt = time.Time{}
	steps := dataset.NumBatches(set.Len(), t.cfg.BatchSize)
	summary = &Summary{
		RunID:          t.runID,
		CheckpointPath: t.checkpoints.Path(),
	}

	t.logger.Info("Starting training",
		"run_id", t.runID,
		"pairs", set.Len(),
		"epochs", t.cfg.Epochs,
		"batch_size", t.cfg.BatchSize,
		"steps_per_epoch", steps,
		"model", t.model.String())

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		t.state = StateResampleNegatives
		bad := t.sampler.Sample(set.Len())
		rows, err := dataset.Pack(t.layout, set.Questions, set.GoodAnswers, bad)
		if err != nil {
			return nil, err
		}

		losses := make([]float64, 0, steps)
		for step, batch := range dataset.Batches(rows, t.cfg.BatchSize) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			loss := t.step(batch)
			losses = append(losses, loss)
			summary.Steps++

			t.logger.Info("Training step", "epoch", epoch, "step", step, "steps", steps, "loss", loss)
			t.record(ctx, Step{RunID: t.runID, Epoch: epoch, Step: step, Steps: steps, Loss: loss, Time: time.Now()})
		}

		mean, err := stats.Mean(losses)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		summary.EpochLoss = append(summary.EpochLoss, mean)
		summary.Epochs++

		t.state = StateCheckpoint
		if err := t.saveCheckpoint(ctx, epoch, summary.Steps, mean); err != nil {
			return nil, err
		}
		t.logger.Info("Epoch finished", "epoch", epoch, "mean_loss", mean, "checkpoint", t.checkpoints.Path())
	}

	summary.FinalLoss = summary.EpochLoss[len(summary.EpochLoss)-1]
	summary.BestLoss, _ = stats.Min(summary.EpochLoss)
	summary.Duration = time.Since(start)
	t.state = StateDone

	t.logger.Info("Training finished",
		"run_id", t.runID,
		"epochs", summary.Epochs,
		"steps", summary.Steps,
		"final_loss", summary.FinalLoss,
		"duration", summary.Duration)

	return summary, nil
}

// step runs forward, loss, backward and the Adam update for one batch and
// returns the reduced batch loss. Gradients are accumulated example by example.
func (t *Trainer) step(batch [][]int) float64 {
	t.optimizer.ZeroGrad()

	scale := 1.0
	if strings.ToLower(t.cfg.LossReduction) == config.ReductionMean {
		scale = 1 / float64(len(batch))
	}

	var total float64
	for _, row := range batch {
		question, good, bad := t.layout.Split(row)

		t.state = StateForward
		goodSim, badSim, trace := t.model.ForwardTriplet(question, good, bad, true)

		t.state = StateLoss
		loss, dGood, dBad := nn.HingeLoss(goodSim, badSim, t.cfg.Margin)
		total += loss

		t.state = StateBackward
		trace.Backward(dGood*scale, dBad*scale)
	}

	t.state = StateOptimizerStep
	t.optimizer.Step()
	return total * scale
}

func (t *Trainer) saveCheckpoint(ctx context.Context, epoch, steps int, loss float64) error {
	snap := t.model.Snapshot()
	snap.RunID = t.runID
	snap.Epoch = epoch + 1
	snap.Steps = steps
	snap.Loss = loss
	snap.CreatedAt = t.createdAt
	if err := t.checkpoints.Save(ctx, snap); err != nil {
		return fmt.Errorf("epoch %d checkpoint: %w", epoch, err)
	}
	t.createdAt = snap.CreatedAt
	return nil
}

func (t *Trainer) record(ctx context.Context, step Step) {
	if t.recorder == nil {
		return
	}
	if err := t.recorder.RecordStep(ctx, step); err != nil {
		t.logger.Warn("Failed to record training step", "epoch", step.Epoch, "step", step.Step, "error", err)
	}
}
