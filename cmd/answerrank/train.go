package answerrank

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundprediction/answerrank"
	"github.com/soundprediction/answerrank/pkg/config"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the answer selection model",
	Long: `Train a fresh model on the training split.

Every epoch draws one wrong answer per (question, good answer) pair, runs the
pairs through the hinge loss in batches and saves a checkpoint. Interrupting
the command stops after the current step; the last finished epoch stays on disk.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().Int("epochs", 10, "number of passes over the training pairs")
	trainCmd.Flags().Int("batch-size", 100, "pairs per optimizer step")
	trainCmd.Flags().Float64("learning-rate", 0.001, "Adam learning rate")
	trainCmd.Flags().Float64("margin", 0.05, "hinge loss margin")
	trainCmd.Flags().Int64("seed", 0, "random seed (0 picks one from the clock)")
	trainCmd.Flags().String("loss-reduction", config.ReductionSum, "batch loss reduction (sum, mean)")
	trainCmd.Flags().String("split", "train", "training split name")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	overrideTrainingWithFlags(cmd, cfg)

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := answerrank.NewClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := client.Train(ctx)
	if err != nil {
		log.Error("Training failed", "error", err)
		return err
	}

	fmt.Printf("run %s: %d epochs, %d steps, final loss %.6f, best loss %.6f\n",
		summary.RunID, summary.Epochs, summary.Steps, summary.FinalLoss, summary.BestLoss)
	fmt.Printf("checkpoint: %s\n", summary.CheckpointPath)
	return nil
}

func overrideTrainingWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("epochs") {
		cfg.Training.Epochs, _ = cmd.Flags().GetInt("epochs")
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Training.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}
	if cmd.Flags().Changed("learning-rate") {
		cfg.Training.LearningRate, _ = cmd.Flags().GetFloat64("learning-rate")
	}
	if cmd.Flags().Changed("margin") {
		cfg.Training.Margin, _ = cmd.Flags().GetFloat64("margin")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Training.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("loss-reduction") {
		cfg.Training.LossReduction, _ = cmd.Flags().GetString("loss-reduction")
	}
	if cmd.Flags().Changed("split") {
		cfg.Data.TrainSplit, _ = cmd.Flags().GetString("split")
	}
}
