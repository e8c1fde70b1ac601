package answerrank

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundprediction/answerrank"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Rank candidate answers with a saved model",
	Long: `Restore the checkpoint and rank the candidates of every question in
the evaluation split. Records without a bad list get sampled wrong answers.
Reports precision@1 and mean reciprocal rank.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("split", "test1", "evaluation split name")
	evaluateCmd.Flags().Int("candidates", 50, "sampled wrong answers per question without a bad list")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("split") {
		cfg.Data.EvalSplit, _ = cmd.Flags().GetString("split")
	}
	if cmd.Flags().Changed("candidates") {
		cfg.Evaluation.Candidates, _ = cmd.Flags().GetInt("candidates")
	}

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

	result, err := client.Evaluate(ctx)
	if err != nil {
		log.Error("Evaluation failed", "error", err)
		return err
	}

	fmt.Printf("split:       %s\n", cfg.Data.EvalSplit)
	fmt.Printf("questions:   %d (skipped %d)\n", result.Questions, result.Skipped)
	fmt.Printf("precision@1: %.4f\n", result.PrecisionAt1)
	fmt.Printf("mrr:         %.4f\n", result.MRR)
	fmt.Printf("mean scores: good %.4f, bad %.4f\n", result.MeanGoodScore, result.MeanBadScore)
	return nil
}
