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

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a file corpus into the badger store",
	Long: `Read the vocabulary, answer pool and the named splits from a directory
of JSON or YAML files and write them to the badger database at data.badger_path.
Train and evaluate read from it with --data-source badger.`,
	RunE: runImport,
}

var (
	importDir    string
	importSplits []string
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importDir, "dir", "", "corpus directory (defaults to data.dir)")
	importCmd.Flags().StringSliceVar(&importSplits, "splits", []string{"train", "dev", "test1", "test2"}, "splits to import")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := importDir
	if dir == "" {
		dir = cfg.Data.Dir
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

	stats, err := client.Import(ctx, dir, importSplits)
	if err != nil {
		log.Error("Import failed", "dir", dir, "error", err)
		return err
	}

	fmt.Printf("imported %d words and %d answers into %s\n", stats.Words, stats.Answers, cfg.Data.BadgerPath)
	for _, split := range importSplits {
		if n, ok := stats.Records[split]; ok {
			fmt.Printf("  %s: %d records\n", split, n)
		}
	}
	return nil
}
