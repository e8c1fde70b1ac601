package answerrank

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/soundprediction/answerrank/pkg/config"
	"github.com/soundprediction/answerrank/pkg/logger"
	"github.com/soundprediction/answerrank/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "answerrank",
		Short: "answerrank: BiLSTM-CNN answer selection",
		Long: `answerrank trains and evaluates a question/answer matching model.

Questions and candidate answers are encoded by a shared bidirectional LSTM and
convolutional feature extractor and compared with cosine similarity. Training
uses a pairwise hinge loss over sampled wrong answers.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.answerrank.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "color", "log format (color, text, json)")
	rootCmd.PersistentFlags().String("data-source", config.SourceFile, "dataset source (file, badger)")
	rootCmd.PersistentFlags().String("data-dir", "insurance_qa_python", "directory holding the JSON or YAML corpus")
	rootCmd.PersistentFlags().String("badger-path", "answerrank_db", "badger database directory")
	rootCmd.PersistentFlags().String("checkpoint", "saved_model/answer_selection_model", "checkpoint file")
	rootCmd.PersistentFlags().String("telemetry-parquet-path", "", "directory for step and error telemetry")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("data.source", rootCmd.PersistentFlags().Lookup("data-source"))
	viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("data.badger_path", rootCmd.PersistentFlags().Lookup("badger-path"))
	viper.BindPFlag("checkpoint.path", rootCmd.PersistentFlags().Lookup("checkpoint"))
	viper.BindPFlag("telemetry.parquet_path", rootCmd.PersistentFlags().Lookup("telemetry-parquet-path"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".answerrank" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".answerrank")
	}

	// ANSWERRANK_TRAINING_EPOCHS overrides training.epochs
	viper.SetEnvPrefix("answerrank")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the effective configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Error records are also kept in
// Parquet files when a telemetry directory is configured.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Telemetry.ParquetPath == "" {
		return log, func() {}, nil
	}
	parquetHandler, err := telemetry.NewParquetHandler(log.Handler(), cfg.Telemetry.ParquetPath)
	if err != nil {
		log.Warn("Failed to initialize error tracking", "error", err)
		return log, func() {}, nil
	}
	closeFn := func() {
		if err := parquetHandler.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to flush error telemetry: %v\n", err)
		}
	}
	return slog.New(parquetHandler), closeFn, nil
}
