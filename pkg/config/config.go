package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Loss reductions supported by the trainer
const (
	ReductionSum  = "sum"
	ReductionMean = "mean"
)

// Data source kinds
const (
	SourceFile   = "file"
	SourceBadger = "badger"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Model architecture
	Model ModelConfig `mapstructure:"model" yaml:"model"`

	// Training loop hyperparameters
	Training TrainingConfig `mapstructure:"training" yaml:"training"`

	// Dataset location
	Data DataConfig `mapstructure:"data" yaml:"data"`

	// Checkpoint configuration
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`

	// Evaluation configuration
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or color
}

// ModelConfig describes the model architecture. It is copied by value into the model
// and never changed after construction.
type ModelConfig struct {
	// VocabSize is derived from the loaded vocabulary (entries + 1 for padding id 0)
	VocabSize    int     `mapstructure:"vocab_size" yaml:"vocab_size" json:"vocab_size"`
	EmbeddingDim int     `mapstructure:"embedding_dim" yaml:"embedding_dim" json:"embedding_dim"`
	HiddenDim    int     `mapstructure:"hidden_dim" yaml:"hidden_dim" json:"hidden_dim"`
	QuestionLen  int     `mapstructure:"question_len" yaml:"question_len" json:"question_len"`
	AnswerLen    int     `mapstructure:"answer_len" yaml:"answer_len" json:"answer_len"`
	FilterWidths []int   `mapstructure:"filter_widths" yaml:"filter_widths" json:"filter_widths"`
	NumFilters   int     `mapstructure:"num_filters" yaml:"num_filters" json:"num_filters"`
	Dropout      float64 `mapstructure:"dropout" yaml:"dropout" json:"dropout"`
}

// TrainingConfig holds the pairwise ranking loop hyperparameters
type TrainingConfig struct {
	BatchSize     int     `mapstructure:"batch_size" yaml:"batch_size"`
	Epochs        int     `mapstructure:"epochs" yaml:"epochs"`
	LearningRate  float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Margin        float64 `mapstructure:"margin" yaml:"margin"`
	Seed          int64   `mapstructure:"seed" yaml:"seed"` // 0 picks a time-based seed
	LossReduction string  `mapstructure:"loss_reduction" yaml:"loss_reduction"`
}

// DataConfig holds dataset configuration
type DataConfig struct {
	Source     string `mapstructure:"source" yaml:"source"` // file, badger
	Dir        string `mapstructure:"dir" yaml:"dir"`
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`
	TrainSplit string `mapstructure:"train_split" yaml:"train_split"`
	EvalSplit  string `mapstructure:"eval_split" yaml:"eval_split"`
}

// CheckpointConfig holds checkpoint configuration
type CheckpointConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// EvaluationConfig holds evaluation configuration
type EvaluationConfig struct {
	// Candidates is the number of sampled negatives used when a record has no bad list
	Candidates int `mapstructure:"candidates" yaml:"candidates"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path" yaml:"parquet_path"`
}

// DefaultModelConfig returns the architecture used for insuranceQA
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		EmbeddingDim: 256,
		HiddenDim:    256,
		QuestionLen:  20,
		AnswerLen:    150,
		FilterWidths: []int{1, 3, 5},
		NumFilters:   500,
		Dropout:      0.2,
	}
}

// DefaultTrainingConfig returns the loop hyperparameters used for insuranceQA
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		BatchSize:     100,
		Epochs:        10,
		LearningRate:  0.001,
		Margin:        0.05,
		LossReduction: ReductionSum,
	}
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v after registering defaults on it
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "color")

	model := DefaultModelConfig()
	v.SetDefault("model.vocab_size", 0)
	v.SetDefault("model.embedding_dim", model.EmbeddingDim)
	v.SetDefault("model.hidden_dim", model.HiddenDim)
	v.SetDefault("model.question_len", model.QuestionLen)
	v.SetDefault("model.answer_len", model.AnswerLen)
	v.SetDefault("model.filter_widths", model.FilterWidths)
	v.SetDefault("model.num_filters", model.NumFilters)
	v.SetDefault("model.dropout", model.Dropout)

	training := DefaultTrainingConfig()
	v.SetDefault("training.batch_size", training.BatchSize)
	v.SetDefault("training.epochs", training.Epochs)
	v.SetDefault("training.learning_rate", training.LearningRate)
	v.SetDefault("training.margin", training.Margin)
	v.SetDefault("training.seed", 0)
	v.SetDefault("training.loss_reduction", training.LossReduction)

	v.SetDefault("data.source", SourceFile)
	v.SetDefault("data.dir", "insurance_qa_python")
	v.SetDefault("data.badger_path", "answerrank_db")
	v.SetDefault("data.train_split", "train")
	v.SetDefault("data.eval_split", "test1")

	v.SetDefault("checkpoint.path", "saved_model/answer_selection_model")

	v.SetDefault("evaluation.candidates", 50)

	v.SetDefault("telemetry.parquet_path", "")
}

// Validate checks the architecture. VocabSize must already be derived.
func (c ModelConfig) Validate() error {
	if err := positive("model.vocab_size", float64(c.VocabSize)); err != nil {
		return err
	}
	if err := positive("model.embedding_dim", float64(c.EmbeddingDim)); err != nil {
		return err
	}
	if err := positive("model.hidden_dim", float64(c.HiddenDim)); err != nil {
		return err
	}
	if c.HiddenDim%2 != 0 {
		return fmt.Errorf("%w: model.hidden_dim must be even, got %d", ErrInvalidConfig, c.HiddenDim)
	}
	if err := positive("model.question_len", float64(c.QuestionLen)); err != nil {
		return err
	}
	if err := positive("model.answer_len", float64(c.AnswerLen)); err != nil {
		return err
	}
	if len(c.FilterWidths) == 0 {
		return fmt.Errorf("%w: model.filter_widths must not be empty", ErrInvalidConfig)
	}
	for _, w := range c.FilterWidths {
		if w <= 0 {
			return fmt.Errorf("%w: model.filter_widths must be positive, got %d", ErrInvalidConfig, w)
		}
	}
	if err := positive("model.num_filters", float64(c.NumFilters)); err != nil {
		return err
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: model.dropout must be in [0, 1), got %g", ErrInvalidConfig, c.Dropout)
	}
	return nil
}

// FeatureDim is the length of one extracted feature vector
func (c ModelConfig) FeatureDim() int {
	return len(c.FilterWidths) * c.NumFilters
}

// Validate checks the loop hyperparameters
func (c TrainingConfig) Validate() error {
	if err := positive("training.batch_size", float64(c.BatchSize)); err != nil {
		return err
	}
	if err := positive("training.epochs", float64(c.Epochs)); err != nil {
		return err
	}
	if err := positive("training.learning_rate", c.LearningRate); err != nil {
		return err
	}
	if err := positive("training.margin", c.Margin); err != nil {
		return err
	}
	switch strings.ToLower(c.LossReduction) {
	case ReductionSum, ReductionMean:
	default:
		return fmt.Errorf("%w: training.loss_reduction must be %q or %q, got %q",
			ErrInvalidConfig, ReductionSum, ReductionMean, c.LossReduction)
	}
	return nil
}

// Validate checks everything except the derived vocabulary size
func (c *Config) Validate() error {
	model := c.Model
	if model.VocabSize == 0 {
		// derived later from the vocabulary
		model.VocabSize = 1
	}
	if err := model.Validate(); err != nil {
		return err
	}
	if err := c.Training.Validate(); err != nil {
		return err
	}
	switch c.Data.Source {
	case SourceFile:
		if c.Data.Dir == "" {
			return fmt.Errorf("%w: data.dir is required for the file source", ErrInvalidConfig)
		}
	case SourceBadger:
		if c.Data.BadgerPath == "" {
			return fmt.Errorf("%w: data.badger_path is required for the badger source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported data.source %q", ErrInvalidConfig, c.Data.Source)
	}
	if c.Checkpoint.Path == "" {
		return fmt.Errorf("%w: checkpoint.path is required", ErrInvalidConfig)
	}
	if err := positive("evaluation.candidates", float64(c.Evaluation.Candidates)); err != nil {
		return err
	}
	return nil
}

func positive(key string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfig, key, v)
	}
	return nil
}
