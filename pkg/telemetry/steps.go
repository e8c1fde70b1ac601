// Package telemetry persists training progress and error logs as Parquet files.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/soundprediction/answerrank/pkg/trainer"
)

// DefaultStepBatchSize is the number of steps buffered before a file is written
const DefaultStepBatchSize = 500

// StepRecord is one training step as stored in Parquet
type StepRecord struct {
	ID        string    `parquet:"id"`
	RunID     string    `parquet:"run_id"`
	Epoch     int       `parquet:"epoch"`
	Step      int       `parquet:"step"`
	Steps     int       `parquet:"steps"`
	Loss      float64   `parquet:"loss"`
	Timestamp time.Time `parquet:"timestamp"`
}

// StepWriter buffers training steps and writes them to Parquet files in a directory
type StepWriter struct {
	outputDir string
	batchSize int

	mu     sync.Mutex
	buffer []StepRecord
	files  []string
}

var _ trainer.StepRecorder = (*StepWriter)(nil)

// NewStepWriter creates the output directory and a writer flushing every batchSize
// steps. A non-positive batchSize uses DefaultStepBatchSize.
func NewStepWriter(outputDir string, batchSize int) (*StepWriter, error) {
	if batchSize <= 0 {
		batchSize = DefaultStepBatchSize
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	return &StepWriter{
		outputDir: outputDir,
		batchSize: batchSize,
		buffer:    make([]StepRecord, 0, batchSize),
	}, nil
}

// RecordStep implements trainer.StepRecorder
func (w *StepWriter) RecordStep(ctx context.Context, step trainer.Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, StepRecord{
		ID:        uuid.New().String(),
		RunID:     step.RunID,
		Epoch:     step.Epoch,
		Step:      step.Step,
		Steps:     step.Steps,
		Loss:      step.Loss,
		Timestamp: step.Time.UTC(),
	})
	if len(w.buffer) >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Flush writes buffered steps to a new file
func (w *StepWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush()
}

// Close flushes the remaining steps
func (w *StepWriter) Close() error {
	return w.Flush()
}

// Files returns the paths written so far
func (w *StepWriter) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.files...)
}

// flush writes the buffer to a new Parquet file
// Caller must hold the lock
func (w *StepWriter) flush() error {
	if len(w.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("training_steps_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(w.outputDir, filename)
	if err := parquet.WriteFile(path, w.buffer); err != nil {
		return fmt.Errorf("failed to write step parquet file: %w", err)
	}

	w.files = append(w.files, path)
	w.buffer = w.buffer[:0]
	return nil
}

// ReadSteps loads every step record from a Parquet file
func ReadSteps(path string) ([]StepRecord, error) {
	rows, err := parquet.ReadFile[StepRecord](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step parquet file: %w", err)
	}
	return rows, nil
}
