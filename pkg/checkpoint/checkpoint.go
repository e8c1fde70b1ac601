package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/answerrank/pkg/config"
)

// FormatVersion is bumped whenever the on-disk layout changes
const FormatVersion = 1

// DefaultPath is used when no checkpoint path is configured
const DefaultPath = "saved_model/answer_selection_model"

// ErrInvalidPath is returned when the checkpoint path is unusable
var ErrInvalidPath = errors.New("invalid checkpoint path")

// ErrNotFound is returned by MustLoad when no checkpoint has been written yet
var ErrNotFound = errors.New("checkpoint not found")

// Tensor is a row-major matrix
type Tensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// ModelCheckpoint is a complete snapshot of a model: its architecture and every
// parameter by name, plus bookkeeping about the run that produced it
type ModelCheckpoint struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`

	// Training progress
	Epoch int     `json:"epoch"`
	Steps int     `json:"steps"`
	Loss  float64 `json:"loss"` // mean batch loss of the last finished epoch

	// Timestamp tracking
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`

	// Model
	Architecture config.ModelConfig `json:"architecture"`
	Params       map[string]Tensor  `json:"params"`
}

// Manager persists one model checkpoint at a fixed path. Every Save overwrites
// the previous checkpoint; there is no versioning.
type Manager struct {
	path string
}

// NewManager creates a checkpoint manager for path.
// If path is empty, uses DefaultPath.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := validatePath(path); err != nil {
		return nil, err
	}

	// Create checkpoint directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Manager{path: path}, nil
}

// validatePath rejects paths that cannot hold a checkpoint file
func validatePath(path string) error {
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return ErrInvalidPath
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)
	}
	return nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.path
}

// Save persists the checkpoint to disk, replacing any previous one
func (m *Manager) Save(ctx context.Context, checkpoint *ModelCheckpoint) error {
	now := time.Now()
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = now
	}
	checkpoint.LastUpdatedAt = now
	checkpoint.Version = FormatVersion

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	return nil
}

// Load retrieves the checkpoint from disk. It returns nil, nil when none exists.
func (m *Manager) Load(ctx context.Context) (*ModelCheckpoint, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint ModelCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if checkpoint.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d (want %d)", checkpoint.Version, FormatVersion)
	}

	return &checkpoint, nil
}

// MustLoad is Load that treats a missing checkpoint as ErrNotFound
func (m *Manager) MustLoad(ctx context.Context) (*ModelCheckpoint, error) {
	checkpoint, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, fmt.Errorf("%w at %s", ErrNotFound, m.path)
	}
	return checkpoint, nil
}

// Delete removes the checkpoint from disk
func (m *Manager) Delete(ctx context.Context) error {
	if err := os.Remove(m.path); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}

	return nil
}

// Exists checks if a checkpoint has been written
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check checkpoint existence: %w", err)
	}

	return true, nil
}

// ParamCount returns the number of scalar parameters stored
func (c *ModelCheckpoint) ParamCount() int {
	total := 0
	for _, t := range c.Params {
		total += len(t.Data)
	}
	return total
}

// Summary provides a human-readable summary of the checkpoint
func (c *ModelCheckpoint) Summary() string {
	summary := fmt.Sprintf("Run: %s\n", c.RunID)
	summary += fmt.Sprintf("Epoch: %d\n", c.Epoch)
	summary += fmt.Sprintf("Steps: %d\n", c.Steps)
	summary += fmt.Sprintf("Loss: %.6f\n", c.Loss)
	summary += fmt.Sprintf("Created: %s\n", c.CreatedAt.Format(time.RFC3339))
	summary += fmt.Sprintf("Last Updated: %s\n", c.LastUpdatedAt.Format(time.RFC3339))

	a := c.Architecture
	summary += fmt.Sprintf("Architecture: vocab=%d embedding=%d hidden=%d question_len=%d answer_len=%d filters=%v x %d dropout=%.2f\n",
		a.VocabSize, a.EmbeddingDim, a.HiddenDim, a.QuestionLen, a.AnswerLen, a.FilterWidths, a.NumFilters, a.Dropout)

	names := make([]string, 0, len(c.Params))
	for name := range c.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	summary += fmt.Sprintf("Parameters: %d tensors, %d values\n", len(names), c.ParamCount())
	for _, name := range names {
		t := c.Params[name]
		summary += fmt.Sprintf("  %s: %dx%d\n", name, t.Rows, t.Cols)
	}

	return summary
}
