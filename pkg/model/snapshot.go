package model

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"

	"github.com/soundprediction/answerrank/pkg/checkpoint"
)

// ErrArchitectureMismatch is returned when a checkpoint was written for a different model
var ErrArchitectureMismatch = errors.New("checkpoint architecture mismatch")

// Snapshot copies the architecture and every parameter into a checkpoint document.
// The caller fills in the run bookkeeping.
func (m *AnswerSelection) Snapshot() *checkpoint.ModelCheckpoint {
	params := make(map[string]checkpoint.Tensor)
	for _, p := range m.Params() {
		rows, cols := p.Shape()
		data := make([]float64, rows*cols)
		copy(data, p.Value.RawMatrix().Data)
		params[p.Name] = checkpoint.Tensor{Rows: rows, Cols: cols, Data: data}
	}
	return &checkpoint.ModelCheckpoint{
		Architecture: m.Config(),
		Params:       params,
	}
}

// Restore loads parameter values from ckpt. The architecture must match exactly
// and every parameter must be present with the same shape.
func (m *AnswerSelection) Restore(ckpt *checkpoint.ModelCheckpoint) error {
	if !reflect.DeepEqual(ckpt.Architecture, m.cfg) {
		return fmt.Errorf("%w: model has %+v, checkpoint has %+v", ErrArchitectureMismatch, m.cfg, ckpt.Architecture)
	}
	params := m.Params()
	if len(ckpt.Params) != len(params) {
		return fmt.Errorf("%w: model has %d tensors, checkpoint has %d", ErrArchitectureMismatch, len(params), len(ckpt.Params))
	}
	for _, p := range params {
		t, ok := ckpt.Params[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing parameter %s", ErrArchitectureMismatch, p.Name)
		}
		if err := p.Load(t.Rows, t.Cols, t.Data); err != nil {
			return fmt.Errorf("%w: %v", ErrArchitectureMismatch, err)
		}
	}
	return nil
}

// FromCheckpoint builds a model with the checkpoint's architecture and weights
func FromCheckpoint(ckpt *checkpoint.ModelCheckpoint, rng *rand.Rand) (*AnswerSelection, error) {
	m, err := New(ckpt.Architecture, rng)
	if err != nil {
		return nil, fmt.Errorf("checkpoint architecture: %w", err)
	}
	if err := m.Restore(ckpt); err != nil {
		return nil, err
	}
	return m, nil
}
