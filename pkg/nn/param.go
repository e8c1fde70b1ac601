// Package nn implements the numeric building blocks of the answer selection model.
//
// Every layer exposes a Forward method that returns its output together with a trace.
// The trace keeps what the layer needs to run its backward pass; calling Backward on it
// accumulates parameter gradients into the layer's Params and returns the gradient with
// respect to the layer input. Dense maths uses gonum.
package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable tensor and its accumulated gradient
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam allocates a zero-valued rows x cols parameter
func NewParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Shape returns rows, cols
func (p *Param) Shape() (int, int) {
	return p.Value.Dims()
}

// InitUniform fills the parameter with U(-bound, bound)
func (p *Param) InitUniform(rng *rand.Rand, bound float64) {
	data := p.Value.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
}

// InitNormal fills the parameter with N(0, std^2)
func (p *Param) InitNormal(rng *rand.Rand, std float64) {
	data := p.Value.RawMatrix().Data
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
}

// Load copies values into the parameter, checking the shape
func (p *Param) Load(rows, cols int, data []float64) error {
	r, c := p.Shape()
	if r != rows || c != cols || len(data) != rows*cols {
		return fmt.Errorf("parameter %s: shape %dx%d does not match stored %dx%d (%d values)",
			p.Name, r, c, rows, cols, len(data))
	}
	copy(p.Value.RawMatrix().Data, data)
	return nil
}

// ZeroGrads clears the gradients of every parameter
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// ScaleGrads multiplies every gradient by alpha
func ScaleGrads(params []*Param, alpha float64) {
	for _, p := range params {
		p.Grad.Scale(alpha, p.Grad)
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
