// Package optim provides gradient-based optimizers over nn parameters.
package optim

import (
	"math"

	"github.com/soundprediction/answerrank/pkg/nn"
	"gonum.org/v1/gonum/mat"
)

// AdamConfig holds Adam hyperparameters
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultAdamConfig returns the usual Adam constants for the given learning rate
func DefaultAdamConfig(lr float64) AdamConfig {
	return AdamConfig{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Adam keeps first and second moment estimates for a fixed parameter set.
// It holds references only; the parameters stay owned by the model.
type Adam struct {
	cfg    AdamConfig
	params []*nn.Param
	m      []*mat.Dense
	v      []*mat.Dense
	step   int
}

// NewAdam creates an optimizer over params
func NewAdam(params []*nn.Param, cfg AdamConfig) *Adam {
	a := &Adam{
		cfg:    cfg,
		params: params,
		m:      make([]*mat.Dense, len(params)),
		v:      make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.Shape()
		a.m[i] = mat.NewDense(r, c, nil)
		a.v[i] = mat.NewDense(r, c, nil)
	}
	return a
}

// ZeroGrad clears the gradients of every tracked parameter
func (a *Adam) ZeroGrad() {
	nn.ZeroGrads(a.params)
}

// Steps returns the number of updates applied so far
func (a *Adam) Steps() int {
	return a.step
}

// Step applies one bias-corrected Adam update in place
func (a *Adam) Step() {
	a.step++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	correction1 := 1 - math.Pow(b1, float64(a.step))
	correction2 := 1 - math.Pow(b2, float64(a.step))

	for i, p := range a.params {
		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		m := a.m[i].RawMatrix().Data
		v := a.v[i].RawMatrix().Data
		for j, g := range grad {
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g
			mHat := m[j] / correction1
			vHat := v[j] / correction2
			value[j] -= a.cfg.LearningRate * mHat / (math.Sqrt(vHat) + a.cfg.Epsilon)
		}
	}
}
