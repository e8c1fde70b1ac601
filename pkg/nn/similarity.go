package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineEps bounds the norm product from below
const CosineEps = 1e-8

// CosineTrace keeps the inputs and intermediate norms of one Cosine call
type CosineTrace struct {
	a, b         []float64
	normA, normB float64
	denom        float64
	sim          float64
}

// Cosine returns a·b / max(‖a‖‖b‖, CosineEps). Inputs must have equal length.
func Cosine(a, b []float64) (float64, *CosineTrace) {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	denom := math.Max(normA*normB, CosineEps)
	sim := floats.Dot(a, b) / denom
	return sim, &CosineTrace{a: a, b: b, normA: normA, normB: normB, denom: denom, sim: sim}
}

// Backward returns the gradients with respect to a and b
func (tr *CosineTrace) Backward(dSim float64) (da, db []float64) {
	da = make([]float64, len(tr.a))
	db = make([]float64, len(tr.b))

	// d(a·b)/da = b, scaled by the constant denominator
	floats.AddScaled(da, dSim/tr.denom, tr.b)
	floats.AddScaled(db, dSim/tr.denom, tr.a)

	if tr.normA*tr.normB > CosineEps {
		if tr.normA > 0 {
			floats.AddScaled(da, -dSim*tr.sim/(tr.normA*tr.normA), tr.a)
		}
		if tr.normB > 0 {
			floats.AddScaled(db, -dSim*tr.sim/(tr.normB*tr.normB), tr.b)
		}
	}
	return da, db
}

// HingeLoss returns max(0, margin - (good - bad)) and the gradients for good and bad.
// The loss is exactly zero once good leads bad by at least the margin.
func HingeLoss(good, bad, margin float64) (loss, dGood, dBad float64) {
	loss = margin - (good - bad)
	if loss <= 0 {
		return 0, 0, 0
	}
	return loss, -1, 1
}
