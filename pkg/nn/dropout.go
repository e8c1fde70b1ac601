package nn

import "math/rand"

// Dropout zeroes elements with probability P during training and scales the
// survivors by 1/(1-P). It is the identity outside training.
type Dropout struct {
	P float64
}

// DropoutTrace holds the mask applied by one Forward call; nil mask means identity
type DropoutTrace struct {
	mask []float64
}

// Forward applies dropout to x. The input is not modified.
func (d Dropout) Forward(x []float64, training bool, rng *rand.Rand) ([]float64, *DropoutTrace) {
	out := make([]float64, len(x))
	if !training || d.P == 0 {
		copy(out, x)
		return out, &DropoutTrace{}
	}

	keep := 1 - d.P
	mask := make([]float64, len(x))
	for i, v := range x {
		if rng.Float64() >= d.P {
			mask[i] = 1 / keep
			out[i] = v * mask[i]
		}
	}
	return out, &DropoutTrace{mask: mask}
}

// Backward applies the same mask to the gradient
func (tr *DropoutTrace) Backward(dOut []float64) []float64 {
	dx := make([]float64, len(dOut))
	if tr.mask == nil {
		copy(dx, dOut)
		return dx
	}
	for i, g := range dOut {
		dx[i] = g * tr.mask[i]
	}
	return dx
}
