package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxPoolTanhTrace remembers which timestep won each channel
type MaxPoolTanhTrace struct {
	argmax []int
	out    []float64
	rows   int
	cols   int
}

// MaxPoolTanh reduces x (L x C) to one value per channel by taking the maximum
// over the whole time axis and applies tanh to the result
func MaxPoolTanh(x *mat.Dense) ([]float64, *MaxPoolTanhTrace) {
	rows, cols := x.Dims()
	out := make([]float64, cols)
	argmax := make([]int, cols)
	for j := 0; j < cols; j++ {
		best := math.Inf(-1)
		for t := 0; t < rows; t++ {
			if v := x.At(t, j); v > best {
				best = v
				argmax[j] = t
			}
		}
		out[j] = math.Tanh(best)
	}
	return out, &MaxPoolTanhTrace{argmax: argmax, out: out, rows: rows, cols: cols}
}

// Backward routes each channel gradient to its winning timestep
func (tr *MaxPoolTanhTrace) Backward(dOut []float64) *mat.Dense {
	dx := mat.NewDense(tr.rows, tr.cols, nil)
	for j, g := range dOut {
		y := tr.out[j]
		dx.Set(tr.argmax[j], j, g*(1-y*y))
	}
	return dx
}
