package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Embedding maps token ids to dense rows of a vocab x dim table
type Embedding struct {
	Weight *Param
}

// NewEmbedding creates a table initialised from N(0, 1)
func NewEmbedding(name string, vocabSize, dim int, rng *rand.Rand) *Embedding {
	w := NewParam(name+".weight", vocabSize, dim)
	w.InitNormal(rng, 1)
	return &Embedding{Weight: w}
}

// Params returns the trainable parameters
func (e *Embedding) Params() []*Param {
	return []*Param{e.Weight}
}

// Forward looks up every id and returns a len(ids) x dim matrix.
// It panics on ids outside [0, vocabSize).
func (e *Embedding) Forward(ids []int) *mat.Dense {
	vocab, dim := e.Weight.Shape()
	out := mat.NewDense(len(ids), dim, nil)
	for t, id := range ids {
		if id < 0 || id >= vocab {
			panic(fmt.Sprintf("nn: token id %d out of range [0, %d)", id, vocab))
		}
		out.SetRow(t, e.Weight.Value.RawRowView(id))
	}
	return out
}

// Backward adds each row of dOut to the gradient row of its id
func (e *Embedding) Backward(ids []int, dOut *mat.Dense) {
	for t, id := range ids {
		grad := e.Weight.Grad.RawRowView(id)
		for j, v := range dOut.RawRowView(t) {
			grad[j] += v
		}
	}
}
