package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ConvSpec describes one 1-D convolution: kernel width and zero padding on each side.
// Output length is L + PadLeft + PadRight - Width + 1.
type ConvSpec struct {
	Width    int
	PadLeft  int
	PadRight int
}

// SamePadding returns the padding that keeps the output length equal to the input length
func SamePadding(width int) ConvSpec {
	left := (width - 1) / 2
	return ConvSpec{Width: width, PadLeft: left, PadRight: width - 1 - left}
}

// OutputLen returns the convolution output length for an input of length n
func (s ConvSpec) OutputLen(n int) int {
	return n + s.PadLeft + s.PadRight - s.Width + 1
}

// Conv1D is a stride-1 convolution over the time axis. The weight is stored in
// im2col layout: row k*inChannels+c holds the kernel tap k for input channel c.
type Conv1D struct {
	Spec        ConvSpec
	InChannels  int
	OutChannels int

	Weight *Param // width*in x out
	Bias   *Param // 1 x out
}

// NewConv1D creates a convolution initialised from U(-1/sqrt(fanIn), 1/sqrt(fanIn))
func NewConv1D(name string, spec ConvSpec, inChannels, outChannels int, rng *rand.Rand) *Conv1D {
	c := &Conv1D{
		Spec:        spec,
		InChannels:  inChannels,
		OutChannels: outChannels,
		Weight:      NewParam(name+".weight", spec.Width*inChannels, outChannels),
		Bias:        NewParam(name+".bias", 1, outChannels),
	}
	bound := 1 / math.Sqrt(float64(spec.Width*inChannels))
	c.Weight.InitUniform(rng, bound)
	c.Bias.InitUniform(rng, bound)
	return c
}

// Params returns the trainable parameters
func (c *Conv1D) Params() []*Param {
	return []*Param{c.Weight, c.Bias}
}

// ConvTrace keeps the unfolded input of one Forward call
type ConvTrace struct {
	conv  *Conv1D
	cols  *mat.Dense
	inLen int
}

// Forward convolves x (L x in) and returns outLen x out
func (c *Conv1D) Forward(x *mat.Dense) (*mat.Dense, *ConvTrace) {
	inLen, _ := x.Dims()
	outLen := c.Spec.OutputLen(inLen)
	cols := c.unfold(x, outLen)

	out := mat.NewDense(outLen, c.OutChannels, nil)
	out.Mul(cols, c.Weight.Value)
	bias := c.Bias.Value.RawRowView(0)
	for t := 0; t < outLen; t++ {
		row := out.RawRowView(t)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return out, &ConvTrace{conv: c, cols: cols, inLen: inLen}
}

// unfold builds the outLen x width*in matrix whose row t is the receptive field of
// output t, with zeros where the window overlaps the padding
func (c *Conv1D) unfold(x *mat.Dense, outLen int) *mat.Dense {
	inLen, _ := x.Dims()
	cols := mat.NewDense(outLen, c.Spec.Width*c.InChannels, nil)
	for t := 0; t < outLen; t++ {
		row := cols.RawRowView(t)
		for k := 0; k < c.Spec.Width; k++ {
			src := t + k - c.Spec.PadLeft
			if src < 0 || src >= inLen {
				continue
			}
			copy(row[k*c.InChannels:(k+1)*c.InChannels], x.RawRowView(src))
		}
	}
	return cols
}

// Backward accumulates weight and bias gradients and returns dX (L x in)
func (tr *ConvTrace) Backward(dOut *mat.Dense) *mat.Dense {
	c := tr.conv
	outLen, _ := dOut.Dims()

	var dW mat.Dense
	dW.Mul(tr.cols.T(), dOut)
	c.Weight.Grad.Add(c.Weight.Grad, &dW)

	bias := c.Bias.Grad.RawRowView(0)
	for t := 0; t < outLen; t++ {
		for j, v := range dOut.RawRowView(t) {
			bias[j] += v
		}
	}

	var dCols mat.Dense
	dCols.Mul(dOut, c.Weight.Value.T())

	dx := mat.NewDense(tr.inLen, c.InChannels, nil)
	for t := 0; t < outLen; t++ {
		row := dCols.RawRowView(t)
		for k := 0; k < c.Spec.Width; k++ {
			src := t + k - c.Spec.PadLeft
			if src < 0 || src >= tr.inLen {
				continue
			}
			dst := dx.RawRowView(src)
			for ch, v := range row[k*c.InChannels : (k+1)*c.InChannels] {
				dst[ch] += v
			}
		}
	}
	return dx
}
