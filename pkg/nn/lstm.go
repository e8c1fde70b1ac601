package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSTM is a single-layer unidirectional LSTM. Gates are laid out i, f, g, o
// along the 4*hidden axis of the weight matrices.
type LSTM struct {
	InputDim  int
	HiddenDim int
	Reverse   bool

	Wx   *Param // input x 4*hidden
	Wh   *Param // hidden x 4*hidden
	Bias *Param // 1 x 4*hidden
}

// NewLSTM creates an LSTM with weights drawn from U(-1/sqrt(hidden), 1/sqrt(hidden))
func NewLSTM(name string, inputDim, hiddenDim int, reverse bool, rng *rand.Rand) *LSTM {
	l := &LSTM{
		InputDim:  inputDim,
		HiddenDim: hiddenDim,
		Reverse:   reverse,
		Wx:        NewParam(name+".wx", inputDim, 4*hiddenDim),
		Wh:        NewParam(name+".wh", hiddenDim, 4*hiddenDim),
		Bias:      NewParam(name+".bias", 1, 4*hiddenDim),
	}
	bound := 1 / math.Sqrt(float64(hiddenDim))
	for _, p := range l.Params() {
		p.InitUniform(rng, bound)
	}
	return l
}

// Params returns the trainable parameters
func (l *LSTM) Params() []*Param {
	return []*Param{l.Wx, l.Wh, l.Bias}
}

type lstmStep struct {
	t          int
	x          []float64
	hPrev      []float64
	cPrev      []float64
	i, f, g, o []float64
	tanhC      []float64
}

// LSTMTrace holds the activations of one Forward call
type LSTMTrace struct {
	lstm   *LSTM
	steps  []lstmStep
	seqLen int
}

// Forward runs the LSTM over the rows of x (L x input) and returns L x hidden.
// Row t of the output is the hidden state at timestep t regardless of direction.
func (l *LSTM) Forward(x *mat.Dense) (*mat.Dense, *LSTMTrace) {
	seqLen, _ := x.Dims()
	hd := l.HiddenDim
	out := mat.NewDense(seqLen, hd, nil)
	trace := &LSTMTrace{lstm: l, steps: make([]lstmStep, 0, seqLen), seqLen: seqLen}

	h := make([]float64, hd)
	c := make([]float64, hd)
	z := mat.NewVecDense(4*hd, nil)
	rec := mat.NewVecDense(4*hd, nil)
	bias := l.Bias.Value.RawRowView(0)

	for k := 0; k < seqLen; k++ {
		t := k
		if l.Reverse {
			t = seqLen - 1 - k
		}
		xt := x.RawRowView(t)

		z.MulVec(l.Wx.Value.T(), mat.NewVecDense(len(xt), xt))
		rec.MulVec(l.Wh.Value.T(), mat.NewVecDense(hd, h))
		z.AddVec(z, rec)
		zr := z.RawVector().Data

		step := lstmStep{
			t:     t,
			x:     xt,
			hPrev: h,
			cPrev: c,
			i:     make([]float64, hd),
			f:     make([]float64, hd),
			g:     make([]float64, hd),
			o:     make([]float64, hd),
			tanhC: make([]float64, hd),
		}
		nextH := make([]float64, hd)
		nextC := make([]float64, hd)
		for j := 0; j < hd; j++ {
			step.i[j] = sigmoid(zr[j] + bias[j])
			step.f[j] = sigmoid(zr[hd+j] + bias[hd+j])
			step.g[j] = math.Tanh(zr[2*hd+j] + bias[2*hd+j])
			step.o[j] = sigmoid(zr[3*hd+j] + bias[3*hd+j])
			nextC[j] = step.f[j]*c[j] + step.i[j]*step.g[j]
			step.tanhC[j] = math.Tanh(nextC[j])
			nextH[j] = step.o[j] * step.tanhC[j]
		}
		out.SetRow(t, nextH)
		trace.steps = append(trace.steps, step)
		h, c = nextH, nextC
	}
	return out, trace
}

// Backward propagates dOut (L x hidden) through time, accumulating parameter
// gradients, and returns the gradient for the input (L x input)
func (tr *LSTMTrace) Backward(dOut *mat.Dense) *mat.Dense {
	l := tr.lstm
	hd := l.HiddenDim
	dx := mat.NewDense(tr.seqLen, l.InputDim, nil)

	dhNext := make([]float64, hd)
	dcNext := make([]float64, hd)
	dz := make([]float64, 4*hd)
	dzv := mat.NewVecDense(4*hd, dz)
	dhPrev := mat.NewVecDense(hd, nil)
	dxt := mat.NewVecDense(l.InputDim, nil)
	bias := l.Bias.Grad.RawRowView(0)

	for k := len(tr.steps) - 1; k >= 0; k-- {
		s := tr.steps[k]
		dOutRow := dOut.RawRowView(s.t)
		for j := 0; j < hd; j++ {
			dh := dOutRow[j] + dhNext[j]
			do := dh * s.tanhC[j]
			dc := dcNext[j] + dh*s.o[j]*(1-s.tanhC[j]*s.tanhC[j])
			di := dc * s.g[j]
			dg := dc * s.i[j]
			df := dc * s.cPrev[j]

			dz[j] = di * s.i[j] * (1 - s.i[j])
			dz[hd+j] = df * s.f[j] * (1 - s.f[j])
			dz[2*hd+j] = dg * (1 - s.g[j]*s.g[j])
			dz[3*hd+j] = do * s.o[j] * (1 - s.o[j])
			dcNext[j] = dc * s.f[j]
		}
		for j, v := range dz {
			bias[j] += v
		}

		l.Wx.Grad.RankOne(l.Wx.Grad, 1, mat.NewVecDense(len(s.x), s.x), dzv)
		l.Wh.Grad.RankOne(l.Wh.Grad, 1, mat.NewVecDense(hd, s.hPrev), dzv)

		dxt.MulVec(l.Wx.Value, dzv)
		dx.SetRow(s.t, dxt.RawVector().Data)

		dhPrev.MulVec(l.Wh.Value, dzv)
		copy(dhNext, dhPrev.RawVector().Data)
	}
	return dx
}

// BiLSTM runs a forward and a reverse LSTM over the same input and concatenates
// their hidden states: columns [0, hidden) forward, [hidden, 2*hidden) reverse.
type BiLSTM struct {
	Fwd *LSTM
	Bwd *LSTM
}

// NewBiLSTM creates a bidirectional LSTM whose output width is 2*hiddenPerDirection
func NewBiLSTM(name string, inputDim, hiddenPerDirection int, rng *rand.Rand) *BiLSTM {
	return &BiLSTM{
		Fwd: NewLSTM(name+".fwd", inputDim, hiddenPerDirection, false, rng),
		Bwd: NewLSTM(name+".bwd", inputDim, hiddenPerDirection, true, rng),
	}
}

// Params returns the trainable parameters of both directions
func (b *BiLSTM) Params() []*Param {
	return append(b.Fwd.Params(), b.Bwd.Params()...)
}

// OutputDim is the width of one output row
func (b *BiLSTM) OutputDim() int {
	return b.Fwd.HiddenDim + b.Bwd.HiddenDim
}

// BiLSTMTrace holds both directional traces
type BiLSTMTrace struct {
	fwd, bwd *LSTMTrace
	hidden   int
}

// Forward returns L x 2*hidden
func (b *BiLSTM) Forward(x *mat.Dense) (*mat.Dense, *BiLSTMTrace) {
	hf, tf := b.Fwd.Forward(x)
	hb, tb := b.Bwd.Forward(x)

	seqLen, _ := x.Dims()
	out := mat.NewDense(seqLen, b.OutputDim(), nil)
	out.Slice(0, seqLen, 0, b.Fwd.HiddenDim).(*mat.Dense).Copy(hf)
	out.Slice(0, seqLen, b.Fwd.HiddenDim, b.OutputDim()).(*mat.Dense).Copy(hb)
	return out, &BiLSTMTrace{fwd: tf, bwd: tb, hidden: b.Fwd.HiddenDim}
}

// Backward splits dOut by direction and sums the input gradients
func (tr *BiLSTMTrace) Backward(dOut *mat.Dense) *mat.Dense {
	seqLen, width := dOut.Dims()
	dFwd := mat.DenseCopyOf(dOut.Slice(0, seqLen, 0, tr.hidden))
	dBwd := mat.DenseCopyOf(dOut.Slice(0, seqLen, tr.hidden, width))

	dx := tr.fwd.Backward(dFwd)
	dx.Add(dx, tr.bwd.Backward(dBwd))
	return dx
}
