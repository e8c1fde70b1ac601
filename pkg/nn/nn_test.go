package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const gradTolerance = 1e-5

func randomDense(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

// weightedSum is the scalar objective sum(out ⊙ w) used for gradient checks
func weightedSum(out, w *mat.Dense) float64 {
	var e mat.Dense
	e.MulElem(out, w)
	return mat.Sum(&e)
}

// checkParamGrad compares the analytic gradient of p against central differences
func checkParamGrad(t *testing.T, p *Param, objective func() float64) {
	t.Helper()
	data := p.Value.RawMatrix().Data
	grad := p.Grad.RawMatrix().Data
	const h = 1e-6
	for _, i := range []int{0, len(data) / 2, len(data) - 1} {
		orig := data[i]
		data[i] = orig + h
		plus := objective()
		data[i] = orig - h
		minus := objective()
		data[i] = orig
		numeric := (plus - minus) / (2 * h)
		assert.InDelta(t, numeric, grad[i], gradTolerance, "%s[%d]", p.Name, i)
	}
}

func checkInputGrad(t *testing.T, x, dx *mat.Dense, objective func() float64) {
	t.Helper()
	data := x.RawMatrix().Data
	const h = 1e-6
	for _, i := range []int{0, len(data) / 2, len(data) - 1} {
		orig := data[i]
		data[i] = orig + h
		plus := objective()
		data[i] = orig - h
		minus := objective()
		data[i] = orig
		numeric := (plus - minus) / (2 * h)
		assert.InDelta(t, numeric, dx.RawMatrix().Data[i], gradTolerance, "input[%d]", i)
	}
}

func TestEmbedding(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	emb := NewEmbedding("emb", 5, 3, rng)

	out := emb.Forward([]int{0, 4, 4})
	rows, cols := out.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, emb.Weight.Value.RawRowView(4), out.RawRowView(1))

	dOut := mat.NewDense(3, 3, []float64{1, 1, 1, 2, 2, 2, 3, 3, 3})
	emb.Backward([]int{0, 4, 4}, dOut)
	assert.Equal(t, []float64{1, 1, 1}, emb.Weight.Grad.RawRowView(0))
	assert.Equal(t, []float64{5, 5, 5}, emb.Weight.Grad.RawRowView(4))
	assert.Equal(t, []float64{0, 0, 0}, emb.Weight.Grad.RawRowView(2))

	assert.Panics(t, func() { emb.Forward([]int{5}) })
	assert.Panics(t, func() { emb.Forward([]int{-1}) })
}

func TestLSTMGradients(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		rng := rand.New(rand.NewSource(2))
		lstm := NewLSTM("lstm", 3, 4, reverse, rng)
		x := randomDense(rng, 5, 3)
		w := randomDense(rng, 5, 4)

		objective := func() float64 {
			out, _ := lstm.Forward(x)
			return weightedSum(out, w)
		}

		out, trace := lstm.Forward(x)
		rows, cols := out.Dims()
		require.Equal(t, 5, rows)
		require.Equal(t, 4, cols)

		ZeroGrads(lstm.Params())
		dx := trace.Backward(w)
		for _, p := range lstm.Params() {
			checkParamGrad(t, p, objective)
		}
		checkInputGrad(t, x, dx, objective)
	}
}

func TestLSTMDirection(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	fwd := NewLSTM("fwd", 2, 3, false, rng)
	x := randomDense(rng, 4, 2)

	out, _ := fwd.Forward(x)

	// the first forward state only depends on the first input row
	x2 := mat.DenseCopyOf(x)
	x2.Set(3, 0, 100)
	out2, _ := fwd.Forward(x2)
	assert.Equal(t, out.RawRowView(0), out2.RawRowView(0))

	// the reverse direction's last state only depends on the last row
	rev := NewLSTM("rev", 2, 3, true, rng)
	r1, _ := rev.Forward(x)
	x3 := mat.DenseCopyOf(x)
	x3.Set(0, 0, 100)
	r2, _ := rev.Forward(x3)
	assert.Equal(t, r1.RawRowView(3), r2.RawRowView(3))
}

func TestBiLSTM(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	bi := NewBiLSTM("bi", 3, 2, rng)
	x := randomDense(rng, 6, 3)
	w := randomDense(rng, 6, 4)

	out, trace := bi.Forward(x)
	rows, cols := out.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, 4, bi.OutputDim())
	assert.Len(t, bi.Params(), 6)

	objective := func() float64 {
		out, _ := bi.Forward(x)
		return weightedSum(out, w)
	}
	ZeroGrads(bi.Params())
	dx := trace.Backward(w)
	for _, p := range bi.Params() {
		checkParamGrad(t, p, objective)
	}
	checkInputGrad(t, x, dx, objective)
}

func TestSamePadding(t *testing.T) {
	for _, width := range []int{1, 2, 3, 4, 5, 7} {
		spec := SamePadding(width)
		assert.Equal(t, width-1, spec.PadLeft+spec.PadRight, "width %d", width)
		for _, n := range []int{1, 3, 20, 150} {
			assert.Equal(t, n, spec.OutputLen(n), "width %d len %d", width, n)
		}
	}
}

func TestConv1D(t *testing.T) {
	for _, width := range []int{1, 2, 3, 5} {
		rng := rand.New(rand.NewSource(int64(width)))
		conv := NewConv1D("conv", SamePadding(width), 3, 4, rng)
		x := randomDense(rng, 6, 3)
		w := randomDense(rng, 6, 4)

		out, trace := conv.Forward(x)
		rows, cols := out.Dims()
		require.Equal(t, 6, rows, "width %d", width)
		require.Equal(t, 4, cols)

		objective := func() float64 {
			out, _ := conv.Forward(x)
			return weightedSum(out, w)
		}
		ZeroGrads(conv.Params())
		dx := trace.Backward(w)
		for _, p := range conv.Params() {
			checkParamGrad(t, p, objective)
		}
		checkInputGrad(t, x, dx, objective)
	}
}

func TestConv1DIdentityKernel(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	conv := NewConv1D("conv", SamePadding(3), 1, 1, rng)
	// taps: left 0, centre 1, right 0
	require.NoError(t, conv.Weight.Load(3, 1, []float64{0, 1, 0}))
	require.NoError(t, conv.Bias.Load(1, 1, []float64{0}))

	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	out, _ := conv.Forward(x)
	assert.Equal(t, []float64{1, 2, 3, 4}, out.RawMatrix().Data)

	// shift kernel picks the previous timestep and pads with zero
	require.NoError(t, conv.Weight.Load(3, 1, []float64{1, 0, 0}))
	out, _ = conv.Forward(x)
	assert.Equal(t, []float64{0, 1, 2, 3}, out.RawMatrix().Data)
}

func TestMaxPoolTanh(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		0.1, -2,
		0.5, -1,
		0.3, -3,
	})
	out, trace := MaxPoolTanh(x)
	require.Len(t, out, 2)
	assert.InDelta(t, math.Tanh(0.5), out[0], 1e-12)
	assert.InDelta(t, math.Tanh(-1), out[1], 1e-12)

	dx := trace.Backward([]float64{1, 1})
	assert.InDelta(t, 1-math.Tanh(0.5)*math.Tanh(0.5), dx.At(1, 0), 1e-12)
	assert.Equal(t, 0.0, dx.At(0, 0))
	assert.Equal(t, 0.0, dx.At(2, 0))
	assert.InDelta(t, 1-math.Tanh(-1)*math.Tanh(-1), dx.At(1, 1), 1e-12)
}

func TestMaxPoolTanhGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	x := randomDense(rng, 7, 5)
	w := []float64{0.3, -1, 2, 0.5, 1}

	objective := func() float64 {
		out, _ := MaxPoolTanh(x)
		sum := 0.0
		for j, v := range out {
			sum += v * w[j]
		}
		return sum
	}
	_, trace := MaxPoolTanh(x)
	checkInputGrad(t, x, trace.Backward(w), objective)
}

func TestMaxPoolTanhOneValuePerChannel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 3, 20, 150} {
		out, _ := MaxPoolTanh(randomDense(rng, n, 8))
		assert.Len(t, out, 8)
		for _, v := range out {
			assert.LessOrEqual(t, math.Abs(v), 1.0)
		}
	}
}

func TestDropout(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	x := make([]float64, 1000)
	for i := range x {
		x[i] = 1
	}

	d := Dropout{P: 0.2}
	out, _ := d.Forward(x, false, rng)
	assert.Equal(t, x, out)

	out, trace := d.Forward(x, true, rng)
	zeros := 0
	for _, v := range out {
		if v == 0 {
			zeros++
		} else {
			assert.InDelta(t, 1.25, v, 1e-12)
		}
	}
	assert.InDelta(t, 200, zeros, 60)

	grad := trace.Backward(x)
	assert.Equal(t, out, grad)

	// input must stay untouched
	for _, v := range x {
		require.Equal(t, 1.0, v)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, expected: 1},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-2, 0}, expected: -1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 3}, expected: 0},
		{name: "scaled", a: []float64{1, 1}, b: []float64{5, 5}, expected: 1},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 2}, expected: 0},
		{name: "both zero", a: []float64{0, 0}, b: []float64{0, 0}, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, _ := Cosine(tt.a, tt.b)
			assert.InDelta(t, tt.expected, sim, 1e-9)
			assert.False(t, math.IsNaN(sim))
		})
	}
}

func TestCosineSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 20; i++ {
		a := randomDense(rng, 1, 12).RawRowView(0)
		b := randomDense(rng, 1, 12).RawRowView(0)
		ab, _ := Cosine(a, b)
		ba, _ := Cosine(b, a)
		assert.InDelta(t, ab, ba, 1e-12)
		assert.LessOrEqual(t, math.Abs(ab), 1.0+1e-12)

		self, _ := Cosine(a, a)
		assert.InDelta(t, 1.0, self, 1e-12)
	}
}

func TestCosineGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	a := randomDense(rng, 1, 6)
	b := randomDense(rng, 1, 6)

	objective := func() float64 {
		s, _ := Cosine(a.RawRowView(0), b.RawRowView(0))
		return s
	}
	_, trace := Cosine(a.RawRowView(0), b.RawRowView(0))
	da, db := trace.Backward(1)
	checkInputGrad(t, a, mat.NewDense(1, 6, da), objective)
	checkInputGrad(t, b, mat.NewDense(1, 6, db), objective)
}

func TestHingeLoss(t *testing.T) {
	tests := []struct {
		name      string
		good, bad float64
		margin    float64
		loss      float64
		dGood     float64
		dBad      float64
	}{
		{name: "well separated", good: 0.9, bad: 0.1, margin: 0.05},
		{name: "exactly at margin", good: 0.75, bad: 0.25, margin: 0.5},
		{name: "inside margin", good: 0.5, bad: 0.25, margin: 0.5, loss: 0.25, dGood: -1, dBad: 1},
		{name: "inverted", good: -0.5, bad: 0.5, margin: 0.05, loss: 1.05, dGood: -1, dBad: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loss, dGood, dBad := HingeLoss(tt.good, tt.bad, tt.margin)
			assert.InDelta(t, tt.loss, loss, 1e-12)
			assert.Equal(t, tt.dGood, dGood)
			assert.Equal(t, tt.dBad, dBad)
			if tt.good-tt.bad >= tt.margin {
				assert.Zero(t, loss)
			} else {
				assert.Greater(t, loss, 0.0)
			}
		})
	}
}

func TestParamLoad(t *testing.T) {
	p := NewParam("p", 2, 2)
	require.NoError(t, p.Load(2, 2, []float64{1, 2, 3, 4}))
	assert.Equal(t, 3.0, p.Value.At(1, 0))
	assert.Error(t, p.Load(1, 4, []float64{1, 2, 3, 4}))
	assert.Error(t, p.Load(2, 2, []float64{1}))
}
