package model

import (
	"fmt"
	"math/rand"

	"github.com/soundprediction/answerrank/pkg/nn"
	"gonum.org/v1/gonum/mat"
)

// FeatureExtractor runs one convolution per filter width over an encoded sequence,
// max-pools each over time, applies tanh and concatenates the results in width order.
// The same extractor serves questions and answers.
type FeatureExtractor struct {
	Convs      []*nn.Conv1D
	NumFilters int
}

// ConvSpecs returns same-length padding specs for widths, in order
func ConvSpecs(widths []int) []nn.ConvSpec {
	specs := make([]nn.ConvSpec, len(widths))
	for i, w := range widths {
		specs[i] = nn.SamePadding(w)
	}
	return specs
}

// NewFeatureExtractor creates one convolution of numFilters channels per spec
func NewFeatureExtractor(specs []nn.ConvSpec, inChannels, numFilters int, rng *rand.Rand) *FeatureExtractor {
	convs := make([]*nn.Conv1D, len(specs))
	for i, spec := range specs {
		convs[i] = nn.NewConv1D(fmt.Sprintf("conv%d_w%d", i, spec.Width), spec, inChannels, numFilters, rng)
	}
	return &FeatureExtractor{Convs: convs, NumFilters: numFilters}
}

// Params returns weight and bias of each convolution in width order
func (f *FeatureExtractor) Params() []*nn.Param {
	var params []*nn.Param
	for _, c := range f.Convs {
		params = append(params, c.Params()...)
	}
	return params
}

// FeatureDim is the length of the feature vector, independent of sequence length
func (f *FeatureExtractor) FeatureDim() int {
	return len(f.Convs) * f.NumFilters
}

// ExtractorTrace keeps the per-width convolution and pooling traces
type ExtractorTrace struct {
	extractor *FeatureExtractor
	conv      []*nn.ConvTrace
	pool      []*nn.MaxPoolTanhTrace
}

// Forward maps an encoded sequence (L x in) to a FeatureDim vector
func (f *FeatureExtractor) Forward(x *mat.Dense) ([]float64, *ExtractorTrace) {
	tr := &ExtractorTrace{
		extractor: f,
		conv:      make([]*nn.ConvTrace, len(f.Convs)),
		pool:      make([]*nn.MaxPoolTanhTrace, len(f.Convs)),
	}
	features := make([]float64, 0, f.FeatureDim())
	for i, c := range f.Convs {
		out, ct := c.Forward(x)
		pooled, pt := nn.MaxPoolTanh(out)
		tr.conv[i] = ct
		tr.pool[i] = pt
		features = append(features, pooled...)
	}
	return features, tr
}

// Backward splits dFeatures by width and returns the summed input gradient
func (tr *ExtractorTrace) Backward(dFeatures []float64) *mat.Dense {
	n := tr.extractor.NumFilters
	var dx *mat.Dense
	for i := range tr.conv {
		dPooled := tr.pool[i].Backward(dFeatures[i*n : (i+1)*n])
		d := tr.conv[i].Backward(dPooled)
		if dx == nil {
			dx = d
			continue
		}
		dx.Add(dx, d)
	}
	return dx
}
