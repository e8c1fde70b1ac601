// Package model assembles the answer selection network: a shared sequence encoder
// and feature extractor applied to question and answer, followed by a cosine scorer.
package model

import (
	"fmt"
	"math/rand"

	"github.com/soundprediction/answerrank/pkg/config"
	"github.com/soundprediction/answerrank/pkg/nn"
)

// AnswerSelection scores how well an answer matches a question
type AnswerSelection struct {
	cfg config.ModelConfig

	Encoder   *SequenceEncoder
	Extractor *FeatureExtractor
	Scorer    Scorer

	dropoutRng *rand.Rand
}

// New builds a model for cfg, drawing initial weights from rng. The dropout
// generator is derived from rng so a seeded rng makes the model reproducible.
func New(cfg config.ModelConfig, rng *rand.Rand) (*AnswerSelection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.FilterWidths = append([]int(nil), cfg.FilterWidths...)

	encoder := NewSequenceEncoder(cfg.VocabSize, cfg.EmbeddingDim, cfg.HiddenDim, rng)
	extractor := NewFeatureExtractor(ConvSpecs(cfg.FilterWidths), encoder.OutputDim(), cfg.NumFilters, rng)

	return &AnswerSelection{
		cfg:        cfg,
		Encoder:    encoder,
		Extractor:  extractor,
		Scorer:     Scorer{Dropout: nn.Dropout{P: cfg.Dropout}},
		dropoutRng: rand.New(rand.NewSource(rng.Int63())),
	}, nil
}

// Config returns a copy of the architecture
func (m *AnswerSelection) Config() config.ModelConfig {
	cfg := m.cfg
	cfg.FilterWidths = append([]int(nil), m.cfg.FilterWidths...)
	return cfg
}

// Params returns every trainable parameter in a stable order
func (m *AnswerSelection) Params() []*nn.Param {
	return append(m.Encoder.Params(), m.Extractor.Params()...)
}

// featureTrace is one sequence pushed through encoder and extractor
type featureTrace struct {
	encoder   *EncoderTrace
	extractor *ExtractorTrace
}

func (m *AnswerSelection) features(ids []int) ([]float64, *featureTrace) {
	encoded, enc := m.Encoder.Forward(ids)
	feats, ext := m.Extractor.Forward(encoded)
	return feats, &featureTrace{encoder: enc, extractor: ext}
}

func (tr *featureTrace) backward(dFeatures []float64) {
	tr.encoder.Backward(tr.extractor.Backward(dFeatures))
}

// Features returns the extracted feature vector of a sequence
func (m *AnswerSelection) Features(ids []int) []float64 {
	feats, _ := m.features(ids)
	return feats
}

// Trace holds everything the backward pass of one Forward call needs
type Trace struct {
	question *featureTrace
	answer   *featureTrace
	scorer   *ScorerTrace
}

// Forward returns the similarity of question and answer. Dropout is applied
// only when training is true.
func (m *AnswerSelection) Forward(question, answer []int, training bool) (float64, *Trace) {
	q, qt := m.features(question)
	a, at := m.features(answer)
	sim, st := m.Scorer.Forward(q, a, training, m.dropoutRng)
	return sim, &Trace{question: qt, answer: at, scorer: st}
}

// Backward accumulates the parameter gradients of the similarity scaled by dSim
func (tr *Trace) Backward(dSim float64) {
	if dSim == 0 {
		return
	}
	dq, da := tr.scorer.Backward(dSim)
	tr.question.backward(dq)
	tr.answer.backward(da)
}

// TripletTrace holds the shared question pass and both answer passes
type TripletTrace struct {
	question   *featureTrace
	good, bad  *featureTrace
	scoreGood  *ScorerTrace
	scoreBad   *ScorerTrace
	featureDim int
}

// ForwardTriplet scores one question against a good and a bad answer. The question
// is encoded once; each score draws its own dropout masks.
func (m *AnswerSelection) ForwardTriplet(question, good, bad []int, training bool) (goodSim, badSim float64, tr *TripletTrace) {
	q, qt := m.features(question)
	g, gt := m.features(good)
	b, bt := m.features(bad)
	goodSim, sg := m.Scorer.Forward(q, g, training, m.dropoutRng)
	badSim, sb := m.Scorer.Forward(q, b, training, m.dropoutRng)
	return goodSim, badSim, &TripletTrace{
		question:   qt,
		good:       gt,
		bad:        bt,
		scoreGood:  sg,
		scoreBad:   sb,
		featureDim: len(q),
	}
}

// Backward accumulates gradients for dGood and dBad, the loss gradients of both scores
func (tr *TripletTrace) Backward(dGood, dBad float64) {
	if dGood == 0 && dBad == 0 {
		return
	}
	dq := make([]float64, tr.featureDim)
	if dGood != 0 {
		dqg, dg := tr.scoreGood.Backward(dGood)
		addTo(dq, dqg)
		tr.good.backward(dg)
	}
	if dBad != 0 {
		dqb, db := tr.scoreBad.Backward(dBad)
		addTo(dq, dqb)
		tr.bad.backward(db)
	}
	tr.question.backward(dq)
}

func addTo(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}

// Score returns the similarity with dropout disabled
func (m *AnswerSelection) Score(question, answer []int) float64 {
	sim, _ := m.Forward(question, answer, false)
	return sim
}

// ScoreCandidates scores each candidate against question, encoding the question once
func (m *AnswerSelection) ScoreCandidates(question []int, candidates [][]int) []float64 {
	q := m.Features(question)
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i], _ = m.Scorer.Forward(q, m.Features(c), false, nil)
	}
	return scores
}

// String describes the architecture
func (m *AnswerSelection) String() string {
	c := m.cfg
	return fmt.Sprintf("AnswerSelection(vocab=%d, embedding=%d, hidden=%d, widths=%v, filters=%d, dropout=%.2f)",
		c.VocabSize, c.EmbeddingDim, c.HiddenDim, c.FilterWidths, c.NumFilters, c.Dropout)
}
