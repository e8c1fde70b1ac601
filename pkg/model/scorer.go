package model

import (
	"math/rand"

	"github.com/soundprediction/answerrank/pkg/nn"
)

// Scorer applies dropout to both feature vectors and returns their cosine similarity
type Scorer struct {
	Dropout nn.Dropout
}

// ScorerTrace keeps the dropout masks and cosine trace of one score
type ScorerTrace struct {
	dropQ, dropA *nn.DropoutTrace
	cosine       *nn.CosineTrace
}

// Forward scores q against a. Dropout is only active when training.
func (s Scorer) Forward(q, a []float64, training bool, rng *rand.Rand) (float64, *ScorerTrace) {
	dq, trQ := s.Dropout.Forward(q, training, rng)
	da, trA := s.Dropout.Forward(a, training, rng)
	sim, cos := nn.Cosine(dq, da)
	return sim, &ScorerTrace{dropQ: trQ, dropA: trA, cosine: cos}
}

// Backward returns the gradients with respect to the undropped q and a
func (tr *ScorerTrace) Backward(dSim float64) (dq, da []float64) {
	gq, ga := tr.cosine.Backward(dSim)
	return tr.dropQ.Backward(gq), tr.dropA.Backward(ga)
}
