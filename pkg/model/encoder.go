package model

import (
	"math/rand"

	"github.com/soundprediction/answerrank/pkg/nn"
	"gonum.org/v1/gonum/mat"
)

// SequenceEncoder embeds token ids and runs them through a bidirectional LSTM.
// The output of a length-L sequence is L x hiddenDim: the forward half followed
// by the reverse half.
type SequenceEncoder struct {
	Embedding *nn.Embedding
	LSTM      *nn.BiLSTM
}

// NewSequenceEncoder creates an encoder with hiddenDim/2 units per direction
func NewSequenceEncoder(vocabSize, embeddingDim, hiddenDim int, rng *rand.Rand) *SequenceEncoder {
	return &SequenceEncoder{
		Embedding: nn.NewEmbedding("embedding", vocabSize, embeddingDim, rng),
		LSTM:      nn.NewBiLSTM("lstm", embeddingDim, hiddenDim/2, rng),
	}
}

// Params returns the embedding table followed by both LSTM directions
func (e *SequenceEncoder) Params() []*nn.Param {
	return append(e.Embedding.Params(), e.LSTM.Params()...)
}

// OutputDim is the width of each encoded timestep
func (e *SequenceEncoder) OutputDim() int {
	return e.LSTM.OutputDim()
}

// EncoderTrace holds what the backward pass of one encoded sequence needs
type EncoderTrace struct {
	encoder *SequenceEncoder
	ids     []int
	lstm    *nn.BiLSTMTrace
}

// Forward encodes one sequence of token ids
func (e *SequenceEncoder) Forward(ids []int) (*mat.Dense, *EncoderTrace) {
	embedded := e.Embedding.Forward(ids)
	out, lstm := e.LSTM.Forward(embedded)
	return out, &EncoderTrace{encoder: e, ids: ids, lstm: lstm}
}

// Backward propagates dOut (L x hiddenDim) into the LSTM and embedding gradients
func (tr *EncoderTrace) Backward(dOut *mat.Dense) {
	dEmbedded := tr.lstm.Backward(dOut)
	tr.encoder.Embedding.Backward(tr.ids, dEmbedded)
}

// EncodeBatch encodes every sequence independently
func (e *SequenceEncoder) EncodeBatch(batch [][]int) []*mat.Dense {
	out := make([]*mat.Dense, len(batch))
	for i, ids := range batch {
		out[i], _ = e.Forward(ids)
	}
	return out
}
