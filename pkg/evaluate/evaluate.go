// Package evaluate measures how well a trained model ranks the correct answers
// of held-out questions above wrong candidates.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/soundprediction/answerrank/pkg/dataset"
	"github.com/soundprediction/answerrank/pkg/model"
	"github.com/soundprediction/answerrank/pkg/utils"
)

// ErrNoQuestions is returned when no record could be evaluated
var ErrNoQuestions = errors.New("no evaluable questions")

// Scorer scores candidates for one question with dropout disabled
type Scorer interface {
	ScoreCandidates(question []int, candidates [][]int) []float64
}

var _ Scorer = (*model.AnswerSelection)(nil)

// Options configures an Evaluator
type Options struct {
	QuestionLen int
	AnswerLen   int

	// Candidates is the number of negatives sampled for records without a bad list
	Candidates int
	Rng        *rand.Rand
	Logger     *slog.Logger

	// Vocab, when set, decodes each question and its top candidate into a debug line
	Vocab dataset.Vocabulary
}

// Result aggregates ranking metrics over the evaluated questions
type Result struct {
	Questions     int     `json:"questions"`
	Skipped       int     `json:"skipped"`
	PrecisionAt1  float64 `json:"precision_at_1"`
	MRR           float64 `json:"mrr"`
	MeanGoodScore float64 `json:"mean_good_score"`
	MeanBadScore  float64 `json:"mean_bad_score"`
}

// Evaluator ranks candidates per question
type Evaluator struct {
	scorer  Scorer
	pool    dataset.AnswerPool
	sampler *dataset.NegativeSampler
	opts    Options
	logger  *slog.Logger
}

// New creates an evaluator drawing sampled negatives from pool
func New(scorer Scorer, pool dataset.AnswerPool, opts Options) (*Evaluator, error) {
	if opts.QuestionLen <= 0 || opts.AnswerLen <= 0 {
		return nil, fmt.Errorf("evaluate: sequence lengths must be positive, got %d/%d", opts.QuestionLen, opts.AnswerLen)
	}
	if opts.Rng == nil {
		opts.Rng = rand.New(rand.NewSource(1))
	}
	sampler, err := dataset.NewNegativeSampler(pool, opts.AnswerLen, opts.Rng)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{scorer: scorer, pool: pool, sampler: sampler, opts: opts, logger: logger}, nil
}

// Evaluate scores every record. Bad candidates are placed before good ones so a
// tie never counts in the model's favour. Records without any wrong candidate
// are skipped.
func (e *Evaluator) Evaluate(ctx context.Context, records []dataset.Record) (*Result, error) {
	var (
		hits       float64
		reciprocal []float64
		goodScores []float64
		badScores  []float64
		skipped    int
	)

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(r.Answers) == 0 {
			skipped++
			continue
		}

		badIDs := r.Bad
		if len(badIDs) == 0 {
			badIDs = e.sampler.SampleIDs(e.opts.Candidates, r.Answers)
		}
		if len(badIDs) == 0 {
			skipped++
			continue
		}

		ids := append(append([]int(nil), badIDs...), r.Answers...)
		candidates := make([][]int, 0, len(ids))
		for _, id := range ids {
			answer, ok := e.pool[id]
			if !ok {
				return nil, fmt.Errorf("record %d: %w: %d", i, dataset.ErrUnknownAnswer, id)
			}
			candidates = append(candidates, dataset.Pad(answer, e.opts.AnswerLen))
		}

		scores := e.scorer.ScoreCandidates(dataset.Pad(r.Question, e.opts.QuestionLen), candidates)
		firstGood := len(badIDs)
		badScores = append(badScores, scores[:firstGood]...)
		goodScores = append(goodScores, scores[firstGood:]...)

		ranking := utils.TopKIndicesByScore(scores, len(scores))
		if e.opts.Vocab != nil && e.logger.Enabled(ctx, slog.LevelDebug) {
			top := ids[ranking[0]]
			e.logger.Debug("Ranked question",
				"record", i,
				"question", strings.Join(e.opts.Vocab.Words(r.Question), " "),
				"top_answer", strings.Join(e.opts.Vocab.Words(e.pool[top]), " "),
				"top_is_good", ranking[0] >= firstGood,
				"score", scores[ranking[0]])
		}
		for rank, idx := range ranking {
			if idx >= firstGood {
				if rank == 0 {
					hits++
				}
				reciprocal = append(reciprocal, 1/float64(rank+1))
				break
			}
		}
	}

	if len(reciprocal) == 0 {
		return nil, ErrNoQuestions
	}

	result := &Result{
		Questions:    len(reciprocal),
		Skipped:      skipped,
		PrecisionAt1: hits / float64(len(reciprocal)),
	}
	result.MRR, _ = stats.Mean(reciprocal)
	result.MeanGoodScore, _ = stats.Mean(goodScores)
	result.MeanBadScore, _ = stats.Mean(badScores)

	e.logger.Info("Evaluation finished",
		"questions", result.Questions,
		"skipped", result.Skipped,
		"precision_at_1", result.PrecisionAt1,
		"mrr", result.MRR,
		"mean_good_score", result.MeanGoodScore,
		"mean_bad_score", result.MeanBadScore)

	return result, nil
}
