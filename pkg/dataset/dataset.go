// Package dataset loads question/answer corpora and turns them into padded,
// batched training triplets for the pairwise ranking trainer.
package dataset

import (
	"errors"
	"fmt"
	"sort"
)

// PadToken renders the padding id and any id missing from the vocabulary
const PadToken = "<PAD>"

// PadID is the token id reserved for padding
const PadID = 0

var (
	// ErrUnknownAnswer is returned when a record references an id missing from the pool
	ErrUnknownAnswer = errors.New("answer id not in pool")

	// ErrTokenOutOfRange is returned for token ids outside [0, vocab size)
	ErrTokenOutOfRange = errors.New("token id out of range")

	// ErrEmptyPool is returned when negative sampling has nothing to draw from
	ErrEmptyPool = errors.New("answer pool is empty")
)

// Vocabulary maps token ids to words. Id 0 is never stored; it is padding.
type Vocabulary map[int]string

// Size returns the model vocabulary size: entries plus one for padding
func (v Vocabulary) Size() int {
	return len(v) + 1
}

// Word returns the word for id, or PadToken when the id is padding or unknown
func (v Vocabulary) Word(id int) string {
	if w, ok := v[id]; ok && id != PadID {
		return w
	}
	return PadToken
}

// Words renders a sequence of ids
func (v Vocabulary) Words(ids []int) []string {
	words := make([]string, len(ids))
	for i, id := range ids {
		words[i] = v.Word(id)
	}
	return words
}

// AnswerPool maps answer ids to token sequences
type AnswerPool map[int][]int

// IDs returns the pool's answer ids in ascending order
func (p AnswerPool) IDs() []int {
	ids := make([]int, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Record is one question with the ids of its correct answers and, optionally,
// known wrong candidates used for evaluation
type Record struct {
	Question []int `json:"question" yaml:"question"`
	Answers  []int `json:"answers" yaml:"answers"`
	Bad      []int `json:"bad,omitempty" yaml:"bad,omitempty"`
}

// Pad returns a copy of seq truncated or right-padded with PadID to exactly n tokens
func Pad(seq []int, n int) []int {
	out := make([]int, n)
	copy(out, seq)
	return out
}

// PadAll pads every sequence to n
func PadAll(seqs [][]int, n int) [][]int {
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		out[i] = Pad(s, n)
	}
	return out
}

// TrainingSet is the flattened list of (question, good answer) pairs. Both sides are
// already padded. Indices[i] is the record that produced pair i.
type TrainingSet struct {
	Questions   [][]int
	GoodAnswers [][]int
	Indices     []int
}

// Len returns the number of pairs
func (s *TrainingSet) Len() int {
	return len(s.Questions)
}

// Flatten expands every record into one pair per correct answer, padding questions
// to questionLen and answers to answerLen
func Flatten(records []Record, pool AnswerPool, questionLen, answerLen int) (*TrainingSet, error) {
	set := &TrainingSet{}
	for i, r := range records {
		q := Pad(r.Question, questionLen)
		for _, id := range r.Answers {
			answer, ok := pool[id]
			if !ok {
				return nil, fmt.Errorf("record %d: %w: %d", i, ErrUnknownAnswer, id)
			}
			set.Questions = append(set.Questions, q)
			set.GoodAnswers = append(set.GoodAnswers, Pad(answer, answerLen))
			set.Indices = append(set.Indices, i)
		}
	}
	return set, nil
}

// ValidateTokens checks that every token in records and pool is inside [0, vocabSize)
func ValidateTokens(records []Record, pool AnswerPool, vocabSize int) error {
	for i, r := range records {
		if err := checkTokens(r.Question, vocabSize); err != nil {
			return fmt.Errorf("record %d question: %w", i, err)
		}
	}
	for _, id := range pool.IDs() {
		if err := checkTokens(pool[id], vocabSize); err != nil {
			return fmt.Errorf("answer %d: %w", id, err)
		}
	}
	return nil
}

func checkTokens(seq []int, vocabSize int) error {
	for pos, tok := range seq {
		if tok < 0 || tok >= vocabSize {
			return fmt.Errorf("%w: token %d at position %d, vocab size %d", ErrTokenOutOfRange, tok, pos, vocabSize)
		}
	}
	return nil
}
