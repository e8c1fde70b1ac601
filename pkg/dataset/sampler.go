package dataset

import "math/rand"

// NegativeSampler draws bad answers uniformly with replacement from a pool.
// Draw order follows ascending answer id so a seeded generator is reproducible.
type NegativeSampler struct {
	ids       []int
	pool      AnswerPool
	answerLen int
	rng       *rand.Rand
}

// NewNegativeSampler creates a sampler over pool that pads answers to answerLen
func NewNegativeSampler(pool AnswerPool, answerLen int, rng *rand.Rand) (*NegativeSampler, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	return &NegativeSampler{
		ids:       pool.IDs(),
		pool:      pool,
		answerLen: answerLen,
		rng:       rng,
	}, nil
}

// Sample returns n padded answers
func (s *NegativeSampler) Sample(n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = Pad(s.pool[s.ids[s.rng.Intn(len(s.ids))]], s.answerLen)
	}
	return out
}

// SampleIDs returns n answer ids drawn without replacement from the pool, skipping
// the excluded ones. Fewer than n are returned when the pool runs out.
func (s *NegativeSampler) SampleIDs(n int, exclude []int) []int {
	if n <= 0 {
		return nil
	}
	skip := make(map[int]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	candidates := make([]int, 0, len(s.ids))
	for _, id := range s.ids {
		if !skip[id] {
			candidates = append(candidates, id)
		}
	}
	s.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates
}
