package utils

import "testing"

func TestTopKByScore(t *testing.T) {
	t.Parallel()
	t.Run("basic top k", func(t *testing.T) {
		items := []ScoredItem[string]{
			{Item: "a", Score: 0.5},
			{Item: "b", Score: 0.9},
			{Item: "c", Score: 0.3},
			{Item: "d", Score: 0.7},
			{Item: "e", Score: 0.1},
		}

		result := TopKByScore(items, 3)
		if len(result) != 3 {
			t.Fatalf("expected 3 items, got %d", len(result))
		}

		// Should be sorted descending
		if result[0].Item != "b" || result[1].Item != "d" || result[2].Item != "a" {
			t.Errorf("expected b, d, a, got %v", result)
		}
	})

	t.Run("k greater than length", func(t *testing.T) {
		items := []ScoredItem[int]{
			{Item: 1, Score: 0.5},
			{Item: 2, Score: 0.9},
		}

		result := TopKByScore(items, 10)
		if len(result) != 2 {
			t.Fatalf("expected 2 items, got %d", len(result))
		}
		if result[0].Score != 0.9 {
			t.Errorf("expected first score 0.9, got %f", result[0].Score)
		}
	})

	t.Run("full sort keeps input order for ties", func(t *testing.T) {
		items := []ScoredItem[int]{
			{Item: 1, Score: 0.5},
			{Item: 2, Score: 0.5},
			{Item: 3, Score: 0.9},
			{Item: 4, Score: 0.5},
		}

		result := TopKByScore(items, len(items))
		want := []int{3, 1, 2, 4}
		for i, item := range result {
			if item.Item != want[i] {
				t.Fatalf("expected order %v, got %v", want, result)
			}
		}
	})

	t.Run("k is zero", func(t *testing.T) {
		result := TopKByScore([]ScoredItem[int]{{Item: 1, Score: 0.5}}, 0)
		if result != nil {
			t.Errorf("expected nil for k=0, got %v", result)
		}
	})

	t.Run("empty items", func(t *testing.T) {
		var items []ScoredItem[int]

		result := TopKByScore(items, 5)
		if result != nil {
			t.Errorf("expected nil for empty items, got %v", result)
		}
	})

	t.Run("duplicate scores with heap", func(t *testing.T) {
		items := []ScoredItem[int]{
			{Item: 1, Score: 0.5},
			{Item: 2, Score: 0.5},
			{Item: 3, Score: 0.9},
			{Item: 4, Score: 0.5},
		}

		result := TopKByScore(items, 2)
		if len(result) != 2 {
			t.Fatalf("expected 2 items, got %d", len(result))
		}
		if result[0].Score != 0.9 || result[1].Score != 0.5 {
			t.Errorf("expected scores 0.9, 0.5, got %v", result)
		}
	})
}

func TestTopKIndicesByScore(t *testing.T) {
	t.Parallel()
	t.Run("basic indices", func(t *testing.T) {
		scores := []float64{0.3, 0.9, 0.5, 0.1, 0.7}

		result := TopKIndicesByScore(scores, 3)
		if len(result) != 3 {
			t.Fatalf("expected 3 indices, got %d", len(result))
		}
		if result[0] != 1 || result[1] != 4 || result[2] != 2 {
			t.Errorf("expected [1 4 2], got %v", result)
		}
	})

	t.Run("empty scores", func(t *testing.T) {
		result := TopKIndicesByScore([]float64{}, 5)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})

	t.Run("k zero", func(t *testing.T) {
		result := TopKIndicesByScore([]float64{0.5, 0.3}, 0)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

func BenchmarkTopKByScore(b *testing.B) {
	// one score per answer of a large pool
	items := make([]ScoredItem[int], 10000)
	for i := range items {
		items[i] = ScoredItem[int]{
			Item:  i,
			Score: float64(i%1000) / 1000.0,
		}
	}

	b.Run("k=10", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			TopKByScore(items, 10)
		}
	})

	b.Run("k=all", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			TopKByScore(items, len(items))
		}
	})
}
