package dataset

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPad(t *testing.T) {
	tests := []struct {
		name string
		seq  []int
		n    int
		want []int
	}{
		{"truncate", []int{1, 2, 3, 4, 5}, 3, []int{1, 2, 3}},
		{"pad", []int{1, 2}, 4, []int{1, 2, 0, 0}},
		{"exact", []int{1, 2, 3}, 3, []int{1, 2, 3}},
		{"empty", nil, 2, []int{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pad(tt.seq, tt.n)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, tt.n)
		})
	}

	t.Run("input is not modified", func(t *testing.T) {
		seq := []int{1, 2}
		out := Pad(seq, 4)
		out[0] = 9
		assert.Equal(t, []int{1, 2}, seq)
	})
}

func TestVocabulary(t *testing.T) {
	vocab := Vocabulary{1: "hello", 2: "world"}

	assert.Equal(t, 3, vocab.Size())
	assert.Equal(t, "hello", vocab.Word(1))
	assert.Equal(t, PadToken, vocab.Word(0))
	assert.Equal(t, PadToken, vocab.Word(42))
	assert.Equal(t, []string{"hello", "world", PadToken}, vocab.Words([]int{1, 2, 0}))
}

func TestAnswerPoolIDsSorted(t *testing.T) {
	pool := AnswerPool{5: {1}, 1: {2}, 3: {3}}
	assert.Equal(t, []int{1, 3, 5}, pool.IDs())
}

func TestFlatten(t *testing.T) {
	pool := AnswerPool{1: {4, 5}, 2: {6, 7, 8, 9}}
	records := []Record{
		{Question: []int{1, 2, 3}, Answers: []int{1, 2}},
		{Question: []int{3}, Answers: []int{2}},
	}

	set, err := Flatten(records, pool, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, [][]int{{1, 2}, {1, 2}, {3, 0}}, set.Questions)
	assert.Equal(t, [][]int{{4, 5, 0}, {6, 7, 8}, {6, 7, 8}}, set.GoodAnswers)
	assert.Equal(t, []int{0, 0, 1}, set.Indices)

	t.Run("missing answer id", func(t *testing.T) {
		_, err := Flatten([]Record{{Question: []int{1}, Answers: []int{99}}}, pool, 2, 3)
		assert.ErrorIs(t, err, ErrUnknownAnswer)
	})
}

func TestValidateTokens(t *testing.T) {
	pool := AnswerPool{1: {1, 2}}
	records := []Record{{Question: []int{0, 1, 2}, Answers: []int{1}}}
	assert.NoError(t, ValidateTokens(records, pool, 3))

	err := ValidateTokens([]Record{{Question: []int{3}}}, pool, 3)
	assert.ErrorIs(t, err, ErrTokenOutOfRange)

	err = ValidateTokens(records, AnswerPool{1: {-1}}, 3)
	assert.ErrorIs(t, err, ErrTokenOutOfRange)
}

func TestNegativeSampler(t *testing.T) {
	pool := AnswerPool{1: {1, 1}, 2: {2, 2, 2}, 3: {3}}

	t.Run("empty pool", func(t *testing.T) {
		_, err := NewNegativeSampler(AnswerPool{}, 3, rand.New(rand.NewSource(1)))
		assert.ErrorIs(t, err, ErrEmptyPool)
	})

	t.Run("draws exactly n padded answers from the pool", func(t *testing.T) {
		s, err := NewNegativeSampler(pool, 2, rand.New(rand.NewSource(1)))
		require.NoError(t, err)

		bad := s.Sample(50)
		require.Len(t, bad, 50)
		allowed := [][]int{{1, 1}, {2, 2}, {3, 0}}
		for _, b := range bad {
			assert.Contains(t, allowed, b)
		}
	})

	t.Run("draws with replacement", func(t *testing.T) {
		s, err := NewNegativeSampler(pool, 2, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		// more draws than pool entries must succeed
		assert.Len(t, s.Sample(10), 10)
	})

	t.Run("reproducible with a seed", func(t *testing.T) {
		a, err := NewNegativeSampler(pool, 2, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		b, err := NewNegativeSampler(pool, 2, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		assert.Equal(t, a.Sample(20), b.Sample(20))
	})

	t.Run("sample ids excludes and caps", func(t *testing.T) {
		s, err := NewNegativeSampler(pool, 2, rand.New(rand.NewSource(3)))
		require.NoError(t, err)

		ids := s.SampleIDs(5, []int{2})
		assert.ElementsMatch(t, []int{1, 3}, ids)

		ids = s.SampleIDs(1, nil)
		assert.Len(t, ids, 1)

		assert.Empty(t, s.SampleIDs(0, nil))
		assert.Empty(t, s.SampleIDs(-1, nil))
	})
}

func TestPackAndSplit(t *testing.T) {
	layout := Layout{QuestionLen: 2, AnswerLen: 3}
	assert.Equal(t, 8, layout.Width())

	rows, err := Pack(layout,
		[][]int{{1, 2}, {3, 4}},
		[][]int{{5, 6, 7}, {8, 9, 10}},
		[][]int{{11, 12, 13}, {14, 15, 16}},
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5, 6, 7, 11, 12, 13}, rows[0])

	q, g, b := layout.Split(rows[1])
	assert.Equal(t, []int{3, 4}, q)
	assert.Equal(t, []int{8, 9, 10}, g)
	assert.Equal(t, []int{14, 15, 16}, b)

	t.Run("mismatched lengths", func(t *testing.T) {
		_, err := Pack(layout, [][]int{{1, 2}}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("unpadded row", func(t *testing.T) {
		_, err := Pack(layout, [][]int{{1}}, [][]int{{1, 2, 3}}, [][]int{{1, 2, 3}})
		assert.Error(t, err)
	})
}

func TestBatches(t *testing.T) {
	rows := make([][]int, 7)
	for i := range rows {
		rows[i] = []int{i}
	}

	batches := Batches(rows, 3)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, []int{6}, batches[2][0])

	assert.Equal(t, 3, NumBatches(7, 3))
	assert.Equal(t, 1, NumBatches(1, 100))
	assert.Equal(t, 0, NumBatches(0, 5))
	assert.Len(t, Batches(rows, 100), 1)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "vocabulary.json", `{"1": "what", "2": "is", "3": "insurance", "4": "cover"}`)
	writeFile(t, dir, "answers.json", `{"10": [3, 4], "20": [4, 4, 4]}`)
	writeFile(t, dir, "train.json", `[{"question": [1, 2, 3], "answers": [10]}, {"question": [1], "answers": [10, 20]}]`)
	writeFile(t, dir, "test1.yaml", "- question: [1, 2]\n  answers: [20]\n  bad: [10]\n")
	return dir
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	src := NewFileSource(writeCorpus(t))

	vocab, err := src.Vocabulary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Vocabulary{1: "what", 2: "is", 3: "insurance", 4: "cover"}, vocab)

	answers, err := src.Answers(ctx)
	require.NoError(t, err)
	assert.Equal(t, AnswerPool{10: {3, 4}, 20: {4, 4, 4}}, answers)

	train, err := src.Records(ctx, "train")
	require.NoError(t, err)
	require.Len(t, train, 2)
	assert.Equal(t, []int{10, 20}, train[1].Answers)

	t.Run("yaml split", func(t *testing.T) {
		test, err := src.Records(ctx, "test1")
		require.NoError(t, err)
		require.Len(t, test, 1)
		assert.Equal(t, Record{Question: []int{1, 2}, Answers: []int{20}, Bad: []int{10}}, test[0])
	})

	t.Run("missing split", func(t *testing.T) {
		_, err := src.Records(ctx, "dev")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("split name escaping the directory", func(t *testing.T) {
		_, err := src.Records(ctx, "../train")
		assert.Error(t, err)
	})

	t.Run("load corpus", func(t *testing.T) {
		corpus, err := Load(ctx, src, "train")
		require.NoError(t, err)
		assert.Equal(t, 5, corpus.Vocab.Size())
		assert.Len(t, corpus.Answers, 2)
		assert.Len(t, corpus.Records, 2)
	})
}

func TestFileSourceYAMLVocabulary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocabulary.yml", "1: hello\n2: world\n")

	vocab, err := NewFileSource(dir).Vocabulary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Vocabulary{1: "hello", 2: "world"}, vocab)
}

func TestFileSourceInvalidKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocabulary.json", `{"one": "hello"}`)

	_, err := NewFileSource(dir).Vocabulary(context.Background())
	assert.Error(t, err)
}

func TestBadgerStore(t *testing.T) {
	ctx := context.Background()
	src := NewFileSource(writeCorpus(t))

	store, err := OpenInMemoryBadgerStore(nil)
	require.NoError(t, err)
	defer store.Close()

	stats, err := store.Import(ctx, src, []string{"train", "test1"})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Words)
	assert.Equal(t, 2, stats.Answers)
	assert.Equal(t, map[string]int{"train": 2, "test1": 1}, stats.Records)

	t.Run("read back matches source", func(t *testing.T) {
		wantVocab, _ := src.Vocabulary(ctx)
		gotVocab, err := store.Vocabulary(ctx)
		require.NoError(t, err)
		assert.Equal(t, wantVocab, gotVocab)

		wantAnswers, _ := src.Answers(ctx)
		gotAnswers, err := store.Answers(ctx)
		require.NoError(t, err)
		assert.Equal(t, wantAnswers, gotAnswers)

		for _, split := range []string{"train", "test1"} {
			want, _ := src.Records(ctx, split)
			got, err := store.Records(ctx, split)
			require.NoError(t, err)
			assert.Equal(t, want, got, split)
		}
	})

	t.Run("unknown split", func(t *testing.T) {
		_, err := store.Records(ctx, "dev")
		assert.Error(t, err)
	})

	t.Run("re-import replaces earlier entries", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "vocabulary.json", `{"1": "only"}`)
		writeFile(t, dir, "answers.json", `{"1": [1]}`)
		writeFile(t, dir, "train.json", `[{"question": [1], "answers": [1]}]`)

		stats, err := store.Import(ctx, NewFileSource(dir), []string{"train"})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Words)

		vocab, err := store.Vocabulary(ctx)
		require.NoError(t, err)
		assert.Equal(t, Vocabulary{1: "only"}, vocab)

		answers, err := store.Answers(ctx)
		require.NoError(t, err)
		assert.Equal(t, AnswerPool{1: {1}}, answers)

		records, err := store.Records(ctx, "train")
		require.NoError(t, err)
		assert.Equal(t, []Record{{Question: []int{1}, Answers: []int{1}}}, records)

		// splits not named in the import are kept
		test1, err := store.Records(ctx, "test1")
		require.NoError(t, err)
		assert.Len(t, test1, 1)

		// a split that cannot be read leaves the store untouched
		_, err = store.Import(ctx, NewFileSource(dir), []string{"train", "dev"})
		assert.ErrorIs(t, err, ErrFileNotFound)
		vocab, err = store.Vocabulary(ctx)
		require.NoError(t, err)
		assert.Equal(t, Vocabulary{1: "only"}, vocab)
	})

	t.Run("record order survives many entries", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "vocabulary.json", `{"1": "a"}`)
		writeFile(t, dir, "answers.json", `{"1": [1]}`)
		content := "["
		for i := 0; i < 12; i++ {
			if i > 0 {
				content += ","
			}
			content += `{"question": [1], "answers": [1], "bad": [` + string(rune('0'+i%10)) + `]}`
		}
		writeFile(t, dir, "big.json", content+"]")

		mem, err := OpenInMemoryBadgerStore(nil)
		require.NoError(t, err)
		defer mem.Close()
		_, err = mem.Import(ctx, NewFileSource(dir), []string{"big"})
		require.NoError(t, err)

		want, err := NewFileSource(dir).Records(ctx, "big")
		require.NoError(t, err)
		got, err := mem.Records(ctx, "big")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
