package dataset

import "fmt"

// Layout gives the column offsets of one packed triplet row: question | good | bad
type Layout struct {
	QuestionLen int
	AnswerLen   int
}

// Width is the number of ints in one row
func (l Layout) Width() int {
	return l.QuestionLen + 2*l.AnswerLen
}

// Split returns views of the three parts of row
func (l Layout) Split(row []int) (question, good, bad []int) {
	q := l.QuestionLen
	a := l.AnswerLen
	return row[:q], row[q : q+a], row[q+a : q+2*a]
}

// Pack concatenates questions, good and bad answers column-wise into triplet rows.
// All three inputs must have the same length and already be padded.
func Pack(l Layout, questions, good, bad [][]int) ([][]int, error) {
	if len(questions) != len(good) || len(good) != len(bad) {
		return nil, fmt.Errorf("pack: mismatched lengths %d questions, %d good, %d bad", len(questions), len(good), len(bad))
	}
	rows := make([][]int, len(questions))
	for i := range questions {
		if len(questions[i]) != l.QuestionLen || len(good[i]) != l.AnswerLen || len(bad[i]) != l.AnswerLen {
			return nil, fmt.Errorf("pack: row %d is not padded to %d/%d", i, l.QuestionLen, l.AnswerLen)
		}
		row := make([]int, 0, l.Width())
		row = append(row, questions[i]...)
		row = append(row, good[i]...)
		row = append(row, bad[i]...)
		rows[i] = row
	}
	return rows, nil
}

// Batches slices rows into consecutive batches of size; the last may be smaller
func Batches(rows [][]int, size int) [][][]int {
	if size <= 0 {
		return nil
	}
	batches := make([][][]int, 0, NumBatches(len(rows), size))
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batches = append(batches, rows[start:end])
	}
	return batches
}

// NumBatches returns ceil(n / size)
func NumBatches(n, size int) int {
	if size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
