package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes of the badger layout
const (
	vocabPrefix  = "vocab/"
	answerPrefix = "answer/"
	splitPrefix  = "split/"
)

// BadgerStore keeps a corpus in a badger database:
//
//	vocab/<id>             word
//	answer/<id>            JSON token list
//	split/<name>/<index>   JSON record, index zero-padded to keep file order
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadgerStore opens or creates the database at path
func OpenBadgerStore(path string, logger *slog.Logger) (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions(path), logger)
}

// OpenInMemoryBadgerStore opens a store that lives only in memory
func OpenInMemoryBadgerStore(logger *slog.Logger) (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true), logger)
}

func openBadger(opts badger.Options, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// ImportStats counts the entries written by Import
type ImportStats struct {
	Words   int
	Answers int
	Records map[string]int
}

// Import copies the vocabulary, answers and the given splits from src into the store
func (s *BadgerStore) Import(ctx context.Context, src Source, splits []string) (*ImportStats, error) {
	vocab, err := src.Vocabulary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	answers, err := src.Answers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}

	records := make(map[string][]Record, len(splits))
	for _, split := range splits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := src.Records(ctx, split)
		if err != nil {
			return nil, fmt.Errorf("failed to read split %q: %w", split, err)
		}
		records[split] = r
	}

	// Entries from an earlier import of the same parts must not survive
	prefixes := [][]byte{[]byte(vocabPrefix), []byte(answerPrefix)}
	for _, split := range splits {
		prefixes = append(prefixes, []byte(splitKeyPrefix(split)))
	}
	if err := s.db.DropPrefix(prefixes...); err != nil {
		return nil, fmt.Errorf("failed to clear previous import: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	stats := &ImportStats{Records: make(map[string]int)}
	for id, word := range vocab {
		if err := wb.Set(intKey(vocabPrefix, id), []byte(word)); err != nil {
			return nil, fmt.Errorf("failed to write word %d: %w", id, err)
		}
		stats.Words++
	}
	for id, tokens := range answers {
		data, err := json.Marshal(tokens)
		if err != nil {
			return nil, err
		}
		if err := wb.Set(intKey(answerPrefix, id), data); err != nil {
			return nil, fmt.Errorf("failed to write answer %d: %w", id, err)
		}
		stats.Answers++
	}

	for _, split := range splits {
		rs := records[split]
		for i, r := range rs {
			data, err := json.Marshal(r)
			if err != nil {
				return nil, err
			}
			if err := wb.Set(intKey(splitKeyPrefix(split), i), data); err != nil {
				return nil, fmt.Errorf("failed to write record %d of %q: %w", i, split, err)
			}
		}
		stats.Records[split] = len(rs)
	}

	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush import: %w", err)
	}
	s.logger.Info("Imported corpus", "words", stats.Words, "answers", stats.Answers, "splits", stats.Records)
	return stats, nil
}

// Vocabulary reads every vocab/ entry
func (s *BadgerStore) Vocabulary(ctx context.Context) (Vocabulary, error) {
	vocab := make(Vocabulary)
	err := s.scan(vocabPrefix, func(key string, value []byte) error {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid vocab key %q: %w", key, err)
		}
		vocab[id] = string(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vocab, nil
}

// Answers reads every answer/ entry
func (s *BadgerStore) Answers(ctx context.Context) (AnswerPool, error) {
	pool := make(AnswerPool)
	err := s.scan(answerPrefix, func(key string, value []byte) error {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid answer key %q: %w", key, err)
		}
		var tokens []int
		if err := json.Unmarshal(value, &tokens); err != nil {
			return fmt.Errorf("answer %d: %w", id, err)
		}
		pool[id] = tokens
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Records reads the records of a split in their original order
func (s *BadgerStore) Records(ctx context.Context, split string) ([]Record, error) {
	var records []Record
	err := s.scan(splitKeyPrefix(split), func(key string, value []byte) error {
		var r Record
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("split %q has no records", split)
	}
	return records, nil
}

// scan visits every key under prefix in key order, passing the key without the prefix
func (s *BadgerStore) scan(prefix string, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(strings.TrimPrefix(string(item.Key()), prefix), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func splitKeyPrefix(split string) string {
	return splitPrefix + split + "/"
}

// intKey zero-pads id so lexical key order equals numeric order for non-negative ids
func intKey(prefix string, id int) []byte {
	return []byte(fmt.Sprintf("%s%010d", prefix, id))
}
