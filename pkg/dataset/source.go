package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Source provides the three parts of a corpus
type Source interface {
	Vocabulary(ctx context.Context) (Vocabulary, error)
	Answers(ctx context.Context) (AnswerPool, error)
	Records(ctx context.Context, split string) ([]Record, error)
}

// Corpus is a fully loaded dataset
type Corpus struct {
	Vocab   Vocabulary
	Answers AnswerPool
	Records []Record
}

// Load reads vocabulary, answers and one split from src
func Load(ctx context.Context, src Source, split string) (*Corpus, error) {
	vocab, err := src.Vocabulary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	answers, err := src.Answers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	records, err := src.Records(ctx, split)
	if err != nil {
		return nil, fmt.Errorf("failed to load split %q: %w", split, err)
	}
	return &Corpus{Vocab: vocab, Answers: answers, Records: records}, nil
}

// ErrFileNotFound is returned when no file variant exists for a dataset part
var ErrFileNotFound = errors.New("dataset file not found")

var extensions = []string{".json", ".yaml", ".yml"}

// FileSource reads name.json, name.yaml or name.yml files from a directory:
// vocabulary, answers and one file per split
type FileSource struct {
	Dir string
}

// NewFileSource creates a source over dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Vocabulary reads the id → word map
func (s *FileSource) Vocabulary(ctx context.Context) (Vocabulary, error) {
	var raw map[string]string
	if err := s.decode("vocabulary", &raw); err != nil {
		return nil, err
	}
	vocab := make(Vocabulary, len(raw))
	for k, w := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("vocabulary: invalid token id %q: %w", k, err)
		}
		vocab[id] = w
	}
	return vocab, nil
}

// Answers reads the answer id → token sequence map
func (s *FileSource) Answers(ctx context.Context) (AnswerPool, error) {
	var raw map[string][]int
	if err := s.decode("answers", &raw); err != nil {
		return nil, err
	}
	pool := make(AnswerPool, len(raw))
	for k, tokens := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("answers: invalid answer id %q: %w", k, err)
		}
		pool[id] = tokens
	}
	return pool, nil
}

// Records reads the list of records of a split
func (s *FileSource) Records(ctx context.Context, split string) ([]Record, error) {
	if split == "" || filepath.Base(split) != split {
		return nil, fmt.Errorf("invalid split name %q", split)
	}
	var records []Record
	if err := s.decode(split, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *FileSource) decode(name string, out any) error {
	for _, ext := range extensions {
		path := filepath.Join(s.Dir, name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if ext == ".json" {
			err = json.Unmarshal(data, out)
		} else {
			err = yaml.Unmarshal(data, out)
		}
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s{%s} in %s", ErrFileNotFound, name, ".json,.yaml,.yml", s.Dir)
}
